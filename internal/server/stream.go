package server

import (
	"fmt"
	"net/http"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/mudra/internal/capture"
)

const streamBoundary = "frame"

// StreamHandler serves an MJPEG preview of the camera feed for the
// settings page. Frames are paced at the camera's active rate.
type StreamHandler struct {
	camera capture.Camera
}

// NewStreamHandler creates a StreamHandler with the given camera.
func NewStreamHandler(camera capture.Camera) *StreamHandler {
	return &StreamHandler{camera: camera}
}

// ServeHTTP streams JPEG-encoded frames until the client disconnects.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary="+streamBoundary)
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, _ := w.(http.Flusher)
	interval := capture.FrameInterval(capture.ActiveFPS)

	for r.Context().Err() == nil {
		if err := h.writeFrame(w); err != nil {
			// Camera hiccup; back off and retry.
			time.Sleep(100 * time.Millisecond)
			continue
		}
		if flusher != nil {
			flusher.Flush()
		}
		time.Sleep(interval)
	}
}

// writeFrame reads one frame, JPEG-encodes it, and writes one multipart
// part.
func (h *StreamHandler) writeFrame(w http.ResponseWriter) error {
	frame, err := h.camera.ReadFrame()
	if err != nil {
		return err
	}
	defer frame.Close()

	jpeg, err := gocv.IMEncode(".jpg", *frame)
	if err != nil {
		return err
	}
	defer jpeg.Close()

	if _, err := fmt.Fprintf(w, "--%s\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", streamBoundary, jpeg.Len()); err != nil {
		return err
	}
	if _, err := w.Write(jpeg.GetBytes()); err != nil {
		return err
	}
	_, err = fmt.Fprint(w, "\r\n")
	return err
}
