package detector

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// landmarkIdleShutdown is how long the subprocess may sit unused before
// it is stopped. It restarts lazily on the next Detect call.
const landmarkIdleShutdown = 30 * time.Second

// MediaPipeDetector implements Detector by streaming frames to a Python
// MediaPipe subprocess. Frames cross the pipe as a 4-byte big-endian
// length followed by JPEG bytes; responses come back as one JSON line.
type MediaPipeDetector struct {
	mu        sync.Mutex
	proc      *landmarkProc
	idleTimer *time.Timer
}

// NewMediaPipeDetector creates a detector backed by the landmark service
// script. The subprocess starts lazily on the first Detect call.
func NewMediaPipeDetector() (*MediaPipeDetector, error) {
	if landmarkScriptPath() == "" {
		return nil, fmt.Errorf("landmark_service.py not found")
	}
	return &MediaPipeDetector{}, nil
}

// Detect sends the frame to the subprocess and returns landmarks for the
// highest-scoring hand, or ErrNoHand if nothing was detected.
func (d *MediaPipeDetector) Detect(frame *gocv.Mat) (*HandLandmarks, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.proc == nil {
		proc, err := startLandmarkProc()
		if err != nil {
			return nil, err
		}
		d.proc = proc
	}

	jpeg, err := gocv.IMEncode(".jpg", *frame)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	hands, err := d.proc.analyze(jpeg.GetBytes())
	jpeg.Close()
	if err != nil {
		return nil, err
	}

	d.scheduleIdleShutdown()

	best := bestHand(hands)
	if best == nil {
		return nil, ErrNoHand
	}
	lm := best.toHandLandmarks()
	return &lm, nil
}

// Close shuts down the subprocess.
func (d *MediaPipeDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stopLocked()
}

func (d *MediaPipeDetector) stopLocked() error {
	if d.idleTimer != nil {
		d.idleTimer.Stop()
		d.idleTimer = nil
	}
	if d.proc == nil {
		return nil
	}
	err := d.proc.stop()
	d.proc = nil
	return err
}

func (d *MediaPipeDetector) scheduleIdleShutdown() {
	if d.idleTimer != nil {
		d.idleTimer.Stop()
	}
	d.idleTimer = time.AfterFunc(landmarkIdleShutdown, func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		d.stopLocked()
	})
}

// bestHand returns the hand with the highest detection score, or nil.
func bestHand(hands []jsonHand) *jsonHand {
	var best *jsonHand
	for i := range hands {
		if best == nil || hands[i].Score > best.Score {
			best = &hands[i]
		}
	}
	return best
}

// landmarkProc owns the running subprocess and its pipes.
type landmarkProc struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Reader
}

func startLandmarkProc() (*landmarkProc, error) {
	script := landmarkScriptPath()
	if script == "" {
		return nil, fmt.Errorf("landmark_service.py not found")
	}
	python := venvPythonPath()
	if python == "" {
		python = "python3"
	}

	cmd := exec.Command(python, script)
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("create stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("create stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start landmark service: %w", err)
	}

	return &landmarkProc{
		cmd:    cmd,
		stdin:  stdin,
		stdout: bufio.NewReader(stdout),
	}, nil
}

// analyze ships one JPEG frame and parses the hands from the reply line.
func (p *landmarkProc) analyze(jpeg []byte) ([]jsonHand, error) {
	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(jpeg)))

	if _, err := p.stdin.Write(header[:]); err != nil {
		return nil, fmt.Errorf("write length: %w", err)
	}
	if _, err := p.stdin.Write(jpeg); err != nil {
		return nil, fmt.Errorf("write frame: %w", err)
	}

	line, err := p.stdout.ReadString('\n')
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var reply struct {
		Hands []jsonHand `json:"hands"`
	}
	if err := json.Unmarshal([]byte(line), &reply); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	return reply.Hands, nil
}

func (p *landmarkProc) stop() error {
	if p.stdin != nil {
		p.stdin.Close()
	}
	return p.cmd.Wait()
}

func landmarkScriptPath() string {
	return firstExisting([]string{
		"scripts/landmark_service.py",
		"../scripts/landmark_service.py",
		filepath.Join(executableDir(), "scripts/landmark_service.py"),
		filepath.Join(os.Getenv("HOME"), ".mudra/scripts/landmark_service.py"),
	})
}

// venvPythonPath looks for a Python interpreter in a virtual environment
// near the binary, falling back to the data directory.
func venvPythonPath() string {
	return firstExisting([]string{
		"venv/bin/python",
		"../venv/bin/python",
		filepath.Join(executableDir(), "venv/bin/python"),
		filepath.Join(os.Getenv("HOME"), ".mudra/venv/bin/python"),
	})
}

func executableDir() string {
	execPath, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(execPath)
}

func firstExisting(candidates []string) string {
	for _, path := range candidates {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if abs, err := filepath.Abs(path); err == nil {
			return abs
		}
		return path
	}
	return ""
}

// jsonHand is the wire structure emitted by the landmark service.
type jsonHand struct {
	Points     []jsonPoint `json:"points"`
	Handedness string      `json:"handedness"`
	Score      float64     `json:"score"`
}

type jsonPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func (h jsonHand) toHandLandmarks() HandLandmarks {
	lm := HandLandmarks{
		Handedness: h.Handedness,
		Score:      h.Score,
	}
	for i := 0; i < NumLandmarks && i < len(h.Points); i++ {
		lm.Points[i] = Point3D(h.Points[i])
	}
	return lm
}
