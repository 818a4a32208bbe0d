package server

import (
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ayusman/mudra/internal/assets"
	"github.com/ayusman/mudra/internal/dataset"
	"github.com/ayusman/mudra/internal/infer"
	"github.com/ayusman/mudra/internal/model"
	"github.com/ayusman/mudra/internal/store"
	"github.com/ayusman/mudra/internal/training"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	dir := t.TempDir()

	ds, err := dataset.New(filepath.Join(dir, "data"), dataset.DefaultSampleCap)
	if err != nil {
		t.Fatalf("create dataset store: %v", err)
	}

	modelDir := filepath.Join(dir, "model")
	if err := os.MkdirAll(modelDir, 0o755); err != nil {
		t.Fatalf("create model dir: %v", err)
	}

	registry := assets.New(modelDir, ds,
		func(path string) (assets.Scaler, error) { return model.LoadScaler(path) },
		func(path string) (assets.Classifier, error) { return model.LoadClassifier(path) },
	)

	st, err := store.New(filepath.Join(dir, "mudra.db"))
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	orch := training.New(training.Config{
		Data:         ds,
		Registry:     registry,
		Trainer:      training.BuiltinTrainer{},
		ScalerPath:   registry.ScalerPath(),
		ArtifactPath: registry.ClassifierPath(),
		Runs:         st.Runs(),
	})

	engine := infer.New(registry, nil, infer.DefaultThreshold)

	srv := New(Config{
		Store:        st,
		Dataset:      ds,
		Registry:     registry,
		Engine:       engine,
		Orchestrator: orch,
	})

	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)
	return ts
}

func dialSession(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func sendEvent(t *testing.T, conn *websocket.Conn, event string, data any) {
	t.Helper()

	payload, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal %s payload: %v", event, err)
	}
	if err := conn.WriteJSON(envelope{Event: event, Data: payload}); err != nil {
		t.Fatalf("send %s: %v", event, err)
	}
}

// readEvent reads envelopes until one matches the wanted event,
// skipping interleaved broadcasts.
func readEvent(t *testing.T, conn *websocket.Conn, want string) json.RawMessage {
	t.Helper()

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		var env envelope
		if err := conn.ReadJSON(&env); err != nil {
			t.Fatalf("waiting for %s: %v", want, err)
		}
		if env.Event == want {
			return env.Data
		}
	}
}

func landmarkVec(fill float64) []float64 {
	vec := make([]float64, 63)
	for i := range vec {
		vec[i] = fill
	}
	return vec
}

func TestSession_SystemInfoOnConnect(t *testing.T) {
	ts := newTestServer(t)
	conn := dialSession(t, ts)

	var info systemInfoPayload
	if err := json.Unmarshal(readEvent(t, conn, eventSystemInfo), &info); err != nil {
		t.Fatalf("decode system_info: %v", err)
	}

	if len(info.Gestures) != 0 {
		t.Errorf("expected no gestures, got %v", info.Gestures)
	}
	if info.ModelReady {
		t.Error("model should not be ready on a fresh server")
	}
}

func TestSession_Collect(t *testing.T) {
	ts := newTestServer(t)
	conn := dialSession(t, ts)
	readEvent(t, conn, eventSystemInfo)

	sendEvent(t, conn, "collect_data", collectRequest{
		Gesture:   "Fist",
		Landmarks: landmarkVec(0.1),
	})

	var ok collectionPayload
	if err := json.Unmarshal(readEvent(t, conn, eventCollectionOK), &ok); err != nil {
		t.Fatalf("decode collection_success: %v", err)
	}

	if ok.Gesture != "FIST" {
		t.Errorf("gesture = %q, want FIST", ok.Gesture)
	}
	if ok.Count != 1 {
		t.Errorf("count = %d, want 1", ok.Count)
	}
	if ok.Done {
		t.Error("done should be false well below the cap")
	}
}

func TestSession_Collect_InvalidLabel(t *testing.T) {
	ts := newTestServer(t)
	conn := dialSession(t, ts)
	readEvent(t, conn, eventSystemInfo)

	sendEvent(t, conn, "collect_data", collectRequest{
		Gesture:   "!!!",
		Landmarks: landmarkVec(0.1),
	})

	var fail errorPayload
	if err := json.Unmarshal(readEvent(t, conn, eventError), &fail); err != nil {
		t.Fatalf("decode error event: %v", err)
	}
	if fail.Message == "" {
		t.Error("expected an error message for an invalid label")
	}
}

func TestSession_PredictWithoutModel(t *testing.T) {
	ts := newTestServer(t)
	conn := dialSession(t, ts)
	readEvent(t, conn, eventSystemInfo)

	sendEvent(t, conn, "predict", predictRequest{Landmarks: landmarkVec(0.1)})

	var fail errorPayload
	if err := json.Unmarshal(readEvent(t, conn, eventError), &fail); err != nil {
		t.Fatalf("decode error event: %v", err)
	}
	if !strings.Contains(fail.Message, "model") {
		t.Errorf("error message = %q, expected it to mention the model", fail.Message)
	}
}

func TestSession_TrainWithoutData(t *testing.T) {
	ts := newTestServer(t)
	conn := dialSession(t, ts)
	readEvent(t, conn, eventSystemInfo)

	sendEvent(t, conn, "train_model", struct{}{})

	var done trainingCompletePayload
	if err := json.Unmarshal(readEvent(t, conn, eventTrainingComplete), &done); err != nil {
		t.Fatalf("decode training_complete: %v", err)
	}
	if done.Status != "error" {
		t.Errorf("status = %q, want error", done.Status)
	}
	if done.Error == "" {
		t.Error("expected an error message for training with no data")
	}
}

func TestSession_TrainAndPredict(t *testing.T) {
	ts := newTestServer(t)
	conn := dialSession(t, ts)
	readEvent(t, conn, eventSystemInfo)

	for i := 0; i < 5; i++ {
		sendEvent(t, conn, "collect_data", collectRequest{Gesture: "fist", Landmarks: landmarkVec(0.1)})
		readEvent(t, conn, eventCollectionOK)
		sendEvent(t, conn, "collect_data", collectRequest{Gesture: "open", Landmarks: landmarkVec(0.9)})
		readEvent(t, conn, eventCollectionOK)
	}

	sendEvent(t, conn, "train_model", struct{}{})

	var status trainingStatusPayload
	if err := json.Unmarshal(readEvent(t, conn, eventTrainingStatus), &status); err != nil {
		t.Fatalf("decode training_status: %v", err)
	}
	if status.Message == "" {
		t.Error("expected a progress message")
	}

	var done trainingCompletePayload
	if err := json.Unmarshal(readEvent(t, conn, eventTrainingComplete), &done); err != nil {
		t.Fatalf("decode training_complete: %v", err)
	}
	if done.Status != "success" {
		t.Fatalf("training status = %q (%s), want success", done.Status, done.Error)
	}

	var info systemInfoPayload
	if err := json.Unmarshal(readEvent(t, conn, eventSystemInfo), &info); err != nil {
		t.Fatalf("decode system_info: %v", err)
	}
	if !info.ModelReady {
		t.Error("model should be ready after training")
	}
	if len(info.Gestures) != 2 || info.Gestures[0] != "FIST" || info.Gestures[1] != "OPEN" {
		t.Errorf("gestures = %v, want [FIST OPEN]", info.Gestures)
	}

	sendEvent(t, conn, "predict", predictRequest{Landmarks: landmarkVec(0.1)})

	var pred predictionPayload
	if err := json.Unmarshal(readEvent(t, conn, eventPredictionResult), &pred); err != nil {
		t.Fatalf("decode prediction_result: %v", err)
	}
	if pred.Gesture != "FIST" {
		t.Errorf("gesture = %q, want FIST", pred.Gesture)
	}
	if pred.Confidence <= infer.DefaultThreshold {
		t.Errorf("confidence = %f, want > %f", pred.Confidence, infer.DefaultThreshold)
	}
}

func TestSession_DeleteGestureData(t *testing.T) {
	ts := newTestServer(t)
	conn := dialSession(t, ts)
	readEvent(t, conn, eventSystemInfo)

	sendEvent(t, conn, "collect_data", collectRequest{Gesture: "fist", Landmarks: landmarkVec(0.1)})
	readEvent(t, conn, eventCollectionOK)

	sendEvent(t, conn, "delete_gesture_data", deleteRequest{Gesture: "fist"})

	var info systemInfoPayload
	if err := json.Unmarshal(readEvent(t, conn, eventSystemInfo), &info); err != nil {
		t.Fatalf("decode system_info: %v", err)
	}
	if len(info.Gestures) != 0 {
		t.Errorf("expected no gestures after delete, got %v", info.Gestures)
	}
}

func TestSession_UnknownEvent(t *testing.T) {
	ts := newTestServer(t)
	conn := dialSession(t, ts)
	readEvent(t, conn, eventSystemInfo)

	sendEvent(t, conn, "bogus", struct{}{})

	var fail errorPayload
	if err := json.Unmarshal(readEvent(t, conn, eventError), &fail); err != nil {
		t.Fatalf("decode error event: %v", err)
	}
	if !strings.Contains(fail.Message, "bogus") {
		t.Errorf("error message = %q, expected it to name the event", fail.Message)
	}
}

func TestSession_TrainingBroadcast(t *testing.T) {
	ts := newTestServer(t)

	// Seed data over one connection, then watch the broadcast on another.
	collector := dialSession(t, ts)
	readEvent(t, collector, eventSystemInfo)
	for i := 0; i < 3; i++ {
		sendEvent(t, collector, "collect_data", collectRequest{Gesture: "fist", Landmarks: landmarkVec(0.1)})
		readEvent(t, collector, eventCollectionOK)
		sendEvent(t, collector, "collect_data", collectRequest{Gesture: "open", Landmarks: landmarkVec(0.9)})
		readEvent(t, collector, eventCollectionOK)
	}

	watcher := dialSession(t, ts)
	readEvent(t, watcher, eventSystemInfo)

	sendEvent(t, collector, "train_model", struct{}{})

	var done trainingCompletePayload
	if err := json.Unmarshal(readEvent(t, watcher, eventTrainingComplete), &done); err != nil {
		t.Fatalf("decode training_complete on watcher: %v", err)
	}
	if done.Status != "success" {
		t.Errorf("watcher saw status %q (%s), want success", done.Status, done.Error)
	}
}
