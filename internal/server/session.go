package server

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/ayusman/mudra/internal/assets"
	"github.com/ayusman/mudra/internal/dataset"
	"github.com/ayusman/mudra/internal/infer"
	"github.com/ayusman/mudra/internal/metrics"
	"github.com/ayusman/mudra/internal/store"
	"github.com/ayusman/mudra/internal/training"
)

// Wire event names, shared with the browser client.
const (
	eventSystemInfo       = "system_info"
	eventPredictionResult = "prediction_result"
	eventCollectionOK     = "collection_success"
	eventTrainingStatus   = "training_status"
	eventTrainingComplete = "training_complete"
	eventError            = "error"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// envelope is the framing for every message in both directions.
type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Inbound payloads.

type predictRequest struct {
	Landmarks []float64         `json:"landmarks"`
	Mappings  map[string]string `json:"mappings"`
}

type collectRequest struct {
	Gesture   string    `json:"gesture"`
	Landmarks []float64 `json:"landmarks"`
}

type deleteRequest struct {
	Gesture string `json:"gesture"`
}

// Outbound payloads.

type systemInfoPayload struct {
	Gestures   []string `json:"gestures"`
	ModelReady bool     `json:"model_ready"`
}

type predictionPayload struct {
	Gesture    string  `json:"gesture"`
	Confidence float64 `json:"confidence"`
}

type collectionPayload struct {
	Gesture string `json:"gesture"`
	Count   int    `json:"count"`
	Done    bool   `json:"done"`
}

type trainingStatusPayload struct {
	Message string `json:"message"`
}

type trainingCompletePayload struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// SessionConfig holds the collaborators a session needs.
type SessionConfig struct {
	Dataset      *dataset.Store
	Registry     *assets.Registry
	Engine       *infer.Engine
	Orchestrator *training.Orchestrator
	Store        *store.Store
}

// SessionHandler manages WebSocket sessions speaking the gesture event
// protocol. Training progress is broadcast to every connected client;
// everything else is answered on the requesting connection.
type SessionHandler struct {
	cfg     SessionConfig
	mu      sync.RWMutex
	clients map[*client]struct{}
}

// client is one WebSocket connection. Writes are serialized through the
// mutex because broadcasts and request replies come from different
// goroutines.
type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) send(event string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(envelope{Event: event, Data: payload})
}

// NewSessionHandler creates a SessionHandler.
func NewSessionHandler(cfg SessionConfig) *SessionHandler {
	return &SessionHandler{
		cfg:     cfg,
		clients: make(map[*client]struct{}),
	}
}

// ServeHTTP upgrades the connection, greets the client with the current
// system state, and serves requests until the peer disconnects.
func (h *SessionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	c := &client{conn: conn}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	metrics.Sessions.Inc()

	defer func() {
		h.mu.Lock()
		delete(h.clients, c)
		h.mu.Unlock()
		metrics.Sessions.Dec()
	}()

	if err := c.send(eventSystemInfo, h.systemInfo()); err != nil {
		return
	}

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var env envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			c.send(eventError, errorPayload{Message: "malformed message"})
			continue
		}

		h.handle(c, env)
	}
}

func (h *SessionHandler) handle(c *client, env envelope) {
	switch env.Event {
	case "predict":
		h.handlePredict(c, env.Data)
	case "collect_data":
		h.handleCollect(c, env.Data)
	case "train_model":
		h.handleTrain(c)
	case "delete_gesture_data":
		h.handleDelete(c, env.Data)
	default:
		c.send(eventError, errorPayload{Message: "unknown event: " + env.Event})
	}
}

func (h *SessionHandler) handlePredict(c *client, data json.RawMessage) {
	var req predictRequest
	if err := json.Unmarshal(data, &req); err != nil {
		c.send(eventError, errorPayload{Message: "malformed predict request"})
		return
	}

	mappings := req.Mappings
	if len(mappings) == 0 {
		mappings = h.persistedMappings()
	}

	res, err := h.cfg.Engine.Predict(req.Landmarks, mappings)
	if err != nil {
		c.send(eventError, errorPayload{Message: err.Error()})
		return
	}

	c.send(eventPredictionResult, predictionPayload{
		Gesture:    res.Gesture,
		Confidence: res.Confidence,
	})
}

func (h *SessionHandler) handleCollect(c *client, data json.RawMessage) {
	var req collectRequest
	if err := json.Unmarshal(data, &req); err != nil {
		c.send(eventError, errorPayload{Message: "malformed collect request"})
		return
	}

	label := dataset.NormalizeLabel(req.Gesture)
	count, done, err := h.cfg.Dataset.Collect(label, req.Landmarks)
	if err != nil {
		c.send(eventError, errorPayload{Message: err.Error()})
		return
	}

	metrics.SamplesCollected.Inc()
	c.send(eventCollectionOK, collectionPayload{
		Gesture: dataset.DisplayLabel(label),
		Count:   count,
		Done:    done,
	})
}

func (h *SessionHandler) handleTrain(c *client) {
	if _, err := h.cfg.Orchestrator.Start(context.Background()); err != nil {
		c.send(eventError, errorPayload{Message: err.Error()})
	}
	// Progress and completion arrive via the orchestrator notify hook.
}

func (h *SessionHandler) handleDelete(c *client, data json.RawMessage) {
	var req deleteRequest
	if err := json.Unmarshal(data, &req); err != nil {
		c.send(eventError, errorPayload{Message: "malformed delete request"})
		return
	}

	label := dataset.NormalizeLabel(req.Gesture)
	if err := h.cfg.Dataset.Delete(label); err != nil {
		c.send(eventError, errorPayload{Message: err.Error()})
		return
	}

	// The gesture list changed for everyone.
	h.broadcast(eventSystemInfo, h.systemInfo())
}

// NotifyTraining relays orchestrator progress to all connected clients.
// It is installed as the orchestrator's notify hook.
func (h *SessionHandler) NotifyTraining(ev training.Event) {
	switch ev.State {
	case training.StatePreparing, training.StateTraining:
		h.broadcast(eventTrainingStatus, trainingStatusPayload{Message: ev.Message})
	case training.StateSucceeded:
		h.broadcast(eventTrainingComplete, trainingCompletePayload{Status: "success"})
		h.broadcast(eventSystemInfo, h.systemInfo())
	case training.StateFailed:
		h.broadcast(eventTrainingComplete, trainingCompletePayload{
			Status: "error",
			Error:  ev.Message,
		})
	}
}

// systemInfo captures the current gesture vocabulary and model state.
func (h *SessionHandler) systemInfo() systemInfoPayload {
	info := systemInfoPayload{Gestures: []string{}}

	labels, err := h.cfg.Dataset.Labels()
	if err != nil {
		log.Printf("session: list labels: %v", err)
	}
	for _, label := range labels {
		info.Gestures = append(info.Gestures, dataset.DisplayLabel(label))
	}

	_, info.ModelReady = h.cfg.Registry.Current()
	return info
}

// persistedMappings loads gesture bindings from the store, used when a
// predict request carries no mappings of its own.
func (h *SessionHandler) persistedMappings() map[string]string {
	if h.cfg.Store == nil {
		return nil
	}
	mappings, err := h.cfg.Store.Bindings().Mappings()
	if err != nil {
		log.Printf("session: load bindings: %v", err)
		return nil
	}
	return mappings
}

func (h *SessionHandler) broadcast(event string, data any) {
	h.mu.RLock()
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		if err := c.send(event, data); err != nil {
			log.Printf("session: broadcast %s: %v", event, err)
		}
	}
}
