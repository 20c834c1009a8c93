package stream

import (
	"encoding/json"
	"sync"

	"github.com/sirupsen/logrus"
)

// Event is the wire envelope for everything pushed over a live channel.
type Event struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// conn is the subset of the websocket client the router needs; tests
// substitute an in-memory recorder.
type conn interface {
	Push(payload []byte) bool
}

// Router owns the process-wide mapping from logical client id to live
// connection. Delivery is best-effort fire-and-forget: the durable detail
// log is the system of record, so events for unknown or slow clients are
// silently dropped.
type Router struct {
	log *logrus.Logger

	mu      sync.RWMutex
	clients map[string]conn
	ids     map[conn]string
}

func NewRouter(log *logrus.Logger) *Router {
	return &Router{
		log:     log,
		clients: make(map[string]conn),
		ids:     make(map[conn]string),
	}
}

// Register binds a client id to a connection after the register handshake.
// A reconnect under the same id displaces the previous connection.
func (r *Router) Register(clientID string, c conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if old, ok := r.clients[clientID]; ok && old != c {
		delete(r.ids, old)
	}
	r.clients[clientID] = c
	r.ids[c] = clientID
	r.log.WithField("client_id", clientID).Debug("Live channel client registered")
}

// Unregister clears both directions of the mapping on disconnect. A no-op
// when the connection was displaced by a newer one for the same client id.
func (r *Router) Unregister(c conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	clientID, ok := r.ids[c]
	if !ok {
		return
	}
	delete(r.ids, c)
	if current, ok := r.clients[clientID]; ok && current == c {
		delete(r.clients, clientID)
	}
	r.log.WithField("client_id", clientID).Debug("Live channel client unregistered")
}

// Route pushes one event to the connection registered under clientID, if
// any. Returns whether the event was handed to a connection.
func (r *Router) Route(clientID string, event string, data interface{}) bool {
	r.mu.RLock()
	c, ok := r.clients[clientID]
	r.mu.RUnlock()
	if !ok {
		return false
	}

	payload, err := json.Marshal(Event{Event: event, Data: data})
	if err != nil {
		r.log.WithError(err).WithField("event", event).Error("Failed to marshal live event")
		return false
	}
	if !c.Push(payload) {
		r.log.WithFields(logrus.Fields{
			"client_id": clientID,
			"event":     event,
		}).Warn("Dropped live event for slow client")
		return false
	}
	return true
}

// Connected reports whether a live connection exists for the client id.
func (r *Router) Connected(clientID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.clients[clientID]
	return ok
}
