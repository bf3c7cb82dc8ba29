package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mercurial-finance/vault-portal/internal/logger"
)

// Kind classifies a notification for display.
type Kind string

const (
	KindInfo  Kind = "info"
	KindError Kind = "error"
)

// Notification is one user-facing toast. Fire-and-forget; no return value is
// consumed by the emitter.
type Notification struct {
	ID          string    `json:"id"`
	Kind        Kind      `json:"kind"`
	Message     string    `json:"message"`
	TxID        string    `json:"txid,omitempty"`
	Description string    `json:"description,omitempty"`
	Time        time.Time `json:"time"`
}

// Notifier accepts user-facing notifications.
type Notifier interface {
	Notify(n Notification)
}

// hubCapacity bounds the in-memory notification backlog served to the
// dashboard.
const hubCapacity = 100

// Hub logs every notification and keeps a bounded backlog for the dashboard's
// toast endpoint.
type Hub struct {
	log zerolog.Logger

	mu     sync.Mutex
	recent []Notification
}

// NewHub creates a notification hub.
func NewHub() *Hub {
	return &Hub{log: logger.GetForComponent("notifier")}
}

// Notify records and logs a notification, assigning an id and timestamp.
func (h *Hub) Notify(n Notification) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.Time.IsZero() {
		n.Time = time.Now().UTC()
	}

	event := h.log.Info()
	if n.Kind == KindError {
		event = h.log.Error()
	}
	event.
		Str("id", n.ID).
		Str("txid", n.TxID).
		Str("description", n.Description).
		Msg(n.Message)

	h.mu.Lock()
	defer h.mu.Unlock()
	h.recent = append(h.recent, n)
	if len(h.recent) > hubCapacity {
		h.recent = h.recent[len(h.recent)-hubCapacity:]
	}
}

// Recent returns the backlog, newest last.
func (h *Hub) Recent() []Notification {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]Notification, len(h.recent))
	copy(out, h.recent)
	return out
}
