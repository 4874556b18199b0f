package services

import (
	"sync"
	"time"

	"github.com/platformbuilds/mirador-servicehealth/internal/models"
	"github.com/platformbuilds/mirador-servicehealth/internal/monitoring"
)

// ResultHolder keeps the committed state of one widget. Every fetch takes a
// generation from Begin; Commit only accepts the latest generation issued,
// so a slow response can never overwrite a newer one.
type ResultHolder[T any] struct {
	name string

	mu     sync.Mutex
	issued uint64
	state  models.WidgetState[T]
}

func NewResultHolder[T any](name string) *ResultHolder[T] {
	return &ResultHolder[T]{name: name}
}

// Begin issues the next generation.
func (h *ResultHolder[T]) Begin() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.issued++
	return h.issued
}

// Latest is the most recently issued generation.
func (h *ResultHolder[T]) Latest() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.issued
}

// Commit stores data, or err as a structured error, when gen is still the
// latest generation. It reports whether the result was kept.
func (h *ResultHolder[T]) Commit(gen uint64, cycleID string, data T, err error, at time.Time) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if gen != h.issued {
		monitoring.RecordStaleResponse(h.name)
		return false
	}

	next := models.WidgetState[T]{Generation: gen, CycleID: cycleID, CommittedAt: at}
	if qe := AsQueryError(err); qe != nil {
		next.ErrorKind = string(qe.Kind)
		next.ErrorMessage = qe.UserMessage()
		monitoring.RecordQueryError(string(qe.Kind))
	} else {
		next.Data = data
	}
	h.state = next
	return true
}

// Snapshot returns the last committed state.
func (h *ResultHolder[T]) Snapshot() models.WidgetState[T] {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}
