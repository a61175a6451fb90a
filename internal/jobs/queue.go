// Package jobs provides asynchronous ingestion: a job queue contract, an
// in-memory queue, a run registry, and a worker pool draining jobs into the
// ingestion service.
package jobs

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/xtxerr/pricelake/internal/errors"
)

// Message is one queued ingestion job: a symbol window to pull and store.
type Message struct {
	ID       string    `json:"id"`
	Symbol   string    `json:"symbol"`
	DateFrom time.Time `json:"date_from"`
	DateTo   time.Time `json:"date_to"`
	RunID    string    `json:"run_id"`
}

// Queue is the job transport contract. Popped messages stay pending until
// acknowledged; Ack is idempotent.
type Queue interface {
	Enqueue(msg Message) (string, error)
	TryPop() (string, *Message, bool)
	Ack(messageID string)
	Ping() bool
}

// MemQueue is an in-process Queue backed by a slice. Suitable for the
// single-process deployment; a broker-backed queue implements the same
// contract.
type MemQueue struct {
	mu      sync.Mutex
	ready   []Message
	pending map[string]Message
	closed  bool
}

// NewMemQueue creates an empty in-memory queue.
func NewMemQueue() *MemQueue {
	return &MemQueue{pending: make(map[string]Message)}
}

// Enqueue adds a message, assigning an ID when absent.
func (q *MemQueue) Enqueue(msg Message) (string, error) {
	if msg.Symbol == "" {
		return "", errors.ErrInvalidMessage
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return "", errors.ErrQueueClosed
	}
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	q.ready = append(q.ready, msg)
	return msg.ID, nil
}

// TryPop removes the oldest ready message, holding it pending until acked.
func (q *MemQueue) TryPop() (string, *Message, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.ready) == 0 {
		return "", nil, false
	}
	msg := q.ready[0]
	q.ready = q.ready[1:]
	q.pending[msg.ID] = msg
	return msg.ID, &msg, true
}

// Ack marks a message done. Unknown IDs are ignored.
func (q *MemQueue) Ack(messageID string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.pending, messageID)
}

// Ping reports queue availability.
func (q *MemQueue) Ping() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return !q.closed
}

// Close rejects further enqueues. Pending and ready messages remain
// poppable so a draining worker can finish.
func (q *MemQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
}

// Depth returns the number of ready (not yet popped) messages.
func (q *MemQueue) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.ready)
}
