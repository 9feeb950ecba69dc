package audit

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	logger "github.com/sirupsen/logrus"

	"tankcontrol/internal/models"
)

// Sink receives audit entries. Persisting them is the collaborator's job.
type Sink interface {
	Emit(ctx context.Context, entry models.AuditEntry) error
}

// Publisher is the subset of config.Publisher used by QueueSink.
type Publisher interface {
	Publish(queueName string, message interface{}) error
}

// QueueSink publishes entries as JSON to a RabbitMQ queue.
type QueueSink struct {
	publisher Publisher
	queue     string
}

// NewQueueSink returns a sink publishing to queue.
func NewQueueSink(publisher Publisher, queue string) *QueueSink {
	return &QueueSink{publisher: publisher, queue: queue}
}

func (s *QueueSink) Emit(ctx context.Context, entry models.AuditEntry) error {
	return s.publisher.Publish(s.queue, Stamp(entry))
}

// LogSink writes entries to logrus. Used when RabbitMQ is not configured.
type LogSink struct{}

func (LogSink) Emit(ctx context.Context, entry models.AuditEntry) error {
	entry = Stamp(entry)
	logger.WithFields(logger.Fields{
		"entry_id":       entry.EntryID,
		"user_id":        entry.UserID,
		"entity_type":    entry.EntityType,
		"entity_id":      entry.EntityID,
		"operation_type": entry.OperationType,
		"reason":         entry.Reason,
	}).Info("audit entry")
	return nil
}

// Recorder keeps entries in memory; tests read them back.
type Recorder struct {
	mu      sync.Mutex
	entries []models.AuditEntry
}

func (r *Recorder) Emit(ctx context.Context, entry models.AuditEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, Stamp(entry))
	return nil
}

// Entries returns a copy of everything emitted so far.
func (r *Recorder) Entries() []models.AuditEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.AuditEntry(nil), r.entries...)
}

// Stamp fills the entry id and timestamp when missing.
func Stamp(entry models.AuditEntry) models.AuditEntry {
	if entry.EntryID == "" {
		entry.EntryID = uuid.NewString()
	}
	if entry.OccurredAt.IsZero() {
		entry.OccurredAt = time.Now().UTC()
	}
	return entry
}
