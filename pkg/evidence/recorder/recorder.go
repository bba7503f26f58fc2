// Package recorder stamps run records with an identity and a recording
// time and writes them to a storage backend.
package recorder

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"mercator-hq/certify/pkg/evidence"
)

// DefaultWriteTimeout bounds a single storage write.
const DefaultWriteTimeout = 5 * time.Second

// Recorder writes run records. A nil *Recorder discards records, so
// callers can hold one unconditionally.
type Recorder struct {
	storage      evidence.Storage
	writeTimeout time.Duration
	logger       *slog.Logger
	now          func() time.Time
}

// New creates a recorder over storage.
func New(storage evidence.Storage, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		storage:      storage,
		writeTimeout: DefaultWriteTimeout,
		logger:       logger.With("component", "evidence.recorder"),
		now:          time.Now,
	}
}

// SetClock replaces the clock used for RecordedAt.
func (r *Recorder) SetClock(now func() time.Time) {
	if r != nil {
		r.now = now
	}
}

// Record assigns an ID (when empty) and RecordedAt, then stores the record.
// Storage failures are logged and returned; a run is never failed by them.
func (r *Recorder) Record(ctx context.Context, record *evidence.Record) error {
	if r == nil || r.storage == nil || record == nil {
		return nil
	}
	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	record.RecordedAt = r.now().UTC()

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.writeTimeout)
	defer cancel()

	if err := r.storage.Store(writeCtx, record); err != nil {
		r.logger.WarnContext(ctx, "failed to record evidence",
			"record_id", record.ID,
			"error", err,
		)
		return err
	}

	r.logger.DebugContext(ctx, "evidence recorded",
		"record_id", record.ID,
		"kind", record.Kind,
		"compliant", record.Compliant,
	)
	return nil
}
