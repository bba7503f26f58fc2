// Package retention deletes run records older than the retention period,
// optionally archiving them as JSON first.
package retention

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"mercator-hq/certify/pkg/evidence"
	"mercator-hq/certify/pkg/evidence/export"
)

// Config contains configuration for the pruner.
type Config struct {
	// RetentionDays is the number of days to keep. 0 keeps everything.
	RetentionDays int

	// ArchiveDir, when set, receives the pruned records as a JSON file
	// before they are deleted.
	ArchiveDir string
}

// Result describes one pruning pass.
type Result struct {
	Cutoff      time.Time
	Deleted     int64
	Archived    int
	ArchivePath string
}

// Pruner enforces the retention period on a storage backend.
type Pruner struct {
	storage evidence.Storage
	config  Config
	logger  *slog.Logger
	now     func() time.Time
}

// NewPruner creates a new retention pruner.
func NewPruner(storage evidence.Storage, cfg Config, logger *slog.Logger) *Pruner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pruner{
		storage: storage,
		config:  cfg,
		logger:  logger.With("component", "evidence.retention"),
		now:     time.Now,
	}
}

// SetClock replaces the clock used to compute the cutoff.
func (p *Pruner) SetClock(now func() time.Time) { p.now = now }

// Prune deletes records started more than RetentionDays ago.
// When archiving is configured and the archive cannot be written,
// nothing is deleted.
func (p *Pruner) Prune(ctx context.Context) (*Result, error) {
	if p.config.RetentionDays < 0 {
		return nil, fmt.Errorf("retention days must be >= 0, got %d", p.config.RetentionDays)
	}
	if p.config.RetentionDays == 0 {
		p.logger.Debug("retention disabled, nothing to prune")
		return &Result{}, nil
	}

	cutoff := p.now().UTC().AddDate(0, 0, -p.config.RetentionDays)
	result := &Result{Cutoff: cutoff}

	if p.config.ArchiveDir != "" {
		path, n, err := p.archive(ctx, cutoff)
		if err != nil {
			return nil, fmt.Errorf("failed to archive records before %s: %w", cutoff.Format(time.RFC3339), err)
		}
		result.ArchivePath = path
		result.Archived = n
	}

	deleted, err := p.storage.DeleteBefore(ctx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to prune records: %w", err)
	}
	result.Deleted = deleted

	p.logger.Info("pruned evidence records",
		"retention_days", p.config.RetentionDays,
		"cutoff", cutoff,
		"deleted", deleted,
		"archived", result.Archived,
	)
	return result, nil
}

func (p *Pruner) archive(ctx context.Context, cutoff time.Time) (string, int, error) {
	var records []*evidence.Record
	for offset := 0; ; offset += evidence.MaxLimit {
		page, err := p.storage.Query(ctx, &evidence.Query{
			Until:  &cutoff,
			Limit:  evidence.MaxLimit,
			Offset: offset,
		})
		if err != nil {
			return "", 0, err
		}
		records = append(records, page...)
		if len(page) < evidence.MaxLimit {
			break
		}
	}
	if len(records) == 0 {
		return "", 0, nil
	}

	if err := os.MkdirAll(p.config.ArchiveDir, 0o755); err != nil {
		return "", 0, err
	}
	path := filepath.Join(p.config.ArchiveDir, fmt.Sprintf("evidence_%s.json", p.now().UTC().Format("20060102_150405")))
	f, err := os.Create(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	if err := export.NewJSONExporter(true).Export(ctx, records, f); err != nil {
		return "", 0, err
	}
	if err := f.Sync(); err != nil {
		return "", 0, err
	}
	return path, len(records), nil
}
