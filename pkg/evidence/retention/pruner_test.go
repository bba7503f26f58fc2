package retention

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"mercator-hq/certify/pkg/evidence"
	"mercator-hq/certify/pkg/evidence/storage"
	"mercator-hq/certify/pkg/telemetry/logging"
)

var now = time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

func seed(t *testing.T, ages ...int) evidence.Storage {
	t.Helper()
	store := storage.NewMemoryStorage()
	for i, days := range ages {
		r := &evidence.Record{
			ID:              fmt.Sprintf("r%d", i),
			ApplicationName: "A",
			StartedAt:       now.AddDate(0, 0, -days),
		}
		if err := store.Store(context.Background(), r); err != nil {
			t.Fatalf("Store() error = %v, want nil", err)
		}
	}
	return store
}

func TestPrune(t *testing.T) {
	tests := []struct {
		name          string
		retentionDays int
		ages          []int
		wantDeleted   int64
		wantRemaining int64
	}{
		{"deletes old records", 30, []int{1, 10, 31, 100}, 2, 2},
		{"nothing old", 30, []int{1, 2}, 0, 2},
		{"retention disabled", 0, []int{1, 500}, 0, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := seed(t, tt.ages...)
			p := NewPruner(store, Config{RetentionDays: tt.retentionDays}, logging.Discard())
			p.SetClock(func() time.Time { return now })

			res, err := p.Prune(context.Background())
			if err != nil {
				t.Fatalf("Prune() error = %v, want nil", err)
			}
			if res.Deleted != tt.wantDeleted {
				t.Errorf("Deleted = %d, want %d", res.Deleted, tt.wantDeleted)
			}
			remaining, _ := store.Count(context.Background(), &evidence.Query{})
			if remaining != tt.wantRemaining {
				t.Errorf("remaining = %d, want %d", remaining, tt.wantRemaining)
			}
		})
	}
}

func TestPrune_Negative(t *testing.T) {
	p := NewPruner(seed(t), Config{RetentionDays: -1}, logging.Discard())
	if _, err := p.Prune(context.Background()); err == nil {
		t.Error("Prune() error = nil, want error for negative retention")
	}
}

func TestPrune_Archive(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "archive")
	store := seed(t, 5, 40, 60)
	p := NewPruner(store, Config{RetentionDays: 30, ArchiveDir: dir}, logging.Discard())
	p.SetClock(func() time.Time { return now })

	res, err := p.Prune(context.Background())
	if err != nil {
		t.Fatalf("Prune() error = %v, want nil", err)
	}
	if res.Archived != 2 || res.Deleted != 2 {
		t.Errorf("Archived = %d, Deleted = %d, want 2, 2", res.Archived, res.Deleted)
	}

	data, err := os.ReadFile(res.ArchivePath)
	if err != nil {
		t.Fatalf("failed to read archive: %v", err)
	}
	var archived []evidence.Record
	if err := json.Unmarshal(data, &archived); err != nil {
		t.Fatalf("archive is not valid JSON: %v", err)
	}
	if len(archived) != 2 {
		t.Errorf("archive holds %d records, want 2", len(archived))
	}
}

func TestPrune_ArchiveFailureKeepsRecords(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	store := seed(t, 40)
	p := NewPruner(store, Config{RetentionDays: 30, ArchiveDir: filepath.Join(blocker, "sub")}, logging.Discard())
	p.SetClock(func() time.Time { return now })

	if _, err := p.Prune(context.Background()); err == nil {
		t.Fatal("Prune() error = nil, want archive error")
	}
	if n, _ := store.Count(context.Background(), &evidence.Query{}); n != 1 {
		t.Errorf("remaining = %d, want 1 (no delete after failed archive)", n)
	}
}
