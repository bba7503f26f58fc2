package storage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"mercator-hq/certify/pkg/config"
	"mercator-hq/certify/pkg/evidence"
	"mercator-hq/certify/pkg/telemetry/logging"
)

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newRecord(id, app string, offset time.Duration, compliant bool) *evidence.Record {
	return &evidence.Record{
		ID:               id,
		RunID:            "run-" + id,
		Kind:             evidence.KindContract,
		ApplicationName:  app,
		ContractID:       "c-" + id,
		ContractHash:     "abc123",
		InteractionCount: 3,
		PolicyTarget:     "eu_ai_act",
		Compliant:        compliant,
		Evaluators:       []string{"fairness", "content_safety"},
		PoliciesPassed:   2,
		PoliciesFailed:   1,
		Errors:           nil,
		ReportPaths:      map[string]string{"markdown": "reports/report_" + app + ".md"},
		StartedAt:        base.Add(offset),
		Duration:         1500 * time.Millisecond,
		RecordedAt:       base.Add(offset + 2*time.Second),
	}
}

// backends returns every storage implementation under test.
func backends(t *testing.T) map[string]evidence.Storage {
	t.Helper()
	sqlite, err := NewSQLiteStorage(config.SQLiteConfig{
		Path:    filepath.Join(t.TempDir(), "evidence.db"),
		Driver:  DriverPureGo,
		WALMode: true,
	}, logging.Discard())
	if err != nil {
		t.Fatalf("NewSQLiteStorage() error = %v, want nil", err)
	}
	t.Cleanup(func() { sqlite.Close() })

	return map[string]evidence.Storage{
		"memory": NewMemoryStorage(),
		"sqlite": sqlite,
	}
}

func TestStorage_StoreAndQuery(t *testing.T) {
	ctx := context.Background()
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			want := newRecord("r1", "CareerCoachAI", 0, true)
			want.Errors = []string{"REPORT: disk full"}
			if err := store.Store(ctx, want); err != nil {
				t.Fatalf("Store() error = %v, want nil", err)
			}

			got, err := store.Query(ctx, &evidence.Query{})
			if err != nil {
				t.Fatalf("Query() error = %v, want nil", err)
			}
			if len(got) != 1 {
				t.Fatalf("len(Query()) = %d, want 1", len(got))
			}
			r := got[0]
			if r.ApplicationName != want.ApplicationName || r.ContractID != want.ContractID {
				t.Errorf("record = %+v, want %+v", r, want)
			}
			if !r.StartedAt.Equal(want.StartedAt) {
				t.Errorf("StartedAt = %v, want %v", r.StartedAt, want.StartedAt)
			}
			if r.Duration != want.Duration {
				t.Errorf("Duration = %v, want %v", r.Duration, want.Duration)
			}
			if len(r.Evaluators) != 2 || r.Evaluators[1] != "content_safety" {
				t.Errorf("Evaluators = %v", r.Evaluators)
			}
			if len(r.Errors) != 1 || !r.Failed() {
				t.Errorf("Errors = %v, want one entry", r.Errors)
			}
			if r.ReportPaths["markdown"] != want.ReportPaths["markdown"] {
				t.Errorf("ReportPaths = %v", r.ReportPaths)
			}
			if !r.Compliant {
				t.Error("Compliant = false, want true")
			}
		})
	}
}

func TestStorage_DuplicateID(t *testing.T) {
	ctx := context.Background()
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			if err := store.Store(ctx, newRecord("dup", "A", 0, true)); err != nil {
				t.Fatalf("Store() error = %v, want nil", err)
			}
			err := store.Store(ctx, newRecord("dup", "A", time.Minute, true))
			if !errors.Is(err, evidence.ErrDuplicateRecord) {
				t.Errorf("second Store() error = %v, want ErrDuplicateRecord", err)
			}
		})
	}
}

func TestStorage_Filters(t *testing.T) {
	ctx := context.Background()
	compliant := true
	since := base.Add(2 * time.Hour)
	until := base.Add(4 * time.Hour)

	tests := []struct {
		name    string
		query   evidence.Query
		wantIDs []string
	}{
		{"all newest first", evidence.Query{}, []string{"r4", "r3", "r2", "r1"}},
		{"by application", evidence.Query{ApplicationName: "B"}, []string{"r4", "r2"}},
		{"by compliance", evidence.Query{Compliant: &compliant}, []string{"r3", "r1"}},
		{"time window", evidence.Query{Since: &since, Until: &until}, []string{"r3", "r2"}},
		{"by kind", evidence.Query{Kind: evidence.KindFolder}, []string{"r4"}},
		{"limit", evidence.Query{Limit: 2}, []string{"r4", "r3"}},
		{"offset", evidence.Query{Limit: 2, Offset: 3}, []string{"r1"}},
		{"offset past end", evidence.Query{Offset: 10}, nil},
	}

	for name, store := range backends(t) {
		r4 := newRecord("r4", "B", 4*time.Hour, false)
		r4.Kind = evidence.KindFolder
		for _, r := range []*evidence.Record{
			newRecord("r1", "A", 0, true),
			newRecord("r2", "B", 2*time.Hour, false),
			newRecord("r3", "A", 3*time.Hour, true),
			r4,
		} {
			if err := store.Store(ctx, r); err != nil {
				t.Fatalf("%s: Store() error = %v, want nil", name, err)
			}
		}

		for _, tt := range tests {
			t.Run(name+"/"+tt.name, func(t *testing.T) {
				got, err := store.Query(ctx, &tt.query)
				if err != nil {
					t.Fatalf("Query() error = %v, want nil", err)
				}
				if len(got) != len(tt.wantIDs) {
					t.Fatalf("Query() returned %d records, want %d", len(got), len(tt.wantIDs))
				}
				for i, id := range tt.wantIDs {
					if got[i].ID != id {
						t.Errorf("record[%d].ID = %s, want %s", i, got[i].ID, id)
					}
				}
			})
		}

		count, err := store.Count(ctx, &evidence.Query{ApplicationName: "A", Limit: 1})
		if err != nil {
			t.Fatalf("%s: Count() error = %v, want nil", name, err)
		}
		if count != 2 {
			t.Errorf("%s: Count() = %d, want 2 (pagination ignored)", name, count)
		}
	}
}

func TestStorage_DeleteBefore(t *testing.T) {
	ctx := context.Background()
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			for i := 0; i < 5; i++ {
				r := newRecord(fmt.Sprintf("r%d", i), "A", time.Duration(i)*24*time.Hour, true)
				if err := store.Store(ctx, r); err != nil {
					t.Fatalf("Store() error = %v, want nil", err)
				}
			}

			deleted, err := store.DeleteBefore(ctx, base.Add(2*24*time.Hour))
			if err != nil {
				t.Fatalf("DeleteBefore() error = %v, want nil", err)
			}
			if deleted != 2 {
				t.Errorf("DeleteBefore() = %d, want 2", deleted)
			}
			count, _ := store.Count(ctx, &evidence.Query{})
			if count != 3 {
				t.Errorf("Count() after delete = %d, want 3", count)
			}
		})
	}
}

func TestStorage_InvalidQuery(t *testing.T) {
	ctx := context.Background()
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := store.Query(ctx, &evidence.Query{Limit: -1})
			var qe *evidence.QueryError
			if !errors.As(err, &qe) {
				t.Errorf("Query() error = %v, want *QueryError", err)
			}
		})
	}
}

func TestMemoryStorage_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStorage()
	if err := store.Store(ctx, newRecord("r1", "A", 0, true)); err != nil {
		t.Fatalf("Store() error = %v, want nil", err)
	}

	got, _ := store.Query(ctx, &evidence.Query{})
	got[0].ApplicationName = "mutated"
	got[0].ReportPaths["markdown"] = "mutated"

	again, _ := store.Query(ctx, &evidence.Query{})
	if again[0].ApplicationName != "A" || again[0].ReportPaths["markdown"] == "mutated" {
		t.Error("Query() results should not alias stored records")
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.EvidenceConfig
		wantErr bool
	}{
		{"memory", config.EvidenceConfig{Backend: "memory"}, false},
		{"sqlite pure go", config.EvidenceConfig{Backend: "sqlite", SQLite: config.SQLiteConfig{
			Path: filepath.Join(t.TempDir(), "e.db"), Driver: DriverPureGo}}, false},
		{"unknown backend", config.EvidenceConfig{Backend: "postgres"}, true},
		{"unknown driver", config.EvidenceConfig{Backend: "sqlite", SQLite: config.SQLiteConfig{
			Path: filepath.Join(t.TempDir(), "e.db"), Driver: "mysql"}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := New(tt.cfg, logging.Discard())
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if store != nil {
				store.Close()
			}
		})
	}
}

func TestSQLiteStorage_Reopen(t *testing.T) {
	ctx := context.Background()
	cfg := config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "evidence.db"), Driver: DriverPureGo}

	first, err := NewSQLiteStorage(cfg, logging.Discard())
	if err != nil {
		t.Fatalf("NewSQLiteStorage() error = %v, want nil", err)
	}
	if err := first.Store(ctx, newRecord("r1", "A", 0, true)); err != nil {
		t.Fatalf("Store() error = %v, want nil", err)
	}
	first.Close()

	second, err := NewSQLiteStorage(cfg, logging.Discard())
	if err != nil {
		t.Fatalf("reopen error = %v, want nil", err)
	}
	defer second.Close()

	count, err := second.Count(ctx, &evidence.Query{})
	if err != nil || count != 1 {
		t.Errorf("Count() after reopen = %d, %v, want 1, nil", count, err)
	}
}
