// Package storage provides the run record backends: SQLite for the
// persistent history and an in-memory map for tests.
//
// The SQLite backend works with either database/sql driver. "sqlite3"
// uses the cgo driver github.com/mattn/go-sqlite3; "sqlite" uses the
// pure Go modernc.org/sqlite for CGO_ENABLED=0 builds.
package storage

import (
	"fmt"
	"log/slog"

	"mercator-hq/certify/pkg/config"
	"mercator-hq/certify/pkg/evidence"
)

// New creates the backend selected by cfg.Backend.
func New(cfg config.EvidenceConfig, logger *slog.Logger) (evidence.Storage, error) {
	switch cfg.Backend {
	case "", "sqlite":
		s, err := NewSQLiteStorage(cfg.SQLite, logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "memory":
		return NewMemoryStorage(), nil
	default:
		return nil, evidence.NewStorageError(cfg.Backend, "open", fmt.Errorf("unknown evidence backend %q", cfg.Backend))
	}
}
