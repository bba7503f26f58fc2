package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"

	"mercator-hq/certify/pkg/config"
	"mercator-hq/certify/pkg/evidence"
)

// Supported database/sql driver names.
const (
	DriverCGO    = "sqlite3" // github.com/mattn/go-sqlite3
	DriverPureGo = "sqlite"  // modernc.org/sqlite
)

// SQLiteStorage implements evidence.Storage on SQLite.
type SQLiteStorage struct {
	db     *sql.DB
	cfg    config.SQLiteConfig
	logger *slog.Logger
}

// NewSQLiteStorage opens (creating if needed) the database at cfg.Path,
// applies pragmas and creates the schema.
func NewSQLiteStorage(cfg config.SQLiteConfig, logger *slog.Logger) (*SQLiteStorage, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Path == "" {
		cfg.Path = config.DefaultEvidenceSQLitePath
	}
	if cfg.Driver == "" {
		cfg.Driver = config.DefaultEvidenceSQLiteDriver
	}
	if cfg.Driver != DriverCGO && cfg.Driver != DriverPureGo {
		return nil, evidence.NewStorageError("sqlite", "open", fmt.Errorf("unsupported driver %q", cfg.Driver))
	}
	if cfg.MaxOpenConns <= 0 {
		cfg.MaxOpenConns = config.DefaultEvidenceSQLiteMaxOpen
	}
	if cfg.BusyTimeout <= 0 {
		cfg.BusyTimeout = config.DefaultEvidenceSQLiteBusyTimeout
	}

	if cfg.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
			return nil, evidence.NewStorageError("sqlite", "open", err)
		}
	}

	db, err := sql.Open(cfg.Driver, cfg.Path)
	if err != nil {
		return nil, evidence.NewStorageError("sqlite", "open", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	if cfg.Path == ":memory:" {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	s := &SQLiteStorage{
		db:     db,
		cfg:    cfg,
		logger: logger.With("component", "evidence.storage.sqlite"),
	}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	s.logger.Debug("SQLite storage initialized",
		"path", cfg.Path,
		"driver", cfg.Driver,
		"wal_mode", cfg.WALMode,
	)
	return s, nil
}

func (s *SQLiteStorage) initialize() error {
	if s.cfg.WALMode && s.cfg.Path != ":memory:" {
		if _, err := s.db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			return evidence.NewStorageError("sqlite", "enable_wal", err)
		}
	}
	if _, err := s.db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d;", s.cfg.BusyTimeout.Milliseconds())); err != nil {
		return evidence.NewStorageError("sqlite", "set_busy_timeout", err)
	}
	if _, err := s.db.Exec(Schema); err != nil {
		return evidence.NewStorageError("sqlite", "create_schema", err)
	}
	if _, err := s.db.Exec(InsertSchemaVersion, SchemaVersion); err != nil {
		return evidence.NewStorageError("sqlite", "insert_schema_version", err)
	}

	var version sql.NullInt64
	if err := s.db.QueryRow(GetSchemaVersion).Scan(&version); err != nil {
		return evidence.NewStorageError("sqlite", "get_schema_version", err)
	}
	if version.Int64 != SchemaVersion {
		return evidence.NewStorageError("sqlite", "schema_version_mismatch",
			fmt.Errorf("expected schema version %d, got %d", SchemaVersion, version.Int64))
	}
	return nil
}

// Store inserts a record.
func (s *SQLiteStorage) Store(ctx context.Context, record *evidence.Record) error {
	evaluators, err := encodeJSON(record.Evaluators)
	if err != nil {
		return evidence.NewStorageError("sqlite", "store", err)
	}
	errs, err := encodeJSON(record.Errors)
	if err != nil {
		return evidence.NewStorageError("sqlite", "store", err)
	}
	reports, err := encodeJSON(record.ReportPaths)
	if err != nil {
		return evidence.NewStorageError("sqlite", "store", err)
	}

	query := `INSERT INTO runs (` + runColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = s.db.ExecContext(ctx, query,
		record.ID, record.RunID, string(record.Kind),
		record.ApplicationName, nullString(record.ContractID), nullString(record.ContractHash), record.InteractionCount,
		record.PolicyTarget, nullString(record.PolicyVersion),
		record.Compliant, evaluators, record.PoliciesPassed, record.PoliciesFailed, record.PolicyErrors, errs,
		reports,
		record.StartedAt.UnixNano(), record.Duration.Milliseconds(), record.RecordedAt.UnixNano(),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			err = fmt.Errorf("%w: %s", evidence.ErrDuplicateRecord, record.ID)
		}
		return evidence.NewStorageError("sqlite", "store", err)
	}
	return nil
}

// Query returns matching records, newest first.
func (s *SQLiteStorage) Query(ctx context.Context, q *evidence.Query) ([]*evidence.Record, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	where, args := buildWhereClause(q)
	sqlQuery := "SELECT " + runColumns + " FROM runs" + where +
		fmt.Sprintf(" ORDER BY started_at DESC, id ASC LIMIT %d", q.EffectiveLimit())
	if q.Offset > 0 {
		sqlQuery += fmt.Sprintf(" OFFSET %d", q.Offset)
	}

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, evidence.NewStorageError("sqlite", "query", err)
	}
	defer rows.Close()

	records := []*evidence.Record{}
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, evidence.NewStorageError("sqlite", "scan", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, evidence.NewStorageError("sqlite", "query", err)
	}
	return records, nil
}

// Count returns the number of matching records.
func (s *SQLiteStorage) Count(ctx context.Context, q *evidence.Query) (int64, error) {
	if err := q.Validate(); err != nil {
		return 0, err
	}
	where, args := buildWhereClause(q)

	var count int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM runs"+where, args...).Scan(&count); err != nil {
		return 0, evidence.NewStorageError("sqlite", "count", err)
	}
	return count, nil
}

// DeleteBefore removes records started before cutoff.
func (s *SQLiteStorage) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM runs WHERE started_at < ?", cutoff.UnixNano())
	if err != nil {
		return 0, evidence.NewStorageError("sqlite", "delete", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, evidence.NewStorageError("sqlite", "delete", err)
	}
	return n, nil
}

// Close closes the database.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

func buildWhereClause(q *evidence.Query) (string, []any) {
	var (
		conditions []string
		args       []any
	)
	if q.ApplicationName != "" {
		conditions = append(conditions, "application_name = ?")
		args = append(args, q.ApplicationName)
	}
	if q.Kind != "" {
		conditions = append(conditions, "kind = ?")
		args = append(args, string(q.Kind))
	}
	if q.Compliant != nil {
		conditions = append(conditions, "compliant = ?")
		args = append(args, *q.Compliant)
	}
	if q.Since != nil {
		conditions = append(conditions, "started_at >= ?")
		args = append(args, q.Since.UnixNano())
	}
	if q.Until != nil {
		conditions = append(conditions, "started_at < ?")
		args = append(args, q.Until.UnixNano())
	}
	if len(conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

func scanRecord(rows *sql.Rows) (*evidence.Record, error) {
	var (
		r                                 evidence.Record
		kind                              string
		contractID, contractHash, version sql.NullString
		target, evaluators, errs, reports sql.NullString
		startedAt, durationMs, recordedAt int64
	)
	err := rows.Scan(
		&r.ID, &r.RunID, &kind,
		&r.ApplicationName, &contractID, &contractHash, &r.InteractionCount,
		&target, &version,
		&r.Compliant, &evaluators, &r.PoliciesPassed, &r.PoliciesFailed, &r.PolicyErrors, &errs,
		&reports,
		&startedAt, &durationMs, &recordedAt,
	)
	if err != nil {
		return nil, err
	}

	r.Kind = evidence.Kind(kind)
	r.ContractID = contractID.String
	r.ContractHash = contractHash.String
	r.PolicyTarget = target.String
	r.PolicyVersion = version.String
	r.StartedAt = time.Unix(0, startedAt).UTC()
	r.Duration = time.Duration(durationMs) * time.Millisecond
	r.RecordedAt = time.Unix(0, recordedAt).UTC()

	if err := decodeJSON(evaluators, &r.Evaluators); err != nil {
		return nil, fmt.Errorf("evaluators: %w", err)
	}
	if err := decodeJSON(errs, &r.Errors); err != nil {
		return nil, fmt.Errorf("errors: %w", err)
	}
	if err := decodeJSON(reports, &r.ReportPaths); err != nil {
		return nil, fmt.Errorf("report_paths: %w", err)
	}
	return &r, nil
}

func encodeJSON(v any) (any, error) {
	switch x := v.(type) {
	case []string:
		if len(x) == 0 {
			return nil, nil
		}
	case map[string]string:
		if len(x) == 0 {
			return nil, nil
		}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func decodeJSON(s sql.NullString, out any) error {
	if !s.Valid || s.String == "" {
		return nil
	}
	return json.Unmarshal([]byte(s.String), out)
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
