package storage

// SchemaVersion is the current database schema version.
const SchemaVersion = 1

// Schema creates the run record tables. Timestamps are stored as Unix
// nanoseconds so both SQLite drivers read them back identically.
const Schema = `
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    run_id TEXT NOT NULL,
    kind TEXT NOT NULL,

    application_name TEXT NOT NULL,
    contract_id TEXT,
    contract_hash TEXT,
    interaction_count INTEGER NOT NULL DEFAULT 0,

    policy_target TEXT,
    policy_version TEXT,

    compliant BOOLEAN NOT NULL,
    evaluators TEXT,
    policies_passed INTEGER NOT NULL DEFAULT 0,
    policies_failed INTEGER NOT NULL DEFAULT 0,
    policy_errors INTEGER NOT NULL DEFAULT 0,
    errors TEXT,

    report_paths TEXT,

    started_at INTEGER NOT NULL,
    duration_ms INTEGER NOT NULL DEFAULT 0,
    recorded_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
CREATE INDEX IF NOT EXISTS idx_runs_application ON runs(application_name, started_at);
CREATE INDEX IF NOT EXISTS idx_runs_kind ON runs(kind);

CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY
);
`

// InsertSchemaVersion records the schema version once.
const InsertSchemaVersion = `INSERT OR IGNORE INTO schema_version (version) VALUES (?)`

// GetSchemaVersion reads the highest recorded schema version.
const GetSchemaVersion = `SELECT MAX(version) FROM schema_version`

const runColumns = `id, run_id, kind,
    application_name, contract_id, contract_hash, interaction_count,
    policy_target, policy_version,
    compliant, evaluators, policies_passed, policies_failed, policy_errors, errors,
    report_paths,
    started_at, duration_ms, recorded_at`
