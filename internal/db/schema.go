package db

// SchemaSQL is the complete schema for fresh stagehand installs.
//
// This is the SINGLE SOURCE OF TRUTH for the database schema. All tests
// build their in-memory databases from GetSchemaSQL(), so repository code
// referencing a column that does not exist here fails immediately with
// "no such column" at development time.
//
// The layout is four logical tables: stage definitions (catalog), claims
// (mutual exclusion, history retained), progress (one mutable row per
// thread x stage), and audit_events (append-only trail).
const SchemaSQL = `
-- Stage definitions (the pipeline catalog)
CREATE TABLE IF NOT EXISTS stages (
	id TEXT PRIMARY KEY,
	position INTEGER NOT NULL,
	is_active INTEGER NOT NULL DEFAULT 1,
	is_required INTEGER NOT NULL DEFAULT 0,
	dependencies TEXT NOT NULL DEFAULT '[]',
	config TEXT NOT NULL DEFAULT '{}',
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- Claims (exclusive execution rights; rows are never deleted)
CREATE TABLE IF NOT EXISTS claims (
	id TEXT PRIMARY KEY,
	thread_id TEXT NOT NULL,
	stage_id TEXT NOT NULL,
	executor_id TEXT NOT NULL,
	status TEXT NOT NULL CHECK(status IN ('active', 'completed', 'failed', 'released')) DEFAULT 'active',
	review_status TEXT NOT NULL CHECK(review_status IN ('pending', 'approved')) DEFAULT 'pending',
	metadata TEXT NOT NULL DEFAULT '{}',
	acquired_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	released_at DATETIME
);

-- At most one active claim per (thread, stage). Acquisition is a plain
-- INSERT; this index is what makes it atomic under contention.
CREATE UNIQUE INDEX IF NOT EXISTS idx_claims_one_active
	ON claims(thread_id, stage_id) WHERE status = 'active';

CREATE INDEX IF NOT EXISTS idx_claims_pair ON claims(thread_id, stage_id, acquired_at);

-- Progress (latest outcome per thread x stage, mutated in place)
CREATE TABLE IF NOT EXISTS progress (
	id TEXT PRIMARY KEY,
	thread_id TEXT NOT NULL,
	stage_id TEXT NOT NULL,
	status TEXT NOT NULL CHECK(status IN ('pending', 'running', 'completed', 'failed', 'skipped', 'timeout', 'paused')),
	agent_id TEXT,
	claim_id TEXT,
	started_at DATETIME,
	completed_at DATETIME,
	duration_ms INTEGER,
	input_data TEXT NOT NULL DEFAULT '{}',
	output_data TEXT NOT NULL DEFAULT '{}',
	state_update TEXT NOT NULL DEFAULT '{}',
	error_message TEXT,
	error_stack TEXT,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	UNIQUE(thread_id, stage_id)
);

-- Audit events (append-only; never updated or deleted)
CREATE TABLE IF NOT EXISTS audit_events (
	id TEXT PRIMARY KEY,
	event_name TEXT NOT NULL,
	thread_id TEXT,
	stage_id TEXT,
	payload TEXT NOT NULL DEFAULT '{}',
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_audit_events_name ON audit_events(event_name, created_at);
CREATE INDEX IF NOT EXISTS idx_audit_events_stage ON audit_events(stage_id, created_at);
`

// GetSchemaSQL returns the authoritative schema SQL for use by tests.
// Tests should use this instead of hardcoding their own schema to
// prevent drift.
func GetSchemaSQL() string {
	return SchemaSQL
}
