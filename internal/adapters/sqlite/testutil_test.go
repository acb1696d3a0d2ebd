// Package sqlite_test contains integration tests for SQLite repositories.
//
// # Schema Protection
//
// This file is the SINGLE POINT where the database schema is loaded for
// tests. All test setup functions use db.GetSchemaSQL() so tests run
// against the authoritative schema, preventing drift between test and
// production.
//
// DO NOT hardcode CREATE TABLE statements in test files. Use
// setupTestDB() and the seed* helpers instead.
package sqlite_test

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/example/stagehand/internal/db"
)

// setupTestDB creates an in-memory database with the authoritative schema.
// This is the single shared test database setup function for all
// repository tests.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	testDB, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}

	// Use the authoritative schema from schema.go
	_, err = testDB.Exec(db.GetSchemaSQL())
	if err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}

	t.Cleanup(func() {
		testDB.Close()
	})

	return testDB
}

// seedStage inserts a test stage and returns its ID.
func seedStage(t *testing.T, db *sql.DB, id string, position int) string {
	t.Helper()
	if id == "" {
		id = "greeting"
	}
	_, err := db.Exec(
		"INSERT INTO stages (id, position, is_active, is_required, dependencies, config) VALUES (?, ?, 1, 1, '[]', '{}')",
		id, position,
	)
	if err != nil {
		t.Fatalf("failed to seed stage: %v", err)
	}
	return id
}

// seedClaim inserts a test claim and returns its ID.
func seedClaim(t *testing.T, db *sql.DB, id, threadID, stageID, status string) string {
	t.Helper()
	if id == "" {
		id = "claim-001"
	}
	if threadID == "" {
		threadID = "thread-001"
	}
	if stageID == "" {
		stageID = "greeting"
	}
	if status == "" {
		status = "active"
	}
	_, err := db.Exec(
		"INSERT INTO claims (id, thread_id, stage_id, executor_id, status, review_status, metadata) VALUES (?, ?, ?, 'exec-1', ?, 'pending', '{}')",
		id, threadID, stageID, status,
	)
	if err != nil {
		t.Fatalf("failed to seed claim: %v", err)
	}
	return id
}
