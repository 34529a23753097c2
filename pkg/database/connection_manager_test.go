package database

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"

	"userservice/internal/config"
	"userservice/pkg/logger"
)

func newMemoryManager(t *testing.T) *ConnectionManager {
	t.Helper()

	cm, err := NewConnectionManager(config.DatabaseConfig{
		Driver:       DriverSQLite,
		Path:         ":memory:",
		MaxOpenConns: 1,
	}, logger.Nop())
	if err != nil {
		t.Fatalf("Failed to open sqlite: %v", err)
	}
	t.Cleanup(func() { cm.Close() })

	return cm
}

func TestConnectionManager_PingAndStats(t *testing.T) {
	cm := newMemoryManager(t)

	if err := cm.Ping(context.Background()); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}
	if cm.Driver() != DriverSQLite {
		t.Errorf("Expected driver sqlite3, got %s", cm.Driver())
	}

	stats := cm.GetStats()
	if stats["driver"] != DriverSQLite {
		t.Errorf("Expected driver in stats, got %v", stats["driver"])
	}
}

func TestNewConnectionManager_UnknownDriver(t *testing.T) {
	_, err := NewConnectionManager(config.DatabaseConfig{Driver: "nope"}, logger.Nop())
	if err == nil {
		t.Error("Expected error for unknown driver, got nil")
	}
}

func TestIsUniqueViolation(t *testing.T) {
	cm := newMemoryManager(t)
	db := cm.GetDB()

	if _, err := db.Exec(`CREATE TABLE t (email TEXT NOT NULL UNIQUE)`); err != nil {
		t.Fatalf("Failed to create table: %v", err)
	}
	if _, err := db.Exec(`INSERT INTO t (email) VALUES ($1)`, "a@x.com"); err != nil {
		t.Fatalf("Failed to insert: %v", err)
	}

	_, err := db.Exec(`INSERT INTO t (email) VALUES ($1)`, "a@x.com")
	if err == nil {
		t.Fatal("Expected unique violation, got nil")
	}
	if !IsUniqueViolation(fmt.Errorf("wrapped: %w", err)) {
		t.Errorf("Expected sqlite error to be detected as unique violation: %v", err)
	}

	if !IsUniqueViolation(&pq.Error{Code: "23505"}) {
		t.Error("Expected postgres 23505 to be detected as unique violation")
	}
	if IsUniqueViolation(&pq.Error{Code: "23503"}) {
		t.Error("Expected foreign key violation not to match")
	}
	if IsUniqueViolation(errors.New("boom")) {
		t.Error("Expected plain error not to match")
	}
}
