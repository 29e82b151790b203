// Package telemetry records pipeline events in a SQL database and summarizes them.
package telemetry

import (
	"context"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Program is the name stored with every event.
const Program = "jade-scribe"

// Event is one timed operation.
type Event struct {
	Module   string
	Action   string
	Args     []string
	Duration time.Duration
	Err      error
	Context  map[string]any
}

// ExitCode is 0 for success and 1 for failure.
func (e Event) ExitCode() int {
	if e.Err != nil {
		return 1
	}
	return 0
}

// Recorder accepts events. Recording is best effort and never fails the caller.
type Recorder interface {
	Record(ctx context.Context, ev Event)
}

// Nop discards every event.
type Nop struct{}

func (Nop) Record(context.Context, Event) {}

// Open connects to the telemetry database. DSNs starting with postgres://,
// postgresql:// or containing host= select Postgres; anything else is a
// SQLite file path (":memory:" included).
func Open(dsn string) (*gorm.DB, error) {
	cfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)}
	if isPostgres(dsn) {
		return gorm.Open(postgres.Open(dsn), cfg)
	}
	db, err := gorm.Open(sqlite.Open(dsn), cfg)
	if err != nil {
		return nil, err
	}
	// every pooled connection to :memory: would see its own empty database
	if dsn == ":memory:" {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.SetMaxOpenConns(1)
		}
	}
	return db, nil
}

func isPostgres(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") ||
		strings.HasPrefix(dsn, "postgresql://") ||
		strings.Contains(dsn, "host=")
}
