package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"
)

// Record is the persisted form of an Event.
type Record struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Program     string    `gorm:"size:64" json:"program"`
	Version     string    `gorm:"size:32" json:"version"`
	Module      string    `gorm:"size:64;index:idx_module_action" json:"module"`
	Action      string    `gorm:"size:64;index:idx_module_action" json:"action"`
	Args        string    `json:"args"`
	DurationMs  float64   `json:"duration_ms"`
	ExitCode    int       `json:"exit_code"`
	Error       string    `json:"error,omitempty"`
	ContextJSON string    `json:"context_json"`
	CreatedAt   time.Time `gorm:"index" json:"created_at"`
}

// TableName keeps the table name stable across gorm naming strategies.
func (Record) TableName() string { return "telemetry" }

// Store writes events through gorm.
type Store struct {
	db      *gorm.DB
	version string
	logger  *slog.Logger
	now     func() time.Time
}

var _ Recorder = (*Store)(nil)

// NewStore migrates the telemetry table and returns a Store.
func NewStore(db *gorm.DB, version string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, fmt.Errorf("failed to migrate telemetry table: %w", err)
	}
	return &Store{db: db, version: version, logger: logger, now: time.Now}, nil
}

// Record persists ev. Failures are logged.
func (s *Store) Record(ctx context.Context, ev Event) {
	rec := s.toRecord(ev)
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		s.logger.Error("failed to log telemetry", "module", ev.Module, "action", ev.Action, "error", err)
	}
}

func (s *Store) toRecord(ev Event) Record {
	args := ev.Args
	if args == nil {
		args = []string{}
	}
	argsJSON, _ := json.Marshal(args)

	evCtx := ev.Context
	if evCtx == nil {
		evCtx = map[string]any{}
	}
	ctxJSON, err := json.Marshal(evCtx)
	if err != nil {
		ctxJSON = []byte(`{}`)
	}

	rec := Record{
		Program:     Program,
		Version:     s.version,
		Module:      ev.Module,
		Action:      ev.Action,
		Args:        string(argsJSON),
		DurationMs:  float64(ev.Duration) / float64(time.Millisecond),
		ExitCode:    ev.ExitCode(),
		ContextJSON: string(ctxJSON),
		CreatedAt:   s.now(),
	}
	if ev.Err != nil {
		rec.Error = ev.Err.Error()
	}
	return rec
}

// Filter narrows List. Zero fields match everything.
type Filter struct {
	Module string
	Action string
	Since  time.Time
	Limit  int
}

// List returns records, newest first.
func (s *Store) List(ctx context.Context, f Filter) ([]Record, error) {
	q := s.db.WithContext(ctx).Model(&Record{})
	if f.Module != "" {
		q = q.Where("module = ?", f.Module)
	}
	if f.Action != "" {
		q = q.Where("action = ?", f.Action)
	}
	if !f.Since.IsZero() {
		q = q.Where("created_at >= ?", f.Since)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}

	var out []Record
	if err := q.Order("created_at DESC, id DESC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to list telemetry: %w", err)
	}
	return out, nil
}
