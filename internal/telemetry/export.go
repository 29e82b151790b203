package telemetry

import (
	"context"
	"fmt"
	"io"

	"github.com/parquet-go/parquet-go"
)

// ExportRow is the parquet schema of an exported record.
type ExportRow struct {
	ID          int64   `parquet:"id"`
	Program     string  `parquet:"program"`
	Version     string  `parquet:"version"`
	Module      string  `parquet:"module"`
	Action      string  `parquet:"action"`
	Args        string  `parquet:"args"`
	DurationMs  float64 `parquet:"duration_ms"`
	ExitCode    int32   `parquet:"exit_code"`
	Error       string  `parquet:"error"`
	ContextJSON string  `parquet:"context_json"`
	CreatedAtMs int64   `parquet:"created_at_ms"`
}

func exportRow(r Record) ExportRow {
	return ExportRow{
		ID:          int64(r.ID),
		Program:     r.Program,
		Version:     r.Version,
		Module:      r.Module,
		Action:      r.Action,
		Args:        r.Args,
		DurationMs:  r.DurationMs,
		ExitCode:    int32(r.ExitCode),
		Error:       r.Error,
		ContextJSON: r.ContextJSON,
		CreatedAtMs: r.CreatedAt.UnixMilli(),
	}
}

// ExportParquet writes the records matched by f to w and returns the row count.
func (s *Store) ExportParquet(ctx context.Context, w io.Writer, f Filter) (int, error) {
	records, err := s.List(ctx, f)
	if err != nil {
		return 0, err
	}

	rows := make([]ExportRow, len(records))
	for i, r := range records {
		rows[i] = exportRow(r)
	}

	pw := parquet.NewGenericWriter[ExportRow](w)
	if _, err := pw.Write(rows); err != nil {
		return 0, fmt.Errorf("failed to write parquet rows: %w", err)
	}
	if err := pw.Close(); err != nil {
		return 0, fmt.Errorf("failed to close parquet writer: %w", err)
	}
	return len(rows), nil
}
