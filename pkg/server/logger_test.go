package server

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"

	"github.com/mikeboe/deep-leads/pkg/database"
)

func TestDBLogHandler(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgxmock pool: %v", err)
	}
	defer mock.Close()

	jobID := uuid.New()
	var console bytes.Buffer
	h := NewDBLogHandler(database.New(mock), jobID)
	h.Next = slog.NewTextHandler(&console, nil)
	logger := slog.New(h).With("role", "researcher").WithGroup("tool").With("name", "browse_web")

	mock.ExpectExec("INSERT INTO lead_job_logs").
		WithArgs(jobID, pgxmock.AnyArg(), "WARN", "Tool call failed", jsonArg{want: map[string]any{
			"role": "researcher",
			"tool": map[string]any{"name": "browse_web", "error": "timeout", "attempt": float64(2)},
		}}).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	logger.Warn("Tool call failed", "error", errors.New("timeout"), "attempt", 2)

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
	if !bytes.Contains(console.Bytes(), []byte("Tool call failed")) {
		t.Errorf("console handler did not receive the record: %q", console.String())
	}
}

func TestDBLogHandlerLevel(t *testing.T) {
	h := NewDBLogHandler(nil, uuid.New())
	tests := []struct {
		level slog.Level
		want  bool
	}{
		{slog.LevelDebug, false},
		{slog.LevelInfo, true},
		{slog.LevelError, true},
	}
	for _, tt := range tests {
		if got := h.Enabled(context.Background(), tt.level); got != tt.want {
			t.Errorf("Enabled(%v) = %v, want %v", tt.level, got, tt.want)
		}
	}

	h.Level = slog.LevelWarn
	if h.Enabled(context.Background(), slog.LevelInfo) {
		t.Error("Enabled(INFO) with WARN threshold = true, want false")
	}
}

func TestDBLogHandlerInsertError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgxmock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectExec("INSERT INTO lead_job_logs").WillReturnError(errors.New("connection reset"))

	h := NewDBLogHandler(database.New(mock), uuid.New())
	var r slog.Record
	r.Level = slog.LevelError
	r.Message = "boom"
	if err := h.Handle(context.Background(), r); err == nil {
		t.Fatal("expected insert error")
	}
}
