package server

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"

	"github.com/mikeboe/deep-leads/pkg/database"
)

// DBLogHandler is a slog.Handler that writes records to lead_job_logs.
// Records are also passed to Next when it is set.
type DBLogHandler struct {
	DB    *database.PostgresDB
	JobID uuid.UUID
	Level slog.Leveler
	Next  slog.Handler

	attrs  []slog.Attr
	groups []string
}

func NewDBLogHandler(db *database.PostgresDB, jobID uuid.UUID) *DBLogHandler {
	return &DBLogHandler{
		DB:    db,
		JobID: jobID,
		Level: slog.LevelInfo,
	}
}

func (h *DBLogHandler) Enabled(ctx context.Context, level slog.Level) bool {
	minLevel := slog.LevelInfo
	if h.Level != nil {
		minLevel = h.Level.Level()
	}
	return level >= minLevel
}

func (h *DBLogHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.Next != nil && h.Next.Enabled(ctx, r.Level) {
		_ = h.Next.Handle(ctx, r.Clone())
	}

	meta := make(map[string]any, len(h.attrs)+r.NumAttrs())
	for _, a := range h.attrs {
		addAttr(meta, a)
	}
	target := meta
	for _, g := range h.groups {
		sub, ok := target[g].(map[string]any)
		if !ok {
			sub = make(map[string]any)
			target[g] = sub
		}
		target = sub
	}
	r.Attrs(func(a slog.Attr) bool {
		addAttr(target, a)
		return true
	})

	metaJSON, err := json.Marshal(meta)
	if err != nil {
		metaJSON = []byte("{}")
	}

	query := `
		INSERT INTO lead_job_logs (job_id, timestamp, level, message, metadata)
		VALUES ($1, $2, $3, $4, $5)
	`
	// Logs must persist even when the request context is gone.
	_, err = h.DB.Pool.Exec(context.WithoutCancel(ctx), query, h.JobID, r.Time, r.Level.String(), r.Message, metaJSON)
	return err
}

func addAttr(m map[string]any, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	switch a.Value.Kind() {
	case slog.KindGroup:
		sub := m
		if a.Key != "" {
			existing, ok := m[a.Key].(map[string]any)
			if !ok {
				existing = make(map[string]any)
				m[a.Key] = existing
			}
			sub = existing
		}
		for _, ga := range a.Value.Group() {
			addAttr(sub, ga)
		}
	case slog.KindAny:
		if err, ok := a.Value.Any().(error); ok {
			m[a.Key] = err.Error()
			return
		}
		m[a.Key] = a.Value.Any()
	default:
		m[a.Key] = a.Value.Any()
	}
}

func (h *DBLogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	h2 := h.clone()
	if len(h.groups) > 0 {
		// nest under the open groups
		args := make([]any, len(attrs))
		for i, a := range attrs {
			args[i] = a
		}
		nested := slog.Group(h.groups[len(h.groups)-1], args...)
		for i := len(h.groups) - 2; i >= 0; i-- {
			nested = slog.Group(h.groups[i], nested)
		}
		h2.attrs = append(h2.attrs, nested)
	} else {
		h2.attrs = append(h2.attrs, attrs...)
	}
	if h.Next != nil {
		h2.Next = h.Next.WithAttrs(attrs)
	}
	return h2
}

func (h *DBLogHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	h2 := h.clone()
	h2.groups = append(h2.groups, name)
	if h.Next != nil {
		h2.Next = h.Next.WithGroup(name)
	}
	return h2
}

func (h *DBLogHandler) clone() *DBLogHandler {
	h2 := *h
	h2.attrs = append([]slog.Attr(nil), h.attrs...)
	h2.groups = append([]string(nil), h.groups...)
	return &h2
}
