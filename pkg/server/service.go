package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mikeboe/deep-leads/pkg/database"
	"github.com/mikeboe/deep-leads/pkg/leads"
	"github.com/mikeboe/deep-leads/pkg/research"
	"github.com/mikeboe/deep-leads/pkg/vectorstore"
)

const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

var (
	ErrJobNotFound      = errors.New("job not found")
	ErrInvalidJob       = errors.New("invalid search request")
	ErrIndexUnavailable = errors.New("lead index is not configured")
)

// EngineFactory builds the research engine of one job. The logger writes
// to the job's log table.
type EngineFactory func(logger *slog.Logger) (*research.ResearchEngine, error)

type Service struct {
	DB        *database.PostgresDB
	NewEngine EngineFactory
	// Index serves similarity queries over stored leads. Optional.
	Index *vectorstore.LeadIndex
	// Logger receives a copy of every job log record. Optional.
	Logger *slog.Logger

	workers sync.WaitGroup
}

func NewService(db *database.PostgresDB, newEngine EngineFactory) *Service {
	return &Service{
		DB:        db,
		NewEngine: newEngine,
	}
}

type Job struct {
	ID uuid.UUID `json:"id"`
	leads.ResearchParams
	Mode      research.Mode   `json:"mode"`
	Status    string          `json:"status"`
	Leads     json.RawMessage `json:"leads,omitempty"`
	State     json.RawMessage `json:"state,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
	Config    json.RawMessage `json:"config,omitempty"`
}

type CreateJobRequest struct {
	leads.ResearchParams
	Mode string `json:"mode"`
}

func (s *Service) CreateJob(ctx context.Context, req CreateJobRequest) (*Job, error) {
	mode, err := research.ParseMode(req.Mode)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidJob, err)
	}
	if err := leads.Validate(req.ResearchParams); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidJob, err)
	}

	configJSON, _ := json.Marshal(map[string]any{"mode": mode})

	jobID := uuid.New()
	query := `
		INSERT INTO lead_jobs (id, who_query, what_query, where_query, context_query, mode, status, config)
		VALUES ($1, $2, $3, $4, $5, $6, 'pending', $7)
		RETURNING id, status, created_at, updated_at
	`

	job := &Job{ResearchParams: req.ResearchParams, Mode: mode, Config: configJSON}
	err = s.DB.Pool.QueryRow(ctx, query, jobID, req.Who, req.What, req.Where, req.Context, string(mode), configJSON).Scan(
		&job.ID, &job.Status, &job.CreatedAt, &job.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	// Start background worker
	s.workers.Add(1)
	go func() {
		defer s.workers.Done()
		s.runWorker(job.ID, job.ResearchParams, mode)
	}()

	return job, nil
}

// Wait blocks until all running jobs have finished.
func (s *Service) Wait() {
	s.workers.Wait()
}

const jobColumns = `id, who_query, what_query, where_query, context_query, mode, status, leads, state, created_at, updated_at, config`

func scanJob(row pgx.Row) (*Job, error) {
	var (
		job  Job
		mode string
	)
	err := row.Scan(&job.ID, &job.Who, &job.What, &job.Where, &job.Context, &mode, &job.Status,
		&job.Leads, &job.State, &job.CreatedAt, &job.UpdatedAt, &job.Config)
	if err != nil {
		return nil, err
	}
	job.Mode = research.Mode(mode)
	return &job, nil
}

func (s *Service) GetJob(ctx context.Context, id uuid.UUID) (*Job, error) {
	query := `SELECT ` + jobColumns + ` FROM lead_jobs WHERE id = $1`
	job, err := scanJob(s.DB.Pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return job, nil
}

func (s *Service) ListJobs(ctx context.Context) ([]Job, error) {
	query := `SELECT ` + jobColumns + ` FROM lead_jobs ORDER BY created_at DESC LIMIT 50`
	rows, err := s.DB.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			continue
		}
		// The list view stays small; full state is served by GetJob.
		job.State = nil
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

type LogEntry struct {
	ID        int             `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	Level     string          `json:"level"`
	Message   string          `json:"message"`
	Metadata  json.RawMessage `json:"metadata"`
}

func (s *Service) GetJobLogs(ctx context.Context, jobID uuid.UUID) ([]LogEntry, error) {
	query := `
		SELECT id, timestamp, level, message, metadata
		FROM lead_job_logs
		WHERE job_id = $1
		ORDER BY id ASC
	`
	rows, err := s.DB.Pool.Query(ctx, query, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to get logs: %w", err)
	}
	defer rows.Close()

	var logs []LogEntry
	for rows.Next() {
		var l LogEntry
		if err := rows.Scan(&l.ID, &l.Timestamp, &l.Level, &l.Message, &l.Metadata); err != nil {
			continue
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

// SimilarLeads returns the k stored leads closest to text.
func (s *Service) SimilarLeads(ctx context.Context, text string, k int) ([]vectorstore.LeadMatch, error) {
	if s.Index == nil {
		return nil, ErrIndexUnavailable
	}
	return s.Index.Similar(ctx, text, k, nil)
}

func (s *Service) jobLogger(jobID uuid.UUID) *slog.Logger {
	h := NewDBLogHandler(s.DB, jobID)
	if s.Logger != nil {
		h.Next = s.Logger.Handler()
	}
	return slog.New(h).With("job_id", jobID.String())
}

func (s *Service) runWorker(jobID uuid.UUID, params leads.ResearchParams, mode research.Mode) {
	ctx := context.Background()

	// Update status to running
	_, _ = s.DB.Pool.Exec(ctx, "UPDATE lead_jobs SET status = 'running', updated_at = NOW() WHERE id = $1", jobID)

	dbLogger := s.jobLogger(jobID)

	engine, err := s.NewEngine(dbLogger)
	if err != nil {
		s.failJob(ctx, jobID, fmt.Sprintf("Failed to init engine: %v", err))
		return
	}

	// Hook for state persistence
	engine.OnStateUpdate = func(state research.ResearchState) {
		stateJSON, err := json.Marshal(state)
		if err != nil {
			dbLogger.Error("Failed to marshal state", "error", err)
			return
		}

		_, err = s.DB.Pool.Exec(ctx,
			"UPDATE lead_jobs SET state = $2, updated_at = NOW() WHERE id = $1",
			jobID, stateJSON)
		if err != nil {
			dbLogger.Error("Failed to save state to DB", "error", err)
		}
	}

	out, err := engine.Run(ctx, params, mode)
	if err != nil {
		s.failJob(ctx, jobID, fmt.Sprintf("Lead search failed: %v", err))
		return
	}

	leadsJSON, err := json.Marshal(out.Leads)
	if err != nil {
		s.failJob(ctx, jobID, fmt.Sprintf("Failed to encode leads: %v", err))
		return
	}
	final, _ := json.Marshal(map[string]any{
		"stop_reason": out.StopReason,
		"iterations":  out.Iterations,
		"trajectory":  out.Trajectory,
		"delegated":   out.Delegated,
	})

	_, err = s.DB.Pool.Exec(ctx,
		"UPDATE lead_jobs SET status = 'completed', leads = $2, state = $3, updated_at = NOW() WHERE id = $1",
		jobID, leadsJSON, final)
	if err != nil {
		dbLogger.Error("Failed to save leads to DB", "error", err)
		return
	}
	dbLogger.Info("Lead search completed", "leads", len(out.Leads.Leads), "stop_reason", out.StopReason)

	if err := engine.IndexOutcome(ctx, out, jobID.String()); err != nil {
		dbLogger.Warn("Failed to index leads", "error", err)
	}
}

func (s *Service) failJob(ctx context.Context, jobID uuid.UUID, reason string) {
	s.jobLogger(jobID).Error(reason)

	_, _ = s.DB.Pool.Exec(ctx, "UPDATE lead_jobs SET status = 'failed', updated_at = NOW() WHERE id = $1", jobID)
}
