package server

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikeboe/deep-leads/pkg/database"
	"github.com/mikeboe/deep-leads/pkg/leads"
	"github.com/mikeboe/deep-leads/pkg/research"
)

const (
	insertJobSQL  = "INSERT INTO lead_jobs"
	runningSQL    = "UPDATE lead_jobs SET status = 'running', updated_at = NOW() WHERE id = $1"
	stateSQL      = "UPDATE lead_jobs SET state = $2, updated_at = NOW() WHERE id = $1"
	completedSQL  = "UPDATE lead_jobs SET status = 'completed', leads = $2, state = $3, updated_at = NOW() WHERE id = $1"
	failedSQL     = "UPDATE lead_jobs SET status = 'failed', updated_at = NOW() WHERE id = $1"
	insertLogSQL  = "INSERT INTO lead_job_logs"
	browseReply   = `{"next_thought": "search", "next_tool_calls": [{"name": "browse_web", "args": {"query": "nutrition professors"}}]}`
	finishReply   = `{"next_thought": "done", "next_tool_calls": [{"name": "finish", "args": {}}]}`
	extractReply  = `{"leads": [{"name": "Jane Roe", "institution": "University of Alberta"}]}`
	testWho       = "Professors"
	testWhat      = "Nutrition"
	testWhere     = "Edmonton"
	testModeValue = "single"
)

func newMockService(t *testing.T, factory EngineFactory) (*Service, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	svc := NewService(database.New(mock), factory)
	return svc, mock
}

func scriptedEngine(replies ...string) EngineFactory {
	return func(logger *slog.Logger) (*research.ResearchEngine, error) {
		model := &scriptedModel{replies: replies}
		e, err := research.NewEngine(research.Config{MaxIters: 5}, model, nil, testWeb(nil))
		if err != nil {
			return nil, err
		}
		e.Logger = discardLogger()
		return e, nil
	}
}

func expectInsertJob(mock pgxmock.PgxPoolIface, jobID uuid.UUID) {
	now := time.Now()
	mock.ExpectQuery(insertJobSQL).
		WithArgs(pgxmock.AnyArg(), testWho, testWhat, testWhere, "", testModeValue, pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id", "status", "created_at", "updated_at"}).
			AddRow(jobID, StatusPending, now, now))
}

func TestCreateJobRunsWorker(t *testing.T) {
	svc, mock := newMockService(t, scriptedEngine(browseReply, finishReply, extractReply))
	jobID := uuid.New()

	expectInsertJob(mock, jobID)
	mock.ExpectExec(regexp.QuoteMeta(runningSQL)).WithArgs(jobID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	for range 2 {
		mock.ExpectExec(regexp.QuoteMeta(stateSQL)).WithArgs(jobID, pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	}
	mock.ExpectExec(regexp.QuoteMeta(completedSQL)).
		WithArgs(jobID, jsonArg{want: map[string]any{
			"leads": []any{map[string]any{"name": "Jane Roe", "institution": "University of Alberta"}},
		}}, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(insertLogSQL).
		WithArgs(jobID, pgxmock.AnyArg(), "INFO", "Lead search completed", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	job, err := svc.CreateJob(context.Background(), CreateJobRequest{
		ResearchParams: leads.ResearchParams{Who: testWho, What: testWhat, Where: testWhere},
	})
	require.NoError(t, err)
	assert.Equal(t, jobID, job.ID)
	assert.Equal(t, StatusPending, job.Status)
	assert.Equal(t, research.ModeSingle, job.Mode)

	svc.Wait()
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateJobEngineFailure(t *testing.T) {
	svc, mock := newMockService(t, func(*slog.Logger) (*research.ResearchEngine, error) {
		return nil, errors.New("no models configured")
	})
	jobID := uuid.New()

	expectInsertJob(mock, jobID)
	mock.ExpectExec(regexp.QuoteMeta(runningSQL)).WithArgs(jobID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(insertLogSQL).
		WithArgs(jobID, pgxmock.AnyArg(), "ERROR", "Failed to init engine: no models configured", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(regexp.QuoteMeta(failedSQL)).WithArgs(jobID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	_, err := svc.CreateJob(context.Background(), CreateJobRequest{
		ResearchParams: leads.ResearchParams{Who: testWho, What: testWhat, Where: testWhere},
		Mode:           testModeValue,
	})
	require.NoError(t, err)

	svc.Wait()
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateJobRejectsInvalidRequest(t *testing.T) {
	svc, mock := newMockService(t, scriptedEngine())

	tests := []struct {
		name string
		req  CreateJobRequest
	}{
		{"unknown mode", CreateJobRequest{ResearchParams: leads.ResearchParams{Who: testWho, What: testWhat}, Mode: "swarm"}},
		{"missing what", CreateJobRequest{ResearchParams: leads.ResearchParams{Who: testWho}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateJob(context.Background(), tt.req)
			assert.ErrorIs(t, err, ErrInvalidJob)
		})
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

var jobRowColumns = []string{
	"id", "who_query", "what_query", "where_query", "context_query", "mode", "status",
	"leads", "state", "created_at", "updated_at", "config",
}

func TestGetJob(t *testing.T) {
	svc, mock := newMockService(t, nil)
	jobID := uuid.New()
	now := time.Now()

	mock.ExpectQuery("SELECT id, who_query").WithArgs(jobID).
		WillReturnRows(pgxmock.NewRows(jobRowColumns).AddRow(
			jobID, testWho, testWhat, testWhere, "", "multi", StatusCompleted,
			[]byte(`{"leads":[]}`), []byte(`{"iterations":3}`), now, now, []byte(`{"mode":"multi"}`),
		))

	job, err := svc.GetJob(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, research.ModeMulti, job.Mode)
	assert.Equal(t, testWhere, job.Where)
	assert.JSONEq(t, `{"iterations":3}`, string(job.State))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetJobNotFound(t *testing.T) {
	svc, mock := newMockService(t, nil)
	jobID := uuid.New()

	mock.ExpectQuery("SELECT id, who_query").WithArgs(jobID).WillReturnError(pgx.ErrNoRows)

	_, err := svc.GetJob(context.Background(), jobID)
	assert.ErrorIs(t, err, ErrJobNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListJobsDropsState(t *testing.T) {
	svc, mock := newMockService(t, nil)
	now := time.Now()

	mock.ExpectQuery("SELECT id, who_query").
		WillReturnRows(pgxmock.NewRows(jobRowColumns).
			AddRow(uuid.New(), testWho, testWhat, "", "", "single", StatusRunning,
				nil, []byte(`{"iteration":1}`), now, now, []byte(`{}`)).
			AddRow(uuid.New(), "Engineers", "Robotics", "", "", "multi", StatusPending,
				nil, nil, now, now, []byte(`{}`)))

	jobs, err := svc.ListJobs(context.Background())
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Nil(t, jobs[0].State)
	assert.Equal(t, "Engineers", jobs[1].Who)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetJobLogs(t *testing.T) {
	svc, mock := newMockService(t, nil)
	jobID := uuid.New()
	now := time.Now()

	mock.ExpectQuery("SELECT id, timestamp, level, message, metadata").WithArgs(jobID).
		WillReturnRows(pgxmock.NewRows([]string{"id", "timestamp", "level", "message", "metadata"}).
			AddRow(1, now, "INFO", "Starting lead search", []byte(`{"role":"lead_researcher"}`)).
			AddRow(2, now, "ERROR", "Lead search failed", []byte(`{}`)))

	logs, err := svc.GetJobLogs(context.Background(), jobID)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, "ERROR", logs[1].Level)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSimilarLeadsWithoutIndex(t *testing.T) {
	svc, _ := newMockService(t, nil)
	_, err := svc.SimilarLeads(context.Background(), "nutrition", 5)
	assert.ErrorIs(t, err, ErrIndexUnavailable)
}
