package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T) (*gin.Engine, pgxmock.PgxPoolIface) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	svc, mock := newMockService(t, nil)
	r := gin.New()
	NewHandler(svc, nil).RegisterRoutes(r)
	return r, mock
}

func serve(r http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCreateJobBadRequests(t *testing.T) {
	r, mock := newTestRouter(t)

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"who_query":`},
		{"missing who", `{"what_query": "Nutrition"}`},
		{"unknown mode", `{"who_query": "Professors", "what_query": "Nutrition", "mode": "swarm"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(r, http.MethodPost, "/api/searches", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), "error")
		})
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetJobRoutes(t *testing.T) {
	r, mock := newTestRouter(t)
	jobID := uuid.New()
	now := time.Now()

	w := serve(r, http.MethodGet, "/api/searches/not-a-uuid", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	mock.ExpectQuery("SELECT id, who_query").WithArgs(jobID).WillReturnError(pgx.ErrNoRows)
	w = serve(r, http.MethodGet, "/api/searches/"+jobID.String(), "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	mock.ExpectQuery("SELECT id, who_query").WithArgs(jobID).
		WillReturnRows(pgxmock.NewRows(jobRowColumns).AddRow(
			jobID, testWho, testWhat, "", "", "single", StatusRunning,
			nil, []byte(`{"iteration":2}`), now, now, []byte(`{}`),
		))
	w = serve(r, http.MethodGet, "/api/searches/"+jobID.String(), "")
	require.Equal(t, http.StatusOK, w.Code)

	var got map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, testWho, got["who_query"])
	assert.Equal(t, "single", got["mode"])
	assert.Equal(t, StatusRunning, got["status"])

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListRoutesReturnEmptyArrays(t *testing.T) {
	r, mock := newTestRouter(t)
	jobID := uuid.New()

	mock.ExpectQuery("SELECT id, who_query").WillReturnRows(pgxmock.NewRows(jobRowColumns))
	w := serve(r, http.MethodGet, "/api/searches", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())

	mock.ExpectQuery("SELECT id, timestamp, level, message, metadata").WithArgs(jobID).
		WillReturnRows(pgxmock.NewRows([]string{"id", "timestamp", "level", "message", "metadata"}))
	w = serve(r, http.MethodGet, "/api/searches/"+jobID.String()+"/logs", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSimilarLeadsRoute(t *testing.T) {
	r, _ := newTestRouter(t)

	tests := []struct {
		target string
		want   int
	}{
		{"/api/leads/similar", http.StatusBadRequest},
		{"/api/leads/similar?q=nutrition&k=abc", http.StatusBadRequest},
		{"/api/leads/similar?q=nutrition&k=0", http.StatusBadRequest},
		{"/api/leads/similar?q=nutrition", http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			w := serve(r, http.MethodGet, tt.target, "")
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestMCPRouteMounted(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc, _ := newMockService(t, nil)
	r := gin.New()

	var hit bool
	mcpHandler := http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		hit = true
		w.WriteHeader(http.StatusAccepted)
	})
	NewHandler(svc, mcpHandler).RegisterRoutes(r)

	w := serve(r, http.MethodPost, "/mcp", `{}`)
	assert.True(t, hit)
	assert.Equal(t, http.StatusAccepted, w.Code)
}
