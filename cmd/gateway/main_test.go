package main

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"colprobe/internal/app"
	"colprobe/internal/database"
	"colprobe/internal/embeddings"
	"colprobe/internal/jobs"
	"colprobe/internal/queue"
)

type testMocks struct {
	embedder *embeddings.MockEmbedder
	queue    *queue.MockQueue
	jobs     *jobs.MockStore
}

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(context.Background(), "sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`CREATE TABLE orders (id INTEGER PRIMARY KEY, placed_at TEXT)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO orders(placed_at) VALUES ('2024-01-01'), ('2024-01-15')`)
	require.NoError(t, err)
	return db
}

func newTestDeps(t *testing.T) (app.Deps, testMocks) {
	m := testMocks{
		embedder: new(embeddings.MockEmbedder),
		queue:    new(queue.MockQueue),
		jobs:     new(jobs.MockStore),
	}
	return app.Deps{
		DB:       newTestDB(t),
		Embedder: m.embedder,
		Queue:    m.queue,
		Jobs:     m.jobs,
		Log:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}, m
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestSampleHandler(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantCount  int
	}{
		{"samples column", `{"table": "orders", "column": "placed_at"}`, http.StatusOK, 2},
		{"invalid JSON payload returns 400", `{invalid json}`, http.StatusBadRequest, 0},
		{"missing column fails validation", `{"table": "orders"}`, http.StatusBadRequest, 0},
		{"injection attempt fails validation", `{"table": "orders; DROP TABLE orders", "column": "id"}`, http.StatusBadRequest, 0},
		{"unknown table returns 500", `{"table": "customers", "column": "id"}`, http.StatusInternalServerError, 0},
		{"unknown column returns 500", `{"table": "orders", "column": "shipped_at"}`, http.StatusInternalServerError, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps, _ := newTestDeps(t)
			w := do(t, newRouter(deps, deps.Embedder), http.MethodPost, "/api/samples", tt.body)

			require.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			if tt.wantStatus != http.StatusOK {
				return
			}
			var resp struct {
				Count  int   `json:"count"`
				Values []any `json:"values"`
			}
			require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
			assert.Equal(t, tt.wantCount, resp.Count)
			assert.ElementsMatch(t, []any{"2024-01-01", "2024-01-15"}, resp.Values)
		})
	}
}

func TestSampleHandlerEmptyTable(t *testing.T) {
	deps, _ := newTestDeps(t)
	_, err := deps.DB.Exec(`CREATE TABLE empty_table (v TEXT)`)
	require.NoError(t, err)

	w := do(t, newRouter(deps, deps.Embedder), http.MethodPost, "/api/samples", `{"table": "empty_table", "column": "v"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"table": "empty_table", "column": "v", "count": 0, "values": []}`, w.Body.String())
}

func TestEmbedHandlers(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		setup      func(*embeddings.MockEmbedder)
		wantStatus int
	}{
		{
			name:   "embeds text",
			method: http.MethodPost,
			path:   "/api/embeddings",
			body:   `{"text": "customer email addresses"}`,
			setup: func(e *embeddings.MockEmbedder) {
				e.On("Embed", mock.Anything, "customer email addresses").Return(embeddings.Vector{0.5, 0.5}, nil).Once()
				e.On("Model").Return(embeddings.DemoModel)
			},
			wantStatus: http.StatusOK,
		},
		{
			name:       "empty text fails validation",
			method:     http.MethodPost,
			path:       "/api/embeddings",
			body:       `{"text": ""}`,
			setup:      func(e *embeddings.MockEmbedder) {},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:   "embedder failure returns 500",
			method: http.MethodPost,
			path:   "/api/embeddings",
			body:   `{"text": "x"}`,
			setup: func(e *embeddings.MockEmbedder) {
				e.On("Embed", mock.Anything, "x").Return(nil, errors.New("model unavailable")).Once()
			},
			wantStatus: http.StatusInternalServerError,
		},
		{
			name:   "demo embeds fixed text",
			method: http.MethodGet,
			path:   "/api/embeddings/demo",
			setup: func(e *embeddings.MockEmbedder) {
				e.On("Embed", mock.Anything, embeddings.DemoText).Return(embeddings.Vector{0.5, 0.5}, nil).Once()
				e.On("Model").Return(embeddings.DemoModel)
			},
			wantStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps, m := newTestDeps(t)
			tt.setup(m.embedder)

			w := do(t, newRouter(deps, deps.Embedder), tt.method, tt.path, tt.body)
			require.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			if tt.wantStatus == http.StatusOK {
				assert.JSONEq(t, `{"model": "bge-base-zh-v1.5", "dimensions": 2, "vector": [0.5, 0.5]}`, w.Body.String())
			}
			m.embedder.AssertExpectations(t)
		})
	}
}

func TestCreateJobHandler(t *testing.T) {
	jobID := uuid.New()

	tests := []struct {
		name       string
		body       string
		setup      func(testMocks)
		wantStatus int
	}{
		{
			name: "sample job enqueued",
			body: `{"kind": "sample", "table": "orders", "column": "placed_at"}`,
			setup: func(m testMocks) {
				m.jobs.On("Create", mock.Anything, jobs.Job{Kind: jobs.KindSample, Table: "orders", Column: "placed_at"}).
					Return(jobs.Job{ID: jobID, Kind: jobs.KindSample, Status: jobs.StatusPending}, nil).Once()
				m.queue.On("Enqueue", mock.Anything, queue.MatchTask(queue.TaskTypeSample,
					sampleTaskPayload{JobID: jobID, Table: "orders", Column: "placed_at"})).Return(nil).Once()
			},
			wantStatus: http.StatusAccepted,
		},
		{
			name: "embed job enqueued",
			body: `{"kind": "embed", "text": "order dates"}`,
			setup: func(m testMocks) {
				m.jobs.On("Create", mock.Anything, jobs.Job{Kind: jobs.KindEmbed}).
					Return(jobs.Job{ID: jobID, Kind: jobs.KindEmbed, Status: jobs.StatusPending}, nil).Once()
				m.queue.On("Enqueue", mock.Anything, queue.MatchTask(queue.TaskTypeEmbed,
					embedTaskPayload{JobID: jobID, Text: "order dates"})).Return(nil).Once()
			},
			wantStatus: http.StatusAccepted,
		},
		{
			name:       "unknown kind fails validation",
			body:       `{"kind": "profile", "table": "orders", "column": "id"}`,
			setup:      func(testMocks) {},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "sample job without table fails validation",
			body:       `{"kind": "sample", "column": "id"}`,
			setup:      func(testMocks) {},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "embed job without text fails validation",
			body:       `{"kind": "embed"}`,
			setup:      func(testMocks) {},
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "job store failure returns 500",
			body: `{"kind": "embed", "text": "x"}`,
			setup: func(m testMocks) {
				m.jobs.On("Create", mock.Anything, mock.Anything).Return(jobs.Job{}, errors.New("redis down")).Once()
			},
			wantStatus: http.StatusInternalServerError,
		},
		{
			name: "enqueue failure marks job failed",
			body: `{"kind": "embed", "text": "x"}`,
			setup: func(m testMocks) {
				m.jobs.On("Create", mock.Anything, mock.Anything).
					Return(jobs.Job{ID: jobID, Kind: jobs.KindEmbed, Status: jobs.StatusPending}, nil).Once()
				m.queue.On("Enqueue", mock.Anything, mock.Anything).Return(errors.New("nats down"))
				m.jobs.On("Fail", mock.Anything, jobID, mock.Anything).Return(nil).Once()
			},
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps, m := newTestDeps(t)
			tt.setup(m)

			w := do(t, newRouter(deps, deps.Embedder), http.MethodPost, "/api/jobs", tt.body)
			require.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			if tt.wantStatus == http.StatusAccepted {
				assert.JSONEq(t, `{"job_id": "`+jobID.String()+`", "status": "pending"}`, w.Body.String())
			}
			m.jobs.AssertExpectations(t)
			m.queue.AssertExpectations(t)
		})
	}
}

func TestGetJobHandler(t *testing.T) {
	jobID := uuid.New()

	tests := []struct {
		name       string
		path       string
		setup      func(*jobs.MockStore)
		wantStatus int
	}{
		{
			name: "returns job",
			path: "/api/jobs/" + jobID.String(),
			setup: func(s *jobs.MockStore) {
				s.On("Get", mock.Anything, jobID).
					Return(jobs.Job{ID: jobID, Kind: jobs.KindSample, Status: jobs.StatusDone, Values: []any{"a"}}, nil).Once()
			},
			wantStatus: http.StatusOK,
		},
		{
			name:       "invalid id",
			path:       "/api/jobs/not-a-uuid",
			setup:      func(*jobs.MockStore) {},
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "missing job",
			path: "/api/jobs/" + jobID.String(),
			setup: func(s *jobs.MockStore) {
				s.On("Get", mock.Anything, jobID).Return(jobs.Job{}, jobs.ErrNotFound).Once()
			},
			wantStatus: http.StatusNotFound,
		},
		{
			name: "store error",
			path: "/api/jobs/" + jobID.String(),
			setup: func(s *jobs.MockStore) {
				s.On("Get", mock.Anything, jobID).Return(jobs.Job{}, errors.New("redis down")).Once()
			},
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps, m := newTestDeps(t)
			tt.setup(m.jobs)

			w := do(t, newRouter(deps, deps.Embedder), http.MethodGet, tt.path, "")
			require.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			if tt.wantStatus == http.StatusOK {
				var job jobs.Job
				require.NoError(t, json.NewDecoder(w.Body).Decode(&job))
				assert.Equal(t, jobs.StatusDone, job.Status)
				assert.Equal(t, []any{"a"}, job.Values)
			}
			m.jobs.AssertExpectations(t)
		})
	}
}

func TestDemoRouteUsesDemoModel(t *testing.T) {
	var seen struct {
		Model string `json:"model"`
		Input string `json:"input"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/embeddings" {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&seen); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"object": "list",
			"model": "` + seen.Model + `",
			"data": [{"object": "embedding", "index": 0, "embedding": [0.5, 0.25]}],
			"usage": {"prompt_tokens": 12, "total_tokens": 12}
		}`))
	}))
	t.Cleanup(srv.Close)

	deps, _ := newTestDeps(t)
	deps.Config.EmbeddingProvider = "openai"
	deps.Config.EmbeddingBaseURL = srv.URL + "/v1/"
	deps.Config.EmbeddingModel = "text-embedding-3-small"
	deps.Config.EmbeddingTimeout = 5

	demo, err := newDemoEmbedder(deps)
	require.NoError(t, err)

	w := do(t, newRouter(deps, demo), http.MethodGet, "/api/embeddings/demo", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"model": "bge-base-zh-v1.5", "dimensions": 2, "vector": [0.5, 0.25]}`, w.Body.String())
	assert.Equal(t, embeddings.DemoModel, seen.Model)
	assert.Equal(t, embeddings.DemoText, seen.Input)
}
