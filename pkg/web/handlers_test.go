package web_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Happy-Ferret/ggrc-core/pkg/busy"
	"github.com/Happy-Ferret/ggrc-core/pkg/log"
	"github.com/Happy-Ferret/ggrc-core/pkg/metrics"
	"github.com/Happy-Ferret/ggrc-core/pkg/models"
	"github.com/Happy-Ferret/ggrc-core/pkg/persistence/file"
	"github.com/Happy-Ferret/ggrc-core/pkg/services"
	"github.com/Happy-Ferret/ggrc-core/pkg/web"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	app       *fiber.App
	workflows *services.Workflow
	cycles    *services.Cycle
	guard     *busy.Memory
}

func setupTestApp(t *testing.T) *testEnv {
	t.Helper()

	p := file.NewPersistence(t.TempDir())
	workflows := services.NewWorkflow(p, log.Discard())
	cycles := services.NewCycle(p, nil, log.Discard())
	guard := busy.NewMemory()

	registry := prometheus.NewRegistry()
	m, err := metrics.New(registry)
	require.NoError(t, err)

	handlers := web.NewAPIHandlers(
		workflows,
		cycles,
		validator.New(validator.WithRequiredStructEnabled()),
		guard,
		log.Discard(),
		web.WithMetrics(m),
	)

	return &testEnv{
		app:       web.NewApp(handlers, registry),
		workflows: workflows,
		cycles:    cycles,
		guard:     guard,
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) (*http.Response, []byte) {
	t.Helper()

	var reader io.Reader

	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)

		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := e.app.Test(req)
	require.NoError(t, err)

	defer func() {
		_ = resp.Body.Close()
	}()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp, data
}

func (e *testEnv) createWorkflow(t *testing.T) *models.Workflow {
	t.Helper()

	workflow, err := e.workflows.Create(context.Background(), &models.Workflow{
		Title:         "Quarterly access review",
		TaskTemplates: []models.TaskTemplate{{Title: "Export user list"}},
	})
	require.NoError(t, err)

	return workflow
}

func TestAPIHandlers_CreateWorkflow(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		requestBody    any
		expectedStatus int
	}{
		{
			name: "successful creation",
			requestBody: web.CreateWorkflowRequest{
				Title:     "Quarterly access review",
				Frequency: "0 9 1 */3 *",
				Tasks:     []web.TaskRequest{{Title: "Export user list"}},
			},
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "title too short",
			requestBody:    web.CreateWorkflowRequest{Title: "ab"},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "task without title",
			requestBody:    web.CreateWorkflowRequest{Title: "Review", Tasks: []web.TaskRequest{{}}},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "invalid frequency",
			requestBody:    web.CreateWorkflowRequest{Title: "Review", Frequency: "whenever"},
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			env := setupTestApp(t)

			resp, body := env.do(t, http.MethodPost, "/workflows", tt.requestBody)
			assert.Equal(t, tt.expectedStatus, resp.StatusCode, string(body))

			if tt.expectedStatus != http.StatusCreated {
				assert.Contains(t, string(body), "validation_error")

				return
			}

			var created map[string]any
			require.NoError(t, json.Unmarshal(body, &created))
			assert.NotEmpty(t, created["id"])
			assert.Equal(t, "Quarterly access review", created["title"])
			assert.NotEmpty(t, created["next_cycle_at"])
			assert.Equal(t, []any{}, created["current_cycles"])
		})
	}
}

func TestAPIHandlers_CreateWorkflowInvalidJSON(t *testing.T) {
	env := setupTestApp(t)

	req := httptest.NewRequest(http.MethodPost, "/workflows", strings.NewReader("{"))
	req.Header.Set("Content-Type", "application/json")

	resp, err := env.app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPIHandlers_GetWorkflow(t *testing.T) {
	env := setupTestApp(t)
	workflow := env.createWorkflow(t)

	resp, body := env.do(t, http.MethodGet, "/workflows/"+workflow.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got map[string]any
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, workflow.ID, got["id"])

	resp, body = env.do(t, http.MethodGet, "/workflows/missing", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, string(body), "workflow_not_found")

	resp, body = env.do(t, http.MethodGet, "/workflows", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"total_count":1`)
}

func TestAPIHandlers_StartCycle(t *testing.T) {
	env := setupTestApp(t)
	workflow := env.createWorkflow(t)

	resp, _ := env.do(t, http.MethodPost, "/workflows/"+workflow.ID+"/cycles/start", web.StartCycleRequest{Confirm: false})
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	cycles, err := env.workflows.Cycles(context.Background(), workflow.ID)
	require.NoError(t, err)
	assert.Empty(t, cycles, "a declined start creates nothing")

	resp, body := env.do(t, http.MethodPost, "/workflows/"+workflow.ID+"/cycles/start", web.StartCycleRequest{Confirm: true})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	var created models.Cycle
	require.NoError(t, json.Unmarshal(body, &created))
	assert.Equal(t, workflow.ID, created.Workflow.IDValue())
	assert.True(t, created.Context.IsGlobal())
	assert.Len(t, created.Tasks, 1)

	resp, body = env.do(t, http.MethodGet, "/cycles/"+created.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), created.ID)

	resp, _ = env.do(t, http.MethodGet, "/cycles/missing", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = env.do(t, http.MethodPost, "/workflows/missing/cycles/start", web.StartCycleRequest{Confirm: true})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPIHandlers_EndCycle(t *testing.T) {
	env := setupTestApp(t)
	workflow := env.createWorkflow(t)

	for range 2 {
		resp, _ := env.do(t, http.MethodPost, "/workflows/"+workflow.ID+"/cycles/start", web.StartCycleRequest{Confirm: true})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	resp, body := env.do(t, http.MethodPost, "/workflows/"+workflow.ID+"/cycles/end", web.EndCycleRequest{})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var ended struct {
		Finished []models.Cycle `json:"finished"`
		Workflow struct {
			ID            string         `json:"id"`
			CurrentCycles []models.Cycle `json:"current_cycles"`
		} `json:"workflow"`
	}
	require.NoError(t, json.Unmarshal(body, &ended))

	require.Len(t, ended.Finished, 2)
	for _, cycle := range ended.Finished {
		assert.Equal(t, models.CycleStatusFinished, cycle.Status)
	}

	assert.Equal(t, workflow.ID, ended.Workflow.ID)
	assert.Empty(t, ended.Workflow.CurrentCycles)

	resp, body = env.do(t, http.MethodGet, "/workflows/"+workflow.ID+"/cycles", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"total_count":2`)
}

func TestAPIHandlers_EndCycleBusy(t *testing.T) {
	env := setupTestApp(t)
	workflow := env.createWorkflow(t)

	lease, err := env.guard.TryAcquire(context.Background(), "end-cycle:"+workflow.ID)
	require.NoError(t, err)
	require.NotNil(t, lease)

	resp, body := env.do(t, http.MethodPost, "/workflows/"+workflow.ID+"/cycles/end", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Contains(t, string(body), "busy")

	resp, _ = env.do(t, http.MethodPost, "/workflows/"+workflow.ID+"/cycles/end", web.EndCycleRequest{Trigger: "other-button"})
	assert.Equal(t, http.StatusOK, resp.StatusCode, "a different trigger is not busy")
}

func TestAPIHandlers_HealthAndMetrics(t *testing.T) {
	env := setupTestApp(t)
	workflow := env.createWorkflow(t)

	resp, body := env.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "healthy")

	resp, _ = env.do(t, http.MethodPost, "/workflows/"+workflow.ID+"/cycles/start", web.StartCycleRequest{Confirm: true})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body = env.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `ggrc_cycle_operations_total{operation="start_cycle",outcome="success"} 1`)
}
