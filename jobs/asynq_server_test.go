package jobs_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/sdsinventory/backend/jobs"
)

type recordingEnqueuer struct {
	tasks []*asynq.Task
	err   error
}

func (r *recordingEnqueuer) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	if r.err != nil {
		return nil, r.err
	}
	r.tasks = append(r.tasks, task)
	return &asynq.TaskInfo{ID: "task-1", Type: task.Type(), Queue: jobs.QueueDefault}, nil
}

type stubInspector struct {
	info *asynq.QueueInfo
	err  error
}

func (s stubInspector) GetQueueInfo(queue string) (*asynq.QueueInfo, error) {
	return s.info, s.err
}

func newJobsRouter(h *jobs.Handler) http.Handler {
	r := chi.NewRouter()
	h.MountRoutes(r)
	return r
}

func TestHandlerEnqueuesLedgerReplay(t *testing.T) {
	enq := &recordingEnqueuer{}
	router := newJobsRouter(jobs.NewHandler(enq, nil, nil))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/jobs/ledger-replay", nil))

	require.Equal(t, http.StatusAccepted, rr.Code)
	require.Len(t, enq.tasks, 1)
	require.Equal(t, jobs.TaskLedgerReplay, enq.tasks[0].Type())

	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Equal(t, "task-1", body["id"])
	require.Equal(t, jobs.TaskLedgerReplay, body["type"])
}

func TestHandlerEnqueueFailure(t *testing.T) {
	router := newJobsRouter(jobs.NewHandler(&recordingEnqueuer{err: errors.New("redis down")}, nil, nil))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/jobs/low-stock-scan", nil))
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)

	router = newJobsRouter(jobs.NewHandler(nil, nil, nil))
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/jobs/low-stock-scan", nil))
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestHandlerQueueHealth(t *testing.T) {
	router := newJobsRouter(jobs.NewHandler(nil, stubInspector{info: &asynq.QueueInfo{Queue: "default", Pending: 3, Active: 1}}, nil))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{"queue":"default","pending":3,"active":1,"failed":0}`, rr.Body.String())

	router = newJobsRouter(jobs.NewHandler(nil, stubInspector{err: errors.New("no such queue")}, nil))
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
}
