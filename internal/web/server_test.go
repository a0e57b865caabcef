package web

import (
	"bufio"
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valter-silva-au/mdboard/internal/core"
	"github.com/valter-silva-au/mdboard/internal/notify"
	"github.com/valter-silva-au/mdboard/internal/observability"
	"github.com/valter-silva-au/mdboard/internal/storage"
	"github.com/valter-silva-au/mdboard/pkg/models"
)

type testServer struct {
	server   *Server
	registry core.ProjectRegistry
	hub      *notify.Hub
	root     string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	projectDir := t.TempDir()
	root := filepath.Join(projectDir, "tasks")
	registry := core.NewProjectRegistry(t.TempDir())
	_, err := registry.EnsureDefault(root)
	require.NoError(t, err)

	store := storage.NewTaskStore(registry, nil, nil, nil)
	require.NoError(t, store.EnsureDirectories())

	hub := notify.NewHub(nil)
	t.Cleanup(hub.Close)

	board := core.NewBoard(core.BoardDeps{
		Store:    store,
		Files:    storage.NewProjectFiles(registry),
		Projects: registry,
		Hub:      hub,
	})
	return &testServer{
		server:   NewServer(Deps{Board: board, Projects: registry, Hub: hub}),
		registry: registry,
		hub:      hub,
		root:     root,
	}
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	ts.server.Handler().ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), "body: %s", w.Body.String())
	return v
}

func (ts *testServer) createTask(t *testing.T, title string, status models.Status) models.Task {
	t.Helper()
	w := ts.do(t, http.MethodPost, "/api/tasks", models.TaskDraft{Title: title, Status: status})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[models.Task](t, w)
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(t, http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(t, http.MethodOptions, "/api/tasks", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCreateAndListTasks(t *testing.T) {
	ts := newTestServer(t)
	first := ts.createTask(t, "Write docs", models.StatusBacklog)
	second := ts.createTask(t, "Write docs", models.StatusBacklog)

	assert.Equal(t, "write-docs.md", first.Filename)
	assert.Equal(t, "write-docs-2.md", second.Filename)
	assert.NotEqual(t, first.ID, second.ID)
	assert.FileExists(t, filepath.Join(ts.root, "backlog", "write-docs.md"))

	w := ts.do(t, http.MethodGet, "/api/tasks", nil)
	require.Equal(t, http.StatusOK, w.Code)
	tasks := decode[[]models.Task](t, w)
	require.Len(t, tasks, 2)
	assert.Equal(t, first.ID, tasks[0].ID)
	assert.Equal(t, second.ID, tasks[1].ID)
}

func TestCreateTaskValidation(t *testing.T) {
	ts := newTestServer(t)

	cases := map[string]models.TaskDraft{
		"empty title":    {Title: "  ", Status: models.StatusBacklog},
		"unknown status": {Title: "x", Status: "someday"},
		"unknown tag":    {Title: "x", Status: models.StatusBacklog, Tags: []models.Tag{"urgent"}},
	}
	for name, draft := range cases {
		t.Run(name, func(t *testing.T) {
			w := ts.do(t, http.MethodPost, "/api/tasks", draft)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
			assert.Contains(t, w.Body.String(), "error")
		})
	}

	req := httptest.NewRequest(http.MethodPost, "/api/tasks", strings.NewReader("{not json"))
	w := httptest.NewRecorder()
	ts.server.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetTaskNotFound(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(t, http.MethodGet, "/api/tasks/backlog/missing.md", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpdateTask(t *testing.T) {
	ts := newTestServer(t)
	task := ts.createTask(t, "Fix bug", models.StatusBacklog)

	w := ts.do(t, http.MethodPut, "/api/tasks/backlog/"+task.Filename, map[string]any{
		"description": "Steps to reproduce",
		"tags":        []string{"bug"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	updated := decode[models.Task](t, w)
	assert.Equal(t, task.ID, updated.ID)
	assert.Equal(t, "Steps to reproduce", updated.Description)
	assert.Equal(t, []models.Tag{models.TagBug}, updated.Tags)
}

func TestUpdateTaskStatusChangeMovesFile(t *testing.T) {
	ts := newTestServer(t)
	task := ts.createTask(t, "Ship it", models.StatusUAT)

	w := ts.do(t, http.MethodPut, "/api/tasks/uat/"+task.Filename, map[string]any{
		"status": "done",
		"notes":  "released",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	updated := decode[models.Task](t, w)
	assert.Equal(t, models.StatusDone, updated.Status)
	assert.Equal(t, "released", updated.Notes)
	assert.NotNil(t, updated.Completed)
	assert.NoFileExists(t, filepath.Join(ts.root, "uat", task.Filename))
	assert.FileExists(t, filepath.Join(ts.root, "done", task.Filename))
}

func TestMoveTaskWithPosition(t *testing.T) {
	ts := newTestServer(t)
	existing := ts.createTask(t, "Already planned", models.StatusPlanning)
	task := ts.createTask(t, "Promote me", models.StatusBacklog)

	w := ts.do(t, http.MethodPost, "/api/tasks/move", map[string]any{
		"fromStatus": "backlog",
		"filename":   task.Filename,
		"toStatus":   "planning",
		"position":   0,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	moved := decode[models.Task](t, w)
	assert.Equal(t, models.StatusPlanning, moved.Status)

	tasks := decode[[]models.Task](t, ts.do(t, http.MethodGet, "/api/tasks", nil))
	require.Len(t, tasks, 2)
	assert.Equal(t, task.ID, tasks[0].ID)
	assert.Equal(t, existing.ID, tasks[1].ID)
}

func TestMoveTaskMissingFilename(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(t, http.MethodPost, "/api/tasks/move", map[string]any{"fromStatus": "backlog", "toStatus": "done"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReorderTasks(t *testing.T) {
	ts := newTestServer(t)
	a := ts.createTask(t, "A", models.StatusBacklog)
	b := ts.createTask(t, "B", models.StatusBacklog)

	w := ts.do(t, http.MethodPost, "/api/tasks/reorder", map[string]any{
		"status":     "backlog",
		"orderedIds": []string{b.ID, a.ID},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	tasks := decode[[]models.Task](t, w)
	require.Len(t, tasks, 2)
	assert.Equal(t, b.ID, tasks[0].ID)
	assert.Equal(t, a.ID, tasks[1].ID)

	w = ts.do(t, http.MethodPost, "/api/tasks/reorder", map[string]any{"status": "backlog"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDeleteTask(t *testing.T) {
	ts := newTestServer(t)
	task := ts.createTask(t, "Remove me", models.StatusIdeation)

	w := ts.do(t, http.MethodDelete, "/api/tasks/ideation/"+task.Filename, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.NoFileExists(t, filepath.Join(ts.root, "ideation", task.Filename))

	w = ts.do(t, http.MethodDelete, "/api/tasks/ideation/"+task.Filename, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestConfigAndNotes(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodGet, "/api/tasks/config", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"boardName":"Task Manager"}`, w.Body.String())

	w = ts.do(t, http.MethodPut, "/api/tasks/config", map[string]any{"theme": "dark"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"boardName":"Task Manager","theme":"dark"}`, w.Body.String())

	w = ts.do(t, http.MethodGet, "/api/tasks/notes", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"content":""}`, w.Body.String())

	w = ts.do(t, http.MethodPut, "/api/tasks/notes", map[string]string{"content": "remember the milk"})
	require.Equal(t, http.StatusOK, w.Code)
	data, err := os.ReadFile(filepath.Join(ts.root, "notes.md"))
	require.NoError(t, err)
	assert.Equal(t, "remember the milk", string(data))
}

func TestProjectsLifecycle(t *testing.T) {
	ts := newTestServer(t)
	_, events := ts.hub.Subscribe()

	w := ts.do(t, http.MethodGet, "/api/projects/current", nil)
	require.Equal(t, http.StatusOK, w.Code)
	current := decode[models.Project](t, w)
	assert.Equal(t, "default-project", current.ID)
	assert.Equal(t, "Task Manager", current.BoardName)

	otherDir := t.TempDir()
	w = ts.do(t, http.MethodPost, "/api/projects", map[string]any{"name": "Side Project", "path": otherDir})
	require.Equal(t, http.StatusBadRequest, w.Code)
	rejected := decode[map[string]any](t, w)
	assert.Equal(t, true, rejected["canCreate"])

	w = ts.do(t, http.MethodPost, "/api/projects", map[string]any{"name": "Side Project", "path": otherDir, "createTasksDir": true})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	added := decode[addProjectResponse](t, w)
	assert.Equal(t, "side-project", added.ID)
	assert.True(t, added.TasksCreated)
	assert.DirExists(t, filepath.Join(otherDir, "tasks", "implementing"))

	w = ts.do(t, http.MethodPut, "/api/projects/side-project", map[string]string{"name": "Renamed"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Renamed", decode[models.Project](t, w).Name)

	w = ts.do(t, http.MethodPost, "/api/projects/side-project/switch", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Renamed", decode[models.Project](t, w).BoardName)

	select {
	case ev := <-events:
		assert.Equal(t, notify.EventProjectSwitched, ev.Event)
		assert.Equal(t, "side-project", ev.ProjectID)
	case <-time.After(time.Second):
		t.Fatal("no project-switched event")
	}

	task := ts.createTask(t, "On the side", models.StatusBacklog)
	assert.FileExists(t, filepath.Join(otherDir, "tasks", "backlog", task.Filename))

	w = ts.do(t, http.MethodDelete, "/api/projects/side-project", nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	current = decode[models.Project](t, ts.do(t, http.MethodGet, "/api/projects/current", nil))
	assert.Equal(t, "default-project", current.ID)

	projects := decode[[]models.Project](t, ts.do(t, http.MethodGet, "/api/projects", nil))
	assert.Len(t, projects, 1)

	w = ts.do(t, http.MethodGet, "/api/projects/side-project", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestValidatePath(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, "/api/projects/validate-path", map[string]string{"path": filepath.Dir(ts.root)})
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode[models.PathValidation](t, w).Valid)

	w = ts.do(t, http.MethodPost, "/api/projects/validate-path", map[string]string{"path": t.TempDir()})
	require.Equal(t, http.StatusOK, w.Code)
	v := decode[models.PathValidation](t, w)
	assert.False(t, v.Valid)
	assert.True(t, v.CanCreate)

	w = ts.do(t, http.MethodPost, "/api/projects/validate-path", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestServerSentEvents(t *testing.T) {
	ts := newTestServer(t)
	srv := httptest.NewServer(ts.server.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/tasks/events")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	readData := func() string {
		for {
			line, err := reader.ReadString('\n')
			require.NoError(t, err)
			if strings.HasPrefix(line, "data: ") {
				return strings.TrimSpace(strings.TrimPrefix(line, "data: "))
			}
		}
	}

	assert.Equal(t, `{"event":"connected"}`, readData())

	require.Eventually(t, func() bool { return ts.hub.Len() == 1 }, time.Second, 10*time.Millisecond)
	ts.hub.Publish(notify.Event{Event: notify.EventChange, Path: "/x/backlog/a.md", Timestamp: 42})
	assert.JSONEq(t, `{"event":"change","path":"/x/backlog/a.md","timestamp":42}`, readData())
}

func TestWebsocketEvents(t *testing.T) {
	ts := newTestServer(t)
	srv := httptest.NewServer(ts.server.Handler())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/tasks/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	var ev notify.Event
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, notify.EventConnected, ev.Event)

	require.Eventually(t, func() bool { return ts.hub.Len() == 1 }, time.Second, 10*time.Millisecond)
	ts.hub.ProjectSwitched("elsewhere")
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, notify.EventProjectSwitched, ev.Event)
	assert.Equal(t, "elsewhere", ev.ProjectID)
}

type stubActivity struct{ since time.Time }

func (s *stubActivity) Calculate(since time.Time) (*observability.Activity, error) {
	s.since = since
	return &observability.Activity{TasksCreated: 3, MovesInto: map[string]int{}}, nil
}

func TestActivityRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	stub := &stubActivity{}
	s := NewServer(Deps{Activity: stub, Hub: notify.NewHub(nil)})

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/activity?since=2h", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"tasksCreated":3`)
	assert.WithinDuration(t, time.Now().Add(-2*time.Hour), stub.since, time.Minute)

	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/activity?since=soon", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
