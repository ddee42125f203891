package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"taskboard/pkg/realtime"
	"taskboard/pkg/task"
)

func newTestServer(t *testing.T) (*httptest.Server, *realtime.Coordinator) {
	t.Helper()
	cfg := realtime.DefaultConfig()
	cfg.PingInterval = 0
	return newTestServerWithClient(t, cfg)
}

func newTestServerWithClient(t *testing.T, cfg realtime.Config) (*httptest.Server, *realtime.Coordinator) {
	t.Helper()
	reg := realtime.NewRegistry()
	coord := realtime.NewCoordinator(task.NewService(task.NewMemStore()), reg)
	srv := httptest.NewServer(New(coord, Options{
		AllowedOrigins: []string{"http://localhost:5173"},
		Client:         cfg,
	}))
	t.Cleanup(func() {
		reg.Close()
		srv.Close()
	})
	return srv, coord
}

func doJSON(t *testing.T, method, url string, body any) (*http.Response, []byte) {
	t.Helper()
	var rd io.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			rd = strings.NewReader(b)
		default:
			data, err := json.Marshal(b)
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}
			rd = bytes.NewReader(data)
		}
	}
	req, err := http.NewRequest(method, url, rd)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, data
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) realtime.Message {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	m, err := realtime.Decode(data)
	if err != nil {
		t.Fatalf("decode %s: %v", data, err)
	}
	return m
}

func waitClients(t *testing.T, coord *realtime.Coordinator, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for coord.Registry().Len() != n {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d clients, have %d", n, coord.Registry().Len())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestTaskLifecycleIsBroadcast(t *testing.T) {
	srv, coord := newTestServer(t)
	a := dial(t, srv)
	b := dial(t, srv)
	for _, c := range []*websocket.Conn{a, b} {
		if m := readMessage(t, c); m.Type != realtime.TypeSnapshot || len(m.Tasks) != 0 {
			t.Fatalf("expected empty snapshot, got %+v", m)
		}
	}
	waitClients(t, coord, 2)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/tasks", map[string]string{"title": "A", "description": "B"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create: status %d: %s", resp.StatusCode, body)
	}
	var created task.Task
	if err := json.Unmarshal(body, &created); err != nil {
		t.Fatalf("decode task: %v", err)
	}
	if created.ID == "" || created.Status != task.StatusTodo {
		t.Fatalf("unexpected task %+v", created)
	}
	for _, c := range []*websocket.Conn{a, b} {
		m := readMessage(t, c)
		if m.Type != realtime.TypeTaskCreated || m.Task.ID != created.ID {
			t.Fatalf("expected task_created %s, got %+v", created.ID, m)
		}
	}

	resp, body = doJSON(t, http.MethodPut, srv.URL+"/tasks/"+created.ID, map[string]string{"status": "done"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update: status %d: %s", resp.StatusCode, body)
	}
	for _, c := range []*websocket.Conn{a, b} {
		m := readMessage(t, c)
		if m.Type != realtime.TypeTaskUpdated || m.Task.Status != task.StatusDone {
			t.Fatalf("expected task_updated done, got %+v", m)
		}
		if !m.Task.UpdatedAt.After(created.UpdatedAt) {
			t.Fatalf("updated_at did not advance")
		}
		if m.Task.Title != "A" || m.Task.Description != "B" {
			t.Fatalf("untouched fields changed: %+v", m.Task)
		}
	}

	resp, body = doJSON(t, http.MethodDelete, srv.URL+"/tasks/"+created.ID, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete: status %d: %s", resp.StatusCode, body)
	}
	for _, c := range []*websocket.Conn{a, b} {
		m := readMessage(t, c)
		if m.Type != realtime.TypeTaskDeleted || m.TaskID != created.ID {
			t.Fatalf("expected task_deleted %s, got %+v", created.ID, m)
		}
	}

	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/tasks/"+created.ID, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("get after delete: status %d", resp.StatusCode)
	}
	resp, _ = doJSON(t, http.MethodDelete, srv.URL+"/tasks/"+created.ID, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("second delete: status %d", resp.StatusCode)
	}
}

func TestTaskErrors(t *testing.T) {
	srv, _ := newTestServer(t)

	cases := []struct {
		name   string
		method string
		path   string
		body   any
		status int
	}{
		{"malformed json", http.MethodPost, "/tasks", `{"title":`, 400},
		{"empty title", http.MethodPost, "/tasks", map[string]string{"title": "", "description": "d"}, 422},
		{"missing description", http.MethodPost, "/tasks", map[string]string{"title": "t"}, 422},
		{"get missing", http.MethodGet, "/tasks/nope", nil, 404},
		{"update missing", http.MethodPatch, "/tasks/nope", map[string]string{"title": "x"}, 404},
		{"delete missing", http.MethodDelete, "/tasks/nope", nil, 404},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, body := doJSON(t, tc.method, srv.URL+tc.path, tc.body)
			if resp.StatusCode != tc.status {
				t.Fatalf("expected %d, got %d: %s", tc.status, resp.StatusCode, body)
			}
		})
	}

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/tasks", map[string]string{"title": "t", "description": "d"})
	if resp.StatusCode != 201 {
		t.Fatalf("create: %d %s", resp.StatusCode, body)
	}
	var created task.Task
	_ = json.Unmarshal(body, &created)
	resp, body = doJSON(t, http.MethodPatch, srv.URL+"/tasks/"+created.ID, map[string]string{"status": "archived"})
	if resp.StatusCode != 422 {
		t.Fatalf("bad status: expected 422, got %d: %s", resp.StatusCode, body)
	}
	resp, body = doJSON(t, http.MethodPut, srv.URL+"/tasks/"+created.ID, map[string]string{"title": ""})
	if resp.StatusCode != 422 {
		t.Fatalf("empty title: expected 422, got %d: %s", resp.StatusCode, body)
	}
}

func TestListTasks(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/tasks", nil)
	if resp.StatusCode != 200 || strings.TrimSpace(string(body)) != "[]" {
		t.Fatalf("expected empty array, got %d %s", resp.StatusCode, body)
	}
	for _, title := range []string{"a", "b", "c"} {
		doJSON(t, http.MethodPost, srv.URL+"/tasks", map[string]string{"title": title, "description": "d"})
	}
	_, body = doJSON(t, http.MethodGet, srv.URL+"/tasks", nil)
	var tasks []task.Task
	if err := json.Unmarshal(body, &tasks); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(tasks) != 3 {
		t.Fatalf("expected 3 tasks, got %d", len(tasks))
	}
}

func TestWebSocketPingPongAndSnapshot(t *testing.T) {
	srv, _ := newTestServer(t)
	doJSON(t, http.MethodPost, srv.URL+"/tasks", map[string]string{"title": "A", "description": "B"})

	conn := dial(t, srv)
	m := readMessage(t, conn)
	if m.Type != realtime.TypeSnapshot || len(m.Tasks) != 1 || m.Tasks[0].Title != "A" {
		t.Fatalf("unexpected snapshot %+v", m)
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping"}`)); err != nil {
		t.Fatalf("write ping: %v", err)
	}
	if m := readMessage(t, conn); m.Type != realtime.TypePong {
		t.Fatalf("expected pong, got %+v", m)
	}
}

func TestDisconnectedClientDoesNotBlockOthers(t *testing.T) {
	srv, coord := newTestServer(t)
	gone := dial(t, srv)
	stays := dial(t, srv)
	readMessage(t, gone)
	readMessage(t, stays)
	waitClients(t, coord, 2)

	_ = gone.Close()
	waitClients(t, coord, 1)

	doJSON(t, http.MethodPost, srv.URL+"/tasks", map[string]string{"title": "A", "description": "B"})
	if m := readMessage(t, stays); m.Type != realtime.TypeTaskCreated {
		t.Fatalf("expected task_created, got %+v", m)
	}
}

func TestResyncEndpoint(t *testing.T) {
	srv, coord := newTestServer(t)
	conn := dial(t, srv)
	readMessage(t, conn)
	waitClients(t, coord, 1)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/sync", nil)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("resync: %d %s", resp.StatusCode, body)
	}
	if m := readMessage(t, conn); m.Type != realtime.TypeTasksUpdate {
		t.Fatalf("expected tasks_update, got %+v", m)
	}
}

func TestWebSocketRejectsForeignOrigin(t *testing.T) {
	srv, _ := newTestServer(t)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"

	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": []string{"http://evil.example"}})
	if err == nil {
		t.Fatalf("expected handshake to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %+v", resp)
	}

	conn, _, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": []string{"http://localhost:5173"}})
	if err != nil {
		t.Fatalf("allowed origin rejected: %v", err)
	}
	_ = conn.Close()
}

func TestCORSPreflight(t *testing.T) {
	srv, _ := newTestServer(t)
	req, _ := http.NewRequest(http.MethodOptions, srv.URL+"/tasks", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("preflight: %v", err)
	}
	resp.Body.Close()
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Fatalf("unexpected allow-origin %q", got)
	}
}

func TestInfoHealthMetrics(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/", nil)
	if resp.StatusCode != 200 || !strings.Contains(string(body), `"websocket":"/ws"`) {
		t.Fatalf("info: %d %s", resp.StatusCode, body)
	}
	var info map[string]string
	if err := json.Unmarshal(body, &info); err != nil || info["docs"] == "" {
		t.Fatalf("info docs link: %v %s", err, body)
	}
	resp, body = doJSON(t, http.MethodGet, srv.URL+info["docs"], nil)
	var doc struct {
		OpenAPI string                    `json:"openapi"`
		Paths   map[string]map[string]any `json:"paths"`
	}
	if err := json.Unmarshal(body, &doc); err != nil || resp.StatusCode != 200 {
		t.Fatalf("openapi: %d %v", resp.StatusCode, err)
	}
	if doc.OpenAPI == "" || doc.Paths["/tasks/{id}"]["patch"] == nil || doc.Paths["/ws"]["get"] == nil {
		t.Fatalf("openapi document missing routes: %+v", doc.Paths)
	}
	resp, body = doJSON(t, http.MethodGet, srv.URL+"/health", nil)
	if resp.StatusCode != 200 || !strings.Contains(string(body), `"status":"ok"`) {
		t.Fatalf("health: %d %s", resp.StatusCode, body)
	}
	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/nope", nil)
	if resp.StatusCode != 404 {
		t.Fatalf("unknown path: %d", resp.StatusCode)
	}

	doJSON(t, http.MethodPost, srv.URL+"/tasks", map[string]string{"title": "A", "description": "B"})
	resp, body = doJSON(t, http.MethodGet, srv.URL+"/metrics", nil)
	if resp.StatusCode != 200 || !strings.Contains(string(body), "taskboard_task_mutations_total") {
		t.Fatalf("metrics: %d", resp.StatusCode)
	}
}
