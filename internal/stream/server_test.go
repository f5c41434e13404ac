package stream

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"habitat/internal/metrics"
	"habitat/internal/model"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type fakeEngine struct {
	mu       sync.Mutex
	frame    model.Frame
	listener func(model.Frame)
	commands []model.Command
}

func (e *fakeEngine) Subscribe(fn func(model.Frame)) (func(), error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listener = fn
	return func() {
		e.mu.Lock()
		e.listener = nil
		e.mu.Unlock()
	}, nil
}

func (e *fakeEngine) Frame() (model.Frame, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.frame, nil
}

func (e *fakeEngine) ListHoles(ctx context.Context) ([]model.HoleInfo, error) {
	return nil, nil
}

func (e *fakeEngine) CommandRun(ctx context.Context, cmd model.Command) (interface{}, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.commands = append(e.commands, cmd)
	if cmd.Scope == "bad" {
		return nil, errors.New("invalid command scope: bad")
	}
	return "ok", nil
}

func (e *fakeEngine) emit(f model.Frame) {
	e.mu.Lock()
	fn := e.listener
	e.mu.Unlock()
	if fn != nil {
		fn(f)
	}
}

func (e *fakeEngine) received() []model.Command {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]model.Command(nil), e.commands...)
}

func newTestServer(t *testing.T) (*Server, *fakeEngine) {
	t.Helper()
	e := &fakeEngine{frame: model.Frame{Sequence: 1, Hole: "start", Nodes: []model.Node{{ID: 0, Label: "Start", ParentID: model.NoParent}}}}
	return New(model.StreamConfig{Path: "/ws"}, e, nil, metrics.New()), e
}

func do(s *Server, method, url, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, url, strings.NewReader(body))
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestFrameEndpoint(t *testing.T) {
	s, _ := newTestServer(t)
	w := do(s, http.MethodGet, "/api/frame", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"hole":"start"`)
	assert.Contains(t, w.Body.String(), `"label":"Start"`)
}

func TestHolesEndpoint(t *testing.T) {
	s, _ := newTestServer(t)
	w := do(s, http.MethodGet, "/api/holes", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "[]", w.Body.String())
}

func TestCommandEndpoint(t *testing.T) {
	s, e := newTestServer(t)

	w := do(s, http.MethodPost, "/api/command", `{"scope":"view","operation":"pan","args":["1","2"]}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"result":"ok"`)
	assert.Equal(t, []model.Command{{Scope: "view", Operation: "pan", Args: []string{"1", "2"}}}, e.received())

	w = do(s, http.MethodPost, "/api/command", `{not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(s, http.MethodPost, "/api/command", `{"scope":"bad","operation":"x"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "invalid command scope")
}

func TestMetricsEndpoint(t *testing.T) {
	s, _ := newTestServer(t)
	w := do(s, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "habitat_stream_clients")
}

func readMessage(t *testing.T, conn *websocket.Conn, typ string) Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		var m Message
		require.NoError(t, conn.ReadJSON(&m))
		if m.Type == typ {
			return m
		}
	}
}

func TestSocketStreamsFramesAndRunsCommands(t *testing.T) {
	s, e := newTestServer(t)
	detach, err := s.Attach()
	require.NoError(t, err)
	defer detach()

	ts := httptest.NewServer(s.Handler())
	defer ts.Close()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	first := readMessage(t, conn, "frame")
	require.NotNil(t, first.Frame)
	assert.Equal(t, uint64(1), first.Frame.Sequence)

	require.NoError(t, conn.WriteJSON(model.Command{Scope: "input", Operation: "wheel", Args: []string{"10", "10", "-1"}}))
	reply := readMessage(t, conn, "result")
	assert.Equal(t, "input wheel", reply.Op)
	assert.Equal(t, "ok", reply.Result)

	require.NoError(t, conn.WriteJSON(model.Command{Scope: "bad", Operation: "x"}))
	failed := readMessage(t, conn, "error")
	assert.Contains(t, failed.Error, "invalid command scope")

	assert.Equal(t, 1, s.Hub().Len())
	e.emit(model.Frame{Sequence: 7, Hole: "start"})
	next := readMessage(t, conn, "frame")
	assert.Equal(t, uint64(7), next.Frame.Sequence)

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	assert.Eventually(t, func() bool { return s.Hub().Len() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestBroadcastDropsForSlowClients(t *testing.T) {
	h := NewHub(nil, nil)
	c := &client{send: make(chan []byte, 1)}
	h.clients[c] = struct{}{}
	h.Broadcast(model.Frame{Sequence: 1})
	h.Broadcast(model.Frame{Sequence: 2})
	assert.Len(t, c.send, 1)
}
