package handlers_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/monocle-dev/taskboard/internal/models"
	"github.com/monocle-dev/taskboard/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (s *server) dial(t *testing.T, ts *httptest.Server, user models.User) *websocket.Conn {
	t.Helper()

	token, err := s.tokens.GenerateJWT(user.ID, user.Username)
	require.NoError(t, err)

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	var welcome types.SocketMessage
	require.NoError(t, conn.ReadJSON(&welcome))
	require.Equal(t, types.MessageConnected, welcome.Type)

	return conn
}

func TestWebSocketRejectsAnonymous(t *testing.T) {
	s := newServer(t)
	ts := httptest.NewServer(s.engine)
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestBroadcastRefreshIsScoped(t *testing.T) {
	s := newServer(t)
	ts := httptest.NewServer(s.engine)
	defer ts.Close()

	alice := s.dial(t, ts, s.users.Alice)
	manager := s.dial(t, ts, s.users.Manager)
	carol := s.dial(t, ts, s.users.Carol)

	require.Eventually(t, func() bool { return len(s.hub.Sessions()) == 3 }, time.Second, 10*time.Millisecond)

	task := s.createTask(t, s.users.Manager, s.users.Alice, "live")
	s.hub.BroadcastRefresh("Created", *task)

	for _, conn := range []*websocket.Conn{alice, manager} {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

		var msg types.SocketMessage
		require.NoError(t, conn.ReadJSON(&msg))
		assert.Equal(t, types.MessageRefresh, msg.Type)
		assert.Equal(t, task.ID, msg.TaskID)
		assert.Equal(t, "Created", msg.Action)
	}

	require.NoError(t, carol.SetReadDeadline(time.Now().Add(200*time.Millisecond)))

	var msg types.SocketMessage
	assert.Error(t, carol.ReadJSON(&msg), "carol cannot see the task")
}

func TestSessionsDropClosedConnections(t *testing.T) {
	s := newServer(t)
	ts := httptest.NewServer(s.engine)
	defer ts.Close()

	conn := s.dial(t, ts, s.users.Bob)
	require.Len(t, s.hub.Sessions(), 1)

	conn.Close()

	assert.Eventually(t, func() bool { return len(s.hub.Sessions()) == 0 }, 2*time.Second, 10*time.Millisecond)
}
