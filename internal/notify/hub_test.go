package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
}

// dialHub connects a websocket test client for the given user.
func dialHub(t *testing.T, server *httptest.Server, userID string) *websocket.Conn {
	t.Helper()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws?user_id=" + userID
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err, "websocket dial should succeed")
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	return conn
}

// waitForClient blocks until the hub has registered a connection for the
// user. Registration happens in the server handler goroutine, so a freshly
// dialed client may not be subscribed the instant Dial returns.
func waitForClient(t *testing.T, hub *Hub, userID string) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		hub.mu.Lock()
		registered := len(hub.clients[userID]) > 0
		hub.mu.Unlock()
		if registered {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("client for user %s never registered", userID)
}

func TestHubNotifyDeliversToUser(t *testing.T) {
	hub := NewHub(testLogger())
	defer hub.Close()

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", hub.ServeWS)
	server := httptest.NewServer(mux)
	defer server.Close()

	conn := dialHub(t, server, "u1")
	defer conn.Close()

	waitForClient(t, hub, "u1")

	hub.Notify(context.Background(), "u1", StageUpload, StatusSuccess, map[string]any{
		"image_key": "k1",
	})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg Message
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, "u1", msg.UserID)
	assert.Equal(t, StageUpload, msg.Stage)
	assert.Equal(t, StatusSuccess, msg.Status)
	assert.Equal(t, "k1", msg.Payload["image_key"])
	assert.False(t, msg.Timestamp.IsZero())
}

func TestHubNotifyIsScopedByUser(t *testing.T) {
	hub := NewHub(testLogger())
	defer hub.Close()

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", hub.ServeWS)
	server := httptest.NewServer(mux)
	defer server.Close()

	other := dialHub(t, server, "u2")
	defer other.Close()

	waitForClient(t, hub, "u2")

	// A notification for u1 must not reach u2's connection.
	hub.Notify(context.Background(), "u1", StageComplete, StatusSuccess, nil)

	require.NoError(t, other.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	_, _, err := other.ReadMessage()
	assert.Error(t, err, "no message should arrive for another user")
}

func TestHubNotifyWithoutClientsIsNoop(t *testing.T) {
	hub := NewHub(testLogger())
	defer hub.Close()

	// Must not panic or block when nobody is listening.
	hub.Notify(context.Background(), "ghost", StageError, StatusError, map[string]any{
		"message": "boom",
	})
}

func TestHubServeWSRequiresUserID(t *testing.T) {
	hub := NewHub(testLogger())
	defer hub.Close()

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodGet, "/ws", nil)
	hub.ServeWS(recorder, request)

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}
