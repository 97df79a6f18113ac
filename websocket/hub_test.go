package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"factorylens/models"
)

type received struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func startHub(t *testing.T, origins ...string) (*Hub, string) {
	t.Helper()
	hub := NewHub(nil, origins)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string, header http.Header) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) received {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg received
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

// roundTrip waits until every earlier client message has been handled
func roundTrip(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(map[string]string{"type": "ping"}))
	assert.Equal(t, models.MessagePong, readMessage(t, conn).Type)
}

func TestHubWelcomesClient(t *testing.T) {
	hub, url := startHub(t)
	conn := dial(t, url, nil)

	msg := readMessage(t, conn)
	assert.Equal(t, models.MessageConnection, msg.Type)

	var data map[string]string
	require.NoError(t, json.Unmarshal(msg.Data, &data))
	assert.Equal(t, "connected", data["status"])
	assert.Len(t, data["client_id"], 36)

	assert.Eventually(t, func() bool { return hub.GetClientCount() == 1 }, time.Second, 10*time.Millisecond)
}

func TestHubBroadcastsToUnsubscribedClient(t *testing.T) {
	hub, url := startHub(t)
	conn := dial(t, url, nil)
	readMessage(t, conn)

	hub.BroadcastStats(map[string]int{"clients": 1})
	hub.BroadcastAlert(models.Alert{ID: "a1"})

	assert.Equal(t, models.MessageStats, readMessage(t, conn).Type)
	alert := readMessage(t, conn)
	assert.Equal(t, models.MessageAlert, alert.Type)
	assert.Contains(t, string(alert.Data), `"id":"a1"`)
}

func TestHubHonorsSubscriptions(t *testing.T) {
	hub, url := startHub(t)
	conn := dial(t, url, nil)
	readMessage(t, conn)

	require.NoError(t, conn.WriteJSON(map[string]interface{}{
		"type": "subscribe",
		"data": map[string][]string{"topics": {TopicAlert}},
	}))
	roundTrip(t, conn)

	hub.BroadcastStats(map[string]int{"clients": 1})
	hub.BroadcastSnapshot(map[string]string{"factory_id": "fanarlool"})
	hub.BroadcastAlert(models.Alert{ID: "a2"})

	assert.Equal(t, models.MessageAlert, readMessage(t, conn).Type)

	require.NoError(t, conn.WriteJSON(map[string]interface{}{
		"type": "unsubscribe",
		"data": map[string][]string{"topics": {TopicAlert}},
	}))
	roundTrip(t, conn)

	hub.BroadcastStats(map[string]int{"clients": 1})
	assert.Equal(t, models.MessageStats, readMessage(t, conn).Type)
}

func TestHubRejectsUnknownOrigin(t *testing.T) {
	_, url := startHub(t, "http://localhost:3000")

	header := http.Header{"Origin": []string{"http://evil.example.com"}}
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	conn := dial(t, url, http.Header{"Origin": []string{"http://localhost:3000"}})
	assert.Equal(t, models.MessageConnection, readMessage(t, conn).Type)
}

func TestHubUnregistersOnClose(t *testing.T) {
	hub, url := startHub(t)
	conn := dial(t, url, nil)
	readMessage(t, conn)
	require.Eventually(t, func() bool { return hub.GetClientCount() == 1 }, time.Second, 10*time.Millisecond)

	conn.Close()

	assert.Eventually(t, func() bool { return hub.GetClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}
