package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"edupulse/internal/services"
)

func dialTestHub(t *testing.T, hub *Hub) *websocket.Conn {
	t.Helper()

	handler := NewHandler(hub, nil, slog.Default())
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn) Envelope {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)

	var env Envelope
	require.NoError(t, json.Unmarshal(payload, &env))
	return env
}

func TestClientReceivesConnectionMessage(t *testing.T) {
	hub := NewHub(slog.Default())
	hub.Start()
	defer hub.Stop()

	conn := dialTestHub(t, hub)

	env := readEnvelope(t, conn)
	assert.Equal(t, TypeConnection, env.Type)
	assert.NotEmpty(t, env.Timestamp)
}

func TestNotifyDataReloadBroadcasts(t *testing.T) {
	hub := NewHub(slog.Default())
	hub.Start()
	defer hub.Stop()

	conn := dialTestHub(t, hub)
	_ = readEnvelope(t, conn) // connection message

	hub.NotifyDataReload(context.Background(), services.DataStatus{
		EventCount: 42,
		VideoCount: 3,
	})

	env := readEnvelope(t, conn)
	assert.Equal(t, TypeDataReload, env.Type)

	data, err := json.Marshal(env.Data)
	require.NoError(t, err)
	var status services.DataStatus
	require.NoError(t, json.Unmarshal(data, &status))
	assert.Equal(t, 42, status.EventCount)
}

func TestClientCountTracksConnections(t *testing.T) {
	hub := NewHub(slog.Default())
	hub.Start()
	defer hub.Stop()

	require.Equal(t, 0, hub.ClientCount())

	conn := dialTestHub(t, hub)
	_ = readEnvelope(t, conn)

	require.Eventually(t, func() bool {
		return hub.ClientCount() == 1
	}, 2*time.Second, 10*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool {
		return hub.ClientCount() == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestBroadcastWithoutClients(t *testing.T) {
	hub := NewHub(slog.Default())
	hub.Start()
	defer hub.Stop()

	err := hub.Broadcast(context.Background(), TypeDataReload, map[string]int{"event_count": 1})
	assert.NoError(t, err)
}
