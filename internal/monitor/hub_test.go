package monitor

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"order-exec-lab/internal/domain"
)

func dialTestHub(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	return conn
}

func waitForClients(t *testing.T, hub *Hub, want int) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() != want {
		if time.Now().After(deadline) {
			t.Fatalf("hub never reached %d clients", want)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHub_BroadcastsScalars(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	srv := httptest.NewServer(hub)
	defer srv.Close()
	defer hub.Close()

	conn := dialTestHub(t, srv)
	defer conn.Close()
	waitForClients(t, hub, 1)

	hub.Record(&domain.ScalarPoint{
		RunID:   "run-1",
		Episode: 7,
		Reward:  4950.5,
		AvgLoss: 1.25,
		Epsilon: 0.5,
	})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg map[string]any
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, "run-1", msg["run_id"])
	assert.Equal(t, float64(7), msg["episode"])
	assert.Equal(t, 4950.5, msg["reward"])
	assert.Equal(t, 1.25, msg["avg_loss"])
	assert.Equal(t, 0.5, msg["epsilon"])
}

func TestHub_MultipleClients(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	srv := httptest.NewServer(hub)
	defer srv.Close()
	defer hub.Close()

	a := dialTestHub(t, srv)
	defer a.Close()
	b := dialTestHub(t, srv)
	defer b.Close()
	waitForClients(t, hub, 2)

	hub.Record(&domain.ScalarPoint{RunID: "run-1", Episode: 0, Reward: 1})

	for _, conn := range []*websocket.Conn{a, b} {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)
		assert.Contains(t, string(data), `"run_id":"run-1"`)
	}
}

func TestHub_RecordWithoutClients(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	defer hub.Close()

	// Must not block or panic.
	hub.Record(&domain.ScalarPoint{RunID: "run-1"})
	assert.Equal(t, 0, hub.ClientCount())
}

func TestHub_ClientDisconnectEvicted(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	srv := httptest.NewServer(hub)
	defer srv.Close()
	defer hub.Close()

	conn := dialTestHub(t, srv)
	waitForClients(t, hub, 1)

	conn.Close()
	waitForClients(t, hub, 0)
}

func TestHub_CloseRejectsNewClients(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	srv := httptest.NewServer(hub)
	defer srv.Close()

	hub.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		// Upgrade may succeed before the server side drops the socket;
		// the connection must then close immediately.
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, _, err = conn.ReadMessage()
		conn.Close()
	}
	assert.Error(t, err)
	assert.Equal(t, 0, hub.ClientCount())
}
