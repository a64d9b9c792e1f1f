package relay

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/roundtable/core"
)

func TestHub_Broadcast(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub(nil)
	go hub.Run(ctx)

	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		hub.Register(conn)
		defer func() {
			hub.Unregister(conn)
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.Len() == 1 }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, hub.Send(ctx, core.NewHeartbeatEvent()))
	require.NoError(t, hub.Send(ctx, core.NewAgentStartEvent("run-1", "critic", 2)))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var ev core.Event
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, core.EventAgentStart, ev.Type)
	assert.Equal(t, "run-1", ev.RunID)
}

func TestHub_DropsWhenFull(t *testing.T) {
	hub := NewHub(nil)

	for i := 0; i < hubBuffer+10; i++ {
		require.NoError(t, hub.Send(context.Background(), core.NewAgentStartEvent("r", "a", 1)))
	}

	assert.Len(t, hub.broadcast, hubBuffer)
}
