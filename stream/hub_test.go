package stream

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/mohitkumar/agentflow/config"
	"github.com/mohitkumar/agentflow/model"
	"github.com/stretchr/testify/require"
)

func TestHubDeliversFramesToSubscribers(t *testing.T) {
	wg := &sync.WaitGroup{}
	hub := NewHub(config.StreamConfig{BufferSize: 8}, wg)
	hub.Start()
	defer func() {
		hub.Stop()
		wg.Wait()
	}()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.Subscribe(w, r, "c1")
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	require.Eventually(t, func() bool { return hub.SubscriberCount("c1") == 1 }, 2*time.Second, 10*time.Millisecond)

	hub.Typing(ctx, "c2")
	hub.Typing(ctx, "c1")
	hub.Debug(ctx, "c1", []model.DebugEvent{{Event: "execute", Data: map[string]any{"startNodeId": "n1"}}})

	var frames []Frame
	for i := 0; i < 2; i++ {
		_, data, err := conn.Read(ctx)
		require.NoError(t, err)
		var frame Frame
		require.NoError(t, json.Unmarshal(data, &frame))
		frames = append(frames, frame)
	}
	require.Equal(t, FRAME_TYPING, frames[0].Type)
	require.Equal(t, FRAME_DEBUG, frames[1].Type)
	require.Equal(t, "execute", frames[1].Events[0].Event)
}

func TestHubDropsWhenBufferFull(t *testing.T) {
	hub := NewHub(config.StreamConfig{BufferSize: 1}, &sync.WaitGroup{})
	// worker not started so the buffer never drains
	hub.Typing(context.Background(), "c1")
	hub.Typing(context.Background(), "c1")
	require.False(t, hub.worker.TrySend(Frame{Type: FRAME_TYPING}))
}
