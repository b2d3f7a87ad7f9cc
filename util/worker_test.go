package util

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWorker(t *testing.T) {
	var wg sync.WaitGroup
	received := make(chan string, 2)
	w := NewWorker("test", &wg, func(msg string) error {
		received <- msg
		return nil
	}, 2)
	w.Start()
	require.True(t, w.TrySend("a"))
	select {
	case msg := <-received:
		require.Equal(t, "a", msg)
	case <-time.After(time.Second):
		t.Fatal("message not handled")
	}
	w.Stop()
	wg.Wait()
}

func TestWorkerTrySendFull(t *testing.T) {
	var wg sync.WaitGroup
	w := NewWorker("full", &wg, func(msg int) error { return nil }, 1)
	require.True(t, w.TrySend(1))
	require.False(t, w.TrySend(2))
}

func TestTickWorker(t *testing.T) {
	var wg sync.WaitGroup
	ticks := make(chan struct{}, 10)
	tw := NewTickWorker("tick", 5*time.Millisecond, func() {
		select {
		case ticks <- struct{}{}:
		default:
		}
	}, &wg)
	tw.Start()
	select {
	case <-ticks:
	case <-time.After(time.Second):
		t.Fatal("tick not fired")
	}
	tw.Stop()
	wg.Wait()
}
