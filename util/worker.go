package util

import (
	"sync"

	"github.com/mohitkumar/agentflow/logger"
	"go.uber.org/zap"
)

// Worker runs handler for every message sent to it on a single goroutine.
type Worker[T any] struct {
	name     string
	stop     chan struct{}
	wg       *sync.WaitGroup
	handler  func(T) error
	messages chan T
}

func NewWorker[T any](name string, wg *sync.WaitGroup, handler func(T) error, capacity int) *Worker[T] {
	return &Worker[T]{
		messages: make(chan T, capacity),
		name:     name,
		wg:       wg,
		stop:     make(chan struct{}),
		handler:  handler,
	}
}

func (w *Worker[T]) Start() {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		for {
			select {
			case msg := <-w.messages:
				if err := w.handler(msg); err != nil {
					logger.Error("error in handling message in worker", zap.String("worker", w.name), zap.Error(err))
				}
			case <-w.stop:
				logger.Info("stopping worker", zap.String("worker", w.name))
				return
			}
		}
	}()
}

// TrySend queues msg without blocking and reports whether it was queued.
func (w *Worker[T]) TrySend(msg T) bool {
	select {
	case w.messages <- msg:
		return true
	default:
		return false
	}
}

func (w *Worker[T]) Stop() {
	close(w.stop)
}
