package stream

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/mohitkumar/agentflow/config"
	"github.com/mohitkumar/agentflow/logger"
	"github.com/mohitkumar/agentflow/model"
	"github.com/mohitkumar/agentflow/util"
	"go.uber.org/zap"
)

const (
	DEFAULT_BUFFER_SIZE   = 256
	DEFAULT_PING_INTERVAL = 30 * time.Second
	writeTimeout          = 5 * time.Second
)

var _ Emitter = new(Hub)

// Hub fans frames out to the websocket subscribers of a conversation.
// Frames are queued on a worker so emitting never waits on a slow client.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]map[*websocket.Conn]struct{}
	worker      *util.Worker[Frame]
	pinger      *util.TickWorker
	wg          *sync.WaitGroup
}

func NewHub(conf config.StreamConfig, wg *sync.WaitGroup) *Hub {
	size := conf.BufferSize
	if size <= 0 {
		size = DEFAULT_BUFFER_SIZE
	}
	interval := time.Duration(conf.PingInterval) * time.Second
	if interval <= 0 {
		interval = DEFAULT_PING_INTERVAL
	}
	h := &Hub{
		subscribers: make(map[string]map[*websocket.Conn]struct{}),
		wg:          wg,
	}
	h.worker = util.NewWorker("stream-hub", wg, h.deliver, size)
	h.pinger = util.NewTickWorker("stream-ping", interval, h.ping, wg)
	return h
}

func (h *Hub) Start() {
	h.worker.Start()
	h.pinger.Start()
}

func (h *Hub) Stop() {
	h.worker.Stop()
	h.pinger.Stop()
	h.mu.Lock()
	defer h.mu.Unlock()
	for convId, conns := range h.subscribers {
		for conn := range conns {
			conn.Close(websocket.StatusGoingAway, "server shutting down")
		}
		delete(h.subscribers, convId)
	}
}

func (h *Hub) Typing(ctx context.Context, conversationId string) {
	h.publish(Frame{Type: FRAME_TYPING, ConversationId: conversationId})
}

func (h *Hub) Debug(ctx context.Context, conversationId string, events []model.DebugEvent) {
	h.publish(Frame{Type: FRAME_DEBUG, ConversationId: conversationId, Events: events})
}

func (h *Hub) publish(frame Frame) {
	if !h.worker.TrySend(frame) {
		logger.Warn("stream buffer full, dropping frame", zap.String("conversationId", frame.ConversationId), zap.String("type", frame.Type))
	}
}

// Subscribe upgrades the request and streams frames of conversationId until the client goes away.
func (h *Hub) Subscribe(w http.ResponseWriter, r *http.Request, conversationId string) error {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		return err
	}
	h.add(conversationId, conn)
	defer h.remove(conversationId, conn)

	ctx := conn.CloseRead(r.Context())
	<-ctx.Done()
	logger.Debug("stream subscriber left", zap.String("conversationId", conversationId))
	return nil
}

func (h *Hub) SubscriberCount(conversationId string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers[conversationId])
}

func (h *Hub) add(conversationId string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	conns, ok := h.subscribers[conversationId]
	if !ok {
		conns = make(map[*websocket.Conn]struct{})
		h.subscribers[conversationId] = conns
	}
	conns[conn] = struct{}{}
}

func (h *Hub) remove(conversationId string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	conns, ok := h.subscribers[conversationId]
	if !ok {
		return
	}
	if _, ok := conns[conn]; ok {
		delete(conns, conn)
		conn.Close(websocket.StatusNormalClosure, "")
	}
	if len(conns) == 0 {
		delete(h.subscribers, conversationId)
	}
}

func (h *Hub) connections(conversationId string) []*websocket.Conn {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*websocket.Conn, 0, len(h.subscribers[conversationId]))
	for conn := range h.subscribers[conversationId] {
		out = append(out, conn)
	}
	return out
}

func (h *Hub) deliver(frame Frame) error {
	conns := h.connections(frame.ConversationId)
	if len(conns) == 0 {
		return nil
	}
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	for _, conn := range conns {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		err := conn.Write(ctx, websocket.MessageText, data)
		cancel()
		if err != nil {
			logger.Warn("stream write failed, dropping subscriber", zap.String("conversationId", frame.ConversationId), zap.Error(err))
			h.remove(frame.ConversationId, conn)
		}
	}
	return nil
}

func (h *Hub) ping() {
	h.mu.RLock()
	all := make(map[*websocket.Conn]string)
	for convId, conns := range h.subscribers {
		for conn := range conns {
			all[conn] = convId
		}
	}
	h.mu.RUnlock()
	for conn, convId := range all {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		err := conn.Ping(ctx)
		cancel()
		if err != nil {
			h.remove(convId, conn)
		}
	}
}
