package cache

import (
	"time"

	"github.com/mohitkumar/agentflow/node"
	c "github.com/patrickmn/go-cache"
)

const DEFAULT_FLOW_TTL = 10 * time.Minute

// FlowCache keeps compiled flows so a turn does not decode the definition again.
type FlowCache struct {
	cache *c.Cache
}

func NewFlowCache(ttl time.Duration) *FlowCache {
	if ttl <= 0 {
		ttl = DEFAULT_FLOW_TTL
	}
	return &FlowCache{
		cache: c.New(ttl, 2*ttl),
	}
}

func (ch *FlowCache) SaveFlow(flow *node.Flow) {
	ch.cache.SetDefault(flow.Id, flow)
}

func (ch *FlowCache) GetFlow(flowId string) (*node.Flow, bool) {
	v, found := ch.cache.Get(flowId)
	if !found {
		return nil, false
	}
	flow, ok := v.(*node.Flow)
	return flow, ok
}

func (ch *FlowCache) Invalidate(flowId string) {
	ch.cache.Delete(flowId)
}
