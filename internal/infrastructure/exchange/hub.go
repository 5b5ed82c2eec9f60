package exchange

import (
	"fmt"
	"time"

	"arbsig/internal/application/port"
	"arbsig/internal/domain/model"
	"arbsig/internal/infrastructure/stream"
)

// Hub 把 venue 适配器和多路复用器拼在一起实现 port.StreamHub
// 描述符在订阅时按 venue 解析一次，之后每帧走已绑定的解码器，不再按消息分发
type Hub struct {
	mux      *stream.Mux
	adapters map[string]Adapter
}

// NewHub adapters 以 venue 规范名为 key
func NewHub(mux *stream.Mux, adapters map[string]Adapter) *Hub {
	return &Hub{mux: mux, adapters: adapters}
}

// Subscribe 解析 venue 描述符后转交多路复用器
func (h *Hub) Subscribe(key model.StreamKey, fn port.UpdateHandler) (port.Unsubscribe, error) {
	adapter, ok := h.adapters[key.Venue]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrVenueNotSupported, key.Venue)
	}
	desc, err := adapter.Descriptor(key.Instrument)
	if err != nil {
		return nil, fmt.Errorf("%s descriptor: %w", key.Venue, err)
	}
	return h.mux.Subscribe(key, desc, fn)
}

func (h *Hub) IsConnected(key model.StreamKey) bool {
	return h.mux.IsConnected(key)
}

func (h *Hub) LastUpdate(key model.StreamKey) time.Time {
	return h.mux.LastUpdate(key)
}

func (h *Hub) Stats() []port.StreamStats {
	return h.mux.Stats()
}

var _ port.StreamHub = (*Hub)(nil)
