package port

import (
	"time"

	"arbsig/internal/domain/model"
)

// UpdateHandler 行情更新回调，在连接的读协程上同步调用
type UpdateHandler func(key model.StreamKey, up model.QuoteUpdate)

// Unsubscribe 撤销一次订阅；最后一个订阅者退出时同步拆除底层连接
type Unsubscribe func()

// StreamHub 行情流集线器
// 同一个 key 的多次订阅共享同一条底层连接；描述符由第一个订阅者的 venue 适配器决定
type StreamHub interface {
	Subscribe(key model.StreamKey, fn UpdateHandler) (Unsubscribe, error)
	IsConnected(key model.StreamKey) bool
	LastUpdate(key model.StreamKey) time.Time
	Stats() []StreamStats
}

// StreamStats 某条流的健康快照
type StreamStats struct {
	Key         model.StreamKey `json:"key"`
	Subscribers int             `json:"subscribers"`
	Connected   bool            `json:"connected"`
	LastUpdate  time.Time       `json:"last_update"`
	Reconnects  int             `json:"reconnect_attempts"`
}
