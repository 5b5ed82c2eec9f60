package stream

import (
	"time"

	"arbsig/internal/domain/model"
)

// DefaultHeartbeatInterval 描述符未指定心跳周期时的默认值
const DefaultHeartbeatInterval = 20 * time.Second

// Decoder 把交易所原始帧解析为规范化更新
// ok=false 表示这不是行情帧（订阅确认、pong 等），直接跳过
// 返回 error 表示单帧解码失败，记日志后丢弃，绝不断开连接
type Decoder interface {
	Decode(frame []byte) (up model.QuoteUpdate, ok bool, err error)
}

// Descriptor 某条流的连接描述符，由 venue 适配器在订阅时一次性构建
// 同一个 key 的后续订阅者假定给出相同的描述符（约定，不校验）
type Descriptor struct {
	// URL websocket 端点（订阅内容可能已编码在 query 里，如 Binance combined stream）
	URL string

	// SubscribePayload 连接建立后要发送的订阅握手，nil 表示不需要
	SubscribePayload []byte

	// PingMessage 心跳负载；nil 时发送 websocket 协议层 ping 控制帧
	PingMessage []byte

	// HeartbeatInterval 心跳周期，<=0 时用 DefaultHeartbeatInterval
	HeartbeatInterval time.Duration

	// Decoder 该 venue 的帧解码器
	Decoder Decoder
}

func (d Descriptor) heartbeat() time.Duration {
	if d.HeartbeatInterval > 0 {
		return d.HeartbeatInterval
	}
	return DefaultHeartbeatInterval
}
