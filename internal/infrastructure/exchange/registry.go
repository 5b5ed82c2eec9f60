package exchange

import (
	"github.com/rs/zerolog/log"
)

// Factory 构造某交易所的适配器
// wsURL: WebSocket 端点，restURL: 资金费率等 REST 查询端点（可为空）
type Factory func(wsURL, restURL string) Adapter

// registry maps venue names to their adapter factories
var registry = make(map[string]Factory)

// Register 注册一个 adapter factory
// 由各交易所包的 init() 自注册，避免在装配层硬编码交易所清单
func Register(venue string, factory Factory) {
	if factory == nil {
		log.Warn().Str("venue", venue).Msg("invalid adapter factory")
		return
	}
	if _, exists := registry[venue]; exists {
		log.Warn().Str("venue", venue).Msg("adapter factory already registered, overwriting")
	}
	registry[venue] = factory
	log.Debug().Str("venue", venue).Msg("adapter factory registered")
}

// Get 获取已注册的 adapter factory
func Get(venue string) (Factory, bool) {
	factory, ok := registry[venue]
	return factory, ok
}
