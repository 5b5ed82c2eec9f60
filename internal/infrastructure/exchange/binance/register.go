package binance

import (
	"arbsig/internal/infrastructure/exchange"
)

// init() 自注册 Binance adapter factory
// 这样避免了在装配层硬编码 Binance
func init() {
	exchange.Register(exchange.VenueBinance, func(wsURL, restURL string) exchange.Adapter {
		return New(wsURL, restURL)
	})
}
