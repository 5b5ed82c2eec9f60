package bitget

import (
	"arbsig/internal/infrastructure/exchange"
)

// init() 自注册 Bitget adapter factory
func init() {
	exchange.Register(exchange.VenueBitget, func(wsURL, restURL string) exchange.Adapter {
		return New(wsURL, restURL)
	})
}
