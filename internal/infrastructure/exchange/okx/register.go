package okx

import (
	"arbsig/internal/infrastructure/exchange"
)

// init() 自注册 OKX adapter factory
func init() {
	exchange.Register(exchange.VenueOKX, func(wsURL, restURL string) exchange.Adapter {
		return New(wsURL, restURL)
	})
}
