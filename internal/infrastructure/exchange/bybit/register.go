package bybit

import (
	"arbsig/internal/infrastructure/exchange"
)

// init() 自注册 Bybit adapter factory
func init() {
	exchange.Register(exchange.VenueBybit, func(wsURL, restURL string) exchange.Adapter {
		return New(wsURL, restURL)
	})
}
