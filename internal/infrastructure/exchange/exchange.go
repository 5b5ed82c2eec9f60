package exchange

import (
	"errors"

	"arbsig/internal/infrastructure/stream"
)

// 支持的交易所名称（StreamKey.Venue 规范形态）
const (
	VenueBinance = "BINANCE"
	VenueBybit   = "BYBIT"
	VenueOKX     = "OKX"
	VenueBitget  = "BITGET"
)

// ErrVenueNotSupported 请求了未启用或未注册的交易所
var ErrVenueNotSupported = errors.New("venue not supported")

// Adapter 单个交易所的 wire 适配器
// 负责把 instrument 映射为连接描述符（端点、握手、心跳、解码器）
type Adapter interface {
	Name() string
	Descriptor(instrument string) (stream.Descriptor, error)
}
