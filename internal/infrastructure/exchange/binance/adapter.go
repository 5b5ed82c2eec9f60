package binance

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"arbsig/internal/domain/model"
	"arbsig/internal/infrastructure/exchange"
	"arbsig/internal/infrastructure/stream"
)

// Adapter Binance USDT 本位永续，markPrice stream 同时携带标记价和资金费率
type Adapter struct {
	wsURL   string // e.g. wss://fstream.binance.com
	restURL string // e.g. https://fapi.binance.com
}

func New(wsURL, restURL string) *Adapter {
	return &Adapter{
		wsURL:   strings.TrimSpace(wsURL),
		restURL: strings.TrimSpace(restURL),
	}
}

func (a *Adapter) Name() string { return exchange.VenueBinance }

// Descriptor 订阅内容编码在 combined stream URL 里，无需握手报文
// 心跳走 websocket 协议层 ping（Binance 只要求响应服务端 ping，主动 ping 无害）
func (a *Adapter) Descriptor(instrument string) (stream.Descriptor, error) {
	if a.wsURL == "" {
		return stream.Descriptor{}, errors.New("binance ws_url empty")
	}
	sym := strings.ToLower(strings.TrimSpace(instrument))
	if sym == "" {
		return stream.Descriptor{}, errors.New("instrument empty")
	}

	u, err := url.Parse(a.wsURL)
	if err != nil {
		return stream.Descriptor{}, err
	}
	u.Path = "/stream"
	u.RawQuery = "streams=" + sym + "@markPrice"

	return stream.Descriptor{
		URL:     u.String(),
		Decoder: Decoder{},
	}, nil
}

type combinedMsg struct {
	Stream string       `json:"stream"`
	Data   markPriceMsg `json:"data"`
}

type markPriceMsg struct {
	Event       string `json:"e"`
	EventTime   int64  `json:"E"`
	Symbol      string `json:"s"`
	MarkPrice   string `json:"p"`
	FundingRate string `json:"r"`
}

// Decoder 解析 markPriceUpdate 帧
type Decoder struct{}

func (Decoder) Decode(frame []byte) (model.QuoteUpdate, bool, error) {
	var msg combinedMsg
	if err := json.Unmarshal(frame, &msg); err != nil {
		return model.QuoteUpdate{}, false, fmt.Errorf("binance frame: %w", err)
	}
	if msg.Data.Event != "markPriceUpdate" {
		return model.QuoteUpdate{}, false, nil
	}

	up := model.QuoteUpdate{Ts: msg.Data.EventTime}
	if px := strings.TrimSpace(msg.Data.MarkPrice); px != "" {
		n, err := strconv.ParseFloat(px, 64)
		if err != nil {
			return model.QuoteUpdate{}, false, fmt.Errorf("binance mark price %q: %w", px, err)
		}
		up.Price = n
	}
	// 非永续符号的 r 为空串，留空不覆盖缓存里的旧值
	if fr := strings.TrimSpace(msg.Data.FundingRate); fr != "" {
		n, err := strconv.ParseFloat(fr, 64)
		if err != nil {
			return model.QuoteUpdate{}, false, fmt.Errorf("binance funding rate %q: %w", fr, err)
		}
		up.FundingRate = &n
	}
	if up.Price <= 0 && up.FundingRate == nil {
		return model.QuoteUpdate{}, false, nil
	}
	return up, true, nil
}
