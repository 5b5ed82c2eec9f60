package bybit

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"arbsig/internal/domain/model"
	"arbsig/internal/infrastructure/exchange"
	"arbsig/internal/infrastructure/stream"
)

// Adapter Bybit v5 linear 永续，tickers 频道携带价格和资金费率
// delta 消息只带变化字段，正好依赖缓存的部分合并语义
type Adapter struct {
	wsURL   string // e.g. wss://stream.bybit.com/v5/public/linear
	restURL string // e.g. https://api.bybit.com
}

func New(wsURL, restURL string) *Adapter {
	return &Adapter{
		wsURL:   strings.TrimSpace(wsURL),
		restURL: strings.TrimSpace(restURL),
	}
}

func (a *Adapter) Name() string { return exchange.VenueBybit }

type subReq struct {
	Op   string   `json:"op"`
	Args []string `json:"args"`
}

// Descriptor Bybit 要求 20 秒内发一次 {"op":"ping"} 应用层心跳
func (a *Adapter) Descriptor(instrument string) (stream.Descriptor, error) {
	if a.wsURL == "" {
		return stream.Descriptor{}, errors.New("bybit ws_url empty")
	}
	sym := strings.ToUpper(strings.TrimSpace(instrument))
	if sym == "" {
		return stream.Descriptor{}, errors.New("instrument empty")
	}

	payload, err := json.Marshal(subReq{Op: "subscribe", Args: []string{"tickers." + sym}})
	if err != nil {
		return stream.Descriptor{}, err
	}

	return stream.Descriptor{
		URL:               a.wsURL,
		SubscribePayload:  payload,
		PingMessage:       []byte(`{"op":"ping"}`),
		HeartbeatInterval: 20 * time.Second,
		Decoder:           Decoder{},
	}, nil
}

type tickerData struct {
	Symbol      string `json:"symbol"`
	LastPrice   string `json:"lastPrice"`
	FundingRate string `json:"fundingRate"`
}

type tickerMsg struct {
	Topic string     `json:"topic"`
	Type  string     `json:"type"`
	Ts    int64      `json:"ts"`
	Data  tickerData `json:"data"`

	Success *bool  `json:"success,omitempty"`
	RetMsg  string `json:"ret_msg,omitempty"`
	Op      string `json:"op,omitempty"`
}

// Decoder 解析 tickers 帧；订阅确认和 pong 直接跳过
type Decoder struct{}

func (Decoder) Decode(frame []byte) (model.QuoteUpdate, bool, error) {
	var msg tickerMsg
	if err := json.Unmarshal(frame, &msg); err != nil {
		return model.QuoteUpdate{}, false, fmt.Errorf("bybit frame: %w", err)
	}

	// ack / pong
	if msg.Success != nil {
		if !*msg.Success {
			return model.QuoteUpdate{}, false, fmt.Errorf("bybit subscribe rejected: %s", msg.RetMsg)
		}
		return model.QuoteUpdate{}, false, nil
	}
	if msg.Op == "pong" || !strings.HasPrefix(msg.Topic, "tickers.") {
		return model.QuoteUpdate{}, false, nil
	}

	up := model.QuoteUpdate{Ts: msg.Ts}
	if px := strings.TrimSpace(msg.Data.LastPrice); px != "" {
		n, err := strconv.ParseFloat(px, 64)
		if err != nil {
			return model.QuoteUpdate{}, false, fmt.Errorf("bybit last price %q: %w", px, err)
		}
		up.Price = n
	}
	if fr := strings.TrimSpace(msg.Data.FundingRate); fr != "" {
		n, err := strconv.ParseFloat(fr, 64)
		if err != nil {
			return model.QuoteUpdate{}, false, fmt.Errorf("bybit funding rate %q: %w", fr, err)
		}
		up.FundingRate = &n
	}
	if up.Price <= 0 && up.FundingRate == nil {
		return model.QuoteUpdate{}, false, nil
	}
	return up, true, nil
}
