package okx

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

// Adapter OKX 永续，tickers 和 funding-rate 两个频道走同一条连接
// 价格帧和资金费帧分开到达，各自作为部分更新合并进缓存
type Adapter struct {
	wsURL string // e.g. wss://ws.okx.com:8443/ws/v5/public
}

func New(wsURL, restURL string) *Adapter {
	// OKX 暂不提供 REST 资金费率客户端，restURL 保留参数位
	_ = restURL
	return &Adapter{wsURL: strings.TrimSpace(wsURL)}
}

func (a *Adapter) Name() string { return exchange.VenueOKX }

// InstID BTCUSDT -> BTC-USDT-SWAP（OKX 的永续符号格式）
func InstID(instrument string) string {
	sym := strings.ToUpper(strings.TrimSpace(instrument))
	if sym == "" {
		return ""
	}
	if strings.Contains(sym, "-") {
		return sym
	}
	for _, quote := range []string{"USDT", "USDC", "USD"} {
		if base, found := strings.CutSuffix(sym, quote); found && base != "" {
			return base + "-" + quote + "-SWAP"
		}
	}
	return sym
}

type subArg struct {
	Channel string `json:"channel"`
	InstID  string `json:"instId"`
}

type subReq struct {
	Op   string   `json:"op"`
	Args []subArg `json:"args"`
}

// Descriptor OKX 要求 30 秒内有活动，心跳为文本 "ping"
func (a *Adapter) Descriptor(instrument string) (stream.Descriptor, error) {
	if a.wsURL == "" {
		return stream.Descriptor{}, errors.New("okx ws_url empty")
	}
	instID := InstID(instrument)
	if instID == "" {
		return stream.Descriptor{}, errors.New("instrument empty")
	}

	payload, err := json.Marshal(subReq{
		Op: "subscribe",
		Args: []subArg{
			{Channel: "tickers", InstID: instID},
			{Channel: "funding-rate", InstID: instID},
		},
	})
	if err != nil {
		return stream.Descriptor{}, err
	}

	return stream.Descriptor{
		URL:               a.wsURL,
		SubscribePayload:  payload,
		PingMessage:       []byte("ping"),
		HeartbeatInterval: 25 * time.Second,
		Decoder:           Decoder{},
	}, nil
}

type pushMsg struct {
	Event string `json:"event,omitempty"`
	Arg   subArg `json:"arg"`
	Data  []struct {
		Last        string `json:"last"`
		FundingRate string `json:"fundingRate"`
		Ts          string `json:"ts"`
	} `json:"data"`
}

// Decoder 解析 tickers / funding-rate 推送；"pong" 和事件帧跳过
type Decoder struct{}

func (Decoder) Decode(frame []byte) (model.QuoteUpdate, bool, error) {
	if string(frame) == "pong" {
		return model.QuoteUpdate{}, false, nil
	}

	var msg pushMsg
	if err := json.Unmarshal(frame, &msg); err != nil {
		return model.QuoteUpdate{}, false, fmt.Errorf("okx frame: %w", err)
	}
	if msg.Event == "error" {
		return model.QuoteUpdate{}, false, fmt.Errorf("okx push error: %s", string(frame))
	}
	if msg.Event != "" || len(msg.Data) == 0 {
		return model.QuoteUpdate{}, false, nil
	}

	d := msg.Data[len(msg.Data)-1]
	var up model.QuoteUpdate
	if ts := strings.TrimSpace(d.Ts); ts != "" {
		up.Ts, _ = strconv.ParseInt(ts, 10, 64)
	}

	switch msg.Arg.Channel {
	case "tickers":
		px := strings.TrimSpace(d.Last)
		if px == "" {
			return model.QuoteUpdate{}, false, nil
		}
		n, err := strconv.ParseFloat(px, 64)
		if err != nil {
			return model.QuoteUpdate{}, false, fmt.Errorf("okx last %q: %w", px, err)
		}
		up.Price = n
		return up, true, nil

	case "funding-rate":
		fr := strings.TrimSpace(d.FundingRate)
		if fr == "" {
			return model.QuoteUpdate{}, false, nil
		}
		n, err := strconv.ParseFloat(fr, 64)
		if err != nil {
			return model.QuoteUpdate{}, false, fmt.Errorf("okx funding rate %q: %w", fr, err)
		}
		up.FundingRate = &n
		return up, true, nil
	}

	return model.QuoteUpdate{}, false, nil
}
