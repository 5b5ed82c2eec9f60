package bitget

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

// Adapter Bitget v2 USDT-FUTURES ticker 频道
type Adapter struct {
	wsURL string // e.g. wss://ws.bitget.com/v2/ws/public
}

func New(wsURL, restURL string) *Adapter {
	_ = restURL
	return &Adapter{wsURL: strings.TrimSpace(wsURL)}
}

func (a *Adapter) Name() string { return exchange.VenueBitget }

type subArg struct {
	InstType string `json:"instType"`
	Channel  string `json:"channel"`
	InstID   string `json:"instId"`
}

type subReq struct {
	Op   string   `json:"op"`
	Args []subArg `json:"args"`
}

// Descriptor Bitget 心跳为文本 "ping"，30 秒无活动断开
func (a *Adapter) Descriptor(instrument string) (stream.Descriptor, error) {
	if a.wsURL == "" {
		return stream.Descriptor{}, errors.New("bitget ws_url empty")
	}
	sym := strings.ToUpper(strings.TrimSpace(instrument))
	if sym == "" {
		return stream.Descriptor{}, errors.New("instrument empty")
	}

	payload, err := json.Marshal(subReq{
		Op:   "subscribe",
		Args: []subArg{{InstType: "USDT-FUTURES", Channel: "ticker", InstID: sym}},
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
	Event  string `json:"event,omitempty"`
	Action string `json:"action,omitempty"`
	Arg    subArg `json:"arg"`
	Data   []struct {
		LastPr      string `json:"lastPr"`
		FundingRate string `json:"fundingRate"`
		Ts          string `json:"ts"`
	} `json:"data"`
}

// Decoder 解析 ticker 推送；"pong" 和订阅确认跳过
type Decoder struct{}

func (Decoder) Decode(frame []byte) (model.QuoteUpdate, bool, error) {
	if string(frame) == "pong" {
		return model.QuoteUpdate{}, false, nil
	}

	var msg pushMsg
	if err := json.Unmarshal(frame, &msg); err != nil {
		return model.QuoteUpdate{}, false, fmt.Errorf("bitget frame: %w", err)
	}
	if msg.Event == "error" {
		return model.QuoteUpdate{}, false, fmt.Errorf("bitget push error: %s", string(frame))
	}
	if msg.Event != "" || msg.Arg.Channel != "ticker" || len(msg.Data) == 0 {
		return model.QuoteUpdate{}, false, nil
	}

	d := msg.Data[len(msg.Data)-1]
	var up model.QuoteUpdate
	if ts := strings.TrimSpace(d.Ts); ts != "" {
		up.Ts, _ = strconv.ParseInt(ts, 10, 64)
	}
	if px := strings.TrimSpace(d.LastPr); px != "" {
		n, err := strconv.ParseFloat(px, 64)
		if err != nil {
			return model.QuoteUpdate{}, false, fmt.Errorf("bitget lastPr %q: %w", px, err)
		}
		up.Price = n
	}
	if fr := strings.TrimSpace(d.FundingRate); fr != "" {
		n, err := strconv.ParseFloat(fr, 64)
		if err != nil {
			return model.QuoteUpdate{}, false, fmt.Errorf("bitget funding rate %q: %w", fr, err)
		}
		up.FundingRate = &n
	}
	if up.Price <= 0 && up.FundingRate == nil {
		return model.QuoteUpdate{}, false, nil
	}
	return up, true, nil
}
