package model

import (
	"strings"
	"time"
)

// StreamKey 标识一条 (venue, instrument) 实时行情流
// 同一条逻辑流必须映射到同一个 key，所以在构造时做一次规范化
type StreamKey struct {
	Venue      string `json:"venue"`
	Instrument string `json:"instrument"`
}

// NewStreamKey 构造规范化后的 StreamKey（venue 和 instrument 统一大写）
func NewStreamKey(venue, instrument string) StreamKey {
	return StreamKey{
		Venue:      strings.ToUpper(strings.TrimSpace(venue)),
		Instrument: strings.ToUpper(strings.TrimSpace(instrument)),
	}
}

func (k StreamKey) String() string {
	return k.Venue + ":" + k.Instrument
}

// QuoteUpdate 解码后的规范化行情更新
// 单条消息可能只携带部分字段：nil 表示本次更新未携带该字段
type QuoteUpdate struct {
	Price                float64  `json:"price"`
	FundingRate          *float64 `json:"funding_rate,omitempty"`
	FundingIntervalHours *float64 `json:"funding_interval_hours,omitempty"`
	Ts                   int64    `json:"ts_ms"`
}

// Quote 某条流的最新已知快照
type Quote struct {
	Price                float64
	FundingRate          *float64
	FundingIntervalHours *float64
	UpdatedAt            time.Time
}

// DefaultFundingIntervalHours 资金费周期未知时的默认值（多数交易所为 8 小时结算）
const DefaultFundingIntervalHours = 8.0

// HourlyFunding 将资金费率归一化为小时费率
// 费率未知时返回 ok=false；周期未知时按默认 8 小时归一化
func (q Quote) HourlyFunding() (rate float64, ok bool) {
	if q.FundingRate == nil {
		return 0, false
	}
	interval := DefaultFundingIntervalHours
	if q.FundingIntervalHours != nil && *q.FundingIntervalHours > 0 {
		interval = *q.FundingIntervalHours
	}
	return *q.FundingRate / interval, true
}

// DisplayFundingInterval 展示用的资金费周期
// 注意：展示路径用默认值兜底，决策路径（HourlyFunding 的 ok）保持严格，两者有意分开
func (q Quote) DisplayFundingInterval() float64 {
	if q.FundingIntervalHours != nil && *q.FundingIntervalHours > 0 {
		return *q.FundingIntervalHours
	}
	return DefaultFundingIntervalHours
}
