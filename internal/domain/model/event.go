package model

import "time"

// EventType 生命周期事件类型
type EventType string

const (
	EventSignalStarted   EventType = "signal_started"
	EventPriceUpdate     EventType = "price_update"
	EventSignalTriggered EventType = "signal_triggered"
	EventSignalStopped   EventType = "signal_stopped"
	EventConnectionUp    EventType = "connection_up"
	EventConnectionDown  EventType = "connection_down"
)

// Event 一条不可变的生命周期事件，每次逻辑状态变化最多发布一次
type Event struct {
	Type      EventType `json:"type"`
	Payload   any       `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
}

// PriceUpdatePayload 每次成功重算都会携带的快照（无论阈值是否满足）
type PriceUpdatePayload struct {
	SignalID            string   `json:"signal_id"`
	Instrument          string   `json:"instrument"`
	PrimaryVenue        string   `json:"primary_venue"`
	HedgeVenue          string   `json:"hedge_venue"`
	PrimaryPrice        float64  `json:"primary_price"`
	HedgePrice          float64  `json:"hedge_price"`
	PriceSpreadPct      float64  `json:"price_spread_percent"`
	FundingSpreadPct    *float64 `json:"funding_spread_percent,omitempty"`
	PriceConditionMet   bool     `json:"price_condition_met"`
	FundingConditionMet bool     `json:"funding_condition_met"`
	Ts                  int64    `json:"ts_ms"`
}

// TriggerPayload 触发时刻的完整快照
type TriggerPayload struct {
	Signal           *Signal  `json:"signal"`
	PrimaryPrice     float64  `json:"primary_price"`
	HedgePrice       float64  `json:"hedge_price"`
	PrimaryFunding   *float64 `json:"primary_funding,omitempty"`
	HedgeFunding     *float64 `json:"hedge_funding,omitempty"`
	PriceSpreadPct   float64  `json:"price_spread_percent"`
	FundingSpreadPct *float64 `json:"funding_spread_percent,omitempty"`
	Ts               int64    `json:"ts_ms"`
}

// StopPayload 信号停止事件
type StopPayload struct {
	SignalID string `json:"signal_id"`
	Reason   string `json:"reason"`
	Ts       int64  `json:"ts_ms"`
}

// ConnectionPayload 连接健康事件（close code/reason 为机器可读诊断）
type ConnectionPayload struct {
	Venue      string `json:"venue"`
	Instrument string `json:"instrument"`
	Code       int    `json:"code,omitempty"`
	Reason     string `json:"reason,omitempty"`
}
