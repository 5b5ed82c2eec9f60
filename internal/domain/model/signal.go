package model

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// Strategy 信号策略类型
type Strategy string

const (
	// StrategyCombined 价差 + 资金费差双条件
	StrategyCombined Strategy = "combined"
	// StrategyPriceOnly 仅价差条件
	StrategyPriceOnly Strategy = "price_only"
)

// Side 某条腿的持仓方向
type Side string

const (
	SideLong  Side = "long"
	SideShort Side = "short"
)

// SignalStatus 信号状态，active 是唯一非终态
type SignalStatus string

const (
	StatusActive    SignalStatus = "active"
	StatusTriggered SignalStatus = "triggered"
	StatusCancelled SignalStatus = "cancelled"
)

// 配置校验错误（由控制面映射为 4xx）
var (
	ErrMissingFundingThreshold = errors.New("combined strategy requires min_funding_spread_percent")
	ErrInvalidStrategy         = errors.New("strategy must be combined or price_only")
	ErrInvalidSides            = errors.New("legs must take opposite sides (one long, one short)")
	ErrMissingVenue            = errors.New("primary_venue and hedge_venue are required")
	ErrMissingInstrument       = errors.New("instrument is required")
	ErrInvalidPriceThreshold   = errors.New("min_price_spread_percent must be > 0")
)

// Signal 一个被监控的双腿套利机会
// Status 只由信号引擎写入，外部调用方只读
type Signal struct {
	ID                  string          `json:"id"`
	UserID              string          `json:"user_id"`
	Instrument          string          `json:"instrument"`
	PrimaryVenue        string          `json:"primary_venue"`
	HedgeVenue          string          `json:"hedge_venue"`
	Strategy            Strategy        `json:"strategy"`
	MinPriceSpreadPct   float64         `json:"min_price_spread_percent"`
	MinFundingSpreadPct *float64        `json:"min_funding_spread_percent,omitempty"`
	PrimarySide         Side            `json:"primary_side"`
	HedgeSide           Side            `json:"hedge_side"`
	OrderParams         json.RawMessage `json:"order_params,omitempty"` // 下单参数，引擎不解析，触发时原样透传
	Status              SignalStatus    `json:"status"`
	CreatedAt           time.Time       `json:"created_at"`
	TriggeredAt         *time.Time      `json:"triggered_at,omitempty"`
}

// Normalize 规范化字段大小写，保证同一逻辑配置只产生一种形态
func (s *Signal) Normalize() {
	s.Instrument = strings.ToUpper(strings.TrimSpace(s.Instrument))
	s.PrimaryVenue = strings.ToUpper(strings.TrimSpace(s.PrimaryVenue))
	s.HedgeVenue = strings.ToUpper(strings.TrimSpace(s.HedgeVenue))
	s.Strategy = Strategy(strings.ToLower(strings.TrimSpace(string(s.Strategy))))
	s.PrimarySide = Side(strings.ToLower(strings.TrimSpace(string(s.PrimarySide))))
	s.HedgeSide = Side(strings.ToLower(strings.TrimSpace(string(s.HedgeSide))))
}

// Validate 校验配置完整性，调用前应先 Normalize
func (s *Signal) Validate() error {
	if s.Instrument == "" {
		return ErrMissingInstrument
	}
	if s.PrimaryVenue == "" || s.HedgeVenue == "" {
		return ErrMissingVenue
	}
	if s.Strategy != StrategyCombined && s.Strategy != StrategyPriceOnly {
		return ErrInvalidStrategy
	}
	if s.MinPriceSpreadPct <= 0 {
		return ErrInvalidPriceThreshold
	}
	if s.Strategy == StrategyCombined && s.MinFundingSpreadPct == nil {
		return ErrMissingFundingThreshold
	}
	if !s.HasSides() || s.PrimarySide == s.HedgeSide {
		return ErrInvalidSides
	}
	return nil
}

// HasSides 两条腿的方向是否都已配置（恢复时缺失方向的记录要跳过）
func (s *Signal) HasSides() bool {
	validSide := func(v Side) bool { return v == SideLong || v == SideShort }
	return validSide(s.PrimarySide) && validSide(s.HedgeSide)
}

// PrimaryKey 主腿的流 key
func (s *Signal) PrimaryKey() StreamKey {
	return NewStreamKey(s.PrimaryVenue, s.Instrument)
}

// HedgeKey 对冲腿的流 key
func (s *Signal) HedgeKey() StreamKey {
	return NewStreamKey(s.HedgeVenue, s.Instrument)
}

// ShortVenue 做空腿所在交易所（由配置的方向决定，不做推断）
func (s *Signal) ShortVenue() string {
	if s.PrimarySide == SideShort {
		return s.PrimaryVenue
	}
	return s.HedgeVenue
}

// LongVenue 做多腿所在交易所
func (s *Signal) LongVenue() string {
	if s.PrimarySide == SideLong {
		return s.PrimaryVenue
	}
	return s.HedgeVenue
}
