package model

import (
	"errors"
	"testing"
)

func validSignal() *Signal {
	funding := 0.01
	return &Signal{
		Instrument:          "btcusdt",
		PrimaryVenue:        "binance",
		HedgeVenue:          "bybit",
		Strategy:            StrategyCombined,
		MinPriceSpreadPct:   0.5,
		MinFundingSpreadPct: &funding,
		PrimarySide:         SideLong,
		HedgeSide:           SideShort,
	}
}

func TestSignalNormalize(t *testing.T) {
	sig := validSignal()
	sig.Strategy = "COMBINED"
	sig.PrimarySide = " Long "
	sig.Normalize()

	if sig.Instrument != "BTCUSDT" || sig.PrimaryVenue != "BINANCE" {
		t.Errorf("normalize failed: %+v", sig)
	}
	if sig.Strategy != StrategyCombined || sig.PrimarySide != SideLong {
		t.Errorf("enum normalize failed: %+v", sig)
	}
}

func TestSignalValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Signal)
		want   error
	}{
		{"valid", func(s *Signal) {}, nil},
		{"missing instrument", func(s *Signal) { s.Instrument = "" }, ErrMissingInstrument},
		{"missing venue", func(s *Signal) { s.HedgeVenue = "" }, ErrMissingVenue},
		{"bad strategy", func(s *Signal) { s.Strategy = "martingale" }, ErrInvalidStrategy},
		{"zero price threshold", func(s *Signal) { s.MinPriceSpreadPct = 0 }, ErrInvalidPriceThreshold},
		{"combined without funding", func(s *Signal) { s.MinFundingSpreadPct = nil }, ErrMissingFundingThreshold},
		{"same sides", func(s *Signal) { s.HedgeSide = SideLong }, ErrInvalidSides},
		{"missing side", func(s *Signal) { s.PrimarySide = "" }, ErrInvalidSides},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sig := validSignal()
			tc.mutate(sig)
			sig.Normalize()
			err := sig.Validate()
			if !errors.Is(err, tc.want) {
				t.Errorf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestPriceOnlyNoFundingThresholdNeeded(t *testing.T) {
	sig := validSignal()
	sig.Strategy = StrategyPriceOnly
	sig.MinFundingSpreadPct = nil
	sig.Normalize()
	if err := sig.Validate(); err != nil {
		t.Errorf("price_only should not require funding threshold: %v", err)
	}
}

func TestSignalLegVenues(t *testing.T) {
	sig := validSignal()
	sig.Normalize()

	if sig.LongVenue() != "BINANCE" || sig.ShortVenue() != "BYBIT" {
		t.Errorf("leg venues wrong: long=%s short=%s", sig.LongVenue(), sig.ShortVenue())
	}

	// 反过来配置
	sig.PrimarySide = SideShort
	sig.HedgeSide = SideLong
	if sig.LongVenue() != "BYBIT" || sig.ShortVenue() != "BINANCE" {
		t.Errorf("leg venues wrong after flip: long=%s short=%s", sig.LongVenue(), sig.ShortVenue())
	}
}

func TestHourlyFunding(t *testing.T) {
	rate := 0.0008
	interval := 4.0

	q := Quote{FundingRate: &rate, FundingIntervalHours: &interval}
	hourly, ok := q.HourlyFunding()
	if !ok || hourly != 0.0002 {
		t.Errorf("expected 0.0002, got %v ok=%v", hourly, ok)
	}

	// 周期未知按 8h
	q = Quote{FundingRate: &rate}
	hourly, ok = q.HourlyFunding()
	if !ok || hourly != 0.0001 {
		t.Errorf("expected 0.0001, got %v ok=%v", hourly, ok)
	}

	// 费率未知
	q = Quote{}
	if _, ok := q.HourlyFunding(); ok {
		t.Error("unknown rate must be ok=false")
	}
	if q.DisplayFundingInterval() != DefaultFundingIntervalHours {
		t.Errorf("display interval should default to %v", DefaultFundingIntervalHours)
	}
}
