package console

import (
	"fmt"

	"arbsig/internal/domain/model"
)

// Sink 把生命周期事件打到终端，供人工盯盘
// price_update 噪声太大，默认不打印
type Sink struct {
	ShowPriceUpdates bool
}

func NewSink() *Sink { return &Sink{} }

// Listen 作为事件总线监听者使用
func (s *Sink) Listen(ev model.Event) {
	if ev.Type == model.EventPriceUpdate && !s.ShowPriceUpdates {
		return
	}

	ts := ev.Timestamp.Format("2006-01-02 15:04:05")
	switch p := ev.Payload.(type) {
	case model.PriceUpdatePayload:
		fmt.Printf("%s [%s] %s %s/%s spread=%.4f%% price_met=%v funding_met=%v\n",
			ts, ev.Type, p.Instrument, p.PrimaryVenue, p.HedgeVenue,
			p.PriceSpreadPct, p.PriceConditionMet, p.FundingConditionMet)
	case model.TriggerPayload:
		fmt.Printf("%s [%s] %s spread=%.4f%% primary=%.2f hedge=%.2f\n",
			ts, ev.Type, p.Signal.Instrument, p.PriceSpreadPct, p.PrimaryPrice, p.HedgePrice)
	case model.StopPayload:
		fmt.Printf("%s [%s] signal=%s reason=%s\n", ts, ev.Type, p.SignalID, p.Reason)
	case model.ConnectionPayload:
		fmt.Printf("%s [%s] %s:%s code=%d %s\n", ts, ev.Type, p.Venue, p.Instrument, p.Code, p.Reason)
	default:
		fmt.Printf("%s [%s]\n", ts, ev.Type)
	}
}
