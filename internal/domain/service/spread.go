package service

import (
	"arbsig/internal/domain/model"
)

// PriceSpreadPct 价差百分比 (short - long) / long * 100
// 哪条腿是 short/long 由信号配置决定，这里不做推断
func PriceSpreadPct(longPrice, shortPrice float64) float64 {
	return (shortPrice - longPrice) / longPrice * 100
}

// FundingSpreadPct 小时化资金费差百分比 (shortHourly - longHourly) * 100
// 任一腿费率未知时 ok=false（条件视为不满足，不是错误）
// 周期未知按 8 小时归一化，这个兜底只发生在归一化，不放宽费率未知的判定
func FundingSpreadPct(longLeg, shortLeg model.Quote) (spreadPct float64, ok bool) {
	longHourly, ok := longLeg.HourlyFunding()
	if !ok {
		return 0, false
	}
	shortHourly, ok := shortLeg.HourlyFunding()
	if !ok {
		return 0, false
	}
	return (shortHourly - longHourly) * 100, true
}
