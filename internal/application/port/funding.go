package port

import "context"

// FundingSource 资金费率 REST 查询端口（流恢复后的 best-effort 刷新用）
type FundingSource interface {
	// GetFundingRate 返回 venue 当前资金费率；intervalHours 未知时为 0
	GetFundingRate(ctx context.Context, venue, instrument string) (rate float64, intervalHours float64, err error)
}
