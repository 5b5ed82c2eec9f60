package exchange

import (
	"context"
	"fmt"
	"strings"

	"arbsig/internal/application/port"
)

// FundingClient 单交易所资金费率 REST 客户端
type FundingClient interface {
	GetFundingRate(ctx context.Context, instrument string) (rate float64, intervalHours float64, err error)
}

// FundingService 按 venue 路由的资金费率聚合源
// 没有 REST 客户端的交易所只能依赖流内推送的费率
type FundingService struct {
	clients map[string]FundingClient
}

func NewFundingService() *FundingService {
	return &FundingService{clients: make(map[string]FundingClient)}
}

// Register 登记一个交易所的费率客户端，venue 统一大写
func (s *FundingService) Register(venue string, client FundingClient) {
	s.clients[strings.ToUpper(venue)] = client
}

// GetFundingRate 实现 port.FundingSource
func (s *FundingService) GetFundingRate(ctx context.Context, venue, instrument string) (float64, float64, error) {
	client, ok := s.clients[strings.ToUpper(venue)]
	if !ok {
		return 0, 0, fmt.Errorf("funding: %w: %s", ErrVenueNotSupported, venue)
	}
	return client.GetFundingRate(ctx, instrument)
}

var _ port.FundingSource = (*FundingService)(nil)
