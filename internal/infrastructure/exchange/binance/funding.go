package binance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// FundingRateClient Binance 资金费率 REST 查询
type FundingRateClient struct {
	restURL string
	client  *http.Client
}

func NewFundingRateClient(restURL string) *FundingRateClient {
	return &FundingRateClient{
		restURL: strings.TrimRight(strings.TrimSpace(restURL), "/"),
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

type premiumIndexResp struct {
	Symbol          string `json:"symbol"`
	MarkPrice       string `json:"markPrice"`
	LastFundingRate string `json:"lastFundingRate"`
	NextFundingTime int64  `json:"nextFundingTime"`
}

// GetFundingRate 查询当前资金费率；Binance 不在此接口返回结算周期，intervalHours 恒为 0
func (c *FundingRateClient) GetFundingRate(ctx context.Context, instrument string) (rate float64, intervalHours float64, err error) {
	if c.restURL == "" {
		return 0, 0, errors.New("binance rest_url empty")
	}
	u := fmt.Sprintf("%s/fapi/v1/premiumIndex?symbol=%s", c.restURL, strings.ToUpper(strings.TrimSpace(instrument)))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, 0, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return 0, 0, fmt.Errorf("binance premiumIndex: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, 0, fmt.Errorf("binance premiumIndex: status %d", resp.StatusCode)
	}

	var body premiumIndexResp
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, 0, fmt.Errorf("binance premiumIndex decode: %w", err)
	}
	n, err := strconv.ParseFloat(strings.TrimSpace(body.LastFundingRate), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("binance funding rate %q: %w", body.LastFundingRate, err)
	}
	return n, 0, nil
}
