package bybit

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

// FundingRateClient Bybit 资金费率 REST 查询
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

type tickersResp struct {
	RetCode int    `json:"retCode"`
	RetMsg  string `json:"retMsg"`
	Result  struct {
		List []struct {
			Symbol          string `json:"symbol"`
			FundingRate     string `json:"fundingRate"`
			NextFundingTime string `json:"nextFundingTime"`
		} `json:"list"`
	} `json:"result"`
}

// GetFundingRate 查询当前资金费率；结算周期不在该接口返回，intervalHours 恒为 0
func (c *FundingRateClient) GetFundingRate(ctx context.Context, instrument string) (rate float64, intervalHours float64, err error) {
	if c.restURL == "" {
		return 0, 0, errors.New("bybit rest_url empty")
	}
	u := fmt.Sprintf("%s/v5/market/tickers?category=linear&symbol=%s",
		c.restURL, strings.ToUpper(strings.TrimSpace(instrument)))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, 0, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return 0, 0, fmt.Errorf("bybit tickers: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, 0, fmt.Errorf("bybit tickers: status %d", resp.StatusCode)
	}

	var body tickersResp
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, 0, fmt.Errorf("bybit tickers decode: %w", err)
	}
	if body.RetCode != 0 {
		return 0, 0, fmt.Errorf("bybit tickers: %s", body.RetMsg)
	}
	if len(body.Result.List) == 0 {
		return 0, 0, errors.New("bybit tickers: empty result")
	}
	n, err := strconv.ParseFloat(strings.TrimSpace(body.Result.List[0].FundingRate), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("bybit funding rate %q: %w", body.Result.List[0].FundingRate, err)
	}
	return n, 0, nil
}
