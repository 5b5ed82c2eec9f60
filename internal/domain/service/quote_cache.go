package service

import (
	"sync"
	"time"

	"arbsig/internal/domain/model"
)

// QuoteCache 每条流的最新行情快照
// 合并语义：只有更新里明确携带的字段才覆盖旧值，price 只接受正数
// 调用方不能假设一条更新携带全部字段
type QuoteCache struct {
	mu     sync.RWMutex
	quotes map[model.StreamKey]model.Quote
}

func NewQuoteCache() *QuoteCache {
	return &QuoteCache{quotes: make(map[model.StreamKey]model.Quote)}
}

// Merge 按字段做 last-write-wins 合并，返回合并后的快照
func (c *QuoteCache) Merge(key model.StreamKey, up model.QuoteUpdate) model.Quote {
	c.mu.Lock()
	defer c.mu.Unlock()

	q := c.quotes[key]
	if up.Price > 0 {
		q.Price = up.Price
	}
	if up.FundingRate != nil {
		rate := *up.FundingRate
		q.FundingRate = &rate
	}
	if up.FundingIntervalHours != nil {
		interval := *up.FundingIntervalHours
		q.FundingIntervalHours = &interval
	}
	q.UpdatedAt = time.Now()
	c.quotes[key] = q
	return q
}

// Read 读取某条流的快照
// 未知 key 返回 ok=false，调用方据此区分"还没有数据"和"价格为零"
func (c *QuoteCache) Read(key model.StreamKey) (model.Quote, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	q, ok := c.quotes[key]
	return q, ok
}

// Drop 移除某条流的快照（可选清理，重新订阅会重新填充）
func (c *QuoteCache) Drop(key model.StreamKey) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.quotes, key)
}
