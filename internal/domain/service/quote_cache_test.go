package service

import (
	"testing"

	"arbsig/internal/domain/model"
)

func fptr(v float64) *float64 { return &v }

func TestQuoteCacheMergePartialUpdates(t *testing.T) {
	cache := NewQuoteCache()
	key := model.NewStreamKey("BINANCE", "BTCUSDT")

	// 先来一条只带价格的更新
	q := cache.Merge(key, model.QuoteUpdate{Price: 45000})
	if q.Price != 45000 {
		t.Fatalf("expected price 45000, got %v", q.Price)
	}
	if q.FundingRate != nil {
		t.Fatalf("funding should still be unknown")
	}

	// 再来一条只带费率的更新，价格不能被清掉
	q = cache.Merge(key, model.QuoteUpdate{FundingRate: fptr(0.0001)})
	if q.Price != 45000 {
		t.Errorf("price lost after funding-only update: %v", q.Price)
	}
	if q.FundingRate == nil || *q.FundingRate != 0.0001 {
		t.Errorf("funding not merged: %v", q.FundingRate)
	}

	// 零价格不覆盖
	q = cache.Merge(key, model.QuoteUpdate{Price: 0, FundingRate: fptr(0.0002)})
	if q.Price != 45000 {
		t.Errorf("zero price should not overwrite, got %v", q.Price)
	}
	if *q.FundingRate != 0.0002 {
		t.Errorf("funding should update to 0.0002, got %v", *q.FundingRate)
	}
}

func TestQuoteCacheReadUnknownKey(t *testing.T) {
	cache := NewQuoteCache()
	if _, ok := cache.Read(model.NewStreamKey("BYBIT", "ETHUSDT")); ok {
		t.Fatal("unknown key should return ok=false")
	}
}

func TestQuoteCacheMergeCopiesPointers(t *testing.T) {
	cache := NewQuoteCache()
	key := model.NewStreamKey("OKX", "BTCUSDT")

	rate := 0.0005
	cache.Merge(key, model.QuoteUpdate{FundingRate: &rate})
	rate = 99 // 改调用方变量不能影响缓存

	q, _ := cache.Read(key)
	if *q.FundingRate != 0.0005 {
		t.Errorf("cache shares caller pointer: %v", *q.FundingRate)
	}
}

func TestQuoteCacheDrop(t *testing.T) {
	cache := NewQuoteCache()
	key := model.NewStreamKey("BINANCE", "BTCUSDT")
	cache.Merge(key, model.QuoteUpdate{Price: 100})
	cache.Drop(key)
	if _, ok := cache.Read(key); ok {
		t.Fatal("dropped key should be gone")
	}
}
