package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"arbsig/internal/domain/model"
)

// 事件沉到 Redis 的默认参数
const (
	defaultStreamMaxLen = 10000
	publishTimeout      = 3 * time.Second
)

// Sink 把总线事件落到 Redis：capped stream 供回放，pub/sub 供在线消费，
// price_update 额外写入 latest hash 供外部只读查询
type Sink struct {
	rdb         *redis.Client
	prefix      string
	ttl         time.Duration
	keyLatest   string // prefix + ":latest"
	eventStream string
	eventChan   string
	maxLen      int64
}

func New(rdb *redis.Client, prefix string, ttl time.Duration, eventStream, eventChan string) *Sink {
	if strings.TrimSpace(eventStream) == "" {
		eventStream = prefix + ":events"
	}
	if strings.TrimSpace(eventChan) == "" {
		eventChan = prefix + ":events:pub"
	}
	return &Sink{
		rdb:         rdb,
		prefix:      prefix,
		ttl:         ttl,
		keyLatest:   prefix + ":latest",
		eventStream: eventStream,
		eventChan:   eventChan,
		maxLen:      defaultStreamMaxLen,
	}
}

// Listen 作为总线监听者使用；Redis 故障只记日志，不反压引擎
func (s *Sink) Listen(ev model.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	b, err := json.Marshal(ev.Payload)
	if err != nil {
		log.Warn().Err(err).Str("type", string(ev.Type)).Msg("redis sink marshal failed")
		return
	}

	// 1) Stream: XADD MAXLEN ~ <n> <stream> * type ts payload
	if _, err := s.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: s.eventStream,
		MaxLen: s.maxLen,
		Approx: true,
		Values: map[string]any{
			"type":    string(ev.Type),
			"ts_ms":   ev.Timestamp.UnixMilli(),
			"payload": string(b),
		},
	}).Result(); err != nil {
		log.Warn().Err(err).Msg("redis XADD failed")
	}

	// 2) PubSub: PUBLISH <channel> json
	msg := fmt.Sprintf(`{"type":%q,"ts_ms":%d,"payload":%s}`, ev.Type, ev.Timestamp.UnixMilli(), b)
	if err := s.rdb.Publish(ctx, s.eventChan, msg).Err(); err != nil {
		log.Warn().Err(err).Msg("redis PUBLISH failed")
	}

	if ev.Type == model.EventPriceUpdate {
		if p, ok := ev.Payload.(model.PriceUpdatePayload); ok {
			s.upsertLatest(ctx, p)
		}
	}
}

// upsertLatest Hash: field = "BINANCE:BTCUSDT" -> price json
func (s *Sink) upsertLatest(ctx context.Context, p model.PriceUpdatePayload) {
	pipe := s.rdb.Pipeline()
	for _, leg := range []struct {
		venue string
		price float64
	}{
		{p.PrimaryVenue, p.PrimaryPrice},
		{p.HedgeVenue, p.HedgePrice},
	} {
		if leg.price <= 0 {
			continue
		}
		field := fmt.Sprintf("%s:%s", leg.venue, p.Instrument)
		val := fmt.Sprintf(`{"price":%.8f,"ts_ms":%d}`, leg.price, p.Ts)
		pipe.HSet(ctx, s.keyLatest, field, val)
	}
	if s.ttl > 0 {
		pipe.Expire(ctx, s.keyLatest, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		log.Warn().Err(err).Msg("redis latest upsert failed")
	}
}
