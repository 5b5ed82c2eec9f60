package service

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"arbsig/internal/application/port"
	"arbsig/internal/domain/model"
	domainservice "arbsig/internal/domain/service"
)

// ErrSignalNotFound stop/status 查询了不存在（或已停止）的信号
var ErrSignalNotFound = errors.New("signal not found")

// StopReasonTriggered 触发停止的原因值
const StopReasonTriggered = "triggered"

// persistTimeout 停止路径上持久化调用的上限，避免存储故障拖死拆除流程
const persistTimeout = 5 * time.Second

// Engine 信号引擎：持有活跃信号集合，为每条腿订阅行情流，
// 在每次更新上重算价差并驱动 active -> triggered|cancelled 状态机
// 进程内应只构造一个实例，由入口负责其生命周期
type Engine struct {
	repo    port.SignalRepository
	hub     port.StreamHub
	quotes  *domainservice.QuoteCache
	bus     port.EventPublisher
	funding port.FundingSource // 可为 nil：没有 REST 费率源时只靠流内数据

	mu     sync.Mutex
	active map[string]*activeSignal
}

// activeSignal 活跃信号及其订阅句柄
// mu 把同一信号两条腿的并发重算串行化；stopped 保证 trigger/stop 恰好一次
type activeSignal struct {
	mu      sync.Mutex
	sig     *model.Signal
	unsubs  []port.Unsubscribe
	stopped bool
}

func NewEngine(repo port.SignalRepository, hub port.StreamHub, quotes *domainservice.QuoteCache, bus port.EventPublisher, funding port.FundingSource) *Engine {
	return &Engine{
		repo:    repo,
		hub:     hub,
		quotes:  quotes,
		bus:     bus,
		funding: funding,
		active:  make(map[string]*activeSignal),
	}
}

// Start 校验并启动一个新信号：分配身份、持久化、订阅两条腿
// 配置错误同步返回；持久化失败只记日志，不阻止内存内监控
func (e *Engine) Start(ctx context.Context, sig *model.Signal) (*model.Signal, error) {
	sig.Normalize()
	if err := sig.Validate(); err != nil {
		return nil, err
	}

	sig.ID = uuid.NewString()
	sig.Status = model.StatusActive
	sig.CreatedAt = time.Now()
	sig.TriggeredAt = nil

	if err := e.repo.Create(ctx, sig); err != nil {
		log.Error().Err(err).Str("signal", sig.ID).Msg("persist signal failed, monitoring in memory only")
	}

	if err := e.activate(sig); err != nil {
		// 订阅失败（如不支持的交易所）：尽力把持久化记录转为 cancelled 后报错
		pctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		_ = e.repo.UpdateStatus(pctx, sig.ID, model.StatusCancelled, 0)
		cancel()
		return nil, err
	}

	e.bus.Publish(model.EventSignalStarted, snapshotOf(sig))
	e.refreshFunding(sig)

	log.Info().
		Str("signal", sig.ID).
		Str("instrument", sig.Instrument).
		Str("primary", sig.PrimaryVenue).
		Str("hedge", sig.HedgeVenue).
		Str("strategy", string(sig.Strategy)).
		Msg("signal started")
	return snapshotOf(sig), nil
}

// activate 订阅两条腿并登记到活跃集合
func (e *Engine) activate(sig *model.Signal) error {
	as := &activeSignal{sig: sig}
	handler := func(model.StreamKey, model.QuoteUpdate) { e.recompute(as) }

	unsubPrimary, err := e.hub.Subscribe(sig.PrimaryKey(), handler)
	if err != nil {
		return err
	}
	unsubHedge, err := e.hub.Subscribe(sig.HedgeKey(), handler)
	if err != nil {
		unsubPrimary()
		return err
	}
	as.unsubs = []port.Unsubscribe{unsubPrimary, unsubHedge}

	e.mu.Lock()
	e.active[sig.ID] = as
	e.mu.Unlock()
	return nil
}

// recompute 两条腿任一更新都会到这里
// 双腿价格未齐（warm-up）时静默返回；每次成功重算发布一条 price_update
func (e *Engine) recompute(as *activeSignal) {
	as.mu.Lock()
	defer as.mu.Unlock()
	if as.stopped {
		return
	}
	sig := as.sig

	primary, okP := e.quotes.Read(sig.PrimaryKey())
	hedge, okH := e.quotes.Read(sig.HedgeKey())
	if !okP || !okH || primary.Price <= 0 || hedge.Price <= 0 {
		return
	}

	longLeg, shortLeg := primary, hedge
	if sig.PrimarySide == model.SideShort {
		longLeg, shortLeg = hedge, primary
	}

	spreadPct := domainservice.PriceSpreadPct(longLeg.Price, shortLeg.Price)
	priceMet := spreadPct >= sig.MinPriceSpreadPct

	var fundingPct *float64
	// price_only 下资金费条件恒为真；combined 下费率未知视为未满足
	fundingMet := sig.Strategy == model.StrategyPriceOnly
	if f, ok := domainservice.FundingSpreadPct(longLeg, shortLeg); ok {
		v := f
		fundingPct = &v
		if sig.Strategy == model.StrategyCombined {
			fundingMet = f >= *sig.MinFundingSpreadPct
		}
	}

	now := time.Now().UnixMilli()
	e.bus.Publish(model.EventPriceUpdate, model.PriceUpdatePayload{
		SignalID:            sig.ID,
		Instrument:          sig.Instrument,
		PrimaryVenue:        sig.PrimaryVenue,
		HedgeVenue:          sig.HedgeVenue,
		PrimaryPrice:        primary.Price,
		HedgePrice:          hedge.Price,
		PriceSpreadPct:      spreadPct,
		FundingSpreadPct:    fundingPct,
		PriceConditionMet:   priceMet,
		FundingConditionMet: fundingMet,
		Ts:                  now,
	})

	if !priceMet || !fundingMet {
		return
	}

	e.bus.Publish(model.EventSignalTriggered, model.TriggerPayload{
		Signal:           snapshotOf(sig),
		PrimaryPrice:     primary.Price,
		HedgePrice:       hedge.Price,
		PrimaryFunding:   primary.FundingRate,
		HedgeFunding:     hedge.FundingRate,
		PriceSpreadPct:   spreadPct,
		FundingSpreadPct: fundingPct,
		Ts:               now,
	})
	e.stopLocked(as, model.StatusTriggered, StopReasonTriggered)
}

// Stop 停止一个活跃信号；未知（或已停止的）id 返回 ErrSignalNotFound
func (e *Engine) Stop(id, reason string) error {
	e.mu.Lock()
	as, ok := e.active[id]
	e.mu.Unlock()
	if !ok {
		return ErrSignalNotFound
	}

	as.mu.Lock()
	defer as.mu.Unlock()
	if as.stopped {
		// 触发和手动停止赛跑时输掉的一方
		return ErrSignalNotFound
	}
	status := model.StatusCancelled
	if reason == StopReasonTriggered {
		status = model.StatusTriggered
	}
	e.stopLocked(as, status, reason)
	return nil
}

// stopLocked 终态流程：持久化状态、退订两条腿、移出活跃集合、广播、记事件日志
// 调用方必须持有 as.mu
func (e *Engine) stopLocked(as *activeSignal, status model.SignalStatus, reason string) {
	as.stopped = true
	sig := as.sig
	sig.Status = status

	var triggeredAtMs int64
	if status == model.StatusTriggered {
		t := time.Now()
		sig.TriggeredAt = &t
		triggeredAtMs = t.UnixMilli()
	}

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := e.repo.UpdateStatus(ctx, sig.ID, status, triggeredAtMs); err != nil {
		log.Error().Err(err).Str("signal", sig.ID).Msg("persist status change failed")
	}

	for _, unsub := range as.unsubs {
		unsub()
	}

	e.mu.Lock()
	delete(e.active, sig.ID)
	e.mu.Unlock()

	payload := model.StopPayload{SignalID: sig.ID, Reason: reason, Ts: time.Now().UnixMilli()}
	e.bus.Publish(model.EventSignalStopped, payload)

	b, _ := json.Marshal(payload)
	if err := e.repo.AppendEvent(ctx, sig.ID, model.EventSignalStopped, string(b)); err != nil {
		log.Error().Err(err).Str("signal", sig.ID).Msg("append event log failed")
	}

	log.Info().Str("signal", sig.ID).Str("reason", reason).Msg("signal stopped")
}

// Get 查询单个活跃信号
func (e *Engine) Get(id string) (*model.Signal, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	as, ok := e.active[id]
	if !ok {
		return nil, ErrSignalNotFound
	}
	return snapshotOf(as.sig), nil
}

// List 列出活跃信号，userID 为空时不过滤
func (e *Engine) List(userID string) []*model.Signal {
	e.mu.Lock()
	out := make([]*model.Signal, 0, len(e.active))
	for _, as := range e.active {
		if userID != "" && as.sig.UserID != userID {
			continue
		}
		out = append(out, snapshotOf(as.sig))
	}
	e.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// ActiveCount 活跃信号数量
func (e *Engine) ActiveCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.active)
}

// Resume 重启恢复：重新装载所有持久化为 active 的信号并重新订阅
// 缺失腿方向的记录跳过并告警，不让单条坏数据拦住整个恢复
func (e *Engine) Resume(ctx context.Context) error {
	sigs, err := e.repo.ListByStatus(ctx, model.StatusActive)
	if err != nil {
		return err
	}

	resumed := 0
	for _, sig := range sigs {
		sig.Normalize()
		if !sig.HasSides() {
			log.Warn().Str("signal", sig.ID).Msg("persisted signal missing leg sides, skipped")
			continue
		}
		if err := e.activate(sig); err != nil {
			log.Warn().Err(err).Str("signal", sig.ID).Msg("resume subscribe failed, skipped")
			continue
		}
		e.refreshFunding(sig)
		resumed++
	}

	log.Info().Int("resumed", resumed).Int("persisted", len(sigs)).Msg("active signals resumed")
	return nil
}

// refreshFunding 对两条腿做一次 best-effort 的 REST 资金费率刷新
// 失败只降级为等流内数据，不产生错误
func (e *Engine) refreshFunding(sig *model.Signal) {
	if e.funding == nil {
		return
	}
	for _, key := range []model.StreamKey{sig.PrimaryKey(), sig.HedgeKey()} {
		go func(key model.StreamKey) {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			rate, interval, err := e.funding.GetFundingRate(ctx, key.Venue, key.Instrument)
			if err != nil {
				log.Debug().Err(err).Str("stream", key.String()).Msg("funding refresh failed")
				return
			}
			up := model.QuoteUpdate{FundingRate: &rate, Ts: time.Now().UnixMilli()}
			if interval > 0 {
				up.FundingIntervalHours = &interval
			}
			e.quotes.Merge(key, up)
		}(key)
	}
}

// snapshotOf 返回信号的独立副本，外部读取不与引擎内部状态共享
func snapshotOf(sig *model.Signal) *model.Signal {
	cp := *sig
	if sig.TriggeredAt != nil {
		t := *sig.TriggeredAt
		cp.TriggeredAt = &t
	}
	if sig.MinFundingSpreadPct != nil {
		v := *sig.MinFundingSpreadPct
		cp.MinFundingSpreadPct = &v
	}
	return &cp
}
