package svc

import (
	"context"
	"fmt"
	"time"

	redisclient "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"arbsig/internal/application/event"
	"arbsig/internal/application/port"
	"arbsig/internal/application/service"
	domainservice "arbsig/internal/domain/service"
	"arbsig/internal/infrastructure/config"
	"arbsig/internal/infrastructure/exchange"
	"arbsig/internal/infrastructure/exchange/binance"
	"arbsig/internal/infrastructure/exchange/bybit"
	compositerepo "arbsig/internal/infrastructure/storage/composite"
	postgresrepo "arbsig/internal/infrastructure/storage/postgres"
	redissink "arbsig/internal/infrastructure/storage/redis"
	sqliterepo "arbsig/internal/infrastructure/storage/sqlite"
	"arbsig/internal/infrastructure/stream"

	// 交易所适配器自注册
	_ "arbsig/internal/infrastructure/exchange/bitget"
	_ "arbsig/internal/infrastructure/exchange/okx"
)

type ServiceContext struct {
	Ctx    context.Context
	Config *config.Config

	// 基础设施层（第一层初始化）
	redisClient *redisclient.Client
	redisSink   *redissink.Sink

	// 应用组件（依赖基础设施）
	Bus    *event.Bus
	Cache  *domainservice.QuoteCache
	Mux    *stream.Mux
	Hub    *exchange.Hub
	Repo   port.SignalRepository
	Engine *service.Engine

	// 资源管理
	closerChain []func() error
}

// New 创建并初始化 ServiceContext
// 这是应用启动的唯一入口点，所有依赖初始化都在这里完成
func New(ctx context.Context, cfg *config.Config) (*ServiceContext, error) {
	sc := &ServiceContext{
		Ctx:         ctx,
		Config:      cfg,
		closerChain: make([]func() error, 0),
	}

	// 按依赖顺序初始化，失败时清理已初始化的资源
	if err := sc.initializeComponents(); err != nil {
		_ = sc.Close()
		return nil, err
	}
	return sc, nil
}

// initializeComponents 初始化所有应用组件
// 存储最先（被引擎依赖），引擎最后
func (sc *ServiceContext) initializeComponents() error {
	if err := sc.initializeStorage(); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageInitFailed, err)
	}

	sc.Bus = event.NewBus(sc.Config.Engine.MaxListeners)
	if sc.redisSink != nil {
		if _, err := sc.Bus.AddListener(sc.redisSink.Listen); err != nil {
			return err
		}
	}

	sc.Cache = domainservice.NewQuoteCache()
	sc.Mux = stream.New(sc.Cache, sc.Bus, stream.Options{
		BaseDelay:        sc.Config.StreamBaseDelay(),
		MaxDelay:         sc.Config.StreamMaxDelay(),
		HandshakeTimeout: sc.Config.StreamHandshakeTimeout(),
	})

	adapters, funding, err := sc.buildVenues()
	if err != nil {
		return err
	}
	sc.Hub = exchange.NewHub(sc.Mux, adapters)

	sc.Engine = service.NewEngine(sc.Repo, sc.Hub, sc.Cache, sc.Bus, funding)

	log.Info().
		Int("venues", len(adapters)).
		Msg("✓ All components initialized")
	return nil
}

// buildVenues 从注册表实例化启用的交易所适配器，并装配可用的费率客户端
func (sc *ServiceContext) buildVenues() (map[string]exchange.Adapter, port.FundingSource, error) {
	adapters := make(map[string]exchange.Adapter)
	fundingSvc := exchange.NewFundingService()
	hasFunding := false

	for venue, vc := range sc.Config.Exchange {
		if !vc.Enabled {
			continue
		}
		factory, ok := exchange.Get(venue)
		if !ok {
			log.Warn().Str("venue", venue).Msg("venue enabled but no adapter registered, skipped")
			continue
		}
		adapters[venue] = factory(vc.WsURL, vc.RestURL)

		// REST 费率客户端目前只有 binance / bybit 两家
		if vc.RestURL != "" {
			switch venue {
			case exchange.VenueBinance:
				fundingSvc.Register(venue, binance.NewFundingRateClient(vc.RestURL))
				hasFunding = true
			case exchange.VenueBybit:
				fundingSvc.Register(venue, bybit.NewFundingRateClient(vc.RestURL))
				hasFunding = true
			}
		}

		log.Info().Str("venue", venue).Str("ws", vc.WsURL).Msg("✓ Venue adapter initialized")
	}

	if len(adapters) == 0 {
		return nil, nil, ErrNoVenuesEnabled
	}
	if !hasFunding {
		return adapters, nil, nil
	}
	return adapters, fundingSvc, nil
}

// initializeStorage 初始化存储层 (SQLite / Postgres / Redis)
func (sc *ServiceContext) initializeStorage() error {
	var repos []port.SignalRepository

	if sc.Config.SQLite.Enabled {
		repo, err := sqliterepo.New(sc.Config.SQLite.Path)
		if err != nil {
			return fmt.Errorf("sqlite repo creation failed: %w", err)
		}
		repos = append(repos, repo)
		sc.closerChain = append(sc.closerChain, func() error {
			log.Info().Msg("closing sqlite connection")
			return repo.Close()
		})
		log.Info().Str("path", sc.Config.SQLite.Path).Msg("✓ SQLite initialized")
	}

	if sc.Config.Postgres.Enabled {
		repo, err := postgresrepo.New(sc.Config.Postgres.DSN)
		if err != nil {
			return fmt.Errorf("postgres repo creation failed: %w", err)
		}
		repos = append(repos, repo)
		sc.closerChain = append(sc.closerChain, func() error {
			log.Info().Msg("closing postgres connection")
			return repo.Close()
		})
		log.Info().Msg("✓ Postgres initialized")
	}

	// 没有显式启用任何后端时落到默认路径的 SQLite，信号恢复必须有持久层
	if len(repos) == 0 {
		repo, err := sqliterepo.New(sc.Config.SQLite.Path)
		if err != nil {
			return fmt.Errorf("default sqlite repo creation failed: %w", err)
		}
		repos = append(repos, repo)
		sc.closerChain = append(sc.closerChain, func() error {
			return repo.Close()
		})
		log.Info().Str("path", sc.Config.SQLite.Path).Msg("✓ SQLite initialized (default)")
	}

	if len(repos) == 1 {
		sc.Repo = repos[0]
	} else {
		sc.Repo = compositerepo.New(repos...)
	}

	if sc.Config.Redis.Enabled {
		if err := sc.initRedis(); err != nil {
			return fmt.Errorf("redis initialization failed: %w", err)
		}
	}
	return nil
}

// initRedis 初始化 Redis 连接与事件沉槽
func (sc *ServiceContext) initRedis() error {
	rdb := redisclient.NewClient(&redisclient.Options{
		Addr:     sc.Config.Redis.Addr,
		Password: sc.Config.Redis.Password,
		DB:       sc.Config.Redis.DB,
	})

	// 测试连接
	ctx, cancel := context.WithTimeout(sc.Ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}

	sc.redisClient = rdb
	sc.redisSink = redissink.New(
		rdb,
		sc.Config.Redis.Prefix,
		sc.Config.RedisTTL(),
		sc.Config.Redis.EventStream,
		sc.Config.Redis.EventChan,
	)

	sc.closerChain = append(sc.closerChain, func() error {
		log.Info().Msg("closing redis connection")
		return rdb.Close()
	})

	log.Info().
		Str("addr", sc.Config.Redis.Addr).
		Int("db", sc.Config.Redis.DB).
		Msg("✓ Redis initialized")
	return nil
}

// Close 关闭 ServiceContext 中的所有资源
// 应该在应用退出时调用，按初始化的相反顺序释放
func (sc *ServiceContext) Close() error {
	for i := len(sc.closerChain) - 1; i >= 0; i-- {
		if err := sc.closerChain[i](); err != nil {
			log.Error().Err(err).Msg("error closing resource")
		}
	}
	return nil
}
