package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog/log"

	"arbsig/internal/application/event"
	"arbsig/internal/application/port"
	"arbsig/internal/application/service"
	"arbsig/internal/domain/model"
	"arbsig/internal/infrastructure/exchange"
)

// sseBuffer 每个 SSE 客户端的事件缓冲，写满时丢新事件
const sseBuffer = 64

// Server 信号引擎的 HTTP 控制面
type Server struct {
	e      *echo.Echo
	engine *service.Engine
	hub    port.StreamHub
	bus    *event.Bus
	addr   string
}

func NewServer(engine *service.Engine, hub port.StreamHub, bus *event.Bus, addr string) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	s := &Server{e: e, engine: engine, hub: hub, bus: bus, addr: addr}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.e.GET("/healthz", s.health)

	g := s.e.Group("/api")
	g.POST("/signals", s.createSignal)
	g.GET("/signals", s.listSignals)
	g.GET("/signals/:id", s.getSignal)
	g.POST("/signals/:id/stop", s.stopSignal)
	g.GET("/streams", s.listStreams)
	g.GET("/events", s.streamEvents)
}

// Handler 暴露底层路由，测试时直接挂 httptest
func (s *Server) Handler() http.Handler { return s.e }

// Start 阻塞运行直到 ctx 取消，然后优雅关停
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", s.addr).Msg("http server listening")
		if err := s.e.Start(s.addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.e.Shutdown(shutCtx)
	case err := <-errCh:
		return err
	}
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status":         "ok",
		"active_signals": s.engine.ActiveCount(),
	})
}

func (s *Server) createSignal(c echo.Context) error {
	var sig model.Signal
	if err := c.Bind(&sig); err != nil {
		return c.JSON(http.StatusBadRequest, errBody(err))
	}

	created, err := s.engine.Start(c.Request().Context(), &sig)
	if err != nil {
		if errors.Is(err, exchange.ErrVenueNotSupported) || isValidationError(err) {
			return c.JSON(http.StatusBadRequest, errBody(err))
		}
		return c.JSON(http.StatusInternalServerError, errBody(err))
	}
	return c.JSON(http.StatusCreated, created)
}

func (s *Server) getSignal(c echo.Context) error {
	sig, err := s.engine.Get(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusNotFound, errBody(err))
	}
	return c.JSON(http.StatusOK, sig)
}

func (s *Server) listSignals(c echo.Context) error {
	return c.JSON(http.StatusOK, s.engine.List(c.QueryParam("user_id")))
}

func (s *Server) stopSignal(c echo.Context) error {
	id := c.Param("id")
	if err := s.engine.Stop(id, "manual"); err != nil {
		return c.JSON(http.StatusNotFound, errBody(err))
	}
	return c.JSON(http.StatusOK, map[string]string{"signal_id": id, "status": "cancelled"})
}

func (s *Server) listStreams(c echo.Context) error {
	return c.JSON(http.StatusOK, s.hub.Stats())
}

// streamEvents SSE：把总线事件推给客户端，直到其断开
// 慢客户端缓冲写满后丢事件，不让单个消费者反压引擎
func (s *Server) streamEvents(c echo.Context) error {
	resp := c.Response()
	resp.Header().Set(echo.HeaderContentType, "text/event-stream")
	resp.Header().Set(echo.HeaderCacheControl, "no-cache")
	resp.Header().Set("Connection", "keep-alive")
	resp.WriteHeader(http.StatusOK)
	resp.Flush()

	ch := make(chan model.Event, sseBuffer)
	id, err := s.bus.AddListener(func(ev model.Event) {
		select {
		case ch <- ev:
		default:
		}
	})
	if err != nil {
		return c.JSON(http.StatusServiceUnavailable, errBody(err))
	}
	defer s.bus.RemoveListener(id)

	ctx := c.Request().Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-ch:
			b, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			if _, err := resp.Write([]byte("event: " + string(ev.Type) + "\ndata: " + string(b) + "\n\n")); err != nil {
				return nil
			}
			resp.Flush()
		}
	}
}

func errBody(err error) map[string]string {
	return map[string]string{"error": err.Error()}
}

func isValidationError(err error) bool {
	for _, target := range []error{
		model.ErrInvalidStrategy,
		model.ErrInvalidSides,
		model.ErrMissingVenue,
		model.ErrMissingInstrument,
		model.ErrInvalidPriceThreshold,
		model.ErrMissingFundingThreshold,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
