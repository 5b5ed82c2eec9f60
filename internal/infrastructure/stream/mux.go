package stream

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"arbsig/internal/application/port"
	"arbsig/internal/domain/model"
	domainservice "arbsig/internal/domain/service"
)

// 重连退避默认参数
const (
	DefaultBaseDelay        = 1 * time.Second
	DefaultMaxDelay         = 30 * time.Second
	DefaultHandshakeTimeout = 10 * time.Second
)

// DialFunc 建连函数，测试时可替换
type DialFunc func(ctx context.Context, url string) (*websocket.Conn, error)

// Options 多路复用器可调参数，零值字段使用默认值
type Options struct {
	BaseDelay        time.Duration
	MaxDelay         time.Duration
	HandshakeTimeout time.Duration
	Dial             DialFunc
}

// Mux 行情连接多路复用器
// 每个 StreamKey 最多持有一条底层连接，订阅者引用计数共享；
// 最后一个订阅者退出时同步拆除连接，订阅者存在期间断线无限重连
type Mux struct {
	mu    sync.Mutex
	conns map[model.StreamKey]*connState

	cache  *domainservice.QuoteCache
	events port.EventPublisher // 可为 nil

	baseDelay        time.Duration
	maxDelay         time.Duration
	handshakeTimeout time.Duration
	dial             DialFunc
}

type subscriber struct {
	id uint64
	fn port.UpdateHandler
}

// connState 单条连接的全部可变状态，所有字段由 Mux.mu 串行化
// wire 句柄归本条目独占，订阅者集合只记回调身份
type connState struct {
	key  model.StreamKey
	desc Descriptor

	subs   []subscriber
	nextID uint64

	conn      *websocket.Conn
	connected bool
	closing   bool
	attempts  int
	// gen 在每次拆除/重连时递增；定时器和协程回调先比对代数再动作，
	// 避免打到已经换代的条目上
	gen        uint64
	lastUpdate time.Time

	reconnectTimer *time.Timer
	pingStop       chan struct{}
}

// New 创建多路复用器；events 可为 nil（不发布连接健康事件）
func New(cache *domainservice.QuoteCache, events port.EventPublisher, opts Options) *Mux {
	m := &Mux{
		conns:            make(map[model.StreamKey]*connState),
		cache:            cache,
		events:           events,
		baseDelay:        opts.BaseDelay,
		maxDelay:         opts.MaxDelay,
		handshakeTimeout: opts.HandshakeTimeout,
		dial:             opts.Dial,
	}
	if m.baseDelay <= 0 {
		m.baseDelay = DefaultBaseDelay
	}
	if m.maxDelay <= 0 {
		m.maxDelay = DefaultMaxDelay
	}
	if m.handshakeTimeout <= 0 {
		m.handshakeTimeout = DefaultHandshakeTimeout
	}
	if m.dial == nil {
		m.dial = func(ctx context.Context, url string) (*websocket.Conn, error) {
			conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
			return conn, err
		}
	}
	return m
}

// Subscribe 订阅某条流；第一个订阅者的描述符决定连接方式
// 返回的 Unsubscribe 只移除本次注册的回调
func (m *Mux) Subscribe(key model.StreamKey, desc Descriptor, fn port.UpdateHandler) (port.Unsubscribe, error) {
	if fn == nil {
		return nil, errors.New("nil update handler")
	}
	if desc.URL == "" {
		return nil, errors.New("descriptor url empty")
	}
	if desc.Decoder == nil {
		return nil, errors.New("descriptor decoder nil")
	}

	m.mu.Lock()
	cs := m.conns[key]
	fresh := cs == nil
	if fresh {
		cs = &connState{key: key, desc: desc}
		m.conns[key] = cs
	}
	cs.nextID++
	id := cs.nextID
	cs.subs = append(cs.subs, subscriber{id: id, fn: fn})
	gen := cs.gen
	m.mu.Unlock()

	if fresh {
		log.Info().Str("stream", key.String()).Msg("stream requested, connecting")
		go m.connect(cs, gen)
	}

	var once sync.Once
	return func() {
		once.Do(func() { m.unsubscribe(key, id) })
	}, nil
}

func (m *Mux) unsubscribe(key model.StreamKey, id uint64) {
	m.mu.Lock()
	cs := m.conns[key]
	if cs == nil {
		m.mu.Unlock()
		return
	}
	for i, s := range cs.subs {
		if s.id == id {
			cs.subs = append(cs.subs[:i], cs.subs[i+1:]...)
			break
		}
	}
	if len(cs.subs) > 0 {
		m.mu.Unlock()
		return
	}

	// 最后一个订阅者：同步拆除，不留宽限期
	cs.closing = true
	cs.gen++
	if cs.reconnectTimer != nil {
		cs.reconnectTimer.Stop()
		cs.reconnectTimer = nil
	}
	if cs.pingStop != nil {
		close(cs.pingStop)
		cs.pingStop = nil
	}
	conn := cs.conn
	cs.conn = nil
	cs.connected = false
	delete(m.conns, key)
	m.mu.Unlock()

	if conn != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		_ = conn.Close()
	}
	log.Info().Str("stream", key.String()).Msg("last subscriber gone, stream closed")
}

// connect 发起一次建连尝试；gen 不匹配说明条目已换代，直接放弃
func (m *Mux) connect(cs *connState, gen uint64) {
	m.mu.Lock()
	if cs.closing || cs.gen != gen {
		m.mu.Unlock()
		return
	}
	url := cs.desc.URL
	m.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), m.handshakeTimeout)
	conn, err := m.dial(ctx, url)
	cancel()
	if err != nil {
		log.Error().Str("stream", cs.key.String()).Err(err).Msg("ws dial failed")
		m.scheduleReconnect(cs, gen)
		return
	}

	m.mu.Lock()
	if cs.closing || cs.gen != gen {
		m.mu.Unlock()
		_ = conn.Close()
		return
	}
	cs.conn = conn
	cs.connected = true
	cs.attempts = 0
	desc := cs.desc
	pingStop := make(chan struct{})
	cs.pingStop = pingStop
	m.mu.Unlock()

	if len(desc.SubscribePayload) > 0 {
		if err := conn.WriteMessage(websocket.TextMessage, desc.SubscribePayload); err != nil {
			log.Error().Str("stream", cs.key.String()).Err(err).Msg("subscribe handshake failed")
			m.onConnClosed(cs, gen, err)
			return
		}
	}

	log.Info().Str("stream", cs.key.String()).Msg("ws connected")
	m.publishConn(model.EventConnectionUp, cs.key, 0, "")

	go m.heartbeat(cs.key, conn, desc, pingStop)
	go m.readLoop(cs, conn, gen)
}

// heartbeat 按描述符的周期发送 keepalive，连接关闭或写失败时退出
func (m *Mux) heartbeat(key model.StreamKey, conn *websocket.Conn, desc Descriptor, stop <-chan struct{}) {
	ticker := time.NewTicker(desc.heartbeat())
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			var err error
			if desc.PingMessage != nil {
				err = conn.WriteMessage(websocket.TextMessage, desc.PingMessage)
			} else {
				err = conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(5*time.Second))
			}
			if err != nil {
				log.Warn().Str("stream", key.String()).Err(err).Msg("heartbeat write failed")
				return
			}
		}
	}
}

func (m *Mux) readLoop(cs *connState, conn *websocket.Conn, gen uint64) {
	readWait := 3 * cs.desc.heartbeat()
	_ = conn.SetReadDeadline(time.Now().Add(readWait))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(readWait))
		return nil
	})

	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			m.onConnClosed(cs, gen, err)
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(readWait))

		up, ok, derr := cs.desc.Decoder.Decode(frame)
		if derr != nil {
			// 单帧解码失败只丢弃，连接和订阅者不受影响
			log.Error().Str("stream", cs.key.String()).Err(derr).Msg("frame decode failed")
			continue
		}
		if !ok {
			continue
		}
		if up.Price <= 0 && up.FundingRate == nil && up.FundingIntervalHours == nil {
			continue
		}
		if up.Ts == 0 {
			up.Ts = time.Now().UnixMilli()
		}

		m.cache.Merge(cs.key, up)

		m.mu.Lock()
		if cs.gen != gen {
			m.mu.Unlock()
			return
		}
		cs.lastUpdate = time.Now()
		subs := make([]subscriber, len(cs.subs))
		copy(subs, cs.subs)
		m.mu.Unlock()

		// 在读协程上按注册顺序同步广播，不排队不合并
		for _, s := range subs {
			s.fn(cs.key, up)
		}
	}
}

// onConnClosed 连接断开的统一善后：换代、停心跳，必要时安排重连
func (m *Mux) onConnClosed(cs *connState, gen uint64, cause error) {
	m.mu.Lock()
	if cs.gen != gen {
		// 已被拆除或重连过，本次关闭属于旧代
		m.mu.Unlock()
		return
	}
	cs.gen++
	next := cs.gen
	cs.connected = false
	conn := cs.conn
	cs.conn = nil
	if cs.pingStop != nil {
		close(cs.pingStop)
		cs.pingStop = nil
	}
	dead := cs.closing || len(cs.subs) == 0
	m.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}

	code, reason := closeDetails(cause)
	m.publishConn(model.EventConnectionDown, cs.key, code, reason)

	if dead {
		return
	}
	log.Warn().Str("stream", cs.key.String()).Err(cause).Msg("ws disconnected")
	m.scheduleReconnect(cs, next)
}

// scheduleReconnect 按指数退避安排下一次重连，后一次调度覆盖前一次
func (m *Mux) scheduleReconnect(cs *connState, gen uint64) {
	m.mu.Lock()
	if cs.closing || cs.gen != gen || len(cs.subs) == 0 {
		m.mu.Unlock()
		return
	}
	delay := backoffDelay(m.baseDelay, m.maxDelay, cs.attempts)
	cs.attempts++
	attempt := cs.attempts
	if cs.reconnectTimer != nil {
		cs.reconnectTimer.Stop()
	}
	cs.reconnectTimer = time.AfterFunc(delay, func() { m.connect(cs, gen) })
	m.mu.Unlock()

	log.Warn().
		Str("stream", cs.key.String()).
		Int("attempt", attempt).
		Int64("delay_ms", delay.Milliseconds()).
		Msg("reconnect scheduled")
}

// backoffDelay min(base * 2^attempts, max)
func backoffDelay(base, max time.Duration, attempts int) time.Duration {
	d := base
	for i := 0; i < attempts; i++ {
		d *= 2
		if d >= max {
			return max
		}
	}
	if d > max {
		return max
	}
	return d
}

func closeDetails(err error) (int, string) {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return ce.Code, ce.Text
	}
	if err != nil {
		return 0, err.Error()
	}
	return 0, ""
}

func (m *Mux) publishConn(t model.EventType, key model.StreamKey, code int, reason string) {
	if m.events == nil {
		return
	}
	m.events.Publish(t, model.ConnectionPayload{
		Venue:      key.Venue,
		Instrument: key.Instrument,
		Code:       code,
		Reason:     reason,
	})
}

// IsConnected 某条流当前是否在线
func (m *Mux) IsConnected(key model.StreamKey) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	cs := m.conns[key]
	return cs != nil && cs.connected
}

// LastUpdate 某条流最近一次成功广播的时间，未知 key 返回零值
func (m *Mux) LastUpdate(key model.StreamKey) time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cs := m.conns[key]; cs != nil {
		return cs.lastUpdate
	}
	return time.Time{}
}

// Stats 全部在管流的健康快照，按 key 排序保证输出稳定
func (m *Mux) Stats() []port.StreamStats {
	m.mu.Lock()
	out := make([]port.StreamStats, 0, len(m.conns))
	for _, cs := range m.conns {
		out = append(out, port.StreamStats{
			Key:         cs.key,
			Subscribers: len(cs.subs),
			Connected:   cs.connected,
			LastUpdate:  cs.lastUpdate,
			Reconnects:  cs.attempts,
		})
	}
	m.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Key.String() < out[j].Key.String() })
	return out
}
