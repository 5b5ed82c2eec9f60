package event

import (
	"errors"
	"sync"
	"time"

	"arbsig/internal/domain/model"
)

// DefaultMaxListeners 监听者上限，超限是配置错误，注册时直接报错而不是静默丢事件
const DefaultMaxListeners = 100

// ErrTooManyListeners 监听者数量达到上限
var ErrTooManyListeners = errors.New("event bus listener limit reached")

// Listener 事件回调，按注册顺序同步调用
type Listener func(ev model.Event)

// Bus 进程级事件广播器
// 发布时对监听者列表做快照：发布过程中新增的监听者不会收到本次事件
type Bus struct {
	mu        sync.Mutex
	nextID    int
	order     []int
	listeners map[int]Listener
	max       int
}

// NewBus 创建广播器，max <= 0 时使用默认上限
func NewBus(max int) *Bus {
	if max <= 0 {
		max = DefaultMaxListeners
	}
	return &Bus{
		listeners: make(map[int]Listener),
		max:       max,
	}
}

// AddListener 注册监听者，返回用于注销的 id
func (b *Bus) AddListener(fn Listener) (int, error) {
	if fn == nil {
		return 0, errors.New("nil listener")
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.listeners) >= b.max {
		return 0, ErrTooManyListeners
	}
	b.nextID++
	id := b.nextID
	b.listeners[id] = fn
	b.order = append(b.order, id)
	return id, nil
}

// RemoveListener 注销监听者，未知 id 忽略
func (b *Bus) RemoveListener(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.listeners[id]; !ok {
		return
	}
	delete(b.listeners, id)
	for i, v := range b.order {
		if v == id {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
}

// Publish 同步广播一条事件给当前全部监听者
func (b *Bus) Publish(eventType model.EventType, payload any) {
	ev := model.Event{
		Type:      eventType,
		Payload:   payload,
		Timestamp: time.Now(),
	}

	b.mu.Lock()
	snapshot := make([]Listener, 0, len(b.order))
	for _, id := range b.order {
		if fn, ok := b.listeners[id]; ok {
			snapshot = append(snapshot, fn)
		}
	}
	b.mu.Unlock()

	// 锁外投递，慢监听者不会阻塞新的注册/注销
	for _, fn := range snapshot {
		fn(ev)
	}
}

// Len 当前监听者数量
func (b *Bus) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.listeners)
}
