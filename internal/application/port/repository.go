package port

import (
	"context"

	"arbsig/internal/domain/model"
)

// SignalRepository 信号持久化端口
// 引擎只依赖这四个操作，具体表结构由存储实现自行决定
type SignalRepository interface {
	// Create 持久化一条新信号（含全部配置字段和 active 状态）
	Create(ctx context.Context, sig *model.Signal) error

	// UpdateStatus 更新终态；triggeredAt 仅在 triggered 时非零
	UpdateStatus(ctx context.Context, id string, status model.SignalStatus, triggeredAtMs int64) error

	// ListByStatus 按状态列出信号（恢复时用 active）
	ListByStatus(ctx context.Context, status model.SignalStatus) ([]*model.Signal, error)

	// AppendEvent 向事件日志追加一条记录
	AppendEvent(ctx context.Context, signalID string, eventType model.EventType, payload string) error

	// Close 释放底层连接
	Close() error
}
