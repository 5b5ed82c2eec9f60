package port

import "arbsig/internal/domain/model"

// EventPublisher 生命周期事件发布端口
type EventPublisher interface {
	Publish(eventType model.EventType, payload any)
}
