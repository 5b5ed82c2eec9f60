package composite

import (
	"context"

	"arbsig/internal/application/port"
	"arbsig/internal/domain/model"
)

// Repo 复合仓库：按登记顺序把写入扇出到每个后端
// 读取只走第一个后端（其余视为副本/审计用途）
type Repo struct {
	repos []port.SignalRepository
}

func New(repos ...port.SignalRepository) *Repo {
	// nil repos are allowed; filter in constructor for safety
	out := make([]port.SignalRepository, 0, len(repos))
	for _, r := range repos {
		if r != nil {
			out = append(out, r)
		}
	}
	return &Repo{repos: out}
}

func (r *Repo) Create(ctx context.Context, sig *model.Signal) error {
	var firstErr error
	for _, repo := range r.repos {
		if err := repo.Create(ctx, sig); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (r *Repo) UpdateStatus(ctx context.Context, id string, status model.SignalStatus, triggeredAtMs int64) error {
	var firstErr error
	for _, repo := range r.repos {
		if err := repo.UpdateStatus(ctx, id, status, triggeredAtMs); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (r *Repo) ListByStatus(ctx context.Context, status model.SignalStatus) ([]*model.Signal, error) {
	if len(r.repos) == 0 {
		return nil, nil
	}
	return r.repos[0].ListByStatus(ctx, status)
}

func (r *Repo) AppendEvent(ctx context.Context, signalID string, eventType model.EventType, payload string) error {
	var firstErr error
	for _, repo := range r.repos {
		if err := repo.AppendEvent(ctx, signalID, eventType, payload); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (r *Repo) Close() error {
	var firstErr error
	for _, repo := range r.repos {
		if err := repo.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

var _ port.SignalRepository = (*Repo)(nil)
