package storage

import (
	"context"
	"sync"

	"board-vision/internal/domain/entity"
	"board-vision/internal/domain/port"
)

// MemoryUpdateRepository in-memory хранилище последних обновлений по источникам
type MemoryUpdateRepository struct {
	mu      sync.RWMutex
	updates map[string]entity.PipelineUpdate
}

// NewMemoryUpdateRepository создаёт пустое хранилище
func NewMemoryUpdateRepository() *MemoryUpdateRepository {
	return &MemoryUpdateRepository{
		updates: make(map[string]entity.PipelineUpdate),
	}
}

// SaveLast запоминает обновление как последнее для источника
func (r *MemoryUpdateRepository) SaveLast(ctx context.Context, source string, update entity.PipelineUpdate) error {
	r.mu.Lock()
	r.updates[source] = update
	r.mu.Unlock()

	return nil
}

// LoadLast возвращает последнее обновление или port.ErrNotFound
func (r *MemoryUpdateRepository) LoadLast(ctx context.Context, source string) (*entity.PipelineUpdate, error) {
	r.mu.RLock()
	u, ok := r.updates[source]
	r.mu.RUnlock()

	if !ok {
		return nil, port.ErrNotFound
	}
	return &u, nil
}

var _ port.UpdateRepository = (*MemoryUpdateRepository)(nil)
