package storage

import (
	"context"
	"sort"
	"sync"

	"board-vision/internal/domain/entity"
	"board-vision/internal/domain/port"
)

// MemorySubscriberRepository in-memory хранилище подписчиков
type MemorySubscriberRepository struct {
	mu          sync.RWMutex
	subscribers map[int64]*entity.Subscriber
}

// NewMemorySubscriberRepository создаёт новое in-memory хранилище
func NewMemorySubscriberRepository() *MemorySubscriberRepository {
	return &MemorySubscriberRepository{
		subscribers: make(map[int64]*entity.Subscriber),
	}
}

// Get возвращает копию подписчика, создаёт нового если не найден
func (r *MemorySubscriberRepository) Get(ctx context.Context, userID, chatID int64) (*entity.Subscriber, error) {
	r.mu.RLock()
	s, exists := r.subscribers[userID]
	r.mu.RUnlock()

	if exists {
		cp := *s
		return &cp, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	// Параллельный Get мог уже создать запись.
	if s, exists := r.subscribers[userID]; exists {
		cp := *s
		return &cp, nil
	}
	s = entity.NewSubscriber(userID, chatID)
	r.subscribers[userID] = s
	cp := *s
	return &cp, nil
}

// Save сохраняет состояние подписчика
func (r *MemorySubscriberRepository) Save(ctx context.Context, s *entity.Subscriber) error {
	cp := *s
	r.mu.Lock()
	r.subscribers[s.UserID] = &cp
	r.mu.Unlock()

	return nil
}

// Watching возвращает подписчиков с живыми обновлениями, упорядоченных по ChatID
func (r *MemorySubscriberRepository) Watching(ctx context.Context) ([]*entity.Subscriber, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*entity.Subscriber
	for _, s := range r.subscribers {
		if s.Watching {
			cp := *s
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChatID < out[j].ChatID })
	return out, nil
}

// Проверка реализации интерфейса
var _ port.SubscriberRepository = (*MemorySubscriberRepository)(nil)
