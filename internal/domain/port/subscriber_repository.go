package port

import (
	"context"

	"board-vision/internal/domain/entity"
)

// SubscriberRepository интерфейс хранилища подписчиков бота
type SubscriberRepository interface {
	// Get возвращает подписчика по ID пользователя, создаёт нового если не найден
	Get(ctx context.Context, userID, chatID int64) (*entity.Subscriber, error)

	// Save сохраняет состояние подписчика
	Save(ctx context.Context, s *entity.Subscriber) error

	// Watching возвращает подписчиков с включёнными живыми обновлениями
	Watching(ctx context.Context) ([]*entity.Subscriber, error)
}
