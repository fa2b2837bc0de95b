package entity

import "time"

// SubscriberState состояние диалога с подписчиком
type SubscriberState string

const (
	StateIdle          SubscriberState = "idle"           // В главном меню
	StateAwaitingPhoto SubscriberState = "awaiting_photo" // Ожидание фото доски
	StateProcessing    SubscriberState = "processing"     // Распознавание фото
)

// Subscriber чат, получающий обновления позиции
type Subscriber struct {
	UserID   int64           // Telegram User ID
	ChatID   int64           // Telegram Chat ID
	State    SubscriberState // Текущее состояние диалога
	Watching bool            // Получает ли чат живые обновления
	Since    time.Time       // Когда включена подписка
}

// NewSubscriber создаёт подписчика в главном меню без подписки на обновления
func NewSubscriber(userID, chatID int64) *Subscriber {
	return &Subscriber{
		UserID: userID,
		ChatID: chatID,
		State:  StateIdle,
	}
}

// SetState обновляет состояние диалога
func (s *Subscriber) SetState(state SubscriberState) {
	s.State = state
}

// Watch включает или выключает живые обновления
func (s *Subscriber) Watch(on bool, now time.Time) {
	s.Watching = on
	if on {
		s.Since = now
	} else {
		s.Since = time.Time{}
	}
}
