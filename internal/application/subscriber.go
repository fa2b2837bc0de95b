package app

import (
	"context"
	"time"

	"board-vision/internal/domain/entity"
	"board-vision/internal/domain/port"
)

type SubscriberService struct {
	repo port.SubscriberRepository
	now  func() time.Time
}

func NewSubscriberService(repo port.SubscriberRepository) *SubscriberService {
	return &SubscriberService{repo: repo, now: time.Now}
}

func (s *SubscriberService) Get(ctx context.Context, userID, chatID int64) (*entity.Subscriber, error) {
	return s.repo.Get(ctx, userID, chatID)
}

func (s *SubscriberService) SetState(ctx context.Context, userID, chatID int64, state entity.SubscriberState) (*entity.Subscriber, error) {
	sub, err := s.repo.Get(ctx, userID, chatID)
	if err != nil {
		return nil, err
	}

	sub.SetState(state)
	if err := s.repo.Save(ctx, sub); err != nil {
		return nil, err
	}

	return sub, nil
}

func (s *SubscriberService) BeginCheck(ctx context.Context, userID, chatID int64) (*entity.Subscriber, error) {
	return s.SetState(ctx, userID, chatID, entity.StateAwaitingPhoto)
}

func (s *SubscriberService) Cancel(ctx context.Context, userID, chatID int64) (*entity.Subscriber, error) {
	return s.SetState(ctx, userID, chatID, entity.StateIdle)
}

// Watch включает или выключает живые обновления позиции для чата.
func (s *SubscriberService) Watch(ctx context.Context, userID, chatID int64, on bool) (*entity.Subscriber, error) {
	sub, err := s.repo.Get(ctx, userID, chatID)
	if err != nil {
		return nil, err
	}

	sub.Watch(on, s.now())
	if err := s.repo.Save(ctx, sub); err != nil {
		return nil, err
	}

	return sub, nil
}

// WatchingChats возвращает чаты, подписанные на живые обновления.
func (s *SubscriberService) WatchingChats(ctx context.Context) ([]int64, error) {
	subs, err := s.repo.Watching(ctx)
	if err != nil {
		return nil, err
	}
	chats := make([]int64, 0, len(subs))
	for _, sub := range subs {
		chats = append(chats, sub.ChatID)
	}
	return chats, nil
}
