package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"board-vision/internal/domain/entity"
	"board-vision/internal/infrastructure/storage"
)

func TestSubscriberService_BeginCheckAndCancel(t *testing.T) {
	svc := NewSubscriberService(storage.NewMemorySubscriberRepository())
	ctx := context.Background()

	sub, err := svc.BeginCheck(ctx, 1, 10)
	require.NoError(t, err)
	require.Equal(t, entity.StateAwaitingPhoto, sub.State)

	sub, err = svc.Cancel(ctx, 1, 10)
	require.NoError(t, err)
	require.Equal(t, entity.StateIdle, sub.State)
}

func TestSubscriberService_Watch(t *testing.T) {
	svc := NewSubscriberService(storage.NewMemorySubscriberRepository())
	ctx := context.Background()

	_, err := svc.Watch(ctx, 1, 10, true)
	require.NoError(t, err)
	_, err = svc.Watch(ctx, 2, 20, true)
	require.NoError(t, err)
	_, err = svc.Watch(ctx, 2, 20, false)
	require.NoError(t, err)

	chats, err := svc.WatchingChats(ctx)
	require.NoError(t, err)
	require.Equal(t, []int64{10}, chats)
}
