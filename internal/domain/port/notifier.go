package port

import (
	"context"

	"board-vision/internal/domain/entity"
)

// UpdateNotifier интерфейс получателя обновлений (UI, журнал, мессенджер)
type UpdateNotifier interface {
	Notify(ctx context.Context, update entity.PipelineUpdate) error
}
