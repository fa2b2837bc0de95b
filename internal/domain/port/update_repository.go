package port

import (
	"context"
	"errors"

	"board-vision/internal/domain/entity"
)

// ErrNotFound возвращается, если сохранённого обновления нет
var ErrNotFound = errors.New("update not found")

// UpdateRepository интерфейс хранилища последнего известного обновления
type UpdateRepository interface {
	// SaveLast сохраняет обновление как последнее для источника
	SaveLast(ctx context.Context, source string, update entity.PipelineUpdate) error

	// LoadLast возвращает последнее обновление источника или ErrNotFound
	LoadLast(ctx context.Context, source string) (*entity.PipelineUpdate, error)
}
