package port

import (
	"context"
	"errors"

	"board-vision/internal/domain/entity"
)

// ErrBackendBroken канал к модели потерян; бэкенд нужно пересоздать
var ErrBackendBroken = errors.New("inference backend broken")

// InferenceBackend интерфейс модели классификации клеток
type InferenceBackend interface {
	// Infer выполняет прямой проход по пакету [64, 1, size, size] и возвращает матрицу оценок 64×13.
	// Потеря канала оборачивается в ErrBackendBroken.
	Infer(ctx context.Context, batch *entity.TileBatch) ([][]float32, error)

	// Close освобождает ресурсы модели
	Close() error
}

// ModelLoader создаёт бэкенд модели по требованию
type ModelLoader interface {
	Load(ctx context.Context) (InferenceBackend, error)
}
