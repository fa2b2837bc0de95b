package port

import (
	"context"

	"board-vision/internal/domain/entity"
)

// SquareClassifier интерфейс классификатора клеток доски
type SquareClassifier interface {
	// Classify распознаёт 64 клетки на вырезанном изображении доски
	Classify(ctx context.Context, board *entity.Frame, opts entity.ClassifyOptions) (*entity.Classification, error)

	// Dispose освобождает модель; следующий вызов Classify инициализирует её заново
	Dispose()
}
