package port

import (
	"context"
	"errors"

	"board-vision/internal/domain/entity"
)

// FrameSource интерфейс источника кадров
type FrameSource interface {
	// Next возвращает очередной кадр
	Next(ctx context.Context) (*entity.Frame, error)

	// Close освобождает источник
	Close() error
}

// ErrSourceExhausted источник кадров закончился (конец файла или каталога)
var ErrSourceExhausted = errors.New("frame source exhausted")
