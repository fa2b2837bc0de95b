//go:build !gocv
// +build !gocv

package capture

import (
	"context"

	"board-vision/internal/domain/entity"
)

// VideoSource заглушка источника видео (без OpenCV).
type VideoSource struct{}

// OpenVideo возвращает ошибку, если сборка без тега gocv.
func OpenVideo(source string) (*VideoSource, error) {
	_ = source
	return nil, ErrGoCVDisabled
}

func (s *VideoSource) Next(ctx context.Context) (*entity.Frame, error) {
	_ = ctx
	return nil, ErrGoCVDisabled
}

func (s *VideoSource) FrameCount() int { return 0 }

func (s *VideoSource) Skip(n int) {}

func (s *VideoSource) Close() error { return nil }

// HighlightRegion возвращает ошибку, если сборка без тега gocv.
func HighlightRegion(imageData []byte, region entity.Region) ([]byte, error) {
	_ = imageData
	_ = region
	return nil, ErrGoCVDisabled
}
