package capture

import (
	"errors"
	"fmt"
	"os"

	"board-vision/internal/domain/port"
)

var (
	// ErrGoCVDisabled сборка без тега gocv: видео и подсветка недоступны
	ErrGoCVDisabled = errors.New("gocv build tag is not enabled")
	// ErrPoorQuality кадр не прошёл проверку качества
	ErrPoorQuality = errors.New("poor frame quality")
)

// Seeker источник с известным числом кадров и пропуском вперёд.
type Seeker interface {
	FrameCount() int
	Skip(n int)
}

// Open открывает каталог изображений, видеофайл или камеру по индексу.
func Open(source string) (port.FrameSource, error) {
	if source == "" {
		return nil, errors.New("video source is not configured")
	}
	if info, err := os.Stat(source); err == nil && info.IsDir() {
		return NewImageDirSource(source)
	}
	src, err := OpenVideo(source)
	if err != nil {
		return nil, fmt.Errorf("open video %s: %w", source, err)
	}
	return src, nil
}
