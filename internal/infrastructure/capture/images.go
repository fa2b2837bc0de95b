package capture

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"board-vision/internal/domain/entity"
	"board-vision/internal/domain/port"
)

// LoadImage читает PNG или JPEG с диска.
func LoadImage(path string) (*entity.Frame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return entity.FrameFromImage(img, time.Now()), nil
}

// ImageDirSource отдаёт изображения каталога по порядку имён.
type ImageDirSource struct {
	// FrameInterval шаг меток времени между соседними файлами
	FrameInterval time.Duration

	mu      sync.Mutex
	files   []string
	next    int
	started time.Time
}

// NewImageDirSource находит в каталоге файлы .png, .jpg и .jpeg.
func NewImageDirSource(dir string) (*ImageDirSource, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".png", ".jpg", ".jpeg":
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)

	return &ImageDirSource{
		FrameInterval: time.Second,
		files:         files,
		started:       time.Now(),
	}, nil
}

// Next декодирует следующий файл или возвращает port.ErrSourceExhausted.
func (s *ImageDirSource) Next(ctx context.Context) (*entity.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.next >= len(s.files) {
		s.mu.Unlock()
		return nil, port.ErrSourceExhausted
	}
	idx := s.next
	s.next++
	s.mu.Unlock()

	frame, err := LoadImage(s.files[idx])
	if err != nil {
		return nil, err
	}
	frame.Timestamp = s.started.Add(time.Duration(idx) * s.FrameInterval)
	return frame, nil
}

// FrameCount число изображений в каталоге.
func (s *ImageDirSource) FrameCount() int {
	return len(s.files)
}

// Skip пропускает n изображений.
func (s *ImageDirSource) Skip(n int) {
	s.mu.Lock()
	s.next = min(s.next+max(n, 0), len(s.files))
	s.mu.Unlock()
}

func (s *ImageDirSource) Close() error { return nil }

var (
	_ port.FrameSource = (*ImageDirSource)(nil)
	_ Seeker           = (*ImageDirSource)(nil)
)
