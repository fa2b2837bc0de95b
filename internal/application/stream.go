package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"board-vision/internal/domain/entity"
	"board-vision/internal/domain/port"
)

// persistTimeout ограничение на сохранение и рассылку одного обновления.
const persistTimeout = 5 * time.Second

// StreamConfig параметры живого потока
type StreamConfig struct {
	Source          string        // имя источника, ключ последнего обновления в хранилище
	CaptureInterval time.Duration // период захвата кадров
}

// StreamService гонит кадры из источника через конвейер, сохраняет и рассылает обновления.
type StreamService struct {
	cfg      StreamConfig
	source   port.FrameSource
	updates  port.UpdateRepository
	pipeline *VisionPipeline

	mu        sync.RWMutex
	notifiers []port.UpdateNotifier
	last      *entity.PipelineUpdate
}

// NewStreamService создаёт сервис и собственный конвейер поверх локатора и классификатора.
func NewStreamService(cfg StreamConfig, source port.FrameSource, locator port.BoardLocator, classifier port.SquareClassifier, pipelineCfg PipelineConfig, updates port.UpdateRepository) *StreamService {
	s := &StreamService{
		cfg:     cfg,
		source:  source,
		updates: updates,
	}
	s.pipeline = NewVisionPipeline(locator, classifier, pipelineCfg, PipelineHandlers{
		OnUpdate: s.handleUpdate,
		OnError:  s.handleError,
	})
	return s
}

// AddNotifier подключает получателя обновлений.
func (s *StreamService) AddNotifier(n port.UpdateNotifier) {
	s.mu.Lock()
	s.notifiers = append(s.notifiers, n)
	s.mu.Unlock()
}

// Pipeline возвращает конвейер сервиса.
func (s *StreamService) Pipeline() *VisionPipeline {
	return s.pipeline
}

// Restore возвращает сохранённое последнее обновление источника; nil, если его нет.
func (s *StreamService) Restore(ctx context.Context) (*entity.PipelineUpdate, error) {
	u, err := s.updates.LoadLast(ctx, s.cfg.Source)
	if errors.Is(err, port.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("restore last update: %w", err)
	}

	s.mu.Lock()
	if s.last == nil {
		s.last = u
	}
	s.mu.Unlock()
	return u, nil
}

// Last последнее известное обновление: выданное в этом запуске или восстановленное.
func (s *StreamService) Last(ctx context.Context) (*entity.PipelineUpdate, error) {
	s.mu.RLock()
	last := s.last
	s.mu.RUnlock()
	if last != nil {
		cp := *last
		return &cp, nil
	}
	return s.Restore(ctx)
}

// Reset сбрасывает состояние конвейера, например при смене сцены.
func (s *StreamService) Reset() {
	s.pipeline.Reset()
}

// Stats счётчики конвейера.
func (s *StreamService) Stats() PipelineStats {
	return s.pipeline.Stats()
}

// Run захватывает кадры с заданным периодом до отмены ctx или исчерпания источника.
func (s *StreamService) Run(ctx context.Context) error {
	if _, err := s.Restore(ctx); err != nil {
		log.Printf("warning: %v", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.pipeline.Start(ctx)
	defer s.pipeline.Close()

	ticker := time.NewTicker(s.cfg.CaptureInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		frame, err := s.source.Next(ctx)
		switch {
		case errors.Is(err, port.ErrSourceExhausted):
			log.Printf("Source %s exhausted", s.cfg.Source)
			return nil
		case ctx.Err() != nil:
			return nil
		case err != nil:
			log.Printf("warning: capture from %s failed: %v", s.cfg.Source, err)
			continue
		}
		s.pipeline.Submit(frame)
	}
}

func (s *StreamService) handleUpdate(u entity.PipelineUpdate) {
	s.mu.Lock()
	cp := u
	s.last = &cp
	notifiers := append([]port.UpdateNotifier(nil), s.notifiers...)
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	if err := s.updates.SaveLast(ctx, s.cfg.Source, u); err != nil {
		log.Printf("warning: persist update %d: %v", u.RequestID, err)
	}
	for _, n := range notifiers {
		if err := n.Notify(ctx, u); err != nil {
			log.Printf("warning: notify update %d: %v", u.RequestID, err)
		}
	}
}

func (s *StreamService) handleError(e entity.PipelineError) {
	log.Printf("warning: request %d failed: %s", e.RequestID, e.Message)
}
