package container

import (
	"context"
	"fmt"
	"log"

	"board-vision/config"
	app "board-vision/internal/application"
	"board-vision/internal/domain/entity"
	"board-vision/internal/domain/port"
	"board-vision/internal/infrastructure/inference"
	"board-vision/internal/infrastructure/storage"
	"board-vision/internal/infrastructure/vision"
)

type Container struct {
	Config      *config.Config
	Locator     *vision.BoardLocator
	Classifier  *vision.SquareClassifier
	Updates     port.UpdateRepository
	Subscribers *app.SubscriberService
	Inspections *app.InspectionService

	closers []func()
}

// New собирает зависимости по конфигурации. Без DATABASE_URL обновления хранятся в памяти,
// без MODEL_URL и MODEL_PATH клетки классифицируются эвристикой.
func New(ctx context.Context, cfg *config.Config) (*Container, error) {
	c := &Container{Config: cfg}

	if cfg.DatabaseURL != "" {
		repo, err := storage.NewPostgresUpdateRepository(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		c.Updates = repo
		c.closers = append(c.closers, func() { repo.Close(context.Background()) })
	} else {
		c.Updates = storage.NewMemoryUpdateRepository()
	}

	var loader port.ModelLoader
	loaderCfg := inference.LoaderConfig{
		ModelURL:      cfg.ModelURL,
		ModelPath:     cfg.ModelPath,
		WorkerCommand: cfg.ModelWorker,
	}
	if loaderCfg.Configured() {
		loader = inference.NewLoader(loaderCfg)
	} else {
		log.Println("warning: no model configured, using occupancy heuristic")
	}

	c.Locator = vision.NewBoardLocator()
	c.Classifier = vision.NewSquareClassifier(loader)
	c.closers = append(c.closers, c.Classifier.Dispose)

	c.Subscribers = app.NewSubscriberService(storage.NewMemorySubscriberRepository())
	c.Inspections = app.NewInspectionService(c.Subscribers, c.Locator, c.Classifier,
		entity.ClassifyOptions{ForceFlip: cfg.ForceFlip})

	return c, nil
}

// PipelineConfig параметры конвейера из конфигурации.
func (c *Container) PipelineConfig() app.PipelineConfig {
	return app.PipelineConfig{
		BoardRefreshInterval:   c.Config.BoardRefreshInterval,
		LowConfidenceThreshold: c.Config.LowConfidenceThreshold,
		ForceFlip:              c.Config.ForceFlip,
	}
}

// Pipeline создаёт конвейер для синхронной обработки.
func (c *Container) Pipeline() *app.VisionPipeline {
	return app.NewVisionPipeline(c.Locator, c.Classifier, c.PipelineConfig(), app.PipelineHandlers{})
}

// Stream создаёт живой поток для источника.
func (c *Container) Stream(source port.FrameSource, name string) *app.StreamService {
	return app.NewStreamService(app.StreamConfig{
		Source:          name,
		CaptureInterval: c.Config.CaptureInterval,
	}, source, c.Locator, c.Classifier, c.PipelineConfig(), c.Updates)
}

// Close освобождает модель и соединение с базой.
func (c *Container) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
}
