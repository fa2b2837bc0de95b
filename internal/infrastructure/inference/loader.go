package inference

import (
	"context"
	"errors"

	"board-vision/internal/domain/port"
)

// LoaderConfig откуда брать модель
type LoaderConfig struct {
	ModelURL      string // хост сервера классификации; важнее локальной модели
	ModelPath     string // путь к весам для воркера
	WorkerCommand string // команда запуска воркера
}

// Configured есть ли вообще откуда загрузить модель.
func (c LoaderConfig) Configured() bool {
	return c.ModelURL != "" || c.ModelPath != ""
}

// Loader создаёт бэкенд модели по конфигурации.
type Loader struct {
	cfg LoaderConfig
}

func NewLoader(cfg LoaderConfig) *Loader {
	return &Loader{cfg: cfg}
}

// Load подключается к серверу или запускает локальный воркер.
func (l *Loader) Load(ctx context.Context) (port.InferenceBackend, error) {
	switch {
	case l.cfg.ModelURL != "":
		return DialRemote(ctx, l.cfg.ModelURL)
	case l.cfg.ModelPath != "":
		return StartProcess(l.cfg.WorkerCommand, l.cfg.ModelPath)
	default:
		return nil, errors.New("model is not configured")
	}
}

var _ port.ModelLoader = (*Loader)(nil)
