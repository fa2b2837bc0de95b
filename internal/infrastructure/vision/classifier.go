package vision

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"board-vision/internal/domain/entity"
	"board-vision/internal/domain/port"
)

var (
	// ErrNoModel модель не настроена или недавно не загрузилась
	ErrNoModel = errors.New("model is not available")
	// ErrDisposed классификатор освобождён во время загрузки модели
	ErrDisposed = errors.New("classifier disposed")
)

// DefaultModelRetryInterval пауза перед повторной попыткой загрузить модель.
const DefaultModelRetryInterval = 30 * time.Second

// modelInit загрузка модели, которую разделяют все ожидающие вызовы.
type modelInit struct {
	done    chan struct{}
	backend port.InferenceBackend
	err     error
}

// SquareClassifier классифицирует 64 клетки моделью или эвристикой занятости.
type SquareClassifier struct {
	TileSize           int
	ModelRetryInterval time.Duration

	loader port.ModelLoader

	mu         sync.Mutex
	backend    port.InferenceBackend
	pending    *modelInit
	lastFailed time.Time
	now        func() time.Time
}

// NewSquareClassifier создаёт классификатор. loader может быть nil: тогда всегда работает эвристика.
func NewSquareClassifier(loader port.ModelLoader) *SquareClassifier {
	return &SquareClassifier{
		TileSize:           DefaultTileSize,
		ModelRetryInterval: DefaultModelRetryInterval,
		loader:             loader,
		now:                time.Now,
	}
}

// Classify распознаёт клетки изображения доски и собирает FEN.
func (c *SquareClassifier) Classify(ctx context.Context, board *entity.Frame, opts entity.ClassifyOptions) (*entity.Classification, error) {
	if board == nil || board.Width() == 0 || board.Height() == 0 {
		return nil, fmt.Errorf("classify: %w", entity.ErrInvalidFrame)
	}

	batch := ExtractTiles(board, c.TileSize)

	snapshot, err := c.classifyWithModel(ctx, batch)
	source := entity.SourceModel
	if err != nil {
		if !errors.Is(err, ErrNoModel) && ctx.Err() == nil {
			log.Printf("warning: model inference failed, using occupancy heuristic: %v", err)
		}
		snapshot = heuristicSnapshot(batch)
		source = entity.SourceHeuristic
	}

	perspective := entity.DetectPerspective(snapshot.Pieces)
	flipped := opts.ForceFlip || perspective == entity.BlackBottom
	if flipped {
		snapshot.Pieces = entity.RotatePieces180(snapshot.Pieces)
		snapshot.Confidences = entity.Rotate180(snapshot.Confidences)
	}

	return &entity.Classification{
		FEN:           entity.FullFEN(snapshot.Pieces),
		Snapshot:      snapshot,
		Perspective:   perspective,
		WasFlipped:    flipped,
		AvgConfidence: snapshot.AverageConfidence(),
		Source:        source,
	}, nil
}

// classifyWithModel один пакетный проход модели по 64 клеткам.
func (c *SquareClassifier) classifyWithModel(ctx context.Context, batch *entity.TileBatch) (entity.BoardSnapshot, error) {
	var s entity.BoardSnapshot
	backend, err := c.Backend(ctx)
	if err != nil {
		return s, err
	}

	scores, err := backend.Infer(ctx, batch)
	if errors.Is(err, port.ErrBackendBroken) {
		c.discard(backend)
	}
	if err != nil {
		return s, fmt.Errorf("infer: %w", err)
	}
	if len(scores) != entity.SquareCount {
		return s, fmt.Errorf("unexpected output shape: %d rows", len(scores))
	}
	for i, row := range scores {
		if len(row) != entity.ClassCount {
			return s, fmt.Errorf("unexpected output shape: row %d has %d classes", i, len(row))
		}
		class, conf := scoreConfidence(row)
		s.Pieces[i] = entity.ModelClasses[class]
		s.Confidences[i] = conf
	}
	return s, nil
}

// scoreConfidence возвращает класс-победитель и уверенность:
// максимум из softmax-вероятности и сигмоиды отрыва от второго места.
func scoreConfidence(row []float32) (int, float64) {
	top, second := 0, -1
	for i := 1; i < len(row); i++ {
		if row[i] > row[top] {
			second, top = top, i
		} else if second < 0 || row[i] > row[second] {
			second = i
		}
	}

	hi := float64(row[top])
	var denom float64
	for _, v := range row {
		denom += math.Exp(float64(v) - hi)
	}
	prob := 1 / denom

	margin := 1.0
	if second >= 0 {
		margin = sigmoid(hi - float64(row[second]))
	}
	return top, math.Max(prob, margin)
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

// Backend возвращает бэкенд модели, загружая его при первом обращении.
// Параллельные вызовы во время загрузки ждут одну и ту же инициализацию.
func (c *SquareClassifier) Backend(ctx context.Context) (port.InferenceBackend, error) {
	c.mu.Lock()
	if c.backend != nil {
		b := c.backend
		c.mu.Unlock()
		return b, nil
	}
	if c.loader == nil {
		c.mu.Unlock()
		return nil, ErrNoModel
	}

	job := c.pending
	if job == nil {
		if !c.lastFailed.IsZero() && c.now().Sub(c.lastFailed) < c.ModelRetryInterval {
			c.mu.Unlock()
			return nil, ErrNoModel
		}
		job = &modelInit{done: make(chan struct{})}
		c.pending = job
		go c.load(job)
	}
	c.mu.Unlock()

	select {
	case <-job.done:
		return job.backend, job.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// load выполняет загрузку вне блокировки и публикует результат.
func (c *SquareClassifier) load(job *modelInit) {
	backend, err := c.loader.Load(context.Background())
	if err == nil && backend == nil {
		err = ErrNoModel
	}

	var stale port.InferenceBackend
	c.mu.Lock()
	switch {
	case c.pending != job:
		// Dispose вызван во время загрузки.
		stale = backend
		backend, err = nil, ErrDisposed
	case err != nil:
		c.pending = nil
		c.lastFailed = c.now()
		log.Printf("warning: model load failed, retry in %s: %v", c.ModelRetryInterval, err)
	default:
		c.pending = nil
		c.backend = backend
		c.lastFailed = time.Time{}
	}
	job.backend, job.err = backend, err
	c.mu.Unlock()

	if stale != nil {
		_ = stale.Close()
	}
	close(job.done)
}

// discard убирает сломанный бэкенд; новая загрузка начнётся через ModelRetryInterval.
func (c *SquareClassifier) discard(backend port.InferenceBackend) {
	c.mu.Lock()
	if c.backend != backend {
		c.mu.Unlock()
		return
	}
	c.backend = nil
	c.lastFailed = c.now()
	c.mu.Unlock()

	log.Printf("warning: model backend lost, reload in %s", c.ModelRetryInterval)
	if err := backend.Close(); err != nil {
		log.Printf("warning: model close failed: %v", err)
	}
}

// Dispose освобождает модель и сбрасывает состояние загрузки.
func (c *SquareClassifier) Dispose() {
	c.mu.Lock()
	backend := c.backend
	c.backend = nil
	c.pending = nil
	c.lastFailed = time.Time{}
	c.mu.Unlock()

	if backend != nil {
		if err := backend.Close(); err != nil {
			log.Printf("warning: model close failed: %v", err)
		}
	}
}

var _ port.SquareClassifier = (*SquareClassifier)(nil)
