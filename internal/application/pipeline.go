package app

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"board-vision/internal/domain/entity"
	"board-vision/internal/domain/port"
)

// PipelineConfig параметры конвейера
type PipelineConfig struct {
	BoardRefreshInterval   time.Duration // как часто заново искать доску в кадре
	LowConfidenceThreshold float64       // ниже этого порога метка берётся из предыдущего кадра
	ForceFlip              bool          // принудительный разворот доски
}

// DefaultPipelineConfig возвращает параметры по умолчанию.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		BoardRefreshInterval:   time.Second,
		LowConfidenceThreshold: 0.58,
	}
}

// PipelineHandlers получатели результатов асинхронной обработки.
// OnUpdate вызывается сразу после фиксации результата и не должен вызывать Reset.
type PipelineHandlers struct {
	OnUpdate func(entity.PipelineUpdate)
	OnError  func(entity.PipelineError)
}

// PipelineStats счётчики работы конвейера
type PipelineStats struct {
	Submitted  uint64 // кадров отправлено
	Processed  uint64 // кадров доведено до конца обработки
	Emitted    uint64 // обновлений выдано
	Suppressed uint64 // результатов отброшено как устаревшие
	Dropped    uint64 // кадров вытеснено до начала обработки
	Failed     uint64 // кадров с ошибкой обработки
}

// pipelineState кэш между кадрами; меняется только после проверки актуальности запроса.
type pipelineState struct {
	region        entity.Region
	hasRegion     bool
	lastDetection time.Time
	previous      *entity.BoardSnapshot
	lastDelivered time.Time
}

// frameResult результат обработки кадра до фиксации в состоянии.
type frameResult struct {
	region     entity.Region
	hasRegion  bool
	redetected bool
	now        time.Time

	snapshot entity.BoardSnapshot
	update   entity.PipelineUpdate
}

// VisionPipeline превращает поток кадров в поток позиций.
type VisionPipeline struct {
	locator    port.BoardLocator
	classifier port.SquareClassifier
	cfg        PipelineConfig
	handlers   PipelineHandlers

	deliverMu sync.Mutex // фиксация результата и OnUpdate против Reset
	stateMu   sync.Mutex
	state     pipelineState
	tracker *PositionTracker

	latest     atomic.Uint64
	cancelMu   sync.Mutex
	cancelPrev context.CancelFunc
	baseCtx    context.Context

	inbox     *mailbox
	startOnce sync.Once
	closeOnce sync.Once
	wg        sync.WaitGroup

	submitted, processed, emitted, suppressed, dropped, failed atomic.Uint64
}

// NewVisionPipeline собирает конвейер из локатора и классификатора.
func NewVisionPipeline(locator port.BoardLocator, classifier port.SquareClassifier, cfg PipelineConfig, handlers PipelineHandlers) *VisionPipeline {
	return &VisionPipeline{
		locator:    locator,
		classifier: classifier,
		cfg:        cfg,
		handlers:   handlers,
		tracker:    NewPositionTracker(),
		baseCtx:    context.Background(),
		inbox:      newMailbox(),
	}
}

// Start запускает обработчик кадров. Обработчик завершается при отмене ctx или Close.
func (p *VisionPipeline) Start(ctx context.Context) {
	p.startOnce.Do(func() {
		p.cancelMu.Lock()
		p.baseCtx = ctx
		p.cancelMu.Unlock()

		p.wg.Add(1)
		go p.worker()

		go func() {
			<-ctx.Done()
			p.shutdownInbox()
		}()
	})
}

// Submit отправляет кадр на обработку и возвращает номер запроса.
// Предыдущий запрос получает сигнал отмены, его результат будет отброшен,
// если он ещё не зафиксирован. Зафиксированный результат доставляется в OnUpdate.
func (p *VisionPipeline) Submit(frame *entity.Frame) uint64 {
	t := p.newTask(frame)
	p.submitted.Add(1)
	if dropped := p.inbox.put(t); dropped != nil {
		dropped.cancel()
		p.dropped.Add(1)
	}
	return t.id
}

// ProcessFrame синхронно обрабатывает кадр вне очереди.
// Возвращает nil без ошибки, если доска не найдена или запрос устарел.
func (p *VisionPipeline) ProcessFrame(ctx context.Context, frame *entity.Frame) (*entity.PipelineUpdate, error) {
	t := p.newTask(frame)
	p.submitted.Add(1)
	defer t.cancel()

	stop := context.AfterFunc(ctx, t.cancel)
	defer stop()
	return p.handle(t, nil)
}

// Reset сбрасывает кэш области, предыдущий снимок и историю позиций.
// Запросы, начатые до сброса, становятся устаревшими. После возврата из Reset
// обновления по таким запросам уже не доставляются.
func (p *VisionPipeline) Reset() {
	p.cancelMu.Lock()
	p.latest.Add(1)
	if p.cancelPrev != nil {
		p.cancelPrev()
		p.cancelPrev = nil
	}
	p.cancelMu.Unlock()

	p.deliverMu.Lock()
	defer p.deliverMu.Unlock()
	p.stateMu.Lock()
	p.state = pipelineState{}
	p.tracker.Reset()
	p.stateMu.Unlock()
}

// Close останавливает обработчик и освобождает модель.
func (p *VisionPipeline) Close() {
	p.closeOnce.Do(func() {
		p.shutdownInbox()
		p.wg.Wait()

		p.cancelMu.Lock()
		if p.cancelPrev != nil {
			p.cancelPrev()
			p.cancelPrev = nil
		}
		p.cancelMu.Unlock()

		p.classifier.Dispose()
	})
}

// Stats возвращает текущие счётчики.
func (p *VisionPipeline) Stats() PipelineStats {
	return PipelineStats{
		Submitted:  p.submitted.Load(),
		Processed:  p.processed.Load(),
		Emitted:    p.emitted.Load(),
		Suppressed: p.suppressed.Load(),
		Dropped:    p.dropped.Load(),
		Failed:     p.failed.Load(),
	}
}

// LatestRequest номер последнего выданного запроса.
func (p *VisionPipeline) LatestRequest() uint64 {
	return p.latest.Load()
}

func (p *VisionPipeline) shutdownInbox() {
	if t := p.inbox.close(); t != nil {
		t.cancel()
	}
}

// newTask выдаёт следующий номер запроса и отменяет предыдущий.
func (p *VisionPipeline) newTask(frame *entity.Frame) *task {
	p.cancelMu.Lock()
	defer p.cancelMu.Unlock()

	if p.cancelPrev != nil {
		p.cancelPrev()
	}
	ctx, cancel := context.WithCancel(p.baseCtx)
	p.cancelPrev = cancel
	return &task{id: p.latest.Add(1), frame: frame, ctx: ctx, cancel: cancel}
}

func (p *VisionPipeline) isStale(id uint64) bool {
	return id != p.latest.Load()
}

func (p *VisionPipeline) worker() {
	defer p.wg.Done()
	for {
		t, ok := p.inbox.take()
		if !ok {
			return
		}
		_, err := p.handle(t, p.handlers.OnUpdate)
		t.cancel()

		switch {
		case err != nil && p.handlers.OnError != nil:
			p.handlers.OnError(entity.PipelineError{RequestID: t.id, Message: err.Error()})
		case err != nil:
			log.Printf("Error processing request %d: %v", t.id, err)
		}
	}
}

// handle обрабатывает задачу: проверка актуальности до начала работы и перед фиксацией результата.
// deliver, если задан, получает обновление до того, как Reset сможет сбросить состояние.
func (p *VisionPipeline) handle(t *task, deliver func(entity.PipelineUpdate)) (*entity.PipelineUpdate, error) {
	if p.isStale(t.id) {
		p.suppressed.Add(1)
		return nil, nil
	}

	res, err := p.process(t.ctx, t.id, t.frame)
	if err != nil {
		p.failed.Add(1)
		return nil, err
	}
	p.processed.Add(1)

	p.deliverMu.Lock()
	defer p.deliverMu.Unlock()

	p.stateMu.Lock()
	if p.isStale(t.id) {
		p.stateMu.Unlock()
		p.suppressed.Add(1)
		return nil, nil
	}
	update := p.commit(res)
	p.stateMu.Unlock()

	if update != nil {
		p.emitted.Add(1)
		if deliver != nil {
			deliver(*update)
		}
	}
	return update, nil
}

// process выполняет поиск доски и классификацию, не трогая состояние конвейера.
func (p *VisionPipeline) process(ctx context.Context, id uint64, frame *entity.Frame) (res *frameResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			res, err = nil, fmt.Errorf("panic: %v", r)
		}
	}()

	if frame == nil || frame.Image == nil {
		return nil, entity.ErrInvalidFrame
	}

	started := time.Now()
	now := frame.Timestamp
	if now.IsZero() {
		now = started
	}

	p.stateMu.Lock()
	st := p.state
	p.stateMu.Unlock()

	res = &frameResult{region: st.region, hasRegion: st.hasRegion, now: now}

	var detectMs float64
	expired := !st.hasRegion || !st.region.Within(frame.Width(), frame.Height())
	if expired || now.Sub(st.lastDetection) >= p.cfg.BoardRefreshInterval {
		detectStart := time.Now()
		res.region, res.hasRegion = p.locator.Locate(frame)
		res.redetected = true
		detectMs = msSince(detectStart)
	}
	if !res.hasRegion {
		return res, nil
	}

	classifyStart := time.Now()
	cls, err := p.classifier.Classify(ctx, frame.Crop(res.region), entity.ClassifyOptions{ForceFlip: p.cfg.ForceFlip})
	if err != nil {
		return nil, fmt.Errorf("classify: %w", err)
	}
	classifyMs := msSince(classifyStart)

	snapshot := cls.Snapshot
	lowCount, smoothed := p.smooth(&snapshot, st.previous)
	res.snapshot = snapshot

	var fps float64
	if !st.lastDelivered.IsZero() {
		if dt := now.Sub(st.lastDelivered).Seconds(); dt > 0 {
			fps = 1 / dt
		}
	}

	res.update = entity.PipelineUpdate{
		RequestID:  id,
		FEN:        entity.FullFEN(snapshot.Pieces),
		Region:     res.region,
		Timestamp:  now,
		WasFlipped: cls.WasFlipped,
		Performance: entity.Performance{
			FPS:                fps,
			TotalMs:            msSince(started),
			DetectMs:           detectMs,
			ClassifyMs:         classifyMs,
			AvgConfidence:      snapshot.AverageConfidence(),
			LowConfidenceCount: lowCount,
			SmoothedCount:      smoothed,
			Source:             cls.Source,
		},
	}
	return res, nil
}

// smooth заменяет метки с низкой уверенностью метками предыдущего снимка.
// Возвращает число клеток ниже порога и число фактически заменённых меток.
func (p *VisionPipeline) smooth(s *entity.BoardSnapshot, previous *entity.BoardSnapshot) (low, replaced int) {
	for i := range s.Pieces {
		if s.Confidences[i] >= p.cfg.LowConfidenceThreshold {
			continue
		}
		low++
		if previous == nil {
			continue
		}
		if s.Pieces[i] != previous.Pieces[i] {
			replaced++
		}
		s.Pieces[i] = previous.Pieces[i]
		s.Confidences[i] = previous.Confidences[i]
	}
	return low, replaced
}

// commit фиксирует результат в состоянии; вызывается под stateMu.
func (p *VisionPipeline) commit(res *frameResult) *entity.PipelineUpdate {
	if res.redetected {
		p.state.region = res.region
		p.state.hasRegion = res.hasRegion
		p.state.lastDetection = res.now
	}
	if !res.hasRegion {
		return nil
	}

	update := res.update
	update.Change = p.tracker.Observe(update.FEN)

	snapshot := res.snapshot
	p.state.previous = &snapshot
	p.state.lastDelivered = res.now
	return &update
}

func msSince(t time.Time) float64 {
	return float64(time.Since(t)) / float64(time.Millisecond)
}
