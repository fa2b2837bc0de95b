package entity

import "time"

// ChangeKind вид перехода между двумя последовательными позициями
type ChangeKind string

const (
	NoChange ChangeKind = "no_change" // позиция не изменилась
	Move     ChangeKind = "move"      // сделан ход
	NewGame  ChangeKind = "new_game"  // новая партия или смена сцены
)

// Performance показатели производительности обработки кадра
type Performance struct {
	FPS                float64 `json:"fps"`
	TotalMs            float64 `json:"total_ms"`
	DetectMs           float64 `json:"detect_ms"`
	ClassifyMs         float64 `json:"classify_ms"`
	AvgConfidence      float64 `json:"avg_confidence"`
	LowConfidenceCount int     `json:"low_confidence_count"`
	SmoothedCount      int     `json:"smoothed_count"`
	Source             string  `json:"source"`
}

// PipelineUpdate результат успешной обработки одного кадра
type PipelineUpdate struct {
	RequestID   uint64      `json:"request_id"`
	FEN         string      `json:"fen"`
	Region      Region      `json:"region"`
	Change      ChangeKind  `json:"change"`
	Timestamp   time.Time   `json:"timestamp"`
	WasFlipped  bool        `json:"was_flipped"`
	Performance Performance `json:"performance"`
}

// PipelineError ошибка обработки конкретного запроса
type PipelineError struct {
	RequestID uint64
	Message   string
}

func (e PipelineError) Error() string {
	return e.Message
}
