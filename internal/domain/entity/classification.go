package entity

// Источник меток классификации.
const (
	SourceModel     = "model"
	SourceHeuristic = "heuristic"
)

// ClassifyOptions параметры классификации
type ClassifyOptions struct {
	ForceFlip bool // принудительно развернуть доску на 180°
}

// Classification результат классификации 64 клеток изображения доски
type Classification struct {
	FEN           string
	Snapshot      BoardSnapshot
	Perspective   Perspective
	WasFlipped    bool
	AvgConfidence float64
	Source        string
}

// TileBatch пакет нормализованных клеток формы [Count, Channels, Size, Size]
type TileBatch struct {
	Count    int
	Channels int
	Size     int
	Data     []float32
}

// NewTileBatch выделяет пакет под count одноканальных клеток size×size.
func NewTileBatch(count, size int) *TileBatch {
	return &TileBatch{
		Count:    count,
		Channels: 1,
		Size:     size,
		Data:     make([]float32, count*size*size),
	}
}

// Shape возвращает форму тензора
func (b *TileBatch) Shape() [4]int {
	return [4]int{b.Count, b.Channels, b.Size, b.Size}
}

// Tile возвращает срез данных клетки i
func (b *TileBatch) Tile(i int) []float32 {
	n := b.Channels * b.Size * b.Size
	return b.Data[i*n : (i+1)*n]
}
