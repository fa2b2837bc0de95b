package app

import (
	"strings"

	"board-vision/internal/domain/entity"
)

// NewGameDiffThreshold больше стольких изменённых клеток считается новой партией.
const NewGameDiffThreshold = 10

// PositionTracker сравнивает последовательные FEN и определяет вид перехода.
type PositionTracker struct {
	prev    string
	hasPrev bool
}

// NewPositionTracker создаёт трекер без истории.
func NewPositionTracker() *PositionTracker {
	return &PositionTracker{}
}

// Observe классифицирует переход к fen и запоминает его.
func (t *PositionTracker) Observe(fen string) entity.ChangeKind {
	kind := t.Compare(fen)
	t.Commit(fen)
	return kind
}

// Compare классифицирует переход, не меняя состояние трекера.
func (t *PositionTracker) Compare(fen string) entity.ChangeKind {
	board := entity.BoardPart(fen)
	if !t.hasPrev {
		return entity.NewGame
	}
	if board == t.prev {
		return entity.NoChange
	}
	if diffSquares(expandBoard(t.prev), expandBoard(board)) > NewGameDiffThreshold {
		return entity.NewGame
	}
	return entity.Move
}

// Commit запоминает fen как предыдущую позицию.
func (t *PositionTracker) Commit(fen string) {
	t.prev = entity.BoardPart(fen)
	t.hasPrev = true
}

// Reset забывает предыдущую позицию (например, при смене источника видео).
func (t *PositionTracker) Reset() {
	t.prev = ""
	t.hasPrev = false
}

// expandBoard разворачивает позиционную часть FEN в плоскую строку: цифры
// превращаются в соответствующее число пустых клеток, разделители удаляются.
func expandBoard(board string) string {
	var sb strings.Builder
	sb.Grow(entity.SquareCount)
	for i := 0; i < len(board); i++ {
		ch := board[i]
		switch {
		case ch == '/':
		case ch >= '1' && ch <= '9':
			sb.WriteString(strings.Repeat(string(entity.Empty), int(ch-'0')))
		default:
			sb.WriteByte(ch)
		}
	}
	return sb.String()
}

// diffSquares число различающихся позиций; лишний хвост более длинной строки считается отличием.
func diffSquares(a, b string) int {
	n := max(len(a), len(b))
	diff := 0
	for i := 0; i < n; i++ {
		if i >= len(a) || i >= len(b) || a[i] != b[i] {
			diff++
		}
	}
	return diff
}
