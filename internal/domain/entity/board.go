package entity

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidFEN возвращается, если позиционная часть FEN не описывает 64 клетки.
var ErrInvalidFEN = errors.New("invalid FEN board")

// SquareCount количество клеток на доске.
const SquareCount = 64

// FENSuffix фиксированный хвост FEN: очередь хода, рокировки и счётчики не распознаются.
const FENSuffix = " w - - 0 1"

// Piece метка клетки: код фигуры в нотации FEN или Empty.
type Piece byte

const (
	Empty       Piece = '.'
	WhitePawn   Piece = 'P'
	WhiteKnight Piece = 'N'
	WhiteBishop Piece = 'B'
	WhiteRook   Piece = 'R'
	WhiteQueen  Piece = 'Q'
	WhiteKing   Piece = 'K'
	BlackPawn   Piece = 'p'
	BlackKnight Piece = 'n'
	BlackBishop Piece = 'b'
	BlackRook   Piece = 'r'
	BlackQueen  Piece = 'q'
	BlackKing   Piece = 'k'
)

// ClassCount число классов модели: пустая клетка + 6 белых + 6 чёрных фигур.
const ClassCount = 13

// ModelClasses порядок классов в выходе модели.
var ModelClasses = [ClassCount]Piece{
	Empty,
	WhitePawn, WhiteKnight, WhiteBishop, WhiteRook, WhiteQueen, WhiteKing,
	BlackPawn, BlackKnight, BlackBishop, BlackRook, BlackQueen, BlackKing,
}

// IsWhite сообщает, что фигура белая
func (p Piece) IsWhite() bool {
	return p >= 'A' && p <= 'Z'
}

// IsBlack сообщает, что фигура чёрная
func (p Piece) IsBlack() bool {
	return p >= 'a' && p <= 'z'
}

// Valid проверяет, что метка относится к одному из 13 классов
func (p Piece) Valid() bool {
	for _, c := range ModelClasses {
		if c == p {
			return true
		}
	}
	return false
}

func (p Piece) String() string {
	return string(p)
}

// Board 64 метки клеток построчно: ранг 8 → ранг 1, вертикаль a → h.
type Board [SquareCount]Piece

// EmptyBoard возвращает доску без фигур.
func EmptyBoard() Board {
	var b Board
	for i := range b {
		b[i] = Empty
	}
	return b
}

// Square индекс клетки по строке сверху (0..7) и вертикали (0..7).
func Square(row, file int) int {
	return row*8 + file
}

// BoardSnapshot результат классификации одного кадра.
type BoardSnapshot struct {
	Pieces      Board
	Confidences [SquareCount]float64
}

// AverageConfidence средняя уверенность по всем клеткам.
func (s *BoardSnapshot) AverageConfidence() float64 {
	var sum float64
	for _, c := range s.Confidences {
		sum += c
	}
	return sum / SquareCount
}

// PiecesToFEN кодирует доску в позиционную часть FEN.
func PiecesToFEN(b Board) string {
	var sb strings.Builder
	for row := 0; row < 8; row++ {
		if row > 0 {
			sb.WriteByte('/')
		}
		run := 0
		for file := 0; file < 8; file++ {
			p := b[Square(row, file)]
			if p == Empty || !p.Valid() {
				run++
				continue
			}
			if run > 0 {
				sb.WriteByte(byte('0' + run))
				run = 0
			}
			sb.WriteByte(byte(p))
		}
		if run > 0 {
			sb.WriteByte(byte('0' + run))
		}
	}
	return sb.String()
}

// FullFEN дополняет позиционную часть фиксированным хвостом.
func FullFEN(b Board) string {
	return PiecesToFEN(b) + FENSuffix
}

// BoardPart выделяет позиционную часть из полной строки FEN.
func BoardPart(fen string) string {
	fen = strings.TrimSpace(fen)
	if i := strings.IndexByte(fen, ' '); i >= 0 {
		return fen[:i]
	}
	return fen
}

// FENToPieces разбирает позиционную часть FEN (или полную строку) в доску.
func FENToPieces(fen string) (Board, error) {
	board := EmptyBoard()
	ranks := strings.Split(BoardPart(fen), "/")
	if len(ranks) != 8 {
		return board, fmt.Errorf("%w: expected 8 ranks, got %d", ErrInvalidFEN, len(ranks))
	}
	for row, rank := range ranks {
		file := 0
		for i := 0; i < len(rank); i++ {
			ch := rank[i]
			if ch >= '1' && ch <= '8' {
				file += int(ch - '0')
				if file > 8 {
					return board, fmt.Errorf("%w: rank %d overflows", ErrInvalidFEN, 8-row)
				}
				continue
			}
			p := Piece(ch)
			if p == Empty || !p.Valid() {
				return board, fmt.Errorf("%w: unexpected symbol %q", ErrInvalidFEN, ch)
			}
			if file >= 8 {
				return board, fmt.Errorf("%w: rank %d overflows", ErrInvalidFEN, 8-row)
			}
			board[Square(row, file)] = p
			file++
		}
		if file != 8 {
			return board, fmt.Errorf("%w: rank %d has %d squares", ErrInvalidFEN, 8-row, file)
		}
	}
	return board, nil
}

// Rotate180 отражает массив из 64 элементов одновременно по рангу и вертикали.
func Rotate180[T any](a [SquareCount]T) [SquareCount]T {
	var out [SquareCount]T
	for i := range a {
		out[SquareCount-1-i] = a[i]
	}
	return out
}

// RotatePieces180 поворачивает доску на 180°.
func RotatePieces180(b Board) Board {
	return Rotate180(b)
}

// Perspective сторона, чья первая горизонталь внизу изображения.
type Perspective string

const (
	WhiteBottom Perspective = "white-bottom"
	BlackBottom Perspective = "black-bottom"
)

// DetectPerspective оценивает ориентацию доски по расположению фигур.
// Белые ближе к низу (или чёрные ближе к верху) говорят в пользу white-bottom.
func DetectPerspective(b Board) Perspective {
	whiteBottom, blackBottom := 0, 0
	for i, p := range b {
		row := i / 8
		top := max(0, 4-row)
		bottom := max(0, row-3)
		switch {
		case p.IsWhite():
			whiteBottom += bottom
			blackBottom += top
		case p.IsBlack():
			whiteBottom += top
			blackBottom += bottom
		}
	}
	if blackBottom > whiteBottom {
		return BlackBottom
	}
	return WhiteBottom
}
