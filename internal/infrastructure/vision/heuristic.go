package vision

import "board-vision/internal/domain/entity"

// Параметры эвристики занятости клеток.
const (
	OccupancyVarianceThreshold = 0.08

	backRankConfidence = 0.8
	homePawnConfidence = 0.75
	midBoardConfidence = 0.45
	minEmptyConfidence = 0.2
	maxEmptyConfidence = 0.95
)

var (
	blackBackRank = [8]entity.Piece{
		entity.BlackRook, entity.BlackKnight, entity.BlackBishop, entity.BlackQueen,
		entity.BlackKing, entity.BlackBishop, entity.BlackKnight, entity.BlackRook,
	}
	whiteBackRank = [8]entity.Piece{
		entity.WhiteRook, entity.WhiteKnight, entity.WhiteBishop, entity.WhiteQueen,
		entity.WhiteKing, entity.WhiteBishop, entity.WhiteKnight, entity.WhiteRook,
	}
)

// heuristicSnapshot размечает клетки без модели: занятость по дисперсии яркости,
// фигура угадывается по положению клетки относительно начальной расстановки.
func heuristicSnapshot(batch *entity.TileBatch) entity.BoardSnapshot {
	var s entity.BoardSnapshot
	for i := 0; i < entity.SquareCount; i++ {
		variance := tileVariance(batch.Tile(i))
		if variance <= OccupancyVarianceThreshold {
			s.Pieces[i] = entity.Empty
			s.Confidences[i] = emptyConfidence(variance)
			continue
		}
		s.Pieces[i], s.Confidences[i] = guessPiece(i/8, i%8)
	}
	return s
}

// guessPiece метка занятой клетки по строке (0 сверху) и вертикали.
func guessPiece(row, file int) (entity.Piece, float64) {
	switch row {
	case 0:
		return blackBackRank[file], backRankConfidence
	case 1:
		return entity.BlackPawn, homePawnConfidence
	case 6:
		return entity.WhitePawn, homePawnConfidence
	case 7:
		return whiteBackRank[file], backRankConfidence
	}
	if row < 4 {
		return entity.BlackPawn, midBoardConfidence
	}
	return entity.WhitePawn, midBoardConfidence
}

// emptyConfidence уверенность в пустой клетке падает по мере приближения дисперсии к порогу.
func emptyConfidence(variance float64) float64 {
	c := 1 - variance/OccupancyVarianceThreshold
	return max(minEmptyConfidence, min(maxEmptyConfidence, c))
}
