package vision

import (
	"math"

	"board-vision/internal/domain/entity"
)

// DefaultTileSize сторона нормализованной клетки.
const DefaultTileSize = 32

// Пороги подавления оверлеев (подсветка ходов, стрелки).
const (
	overlayMinSaturation = 0.45
	overlayMinValue      = 0.35
)

// overlayHueBands диапазоны тона, характерные для оверлеев интерфейса, в градусах.
var overlayHueBands = [][2]float64{
	{0, 60},    // красный/оранжевый
	{85, 145},  // зелёный
	{170, 240}, // голубой/синий
}

// isOverlayColor сообщает, что пиксель похож на насыщенный цвет оверлея.
func isOverlayColor(r, g, b uint8) bool {
	rf, gf, bf := float64(r)/255, float64(g)/255, float64(b)/255
	hi := math.Max(rf, math.Max(gf, bf))
	lo := math.Min(rf, math.Min(gf, bf))
	if hi < overlayMinValue || hi == 0 {
		return false
	}
	if (hi-lo)/hi < overlayMinSaturation {
		return false
	}
	hue := hueDegrees(rf, gf, bf, hi, lo)
	for _, band := range overlayHueBands {
		if hue >= band[0] && hue <= band[1] {
			return true
		}
	}
	return false
}

// hueDegrees тон в модели HSV, 0..360.
func hueDegrees(r, g, b, hi, lo float64) float64 {
	d := hi - lo
	if d == 0 {
		return 0
	}
	var h float64
	switch hi {
	case r:
		h = math.Mod((g-b)/d, 6)
	case g:
		h = (b-r)/d + 2
	default:
		h = (r-g)/d + 4
	}
	h *= 60
	if h < 0 {
		h += 360
	}
	return h
}

// grayPlane нормализованная яркость 0..1 изображения доски с подавленными оверлеями.
type grayPlane struct {
	w, h int
	v    []float64
}

// suppressedGray переводит изображение в яркость и заменяет пиксели оверлеев
// средним по 4 соседям, не являющимся оверлеями.
func suppressedGray(board *entity.Frame) grayPlane {
	w, h := board.Width(), board.Height()
	p := grayPlane{w: w, h: h, v: make([]float64, w*h)}
	overlay := make([]bool, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b := board.RGB(x, y)
			i := y*w + x
			p.v[i] = luminance(r, g, b) / 255
			overlay[i] = isOverlayColor(r, g, b)
		}
	}

	out := make([]float64, len(p.v))
	copy(out, p.v)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := y*w + x
			if !overlay[i] {
				continue
			}
			var sum float64
			n := 0
			for _, nb := range [4][2]int{{x - 1, y}, {x + 1, y}, {x, y - 1}, {x, y + 1}} {
				if nb[0] < 0 || nb[0] >= w || nb[1] < 0 || nb[1] >= h {
					continue
				}
				j := nb[1]*w + nb[0]
				if overlay[j] {
					continue
				}
				sum += p.v[j]
				n++
			}
			if n > 0 {
				out[i] = sum / float64(n)
			}
		}
	}
	p.v = out
	return p
}

// ExtractTiles делит изображение доски на сетку 8×8 и приводит каждую клетку
// к размеру size×size усреднением по площади источника.
// Клетки идут построчно сверху вниз, слева направо.
func ExtractTiles(board *entity.Frame, size int) *entity.TileBatch {
	batch := entity.NewTileBatch(entity.SquareCount, size)
	plane := suppressedGray(board)
	if plane.w == 0 || plane.h == 0 {
		return batch
	}

	cellW := float64(plane.w) / 8
	cellH := float64(plane.h) / 8
	for row := 0; row < 8; row++ {
		for file := 0; file < 8; file++ {
			tile := batch.Tile(entity.Square(row, file))
			x0 := float64(file) * cellW
			y0 := float64(row) * cellH
			for oy := 0; oy < size; oy++ {
				sy0 := y0 + float64(oy)*cellH/float64(size)
				sy1 := y0 + float64(oy+1)*cellH/float64(size)
				for ox := 0; ox < size; ox++ {
					sx0 := x0 + float64(ox)*cellW/float64(size)
					sx1 := x0 + float64(ox+1)*cellW/float64(size)
					tile[oy*size+ox] = float32(plane.areaMean(sx0, sy0, sx1, sy1))
				}
			}
		}
	}
	return batch
}

// areaMean среднее значение по прямоугольнику [x0,x1)×[y0,y1) с весами перекрытия.
func (p grayPlane) areaMean(x0, y0, x1, y1 float64) float64 {
	var sum, weight float64
	for y := int(y0); y < p.h && float64(y) < y1; y++ {
		wy := math.Min(y1, float64(y+1)) - math.Max(y0, float64(y))
		if wy <= 0 {
			continue
		}
		for x := int(x0); x < p.w && float64(x) < x1; x++ {
			wx := math.Min(x1, float64(x+1)) - math.Max(x0, float64(x))
			if wx <= 0 {
				continue
			}
			sum += p.v[y*p.w+x] * wx * wy
			weight += wx * wy
		}
	}
	if weight == 0 {
		return 0
	}
	return sum / weight
}

// tileVariance дисперсия яркости клетки.
func tileVariance(tile []float32) float64 {
	if len(tile) == 0 {
		return 0
	}
	var mean float64
	for _, v := range tile {
		mean += float64(v)
	}
	mean /= float64(len(tile))
	var sq float64
	for _, v := range tile {
		d := float64(v) - mean
		sq += d * d
	}
	return sq / float64(len(tile))
}
