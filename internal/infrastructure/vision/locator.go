package vision

import (
	"math"
	"sort"

	"board-vision/internal/domain/entity"
	"board-vision/internal/domain/port"
)

// MinFrameSide минимальная сторона кадра, при которой имеет смысл искать доску.
const MinFrameSide = 32

// BoardLocator ищет квадратную область доски по структуре границ.
type BoardLocator struct {
	MaxSide        int     // максимальная сторона уменьшенного кадра
	EdgePercentile float64 // перцентиль силы границ для бинаризации
	PaddingRatio   float64 // расширение найденного квадрата, доля стороны
	MinCoverage    float64 // минимальная доля кадра, занимаемая доской
}

// NewBoardLocator создаёт локатор с параметрами по умолчанию.
func NewBoardLocator() *BoardLocator {
	return &BoardLocator{
		MaxSide:        320,
		EdgePercentile: 0.88,
		PaddingRatio:   0.07,
		MinCoverage:    0.06,
	}
}

// lumaMap яркость уменьшенного кадра.
type lumaMap struct {
	w, h int
	v    []float64
}

// component лучшая найденная связная область маски.
type component struct {
	minX, minY, maxX, maxY int
	sumX, sumY             int
	count                  int
	score                  float64
}

// Locate возвращает область доски в координатах исходного кадра.
func (l *BoardLocator) Locate(frame *entity.Frame) (entity.Region, bool) {
	fw, fh := frame.Width(), frame.Height()
	if fw < MinFrameSide || fh < MinFrameSide {
		return entity.Region{}, false
	}

	luma, sx, sy := downsample(frame, l.MaxSide)
	edges := edgeStrength(luma)
	mask := thresholdMask(edges, l.EdgePercentile)
	mask = erode(dilate(mask, luma.w, luma.h), luma.w, luma.h)

	best, ok := bestComponent(mask, luma.w, luma.h)
	if !ok {
		return entity.Region{}, false
	}

	// Квадрат вокруг центра масс со стороной, равной среднему из ширины и высоты.
	bw := float64(best.maxX - best.minX + 1)
	bh := float64(best.maxY - best.minY + 1)
	side := (bw + bh) / 2
	cx := float64(best.sumX)/float64(best.count) + 0.5
	cy := float64(best.sumY)/float64(best.count) + 0.5
	x0, y0, x1, y1 := clipRect(cx-side/2, cy-side/2, cx+side/2, cy+side/2, luma.w, luma.h)

	// Расширяем квадрат: угловые фигуры и оверлеи съедают края доски.
	pad := side * l.PaddingRatio
	x0, y0, x1, y1 = clipRect(x0-pad, y0-pad, x1+pad, y1+pad, luma.w, luma.h)

	coverage := (x1 - x0) * (y1 - y0) / float64(luma.w*luma.h)
	if coverage < l.MinCoverage {
		return entity.Region{}, false
	}

	rx0 := int(math.Floor(x0 * sx))
	ry0 := int(math.Floor(y0 * sy))
	rx1 := min(int(math.Floor(x1*sx)), fw)
	ry1 := min(int(math.Floor(y1*sy)), fh)
	region := entity.Region{X: rx0, Y: ry0, Width: rx1 - rx0, Height: ry1 - ry0}
	if !region.Within(fw, fh) || float64(region.Area()) < l.MinCoverage*float64(fw*fh) {
		return entity.Region{}, false
	}
	return region, true
}

// downsample уменьшает кадр выборкой по центрам пикселей и переводит в яркость Rec. 709.
// Возвращает коэффициенты обратного масштабирования по осям X и Y.
func downsample(frame *entity.Frame, maxSide int) (lumaMap, float64, float64) {
	fw, fh := frame.Width(), frame.Height()
	ratio := 1.0
	if maxSide > 0 && max(fw, fh) > maxSide {
		ratio = float64(maxSide) / float64(max(fw, fh))
	}
	w := max(1, int(float64(fw)*ratio))
	h := max(1, int(float64(fh)*ratio))

	m := lumaMap{w: w, h: h, v: make([]float64, w*h)}
	sx := float64(fw) / float64(w)
	sy := float64(fh) / float64(h)
	for y := 0; y < h; y++ {
		srcY := min(fh-1, int((float64(y)+0.5)*sy))
		for x := 0; x < w; x++ {
			srcX := min(fw-1, int((float64(x)+0.5)*sx))
			r, g, b := frame.RGB(srcX, srcY)
			m.v[y*w+x] = luminance(r, g, b)
		}
	}
	return m, sx, sy
}

// luminance яркость пикселя по Rec. 709, 0..255.
func luminance(r, g, b uint8) float64 {
	return 0.2126*float64(r) + 0.7152*float64(g) + 0.0722*float64(b)
}

// edgeStrength сумма модулей разностей с правым и нижним соседом.
func edgeStrength(m lumaMap) []float64 {
	out := make([]float64, m.w*m.h)
	for y := 0; y < m.h-1; y++ {
		for x := 0; x < m.w-1; x++ {
			i := y*m.w + x
			out[i] = math.Abs(m.v[i+1]-m.v[i]) + math.Abs(m.v[i+m.w]-m.v[i])
		}
	}
	return out
}

// thresholdMask оставляет границы не слабее заданного перцентиля.
func thresholdMask(edges []float64, percentile float64) []bool {
	sorted := make([]float64, len(edges))
	copy(sorted, edges)
	sort.Float64s(sorted)
	idx := int(percentile * float64(len(sorted)-1))
	idx = max(0, min(len(sorted)-1, idx))
	threshold := sorted[idx]

	mask := make([]bool, len(edges))
	for i, e := range edges {
		mask[i] = e > 0 && e >= threshold
	}
	return mask
}

// dilate расширение маски крестом из 4 соседей.
func dilate(mask []bool, w, h int) []bool {
	out := make([]bool, len(mask))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := y*w + x
			out[i] = mask[i] ||
				(x > 0 && mask[i-1]) || (x < w-1 && mask[i+1]) ||
				(y > 0 && mask[i-w]) || (y < h-1 && mask[i+w])
		}
	}
	return out
}

// erode сужение маски: пиксель остаётся, только если он и все 4 соседа установлены.
func erode(mask []bool, w, h int) []bool {
	out := make([]bool, len(mask))
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			i := y*w + x
			out[i] = mask[i] && mask[i-1] && mask[i+1] && mask[i-w] && mask[i+w]
		}
	}
	return out
}

// bestComponent обходит 4-связные компоненты в ширину и запоминает лучшую по
// score = площадь × квадратность × заполненность. При равенстве побеждает первая в порядке сканирования.
func bestComponent(mask []bool, w, h int) (component, bool) {
	visited := make([]bool, len(mask))
	queue := make([]int, 0, 1024)
	var best component
	found := false

	for start := range mask {
		if !mask[start] || visited[start] {
			continue
		}
		c := component{minX: w, minY: h, maxX: -1, maxY: -1}
		visited[start] = true
		queue = append(queue[:0], start)
		for len(queue) > 0 {
			i := queue[0]
			queue = queue[1:]
			x, y := i%w, i/w
			c.count++
			c.sumX += x
			c.sumY += y
			c.minX, c.maxX = min(c.minX, x), max(c.maxX, x)
			c.minY, c.maxY = min(c.minY, y), max(c.maxY, y)

			for _, n := range [4]int{i - 1, i + 1, i - w, i + w} {
				switch {
				case n < 0 || n >= len(mask):
					continue
				case (n == i-1 && x == 0) || (n == i+1 && x == w-1):
					continue
				}
				if mask[n] && !visited[n] {
					visited[n] = true
					queue = append(queue, n)
				}
			}
		}

		bw := float64(c.maxX - c.minX + 1)
		bh := float64(c.maxY - c.minY + 1)
		area := bw * bh
		squareness := math.Max(0, 1-math.Abs(1-bw/bh))
		fill := float64(c.count) / area
		c.score = area * squareness * fill
		if !found || c.score > best.score {
			best = c
			found = true
		}
	}
	return best, found
}

// clipRect обрезает прямоугольник по границам кадра w×h.
func clipRect(x0, y0, x1, y1 float64, w, h int) (float64, float64, float64, float64) {
	x0 = math.Max(0, x0)
	y0 = math.Max(0, y0)
	x1 = math.Min(float64(w), x1)
	y1 = math.Min(float64(h), y1)
	return x0, y0, math.Max(x0, x1), math.Max(y0, y1)
}

var _ port.BoardLocator = (*BoardLocator)(nil)
