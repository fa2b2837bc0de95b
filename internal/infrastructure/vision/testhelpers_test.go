package vision

import (
	"image"
	"image/color"
	"time"

	"board-vision/internal/domain/entity"
)

// fill заливает прямоугольник цветом.
func fill(img *image.RGBA, r image.Rectangle, c color.RGBA) {
	r = r.Intersect(img.Rect)
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			img.SetRGBA(x, y, c)
		}
	}
}

func gray(v uint8) color.RGBA {
	return color.RGBA{R: v, G: v, B: v, A: 255}
}

// checkerboardFrame рисует доску 8×8 со стороной клетки cell на сером фоне.
func checkerboardFrame(w, h, ox, oy, cell int) *entity.Frame {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	fill(img, img.Rect, gray(128))
	for row := 0; row < 8; row++ {
		for file := 0; file < 8; file++ {
			c := gray(235)
			if (row+file)%2 == 1 {
				c = gray(30)
			}
			x, y := ox+file*cell, oy+row*cell
			fill(img, image.Rect(x, y, x+cell, y+cell), c)
		}
	}
	return entity.FrameFromImage(img, time.Unix(0, 0))
}

// uniformFrame кадр одного цвета.
func uniformFrame(w, h int, c color.RGBA) *entity.Frame {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	fill(img, img.Rect, c)
	return entity.FrameFromImage(img, time.Unix(0, 0))
}
