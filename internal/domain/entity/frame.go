package entity

import (
	"errors"
	"image"
	"image/draw"
	"time"
)

// ErrInvalidFrame возвращается для пустых или повреждённых кадров.
var ErrInvalidFrame = errors.New("invalid frame")

// Frame кадр видеопотока: RGBA-буфер и время получения.
// Кадр считается неизменяемым после создания.
type Frame struct {
	Image     *image.RGBA
	Timestamp time.Time
}

// NewFrame собирает кадр из сырого RGBA-буфера (4 байта на пиксель, без выравнивания строк).
func NewFrame(width, height int, pix []byte, ts time.Time) (*Frame, error) {
	if width <= 0 || height <= 0 || len(pix) != width*height*4 {
		return nil, ErrInvalidFrame
	}
	img := &image.RGBA{
		Pix:    pix,
		Stride: width * 4,
		Rect:   image.Rect(0, 0, width, height),
	}
	return &Frame{Image: img, Timestamp: ts}, nil
}

// FrameFromImage конвертирует произвольное изображение в кадр.
func FrameFromImage(img image.Image, ts time.Time) *Frame {
	if rgba, ok := img.(*image.RGBA); ok {
		return &Frame{Image: rgba, Timestamp: ts}
	}
	b := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	return &Frame{Image: rgba, Timestamp: ts}
}

// Width ширина кадра в пикселях.
func (f *Frame) Width() int {
	if f == nil || f.Image == nil {
		return 0
	}
	return f.Image.Rect.Dx()
}

// Height высота кадра в пикселях.
func (f *Frame) Height() int {
	if f == nil || f.Image == nil {
		return 0
	}
	return f.Image.Rect.Dy()
}

// RGB возвращает цвет пикселя в координатах относительно левого верхнего угла кадра.
func (f *Frame) RGB(x, y int) (r, g, b uint8) {
	off := f.Image.PixOffset(f.Image.Rect.Min.X+x, f.Image.Rect.Min.Y+y)
	p := f.Image.Pix[off : off+3 : off+3]
	return p[0], p[1], p[2]
}

// Crop возвращает подкадр без копирования пикселей.
// Область обрезается по границам кадра.
func (f *Frame) Crop(r Region) *Frame {
	o := f.Image.Rect.Min
	rect := image.Rect(o.X+r.X, o.Y+r.Y, o.X+r.X+r.Width, o.Y+r.Y+r.Height)
	sub, _ := f.Image.SubImage(rect).(*image.RGBA)
	return &Frame{Image: sub, Timestamp: f.Timestamp}
}
