//go:build gocv
// +build gocv

package capture

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"

	"gocv.io/x/gocv"

	"board-vision/internal/domain/entity"
)

// HighlightRegion рисует рамку вокруг найденной доски и возвращает JPEG.
func HighlightRegion(imageData []byte, region entity.Region) ([]byte, error) {
	mat, err := decodeToMat(imageData)
	if err != nil {
		return nil, err
	}
	defer mat.Close()

	green := color.RGBA{G: 255, A: 255}
	rect := image.Rect(region.X, region.Y, region.X+region.Width, region.Y+region.Height)
	gocv.Rectangle(&mat, rect, green, 2)

	img, err := mat.ToImage()
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// decodeToMat превращает байты изображения в gocv.Mat.
func decodeToMat(imageData []byte) (gocv.Mat, error) {
	mat, err := gocv.IMDecode(imageData, gocv.IMReadColor)
	if err == nil && !mat.Empty() {
		return mat, nil
	}
	if !mat.Empty() {
		mat.Close()
	}
	return gocv.NewMat(), errors.New("failed to decode image")
}
