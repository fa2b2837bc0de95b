package capture

import (
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"board-vision/internal/domain/port"
)

func writeImage(t *testing.T, path string, c color.RGBA) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 16, 12))
	for y := 0; y < 12; y++ {
		for x := 0; x < 16; x++ {
			img.Set(x, y, c)
		}
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	if filepath.Ext(path) == ".png" {
		require.NoError(t, png.Encode(f, img))
		return
	}
	require.NoError(t, jpeg.Encode(f, img, &jpeg.Options{Quality: 95}))
}

func TestLoadImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "board.png")
	writeImage(t, path, color.RGBA{200, 10, 10, 255})

	frame, err := LoadImage(path)
	require.NoError(t, err)
	require.Equal(t, 16, frame.Width())
	require.Equal(t, 12, frame.Height())
	r, g, b := frame.RGB(3, 3)
	require.Equal(t, [3]uint8{200, 10, 10}, [3]uint8{r, g, b})
}

func TestLoadImage_Errors(t *testing.T) {
	_, err := LoadImage(filepath.Join(t.TempDir(), "missing.png"))
	require.Error(t, err)

	path := filepath.Join(t.TempDir(), "broken.png")
	require.NoError(t, os.WriteFile(path, []byte("not a png"), 0o644))
	_, err = LoadImage(path)
	require.Error(t, err)
}

func TestImageDirSource(t *testing.T) {
	dir := t.TempDir()
	writeImage(t, filepath.Join(dir, "002.jpg"), color.RGBA{0, 0, 0, 255})
	writeImage(t, filepath.Join(dir, "001.png"), color.RGBA{255, 255, 255, 255})
	writeImage(t, filepath.Join(dir, "003.png"), color.RGBA{128, 128, 128, 255})
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.png"), 0o755))

	src, err := NewImageDirSource(dir)
	require.NoError(t, err)
	defer src.Close()
	require.Equal(t, 3, src.FrameCount())

	ctx := context.Background()
	first, err := src.Next(ctx)
	require.NoError(t, err)
	r, _, _ := first.RGB(0, 0)
	require.Equal(t, uint8(255), r)

	src.Skip(1)
	last, err := src.Next(ctx)
	require.NoError(t, err)
	require.Equal(t, 2*time.Second, last.Timestamp.Sub(first.Timestamp))

	_, err = src.Next(ctx)
	require.ErrorIs(t, err, port.ErrSourceExhausted)
}

func TestOpen_Directory(t *testing.T) {
	src, err := Open(t.TempDir())
	require.NoError(t, err)
	_, err = src.Next(context.Background())
	require.ErrorIs(t, err, port.ErrSourceExhausted)

	_, err = Open("")
	require.Error(t, err)
}
