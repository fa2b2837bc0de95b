//go:build gocv
// +build gocv

package capture

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"board-vision/internal/domain/entity"
	"board-vision/internal/domain/port"
)

// VideoSource читает кадры из файла или камеры через OpenCV.
type VideoSource struct {
	MinImageSide          int
	MinSharpnessEdgeRatio float64
	MaxOverexposedRatio   float64
	MaxUnderexposedRatio  float64
	MaxGlareRatio         float64

	mu      sync.Mutex
	cap     *gocv.VideoCapture
	mat     gocv.Mat
	isFile  bool
	started time.Time
}

// OpenVideo открывает камеру, если source является числом, иначе видеофайл.
func OpenVideo(source string) (*VideoSource, error) {
	var (
		vc     *gocv.VideoCapture
		err    error
		isFile bool
	)
	if idx, convErr := strconv.Atoi(source); convErr == nil {
		vc, err = gocv.VideoCaptureDevice(idx)
	} else {
		vc, err = gocv.VideoCaptureFile(source)
		isFile = true
	}
	if err != nil {
		return nil, err
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("cannot open %s", source)
	}

	return &VideoSource{
		MinImageSide:          64,
		MinSharpnessEdgeRatio: 0.004,
		MaxOverexposedRatio:   0.35,
		MaxUnderexposedRatio:  0.45,
		MaxGlareRatio:         0.08,
		cap:                   vc,
		mat:                   gocv.NewMat(),
		isFile:                isFile,
		started:               time.Now(),
	}, nil
}

// Next читает следующий кадр. Для файла метка времени берётся из позиции в видео.
func (s *VideoSource) Next(ctx context.Context) (*entity.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if ok := s.cap.Read(&s.mat); !ok || s.mat.Empty() {
		if s.isFile {
			return nil, port.ErrSourceExhausted
		}
		return nil, fmt.Errorf("read frame: device returned no data")
	}
	if err := s.checkQuality(s.mat); err != nil {
		return nil, err
	}

	ts := time.Now()
	if s.isFile {
		posMs := s.cap.Get(gocv.VideoCapturePosMsec)
		ts = s.started.Add(time.Duration(posMs * float64(time.Millisecond)))
	}

	img, err := s.mat.ToImage()
	if err != nil {
		return nil, fmt.Errorf("convert frame: %w", err)
	}
	return entity.FrameFromImage(img, ts), nil
}

// FrameCount число кадров в файле; 0 для камеры.
func (s *VideoSource) FrameCount() int {
	if !s.isFile {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return int(s.cap.Get(gocv.VideoCaptureFrameCount))
}

// Skip пропускает n кадров без декодирования.
func (s *VideoSource) Skip(n int) {
	if n <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cap.Grab(n)
}

// Close освобождает устройство.
func (s *VideoSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mat.Close()
	return s.cap.Close()
}

// checkQuality отбрасывает кадры, на которых доску заведомо не распознать.
func (s *VideoSource) checkQuality(mat gocv.Mat) error {
	if mat.Cols() < s.MinImageSide || mat.Rows() < s.MinImageSide {
		return fmt.Errorf("%w: frame is too small (%dx%d)", ErrPoorQuality, mat.Cols(), mat.Rows())
	}

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(mat, &gray, gocv.ColorBGRToGray)

	edges := gocv.NewMat()
	defer edges.Close()
	gocv.Canny(gray, &edges, 80, 160)
	if r := ratioOfMask(edges); r < s.MinSharpnessEdgeRatio {
		return fmt.Errorf("%w: frame is blurry (edge_ratio=%.4f)", ErrPoorQuality, r)
	}

	bright := gocv.NewMat()
	defer bright.Close()
	gocv.Threshold(gray, &bright, 250, 255, gocv.ThresholdBinary)
	if r := ratioOfMask(bright); r > s.MaxOverexposedRatio {
		return fmt.Errorf("%w: overexposed frame (ratio=%.4f)", ErrPoorQuality, r)
	}

	dark := gocv.NewMat()
	defer dark.Close()
	gocv.Threshold(gray, &dark, 20, 255, gocv.ThresholdBinaryInv)
	if r := ratioOfMask(dark); r > s.MaxUnderexposedRatio {
		return fmt.Errorf("%w: underexposed frame (ratio=%.4f)", ErrPoorQuality, r)
	}

	hsv := gocv.NewMat()
	defer hsv.Close()
	gocv.CvtColor(mat, &hsv, gocv.ColorBGRToHSV)
	channels := gocv.Split(hsv)
	for i := range channels {
		defer channels[i].Close()
	}
	if len(channels) < 3 {
		return fmt.Errorf("%w: invalid hsv channels", ErrPoorQuality)
	}

	lowSat := gocv.NewMat()
	defer lowSat.Close()
	gocv.Threshold(channels[1], &lowSat, 40, 255, gocv.ThresholdBinaryInv)

	highVal := gocv.NewMat()
	defer highVal.Close()
	gocv.Threshold(channels[2], &highVal, 245, 255, gocv.ThresholdBinary)

	glare := gocv.NewMat()
	defer glare.Close()
	gocv.BitwiseAnd(lowSat, highVal, &glare)
	if r := ratioOfMask(glare); r > s.MaxGlareRatio {
		return fmt.Errorf("%w: too much glare (ratio=%.4f)", ErrPoorQuality, r)
	}

	return nil
}

func ratioOfMask(mask gocv.Mat) float64 {
	total := mask.Cols() * mask.Rows()
	if total <= 0 {
		return 0
	}
	return float64(gocv.CountNonZero(mask)) / float64(total)
}

var _ port.FrameSource = (*VideoSource)(nil)
