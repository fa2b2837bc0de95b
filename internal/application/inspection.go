package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"time"

	"board-vision/internal/domain/entity"
	"board-vision/internal/domain/port"
)

// InspectionService распознаёт отдельные фотографии доски вне живого потока.
type InspectionService struct {
	subscribers *SubscriberService
	locator     port.BoardLocator
	classifier  port.SquareClassifier
	opts        entity.ClassifyOptions
}

// NewInspectionService создаёт сервис разового распознавания.
func NewInspectionService(subscribers *SubscriberService, locator port.BoardLocator, classifier port.SquareClassifier, opts entity.ClassifyOptions) *InspectionService {
	return &InspectionService{
		subscribers: subscribers,
		locator:     locator,
		classifier:  classifier,
		opts:        opts,
	}
}

// InspectPhoto декодирует фото (PNG или JPEG) и распознаёт позицию на нём.
func (s *InspectionService) InspectPhoto(ctx context.Context, photo []byte) (*entity.Inspection, error) {
	img, _, err := image.Decode(bytes.NewReader(photo))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return s.Inspect(ctx, entity.FrameFromImage(img, time.Now()))
}

// Locate только ищет доску на кадре.
func (s *InspectionService) Locate(frame *entity.Frame) (*entity.Inspection, error) {
	if s.locator == nil {
		return nil, errors.New("locator is not configured")
	}
	if frame == nil || frame.Image == nil {
		return nil, entity.ErrInvalidFrame
	}

	region, found := s.locator.Locate(frame)
	return &entity.Inspection{
		ImageWidth:  frame.Width(),
		ImageHeight: frame.Height(),
		Region:      region,
		Found:       found,
	}, nil
}

// Inspect ищет доску и классифицирует её клетки.
func (s *InspectionService) Inspect(ctx context.Context, frame *entity.Frame) (*entity.Inspection, error) {
	if s.classifier == nil {
		return nil, errors.New("classifier is not configured")
	}

	res, err := s.Locate(frame)
	if err != nil || !res.Found {
		return res, err
	}

	cls, err := s.classifier.Classify(ctx, frame.Crop(res.Region), s.opts)
	if err != nil {
		return nil, err
	}
	res.Classification = cls
	return res, nil
}

// AcceptPhoto распознаёт фото от подписчика и возвращает его в главное меню.
func (s *InspectionService) AcceptPhoto(ctx context.Context, userID, chatID int64, photo []byte) (*entity.Inspection, error) {
	if _, err := s.subscribers.SetState(ctx, userID, chatID, entity.StateProcessing); err != nil {
		return nil, err
	}
	res, inspectErr := s.InspectPhoto(ctx, photo)
	if _, err := s.subscribers.SetState(ctx, userID, chatID, entity.StateIdle); err != nil {
		return nil, err
	}
	return res, inspectErr
}
