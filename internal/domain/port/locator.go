package port

import "board-vision/internal/domain/entity"

// BoardLocator интерфейс поиска доски в кадре
type BoardLocator interface {
	// Locate возвращает область доски или false, если доска не найдена
	Locate(frame *entity.Frame) (entity.Region, bool)
}
