package entity

// Inspection итог разового распознавания фотографии доски.
type Inspection struct {
	ImageWidth     int             // ширина изображения
	ImageHeight    int             // высота изображения
	Region         Region          // найденная область доски
	Found          bool            // найдена ли доска
	Classification *Classification // результат классификации, если доска найдена
}
