package entity

// Region прямоугольник доски в координатах кадра
type Region struct {
	X      int `json:"x"`      // координата X левого верхнего угла
	Y      int `json:"y"`      // координата Y левого верхнего угла
	Width  int `json:"width"`  // ширина области в пикселях
	Height int `json:"height"` // высота области в пикселях
}

// Area возвращает площадь области
func (r Region) Area() int {
	return r.Width * r.Height
}

// Center возвращает координаты центра области
func (r Region) Center() (x, y int) {
	return r.X + r.Width/2, r.Y + r.Height/2
}

// Empty сообщает, что область вырождена
func (r Region) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// Within проверяет, что область целиком лежит внутри кадра width×height
func (r Region) Within(width, height int) bool {
	return !r.Empty() && r.X >= 0 && r.Y >= 0 && r.X+r.Width <= width && r.Y+r.Height <= height
}
