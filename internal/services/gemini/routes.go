package gemini

import (
	"github.com/gofiber/fiber/v3"
)

// SetupRoutes настраивает маршруты для API сканирования фотографий
func (s *GeminiService) SetupRoutes(app *fiber.App) {
	// Публичный маршрут: сканирование выполняется до создания аккаунта вещи
	app.Post("/api/scan", s.ScanImage)
}
