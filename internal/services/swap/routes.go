package swap

import (
	"github.com/gofiber/fiber/v3"
	"github.com/rajivgeraev/geoswap-api/internal/middleware"
)

// SetupRoutes настраивает маршруты для API обменов
func (s *SwapService) SetupRoutes(app *fiber.App) {
	auth := middleware.AuthMiddleware(s.jwtService)

	// Публичный пересчет взаимных совпадений (клиент опрашивает периодически)
	app.Get("/api/swaps/smart-matches", s.GetSmartMatches)

	// Маршрут для создания предложения обмена
	app.Post("/api/swaps/propose", s.ProposeSwap, auth)

	// Маршрут для ответа на предложение обмена
	app.Put("/api/swaps/:id/respond", s.RespondToSwap, auth)
}
