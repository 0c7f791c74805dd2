package listing

import (
	"github.com/gofiber/fiber/v3"
	"github.com/rajivgeraev/geoswap-api/internal/middleware"
)

// SetupRoutes настраивает маршруты для API объявлений.
// Часть маршрутов публичная, поэтому авторизация вешается на уровне маршрута.
func (s *ListingService) SetupRoutes(app *fiber.App) {
	auth := middleware.AuthMiddleware(s.jwtService)

	// Локальная лента: публичный маршрут
	app.Get("/api/items/nearby", s.GetNearbyItems)

	// Вебхук создания объявления: токен необязателен
	app.Post("/api/listings/ai-webhook", s.AIWebhook, middleware.OptionalAuthMiddleware(s.jwtService))

	// Свои объявления — раньше "/:id", иначе "my" уйдет в параметр
	app.Get("/api/listings/my", s.GetMyListings, auth)

	// Пометка проданным
	app.Put("/api/listings/:id/mark-sold", s.MarkSold, auth)

	// Удаление объявления
	app.Delete("/api/listings/:id", s.DeleteListing, auth)

	// Публичный просмотр одного объявления
	app.Get("/api/listings/:id", s.GetListing)
}
