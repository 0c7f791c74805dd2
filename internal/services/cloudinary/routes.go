package cloudinary

import (
	"github.com/gofiber/fiber/v3"
	"github.com/rajivgeraev/geoswap-api/internal/middleware"
)

// SetupRoutes настраивает маршруты для API загрузки фотографий
func (s *CloudinaryService) SetupRoutes(app *fiber.App) {
	auth := middleware.AuthMiddleware(s.jwtService)

	// Параметры прямой загрузки с клиента
	app.Post("/api/uploads/signature", s.GenerateUploadParams, auth)
}
