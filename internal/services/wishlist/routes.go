package wishlist

import (
	"github.com/gofiber/fiber/v3"
	"github.com/rajivgeraev/geoswap-api/internal/middleware"
)

// SetupRoutes настраивает маршруты для API списка желаний
func (s *WishlistService) SetupRoutes(app *fiber.App) {
	auth := middleware.AuthMiddleware(s.jwtService)

	app.Get("/api/wishlist", s.GetWishlist, auth)
	app.Post("/api/wishlist", s.AddToWishlist, auth)
	app.Delete("/api/wishlist/:listing_id", s.RemoveFromWishlist, auth)
}
