package realtime

import (
	"github.com/gofiber/fiber/v3"
)

// SetupRoutes настраивает маршрут опроса событий
func (h *Hub) SetupRoutes(app *fiber.App, authMiddleware fiber.Handler) {
	api := app.Group("/api/realtime")
	api.Use(authMiddleware)

	// Клиент периодически забирает накопленные события
	api.Get("/events", h.DrainEvents)
}

// DrainEvents отдает накопленные события пользователя и очищает очередь
func (h *Hub) DrainEvents(c fiber.Ctx) error {
	userID := c.Locals("userID").(string)
	if userID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}

	events := h.Drain(userID)
	return c.JSON(fiber.Map{
		"events": events,
		"count":  len(events),
	})
}
