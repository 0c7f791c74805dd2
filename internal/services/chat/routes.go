package chat

import (
	"github.com/gofiber/fiber/v3"
	"github.com/rajivgeraev/geoswap-api/internal/middleware"
)

// SetupRoutes настраивает маршруты для API чатов
func (s *ChatService) SetupRoutes(app *fiber.App) {
	auth := middleware.AuthMiddleware(s.jwtService)

	// Маршруты чатов
	app.Get("/api/chats", s.GetChats, auth)
	app.Post("/api/chats", s.CreateChat, auth)
	app.Get("/api/chats/:id/messages", s.GetChatMessages, auth)
	app.Post("/api/chats/:id/messages", s.SendMessage, auth)

	// Протокол переговоров по ставке
	app.Post("/api/chats/:id/rate/propose", s.ProposeRate, auth)
	app.Put("/api/chats/:id/rate/respond", s.RespondToRate, auth)
}
