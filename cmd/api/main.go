package main

import (
	"log"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"

	"github.com/rajivgeraev/geoswap-api/internal/config"
	"github.com/rajivgeraev/geoswap-api/internal/db"
	"github.com/rajivgeraev/geoswap-api/internal/middleware"
	"github.com/rajivgeraev/geoswap-api/internal/realtime"
	"github.com/rajivgeraev/geoswap-api/internal/services/chat"
	"github.com/rajivgeraev/geoswap-api/internal/services/cloudinary"
	"github.com/rajivgeraev/geoswap-api/internal/services/gemini"
	"github.com/rajivgeraev/geoswap-api/internal/services/listing"
	"github.com/rajivgeraev/geoswap-api/internal/services/swap"
	"github.com/rajivgeraev/geoswap-api/internal/services/wishlist"
	"github.com/rajivgeraev/geoswap-api/internal/utils"
)

func main() {
	// Загружаем конфигурацию
	cfg := config.LoadConfig()

	// Инициализируем базу данных
	if err := db.InitDB(cfg); err != nil {
		log.Fatalf("❌ Ошибка при инициализации базы данных: %v", err)
	}
	defer db.CloseDB()

	// Создаём экземпляр Fiber
	app := fiber.New(fiber.Config{
		AppName:      "GeoSwap API",
		ErrorHandler: errorHandler,
	})

	// Добавляем middleware
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowCredentials: false,
	}))

	// Шина событий для опроса клиентами
	hub := realtime.NewHub()

	// Создаём сервисы
	listingService := listing.NewListingService(cfg, hub)
	swapService := swap.NewSwapService(cfg, hub)
	chatService := chat.NewChatService(cfg, hub)
	wishlistService := wishlist.NewWishlistService(cfg)
	geminiService := gemini.NewGeminiService(cfg)
	cloudinaryService := cloudinary.NewCloudinaryService(cfg)

	// Регистрируем маршруты
	listingService.SetupRoutes(app)
	swapService.SetupRoutes(app)
	chatService.SetupRoutes(app)
	wishlistService.SetupRoutes(app)
	geminiService.SetupRoutes(app)
	cloudinaryService.SetupRoutes(app)

	jwtService := utils.NewJWTService(cfg.JWTSecret)
	hub.SetupRoutes(app, middleware.AuthMiddleware(jwtService))

	// Запускаем сервер
	log.Printf("✅ GeoSwap API запущен на порту %s", cfg.Port)
	log.Fatal(app.Listen(":" + cfg.Port))
}

// errorHandler обрабатывает ошибки Fiber
func errorHandler(c fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError

	// Проверяем, является ли ошибка из Fiber
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}

	// Отправляем ошибку в JSON
	return c.Status(code).JSON(fiber.Map{
		"error": err.Error(),
	})
}
