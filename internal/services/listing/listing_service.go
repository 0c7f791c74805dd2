package listing

import (
	"encoding/json"
	"log"
	"math"
	"strconv"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/rajivgeraev/geoswap-api/internal/config"
	"github.com/rajivgeraev/geoswap-api/internal/db"
	"github.com/rajivgeraev/geoswap-api/internal/models"
	"github.com/rajivgeraev/geoswap-api/internal/realtime"
	"github.com/rajivgeraev/geoswap-api/internal/utils"
)

// Радиус локальной ленты. Дистанция считается на стороне базы,
// здесь только фиксированное значение для RPC.
const nearbyRadiusMeters = 5000

// ListingService представляет сервис для работы с объявлениями
type ListingService struct {
	cfg        *config.Config
	jwtService *utils.JWTService
	hub        *realtime.Hub
}

// NewListingService создает новый экземпляр ListingService
func NewListingService(cfg *config.Config, hub *realtime.Hub) *ListingService {
	return &ListingService{
		cfg:        cfg,
		jwtService: utils.NewJWTService(cfg.JWTSecret),
		hub:        hub,
	}
}

// GetNearbyItems возвращает активные объявления в радиусе 5 км от координаты.
// Выборку по радиусу делает функция базы get_items_within_radius; здесь
// остается только пост-фильтр по актуальному статусу.
func (s *ListingService) GetNearbyItems(c fiber.Ctx) error {
	lat := c.Query("lat")
	lon := c.Query("lon")

	if lat == "" || lon == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Query parameters lat and lon are required"})
	}

	userLat, errLat := strconv.ParseFloat(lat, 64)
	userLon, errLon := strconv.ParseFloat(lon, 64)

	if errLat != nil || errLon != nil || !isFinite(userLat) || !isFinite(userLon) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "lat and lon must be valid numbers"})
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	nearby, err := fetchNearbyListings(ctx, userLat, userLon, nearbyRadiusMeters)
	if err != nil {
		log.Printf("Ошибка гео-выборки объявлений: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to load nearby listings"})
	}

	// Статусы могли измениться после того, как строка попала в гео-индекс,
	// поэтому перечитываем их и отбрасываем проданное и обменянное
	filtered, err := filterByCurrentStatus(ctx, nearby)
	if err != nil {
		log.Printf("Ошибка проверки статусов объявлений: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to load nearby listings"})
	}

	return c.JSON(filtered)
}

// AIWebhook создает объявление из результата AI-сканирования.
// Формат полей — контракт последней версии вебхука, параметры RPC с префиксом p_.
func (s *ListingService) AIWebhook(c fiber.Ctx) error {
	var requestData struct {
		ItemName          string     `json:"itemName"`
		Description       string     `json:"description"`
		Category          string     `json:"category"`
		SuggestedPriceINR *float64   `json:"suggestedPriceINR"`
		EstimatedWeightKg *float64   `json:"estimatedWeightKg"`
		Lat               coordinate `json:"lat"`
		Lon               coordinate `json:"lon"`
		UserID            string     `json:"user_id"`
		ImageURL          string     `json:"imageUrl"`
	}

	if err := c.Bind().Body(&requestData); err != nil {
		log.Printf("Ошибка декодирования тела запроса: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	lat := requestData.Lat.ptr()
	lon := requestData.Lon.ptr()

	missing := missingWebhookFields(
		requestData.ItemName,
		requestData.Category,
		requestData.UserID,
		requestData.SuggestedPriceINR,
		requestData.EstimatedWeightKg,
		lat,
		lon,
	)

	if len(missing) > 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "Missing required fields",
			"missing": missing,
		})
	}

	if !isFinite(*lat) || !isFinite(*lon) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "lat and lon must be valid numbers"})
	}

	userUUID, err := uuid.Parse(requestData.UserID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "user_id must be a valid UUID"})
	}

	// Если вебхук пришел с токеном, сверяем владельца из токена с телом запроса
	if tokenUser, ok := c.Locals("userID").(string); ok && tokenUser != "" && tokenUser != requestData.UserID {
		log.Printf("⚠️ user_id вебхука (%s) не совпадает с токеном (%s)", requestData.UserID, tokenUser)
	}

	aiMetadata := map[string]interface{}{"estimatedWeightKg": *requestData.EstimatedWeightKg}
	if requestData.ImageURL != "" {
		aiMetadata["imageUrl"] = requestData.ImageURL
	}

	metadataJSON, err := json.Marshal(aiMetadata)
	if err != nil {
		log.Printf("Ошибка сериализации метаданных: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create listing"})
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	// Вставка с геокодированием выполняется атомарно внутри функции базы
	var created []byte
	err = db.Pool.QueryRow(ctx, `
		SELECT insert_listing_with_location($1, $2, $3, $4, $5, $6, $7, $8)
	`, requestData.ItemName, requestData.Description, requestData.Category,
		*requestData.SuggestedPriceINR, metadataJSON, userUUID,
		*lat, *lon).Scan(&created)

	if err != nil {
		log.Printf("Ошибка создания объявления через вебхук: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create listing"})
	}

	c.Status(fiber.StatusCreated)
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Send(created)
}

// MarkSold помечает объявление проданным и сохраняет финальную цену
func (s *ListingService) MarkSold(c fiber.Ctx) error {
	userID := c.Locals("userID").(string)
	listingID := c.Params("id")

	userUUID, err := uuid.Parse(userID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid user ID"})
	}

	listingUUID, err := uuid.Parse(listingID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid listing ID"})
	}

	var requestData struct {
		FinalRate *float64 `json:"final_rate"`
	}

	if err := c.Bind().Body(&requestData); err != nil {
		log.Printf("Ошибка декодирования тела запроса: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	if requestData.FinalRate == nil || !isFinite(*requestData.FinalRate) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "final_rate is required and must be a number"})
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	var ownerID uuid.UUID
	err = db.Pool.QueryRow(ctx, `SELECT user_id FROM listings WHERE id = $1`, listingUUID).Scan(&ownerID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Listing not found"})
		}
		log.Printf("Ошибка запроса объявления: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to load listing"})
	}

	if ownerID != userUUID {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Only the owner can mark a listing sold"})
	}

	finalRate := math.Round(*requestData.FinalRate)

	var updated models.Listing
	err = db.Pool.QueryRow(ctx, `
		UPDATE listings
		SET status = 'sold',
		    ai_metadata = jsonb_set(COALESCE(ai_metadata, '{}'::jsonb), '{final_rate}', to_jsonb($1::numeric)),
		    updated_at = NOW()
		WHERE id = $2
		RETURNING id, user_id, title, COALESCE(description, ''), category, price, status,
		          COALESCE(image_url, ''), ai_metadata, created_at, updated_at
	`, finalRate, listingUUID).Scan(
		&updated.ID, &updated.UserID, &updated.Title, &updated.Description,
		&updated.Category, &updated.Price, &updated.Status,
		&updated.ImageURL, &updated.AIMetadata, &updated.CreatedAt, &updated.UpdatedAt,
	)

	if err != nil {
		log.Printf("Ошибка обновления объявления: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update listing"})
	}

	s.hub.Publish(userID, realtime.Event{
		Type:      realtime.EventListingUpdated,
		ListingID: listingUUID.String(),
	})

	return c.JSON(updated)
}

// GetMyListings возвращает объявления текущего пользователя
func (s *ListingService) GetMyListings(c fiber.Ctx) error {
	userID := c.Locals("userID").(string)

	userUUID, err := uuid.Parse(userID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid user ID"})
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	rows, err := db.Pool.Query(ctx, `
		SELECT id, user_id, title, COALESCE(description, ''), category, price, status,
		       COALESCE(image_url, ''), ai_metadata, created_at, updated_at
		FROM listings
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, userUUID)

	if err != nil {
		log.Printf("Ошибка запроса объявлений: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to load listings"})
	}
	defer rows.Close()

	listings, err := scanListings(rows)
	if err != nil {
		log.Printf("Ошибка сканирования объявлений: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to load listings"})
	}

	return c.JSON(fiber.Map{
		"listings": listings,
		"count":    len(listings),
	})
}

// GetListing возвращает одно объявление по ID
func (s *ListingService) GetListing(c fiber.Ctx) error {
	listingID := c.Params("id")

	listingUUID, err := uuid.Parse(listingID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid listing ID"})
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	var listing models.Listing
	err = db.Pool.QueryRow(ctx, `
		SELECT id, user_id, title, COALESCE(description, ''), category, price, status,
		       COALESCE(image_url, ''), ai_metadata, created_at, updated_at
		FROM listings
		WHERE id = $1
	`, listingUUID).Scan(
		&listing.ID, &listing.UserID, &listing.Title, &listing.Description,
		&listing.Category, &listing.Price, &listing.Status,
		&listing.ImageURL, &listing.AIMetadata, &listing.CreatedAt, &listing.UpdatedAt,
	)

	if err != nil {
		if err == pgx.ErrNoRows {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Listing not found"})
		}
		log.Printf("Ошибка запроса объявления: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to load listing"})
	}

	return c.JSON(listing)
}

// DeleteListing удаляет объявление владельца
func (s *ListingService) DeleteListing(c fiber.Ctx) error {
	userID := c.Locals("userID").(string)
	listingID := c.Params("id")

	userUUID, err := uuid.Parse(userID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid user ID"})
	}

	listingUUID, err := uuid.Parse(listingID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid listing ID"})
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	var ownerID uuid.UUID
	err = db.Pool.QueryRow(ctx, `SELECT user_id FROM listings WHERE id = $1`, listingUUID).Scan(&ownerID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Listing not found"})
		}
		log.Printf("Ошибка запроса объявления: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to load listing"})
	}

	if ownerID != userUUID {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Only the owner can delete a listing"})
	}

	_, err = db.Pool.Exec(ctx, `DELETE FROM listings WHERE id = $1`, listingUUID)
	if err != nil {
		log.Printf("Ошибка удаления объявления: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to delete listing"})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Listing deleted",
	})
}
