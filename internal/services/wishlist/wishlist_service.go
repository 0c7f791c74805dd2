package wishlist

import (
	"log"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/rajivgeraev/geoswap-api/internal/config"
	"github.com/rajivgeraev/geoswap-api/internal/db"
	"github.com/rajivgeraev/geoswap-api/internal/models"
	"github.com/rajivgeraev/geoswap-api/internal/utils"
)

// WishlistService представляет сервис для работы со списком желаний
type WishlistService struct {
	cfg        *config.Config
	jwtService *utils.JWTService
}

// NewWishlistService создает новый экземпляр WishlistService
func NewWishlistService(cfg *config.Config) *WishlistService {
	return &WishlistService{
		cfg:        cfg,
		jwtService: utils.NewJWTService(cfg.JWTSecret),
	}
}

// AddToWishlist добавляет объявление в список желаний
func (s *WishlistService) AddToWishlist(c fiber.Ctx) error {
	userID := c.Locals("userID").(string)

	var requestData struct {
		ListingID string `json:"listing_id"`
	}

	if err := c.Bind().Body(&requestData); err != nil {
		log.Printf("Ошибка декодирования тела запроса: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	if requestData.ListingID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "listing_id is required"})
	}

	userUUID, err := uuid.Parse(userID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid user ID"})
	}

	listingUUID, err := uuid.Parse(requestData.ListingID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "listing_id must be a valid UUID"})
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	// Объявление должно существовать и быть активным
	var ownerID uuid.UUID
	err = db.Pool.QueryRow(ctx, `
		SELECT user_id FROM listings WHERE id = $1 AND status = 'active'
	`, listingUUID).Scan(&ownerID)

	if err != nil {
		if err == pgx.ErrNoRows {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Listing not found or not active"})
		}
		log.Printf("Ошибка проверки существования объявления: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to check listing"})
	}

	// Свою вещь желать бессмысленно
	if ownerID == userUUID {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "You cannot add your own listing to your wishlist"})
	}

	var exists bool
	err = db.Pool.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM wishlists WHERE user_id = $1 AND listing_id = $2)
	`, userUUID, listingUUID).Scan(&exists)

	if err != nil {
		log.Printf("Ошибка проверки списка желаний: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to check wishlist"})
	}

	if exists {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Listing is already in your wishlist"})
	}

	entryID := uuid.New()
	_, err = db.Pool.Exec(ctx, `
		INSERT INTO wishlists (id, user_id, listing_id)
		VALUES ($1, $2, $3)
	`, entryID, userUUID, listingUUID)

	if err != nil {
		log.Printf("Ошибка добавления в список желаний: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to add to wishlist"})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"id":      entryID,
	})
}

// RemoveFromWishlist удаляет объявление из списка желаний
func (s *WishlistService) RemoveFromWishlist(c fiber.Ctx) error {
	userID := c.Locals("userID").(string)
	listingID := c.Params("listing_id")

	userUUID, err := uuid.Parse(userID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid user ID"})
	}

	listingUUID, err := uuid.Parse(listingID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "listing_id must be a valid UUID"})
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	tag, err := db.Pool.Exec(ctx, `
		DELETE FROM wishlists WHERE user_id = $1 AND listing_id = $2
	`, userUUID, listingUUID)

	if err != nil {
		log.Printf("Ошибка удаления из списка желаний: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to remove from wishlist"})
	}

	if tag.RowsAffected() == 0 {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Listing is not in your wishlist"})
	}

	return c.JSON(fiber.Map{"success": true})
}

// GetWishlist возвращает список желаний пользователя с данными объявлений
func (s *WishlistService) GetWishlist(c fiber.Ctx) error {
	userID := c.Locals("userID").(string)

	userUUID, err := uuid.Parse(userID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid user ID"})
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	query := `
		SELECT w.id, w.user_id, w.listing_id, w.created_at,
		       l.id, l.user_id, l.title, COALESCE(l.description, ''), l.category,
		       l.price, l.status, COALESCE(l.image_url, ''), l.ai_metadata,
		       l.created_at, l.updated_at
		FROM wishlists w
		JOIN listings l ON w.listing_id = l.id
		WHERE w.user_id = $1 AND l.status = 'active'
		ORDER BY w.created_at DESC
	`

	rows, err := db.Pool.Query(ctx, query, userUUID)
	if err != nil {
		log.Printf("Ошибка запроса списка желаний: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to load wishlist"})
	}
	defer rows.Close()

	var entries []models.WishlistEntry
	for rows.Next() {
		var entry models.WishlistEntry
		var listing models.Listing

		if err := rows.Scan(
			&entry.ID,
			&entry.UserID,
			&entry.ListingID,
			&entry.CreatedAt,
			&listing.ID,
			&listing.UserID,
			&listing.Title,
			&listing.Description,
			&listing.Category,
			&listing.Price,
			&listing.Status,
			&listing.ImageURL,
			&listing.AIMetadata,
			&listing.CreatedAt,
			&listing.UpdatedAt,
		); err != nil {
			log.Printf("Ошибка сканирования строки: %v", err)
			continue
		}

		entry.Listing = &listing
		entries = append(entries, entry)
	}

	return c.JSON(fiber.Map{
		"wishlist": entries,
		"count":    len(entries),
	})
}
