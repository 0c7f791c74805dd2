package swap

import (
	"log"
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/rajivgeraev/geoswap-api/internal/config"
	"github.com/rajivgeraev/geoswap-api/internal/db"
	"github.com/rajivgeraev/geoswap-api/internal/models"
	"github.com/rajivgeraev/geoswap-api/internal/realtime"
	"github.com/rajivgeraev/geoswap-api/internal/utils"
)

// SwapService представляет сервис для работы с предложениями обмена
type SwapService struct {
	cfg        *config.Config
	jwtService *utils.JWTService
	hub        *realtime.Hub
}

// NewSwapService создает новый экземпляр SwapService
func NewSwapService(cfg *config.Config, hub *realtime.Hub) *SwapService {
	return &SwapService{
		cfg:        cfg,
		jwtService: utils.NewJWTService(cfg.JWTSecret),
		hub:        hub,
	}
}

// ProposeSwap создает предложение обмена: вызывающий предлагает свое
// объявление за объявление другого пользователя
func (s *SwapService) ProposeSwap(c fiber.Ctx) error {
	userID := c.Locals("userID").(string)

	proposerID, err := uuid.Parse(userID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid user ID"})
	}

	var requestData struct {
		DesiredListingID string `json:"desired_listing_id"`
		OfferedListingID string `json:"offered_listing_id"`
	}

	if err := c.Bind().Body(&requestData); err != nil {
		log.Printf("Ошибка декодирования тела запроса: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	if requestData.DesiredListingID == "" || requestData.OfferedListingID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Both desired_listing_id and offered_listing_id are required",
		})
	}

	desiredID, err := uuid.Parse(requestData.DesiredListingID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "desired_listing_id must be a valid UUID"})
	}

	offeredID, err := uuid.Parse(requestData.OfferedListingID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "offered_listing_id must be a valid UUID"})
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	// Желаемое объявление определяет получателя предложения
	var recipientID uuid.UUID
	var desiredStatus string
	err = db.Pool.QueryRow(ctx, `
		SELECT user_id, status FROM listings WHERE id = $1
	`, desiredID).Scan(&recipientID, &desiredStatus)

	if err != nil {
		if err == pgx.ErrNoRows {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Desired listing not found"})
		}
		log.Printf("Ошибка запроса желаемого объявления: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to load listing"})
	}

	var offeredOwnerID uuid.UUID
	var offeredStatus string
	err = db.Pool.QueryRow(ctx, `
		SELECT user_id, status FROM listings WHERE id = $1
	`, offeredID).Scan(&offeredOwnerID, &offeredStatus)

	if err != nil {
		if err == pgx.ErrNoRows {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Offered listing not found"})
		}
		log.Printf("Ошибка запроса предлагаемого объявления: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to load listing"})
	}

	// Предлагать можно только свою вещь
	if offeredOwnerID != proposerID {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "You can only offer your own listing"})
	}

	if recipientID == proposerID {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "You cannot propose a swap to yourself"})
	}

	// Обе стороны должны быть активны
	if desiredStatus == models.ListingStatusSold || desiredStatus == models.ListingStatusSwapped {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Desired listing is no longer available"})
	}

	if offeredStatus == models.ListingStatusSold || offeredStatus == models.ListingStatusSwapped {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Offered listing is no longer available"})
	}

	// Не плодим дубликаты еще не рассмотренных предложений
	var existingCount int
	err = db.Pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM matches
		WHERE listing_1_id = $1 AND listing_2_id = $2 AND status = 'pending'
	`, offeredID, desiredID).Scan(&existingCount)

	if err != nil {
		log.Printf("Ошибка проверки существующих предложений: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to check existing proposals"})
	}

	if existingCount > 0 {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "An identical pending proposal already exists"})
	}

	var match models.Match
	err = db.Pool.QueryRow(ctx, `
		INSERT INTO matches (id, user_1_id, user_2_id, listing_1_id, listing_2_id, status)
		VALUES ($1, $2, $3, $4, $5, 'pending')
		RETURNING id, user_1_id, user_2_id, listing_1_id, listing_2_id, status, created_at, updated_at
	`, uuid.New(), proposerID, recipientID, offeredID, desiredID).Scan(
		&match.ID, &match.User1ID, &match.User2ID,
		&match.Listing1ID, &match.Listing2ID, &match.Status,
		&match.CreatedAt, &match.UpdatedAt,
	)

	if err != nil {
		log.Printf("Ошибка создания предложения обмена: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create swap proposal"})
	}

	s.hub.Publish(recipientID.String(), realtime.Event{
		Type:    realtime.EventSwapUpdated,
		MatchID: match.ID.String(),
		UserID:  proposerID.String(),
	})

	return c.Status(fiber.StatusCreated).JSON(match)
}

// RespondToSwap принимает или отклоняет предложение обмена.
// Отвечать может только получатель, предложение должно быть в ожидании.
func (s *SwapService) RespondToSwap(c fiber.Ctx) error {
	userID := c.Locals("userID").(string)
	matchID := c.Params("id")

	responderID, err := uuid.Parse(userID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid user ID"})
	}

	matchUUID, err := uuid.Parse(matchID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid match ID"})
	}

	var requestData struct {
		Response string `json:"response"`
	}

	if err := c.Bind().Body(&requestData); err != nil {
		log.Printf("Ошибка декодирования тела запроса: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	response := strings.ToLower(strings.TrimSpace(requestData.Response))
	if response != "accept" && response != "reject" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "response must be accept or reject"})
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	var match models.Match
	err = db.Pool.QueryRow(ctx, `
		SELECT id, user_1_id, user_2_id, listing_1_id, listing_2_id, status, created_at, updated_at
		FROM matches
		WHERE id = $1
	`, matchUUID).Scan(
		&match.ID, &match.User1ID, &match.User2ID,
		&match.Listing1ID, &match.Listing2ID, &match.Status,
		&match.CreatedAt, &match.UpdatedAt,
	)

	if err != nil {
		if err == pgx.ErrNoRows {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Swap proposal not found"})
		}
		log.Printf("Ошибка запроса предложения обмена: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to load swap proposal"})
	}

	if match.User2ID != responderID {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Only the recipient can respond to this proposal"})
	}

	if match.Status != models.MatchStatusPending {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Proposal is no longer pending"})
	}

	newStatus := models.MatchStatusRejected
	if response == "accept" {
		newStatus = models.MatchStatusAccepted
	}

	// Обновление матча и объявлений — одна транзакция, чтобы исключить
	// частичное применение при гонке двух ответов
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		log.Printf("Ошибка начала транзакции: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Database error"})
	}
	defer tx.Rollback(ctx)

	// Условное обновление: побеждает ровно один ответ
	tag, err := tx.Exec(ctx, `
		UPDATE matches
		SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = 'pending'
	`, newStatus, matchUUID)

	if err != nil {
		log.Printf("Ошибка обновления статуса предложения: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update proposal"})
	}

	if tag.RowsAffected() == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Proposal is no longer pending"})
	}

	if newStatus == models.MatchStatusAccepted {
		_, err = tx.Exec(ctx, `
			UPDATE listings
			SET status = 'swapped', updated_at = NOW()
			WHERE id = ANY($1)
		`, []uuid.UUID{match.Listing1ID, match.Listing2ID})

		if err != nil {
			log.Printf("Ошибка пометки объявлений обменянными: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update listings"})
		}
	}

	if err = tx.Commit(ctx); err != nil {
		log.Printf("Ошибка фиксации транзакции: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Database error"})
	}

	match.Status = newStatus

	s.hub.Publish(match.User1ID.String(), realtime.Event{
		Type:    realtime.EventSwapUpdated,
		MatchID: match.ID.String(),
		UserID:  responderID.String(),
	})

	return c.JSON(match)
}
