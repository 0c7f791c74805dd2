package chat

import (
	"context"
	"log"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/rajivgeraev/geoswap-api/internal/config"
	"github.com/rajivgeraev/geoswap-api/internal/db"
	"github.com/rajivgeraev/geoswap-api/internal/models"
	"github.com/rajivgeraev/geoswap-api/internal/realtime"
	"github.com/rajivgeraev/geoswap-api/internal/utils"
)

// ChatService представляет сервис для работы с чатами
type ChatService struct {
	cfg        *config.Config
	jwtService *utils.JWTService
	hub        *realtime.Hub
}

// NewChatService создает новый экземпляр ChatService
func NewChatService(cfg *config.Config, hub *realtime.Hub) *ChatService {
	return &ChatService{
		cfg:        cfg,
		jwtService: utils.NewJWTService(cfg.JWTSecret),
		hub:        hub,
	}
}

// GetChats возвращает список чатов пользователя
func (s *ChatService) GetChats(c fiber.Ctx) error {
	userID := c.Locals("userID").(string)

	userUUID, err := uuid.Parse(userID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid user ID"})
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	query := `
        SELECT c.id, c.listing_id, c.buyer_id, c.seller_id, c.created_at, c.updated_at,
               COALESCE(c.last_message_text, ''), c.last_message_time,
               COUNT(m.id) FILTER (WHERE m.sender_id != $1 AND m.is_read = false) AS unread_count
        FROM chats c
        LEFT JOIN messages m ON c.id = m.chat_id
        WHERE c.buyer_id = $1 OR c.seller_id = $1
        GROUP BY c.id
        ORDER BY c.last_message_time DESC NULLS LAST, c.created_at DESC
    `

	rows, err := db.Pool.Query(ctx, query, userUUID)
	if err != nil {
		log.Printf("Ошибка запроса чатов: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to load chats"})
	}
	defer rows.Close()

	var chats []models.Chat
	for rows.Next() {
		var chat models.Chat
		var lastMessageTime *time.Time
		var unreadCount int

		if err := rows.Scan(
			&chat.ID,
			&chat.ListingID,
			&chat.BuyerID,
			&chat.SellerID,
			&chat.CreatedAt,
			&chat.UpdatedAt,
			&chat.LastMessageText,
			&lastMessageTime,
			&unreadCount,
		); err != nil {
			log.Printf("Ошибка сканирования строки: %v", err)
			continue
		}

		chat.LastMessageTime = lastMessageTime
		chat.UnreadCount = unreadCount

		// Имя собеседника
		otherUserID := chat.SellerID
		if chat.SellerID == userUUID {
			otherUserID = chat.BuyerID
		}
		chat.CounterpartName = db.GetUsernameOrDefault(ctx, otherUserID, "Local User")

		chats = append(chats, chat)
	}

	return c.JSON(fiber.Map{
		"chats": chats,
		"count": len(chats),
	})
}

// CreateChat находит или лениво создает чат по объявлению.
// Покупатель — вызывающий, продавец — владелец объявления.
func (s *ChatService) CreateChat(c fiber.Ctx) error {
	userID := c.Locals("userID").(string)

	buyerUUID, err := uuid.Parse(userID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid user ID"})
	}

	var requestData struct {
		ListingID string `json:"listing_id"`
	}

	if err := c.Bind().Body(&requestData); err != nil {
		log.Printf("Ошибка чтения тела запроса: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	if requestData.ListingID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "listing_id is required"})
	}

	listingUUID, err := uuid.Parse(requestData.ListingID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "listing_id must be a valid UUID"})
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	var sellerUUID uuid.UUID
	err = db.Pool.QueryRow(ctx, `SELECT user_id FROM listings WHERE id = $1`, listingUUID).Scan(&sellerUUID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Listing not found"})
		}
		log.Printf("Ошибка запроса объявления: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to load listing"})
	}

	if sellerUUID == buyerUUID {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "You cannot open a chat on your own listing"})
	}

	// Чат по объявлению и паре участников существует в одном экземпляре
	var existing models.Chat
	err = db.Pool.QueryRow(ctx, `
		SELECT id, listing_id, buyer_id, seller_id, created_at, updated_at
		FROM chats
		WHERE listing_id = $1 AND buyer_id = $2 AND seller_id = $3
	`, listingUUID, buyerUUID, sellerUUID).Scan(
		&existing.ID, &existing.ListingID, &existing.BuyerID,
		&existing.SellerID, &existing.CreatedAt, &existing.UpdatedAt,
	)

	if err == nil {
		return c.JSON(existing)
	}

	if err != pgx.ErrNoRows {
		log.Printf("Ошибка проверки существующего чата: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to check existing chat"})
	}

	var created models.Chat
	err = db.Pool.QueryRow(ctx, `
		INSERT INTO chats (id, listing_id, buyer_id, seller_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id, listing_id, buyer_id, seller_id, created_at, updated_at
	`, uuid.New(), listingUUID, buyerUUID, sellerUUID).Scan(
		&created.ID, &created.ListingID, &created.BuyerID,
		&created.SellerID, &created.CreatedAt, &created.UpdatedAt,
	)

	if err != nil {
		log.Printf("Ошибка создания чата: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create chat"})
	}

	s.hub.Publish(sellerUUID.String(), realtime.Event{
		Type:   realtime.EventNewChat,
		ChatID: created.ID.String(),
		UserID: buyerUUID.String(),
	})

	return c.Status(fiber.StatusCreated).JSON(created)
}

// GetChatMessages возвращает историю сообщений чата по возрастанию времени
func (s *ChatService) GetChatMessages(c fiber.Ctx) error {
	userID := c.Locals("userID").(string)
	chatID := c.Params("id")

	userUUID, err := uuid.Parse(userID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid user ID"})
	}

	chatUUID, err := uuid.Parse(chatID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid chat ID"})
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	if _, err := s.requireParticipant(ctx, chatUUID, userUUID); err != nil {
		return respondChatAccess(c, err)
	}

	rows, err := db.Pool.Query(ctx, `
        SELECT id, chat_id, sender_id, content, is_read, created_at
        FROM messages
        WHERE chat_id = $1
        ORDER BY created_at ASC
    `, chatUUID)

	if err != nil {
		log.Printf("Ошибка запроса сообщений: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to load messages"})
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		var msg models.Message
		if err := rows.Scan(&msg.ID, &msg.ChatID, &msg.SenderID, &msg.Content, &msg.IsRead, &msg.CreatedAt); err != nil {
			log.Printf("Ошибка сканирования сообщения: %v", err)
			continue
		}
		messages = append(messages, msg)
	}

	// Отмечаем чужие сообщения прочитанными
	_, err = db.Pool.Exec(ctx, `
        UPDATE messages
        SET is_read = true
        WHERE chat_id = $1 AND sender_id != $2 AND is_read = false
    `, chatUUID, userUUID)

	if err != nil {
		log.Printf("Ошибка обновления статуса прочтения: %v", err)
		// Не возвращаем ошибку, история уже загружена
	}

	return c.JSON(fiber.Map{
		"messages": messages,
		"count":    len(messages),
	})
}

// SendMessage отправляет обычное текстовое сообщение
func (s *ChatService) SendMessage(c fiber.Ctx) error {
	userID := c.Locals("userID").(string)
	chatID := c.Params("id")

	userUUID, err := uuid.Parse(userID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid user ID"})
	}

	chatUUID, err := uuid.Parse(chatID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid chat ID"})
	}

	var requestData struct {
		Content string `json:"content"`
	}

	if err := c.Bind().Body(&requestData); err != nil {
		log.Printf("Ошибка чтения тела запроса: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	if requestData.Content == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Message content cannot be empty"})
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	chat, err := s.requireParticipant(ctx, chatUUID, userUUID)
	if err != nil {
		return respondChatAccess(c, err)
	}

	message, err := s.appendMessage(ctx, chatUUID, userUUID, requestData.Content)
	if err != nil {
		log.Printf("Ошибка сохранения сообщения: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to send message"})
	}

	// Уведомляем собеседника
	otherUserID := chat.SellerID
	if chat.SellerID == userUUID {
		otherUserID = chat.BuyerID
	}
	s.hub.Publish(otherUserID.String(), realtime.Event{
		Type:   realtime.EventNewMessage,
		ChatID: chatUUID.String(),
		UserID: userUUID.String(),
	})

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": message,
		"success": true,
	})
}

// requireParticipant загружает чат и проверяет, что пользователь — его участник
func (s *ChatService) requireParticipant(ctx context.Context, chatID, userID uuid.UUID) (*models.Chat, error) {
	var chat models.Chat
	err := db.Pool.QueryRow(ctx, `
        SELECT id, listing_id, buyer_id, seller_id, created_at, updated_at
        FROM chats
        WHERE id = $1
    `, chatID).Scan(
		&chat.ID, &chat.ListingID, &chat.BuyerID,
		&chat.SellerID, &chat.CreatedAt, &chat.UpdatedAt,
	)

	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, errChatNotFound
		}
		log.Printf("Ошибка проверки доступа к чату: %v", err)
		return nil, err
	}

	if chat.BuyerID != userID && chat.SellerID != userID {
		return nil, errChatForbidden
	}

	return &chat, nil
}

// appendMessage вставляет сообщение и обновляет сводку чата одной транзакцией
func (s *ChatService) appendMessage(ctx context.Context, chatID, senderID uuid.UUID, content string) (*models.Message, error) {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	messageID := uuid.New()
	now := time.Now()

	_, err = tx.Exec(ctx, `
        INSERT INTO messages (id, chat_id, sender_id, content, is_read, created_at)
        VALUES ($1, $2, $3, $4, false, $5)
    `, messageID, chatID, senderID, content, now)
	if err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx, `
        UPDATE chats
        SET last_message_text = $1, last_message_time = $2, updated_at = $2
        WHERE id = $3
    `, content, now, chatID)
	if err != nil {
		return nil, err
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, err
	}

	return &models.Message{
		ID:        messageID,
		ChatID:    chatID,
		SenderID:  senderID,
		Content:   content,
		IsRead:    false,
		CreatedAt: now,
	}, nil
}
