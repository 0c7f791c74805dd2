package chat

import (
	"context"
	"errors"
	"log"
	"math"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/rajivgeraev/geoswap-api/internal/db"
	"github.com/rajivgeraev/geoswap-api/internal/models"
	"github.com/rajivgeraev/geoswap-api/internal/realtime"
)

// Сколько последних сообщений сканировать в поисках событий ставки
const rateHistoryWindow = 400

var (
	errChatNotFound  = errors.New("chat not found")
	errChatForbidden = errors.New("not a chat participant")

	// Предложение уже разрешено параллельным ответом
	errProposalResolved = errors.New("rate proposal already resolved")
)

// querier покрывает пул и транзакцию для запросов чтения
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// respondChatAccess переводит ошибку доступа к чату в HTTP-ответ
func respondChatAccess(c fiber.Ctx, err error) error {
	switch err {
	case errChatNotFound:
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Chat not found"})
	case errChatForbidden:
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "You are not a participant of this chat"})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to load chat"})
	}
}

// rateProposalState — итог сканирования истории сообщений чата
type rateProposalState struct {
	ProposalID string
	ProposerID uuid.UUID
	Amount     float64
	Resolved   bool
}

// scanRateHistory ищет предложение ставки среди сообщений, упорядоченных
// от новых к старым, и определяет, разрешено ли оно. Пустой proposalID
// означает последнее предложение в чате. Терминальное событие с тем же
// proposalId означает, что ответ уже дан.
func scanRateHistory(messages []models.Message, proposalID string) *rateProposalState {
	resolved := make(map[string]bool)

	for _, msg := range messages {
		event, ok := models.ParseRateEvent(msg.Content)
		if !ok {
			continue
		}

		if models.IsTerminalRateKind(event.Kind) {
			resolved[event.ProposalID] = true
			continue
		}

		if event.Kind != models.RateKindProposed {
			continue
		}

		if proposalID != "" && event.ProposalID != proposalID {
			continue
		}

		return &rateProposalState{
			ProposalID: event.ProposalID,
			ProposerID: msg.SenderID,
			Amount:     event.Amount,
			Resolved:   resolved[event.ProposalID],
		}
	}

	return nil
}

// ensureUnresolved перепроверяет состояние предложения по истории,
// перечитанной под блокировкой: побеждает ровно один ответ, остальные
// получают конфликт
func ensureUnresolved(messages []models.Message, proposalID string) (*rateProposalState, error) {
	state := scanRateHistory(messages, proposalID)
	if state == nil || state.Resolved {
		return nil, errProposalResolved
	}
	return state, nil
}

// ProposeRate публикует в чат предложение ставки как структурированное сообщение
func (s *ChatService) ProposeRate(c fiber.Ctx) error {
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
		Amount float64 `json:"amount"`
	}

	if err := c.Bind().Body(&requestData); err != nil {
		log.Printf("Ошибка чтения тела запроса: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	if requestData.Amount <= 0 || math.IsNaN(requestData.Amount) || math.IsInf(requestData.Amount, 0) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "amount must be a positive number"})
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	chat, err := s.requireParticipant(ctx, chatUUID, userUUID)
	if err != nil {
		return respondChatAccess(c, err)
	}

	event := models.RateEvent{
		Kind:       models.RateKindProposed,
		ProposalID: uuid.New().String(),
		Amount:     requestData.Amount,
	}

	message, err := s.appendMessage(ctx, chatUUID, userUUID, models.EncodeRateEvent(event))
	if err != nil {
		log.Printf("Ошибка сохранения предложения ставки: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to propose rate"})
	}

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
		"message":     message,
		"proposal_id": event.ProposalID,
	})
}

// RespondToRate принимает или отклоняет предложение ставки в чате.
// Принятие завершает сделку: объявление уходит со статусом sold, в чат
// дописывается событие сделки, покупатель и продавец получают уведомление.
func (s *ChatService) RespondToRate(c fiber.Ctx) error {
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
		Response   string `json:"response"`
		ProposalID string `json:"proposal_id"`
	}

	if err := c.Bind().Body(&requestData); err != nil {
		log.Printf("Ошибка чтения тела запроса: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	response := strings.ToLower(strings.TrimSpace(requestData.Response))
	if response != "accept" && response != "reject" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "response must be accept or reject"})
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	chat, err := s.requireParticipant(ctx, chatUUID, userUUID)
	if err != nil {
		return respondChatAccess(c, err)
	}

	// Быстрые проверки до транзакции; окончательное состояние
	// перепроверяется под блокировкой чата
	messages, err := loadRecentMessages(ctx, db.Pool, chatUUID)
	if err != nil {
		log.Printf("Ошибка загрузки истории чата: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to load chat history"})
	}

	// Без proposal_id в теле отвечаем на последнее предложение
	proposal := scanRateHistory(messages, requestData.ProposalID)
	if proposal == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "No rate proposal found in this chat"})
	}

	// На свое предложение отвечать нельзя
	if proposal.ProposerID == userUUID {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "You cannot respond to your own rate proposal"})
	}

	if proposal.Resolved {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "This rate proposal has already been resolved"})
	}

	if response == "reject" {
		amount, err := s.rejectDeal(ctx, chat, userUUID, proposal.ProposalID)
		if err == errProposalResolved {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "This rate proposal has already been resolved"})
		}
		if err != nil {
			log.Printf("Ошибка записи отклонения ставки: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to record response"})
		}

		s.notifyParticipants(chat, userUUID)

		return c.JSON(fiber.Map{
			"status": "rejected",
			"amount": amount,
		})
	}

	finalRate, err := s.finalizeDeal(ctx, chat, userUUID, proposal.ProposalID)
	if err == errProposalResolved {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "This rate proposal has already been resolved"})
	}
	if err != nil {
		log.Printf("Ошибка завершения сделки: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to finalize deal"})
	}

	s.notifyParticipants(chat, userUUID)

	s.hub.PublishToAll([]string{chat.BuyerID.String(), chat.SellerID.String()}, realtime.Event{
		Type:      realtime.EventListingUpdated,
		ListingID: chat.ListingID.String(),
	})

	return c.JSON(fiber.Map{
		"status": "accepted",
		"amount": finalRate,
	})
}

// loadRecentMessages возвращает окно последних сообщений, новые первыми
func loadRecentMessages(ctx context.Context, q querier, chatID uuid.UUID) ([]models.Message, error) {
	rows, err := q.Query(ctx, `
        SELECT id, chat_id, sender_id, content, is_read, created_at
        FROM messages
        WHERE chat_id = $1
        ORDER BY created_at DESC
        LIMIT $2
    `, chatID, rateHistoryWindow)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		var msg models.Message
		if err := rows.Scan(&msg.ID, &msg.ChatID, &msg.SenderID, &msg.Content, &msg.IsRead, &msg.CreatedAt); err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}

	return messages, rows.Err()
}

// lockAndRescan блокирует строку чата и перечитывает предложение под
// блокировкой. Параллельные ответы выстраиваются на блокировке, и
// проигравший видит уже записанное терминальное событие.
func lockAndRescan(ctx context.Context, tx pgx.Tx, chatID uuid.UUID, proposalID string) (*rateProposalState, error) {
	if _, err := tx.Exec(ctx, `SELECT id FROM chats WHERE id = $1 FOR UPDATE`, chatID); err != nil {
		return nil, err
	}

	messages, err := loadRecentMessages(ctx, tx, chatID)
	if err != nil {
		return nil, err
	}

	return ensureUnresolved(messages, proposalID)
}

// rejectDeal записывает отклонение ставки одной транзакцией под блокировкой чата
func (s *ChatService) rejectDeal(ctx context.Context, chat *models.Chat, responderID uuid.UUID, proposalID string) (float64, error) {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	proposal, err := lockAndRescan(ctx, tx, chat.ID, proposalID)
	if err != nil {
		return 0, err
	}

	now := time.Now()

	event := models.RateEvent{
		Kind:       models.RateKindRejected,
		ProposalID: proposal.ProposalID,
		Amount:     proposal.Amount,
	}

	content := models.EncodeRateEvent(event)

	if err := appendEventTx(ctx, tx, chat.ID, responderID, content, now); err != nil {
		return 0, err
	}

	if err := updateChatSummaryTx(ctx, tx, chat.ID, content, now); err != nil {
		return 0, err
	}

	return proposal.Amount, tx.Commit(ctx)
}

// finalizeDeal фиксирует принятую ставку одной транзакцией под блокировкой
// чата: событие принятия, финальная цена на объявлении, событие сделки и
// сводка чата. Удаление объявления обернуто во вложенную транзакцию: при
// нарушении внешних ключей откатывается только удаление, и объявление
// помечается sold.
func (s *ChatService) finalizeDeal(ctx context.Context, chat *models.Chat, responderID uuid.UUID, proposalID string) (float64, error) {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	proposal, err := lockAndRescan(ctx, tx, chat.ID, proposalID)
	if err != nil {
		return 0, err
	}

	finalRate := math.Round(proposal.Amount)
	now := time.Now()

	acceptEvent := models.RateEvent{
		Kind:       models.RateKindAccepted,
		ProposalID: proposal.ProposalID,
		Amount:     proposal.Amount,
	}

	if err := appendEventTx(ctx, tx, chat.ID, responderID, models.EncodeRateEvent(acceptEvent), now); err != nil {
		return 0, err
	}

	if err := s.retireListing(ctx, tx, chat.ListingID, finalRate); err != nil {
		return 0, err
	}

	dealEvent := models.DealEvent{
		Kind:      models.DealKindSold,
		BuyerID:   chat.BuyerID,
		SellerID:  chat.SellerID,
		ListingID: chat.ListingID,
		Amount:    int64(finalRate),
	}

	dealContent := models.EncodeDealEvent(dealEvent)

	if err := appendEventTx(ctx, tx, chat.ID, responderID, dealContent, now.Add(time.Millisecond)); err != nil {
		return 0, err
	}

	if err := updateChatSummaryTx(ctx, tx, chat.ID, dealContent, now); err != nil {
		return 0, err
	}

	return finalRate, tx.Commit(ctx)
}

// appendEventTx вставляет сообщение-событие в рамках транзакции
func appendEventTx(ctx context.Context, tx pgx.Tx, chatID, senderID uuid.UUID, content string, at time.Time) error {
	_, err := tx.Exec(ctx, `
        INSERT INTO messages (id, chat_id, sender_id, content, is_read, created_at)
        VALUES ($1, $2, $3, $4, false, $5)
    `, uuid.New(), chatID, senderID, content, at)
	return err
}

// updateChatSummaryTx обновляет сводку чата в рамках транзакции
func updateChatSummaryTx(ctx context.Context, tx pgx.Tx, chatID uuid.UUID, content string, at time.Time) error {
	_, err := tx.Exec(ctx, `
        UPDATE chats
        SET last_message_text = $1, last_message_time = $2, updated_at = $2
        WHERE id = $3
    `, content, at, chatID)
	return err
}

// retireListing пытается удалить объявление; если удаление невозможно
// из-за ссылок на него, помечает объявление проданным с финальной ценой
func (s *ChatService) retireListing(ctx context.Context, tx pgx.Tx, listingID uuid.UUID, finalRate float64) error {
	// SAVEPOINT: неудачное удаление не должно ронять внешнюю транзакцию
	inner, err := tx.Begin(ctx)
	if err != nil {
		return err
	}

	_, err = inner.Exec(ctx, `DELETE FROM listings WHERE id = $1`, listingID)
	if err == nil {
		return inner.Commit(ctx)
	}

	if rbErr := inner.Rollback(ctx); rbErr != nil {
		return rbErr
	}

	log.Printf("⚠️ Объявление %s не удалено (%v), помечаем проданным", listingID, err)

	_, err = tx.Exec(ctx, `
        UPDATE listings
        SET status = 'sold',
            ai_metadata = jsonb_set(COALESCE(ai_metadata, '{}'::jsonb), '{final_rate}', to_jsonb($1::numeric)),
            updated_at = NOW()
        WHERE id = $2
    `, finalRate, listingID)

	return err
}

// notifyParticipants шлет событие нового сообщения обоим участникам чата
func (s *ChatService) notifyParticipants(chat *models.Chat, actorID uuid.UUID) {
	for _, id := range []uuid.UUID{chat.BuyerID, chat.SellerID} {
		s.hub.Publish(id.String(), realtime.Event{
			Type:   realtime.EventNewMessage,
			ChatID: chat.ID.String(),
			UserID: actorID.String(),
		})
	}
}
