package models

import (
	"time"

	"github.com/google/uuid"
)

// Chat представляет переписку по конкретному объявлению между покупателем и продавцом
type Chat struct {
	ID              uuid.UUID  `json:"id"`
	ListingID       uuid.UUID  `json:"listing_id"`
	BuyerID         uuid.UUID  `json:"buyer_id"`
	SellerID        uuid.UUID  `json:"seller_id"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	LastMessageText string     `json:"last_message_text,omitempty"`
	LastMessageTime *time.Time `json:"last_message_time,omitempty"`

	// Дополнительные поля для API
	CounterpartName string   `json:"counterpart_name,omitempty"`
	Listing         *Listing `json:"listing,omitempty"`
	UnreadCount     int      `json:"unread_count,omitempty"`
}

// Message представляет сообщение в чате: обычный текст либо закодированное
// доменное событие (см. rate.go). Сообщения неизменяемы.
type Message struct {
	ID        uuid.UUID `json:"id"`
	ChatID    uuid.UUID `json:"chat_id"`
	SenderID  uuid.UUID `json:"sender_id"`
	Content   string    `json:"content"`
	IsRead    bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}
