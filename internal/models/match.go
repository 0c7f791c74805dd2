package models

import (
	"time"

	"github.com/google/uuid"
)

// Статусы предложения обмена
const (
	MatchStatusPending  = "pending"
	MatchStatusAccepted = "accepted"
	MatchStatusRejected = "rejected"
)

// Match представляет двустороннее предложение обмена.
// user_1 предлагает своё объявление listing_1 за объявление listing_2 пользователя user_2.
type Match struct {
	ID         uuid.UUID `json:"id"`
	User1ID    uuid.UUID `json:"user_1_id"`
	User2ID    uuid.UUID `json:"user_2_id"`
	Listing1ID uuid.UUID `json:"listing_1_id"`
	Listing2ID uuid.UUID `json:"listing_2_id"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`

	// Дополнительные поля для API
	OfferedListing *Listing `json:"offered_listing,omitempty"`
	DesiredListing *Listing `json:"desired_listing,omitempty"`
}

// SmartMatchNotification представляет производное уведомление о взаимном
// совпадении интересов. Не хранится в базе, вычисляется на каждый запрос.
type SmartMatchNotification struct {
	Type             string    `json:"type"` // всегда SMART_SWAP_MATCH
	Title            string    `json:"title"`
	Message          string    `json:"message"`
	MatchedListingID uuid.UUID `json:"matched_listing_id"`
	MatchedItem      string    `json:"matched_item"`
	YourListingID    uuid.UUID `json:"your_listing_id"`
	YourItem         string    `json:"your_item"`
	CounterpartID    uuid.UUID `json:"counterpart_id"`
	CounterpartName  string    `json:"counterpart_name"`
	DistanceMeters   float64   `json:"distance_meters"`
	Distance         string    `json:"distance"`
}

// SmartMatchType значение поля type в уведомлении
const SmartMatchType = "SMART_SWAP_MATCH"
