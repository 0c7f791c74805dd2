package models

import (
	"time"

	"github.com/google/uuid"
)

// WishlistEntry представляет интерес пользователя к объявлению
type WishlistEntry struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	ListingID uuid.UUID `json:"listing_id"`
	CreatedAt time.Time `json:"created_at"`

	// Дополнительные поля для API
	Listing *Listing `json:"listing,omitempty"`
}
