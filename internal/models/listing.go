package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Статусы объявления
const (
	ListingStatusActive  = "active"
	ListingStatusSold    = "sold"
	ListingStatusSwapped = "swapped"
)

// Listing представляет объявление в системе
type Listing struct {
	ID          uuid.UUID       `json:"id"`
	UserID      uuid.UUID       `json:"user_id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Price       float64         `json:"price"`
	Status      string          `json:"status"`
	ImageURL    string          `json:"image_url,omitempty"`
	AIMetadata  json.RawMessage `json:"ai_metadata,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// IsActive сообщает, доступно ли объявление для обмена или продажи
func (l *Listing) IsActive() bool {
	return l.Status != ListingStatusSold && l.Status != ListingStatusSwapped
}

// NearbyListing представляет объявление из гео-выборки.
// Дистанция считается на стороне базы (функция get_items_within_radius),
// здесь она только переносится.
type NearbyListing struct {
	ID             uuid.UUID       `json:"id"`
	UserID         uuid.UUID       `json:"user_id"`
	Title          string          `json:"title"`
	Description    string          `json:"description"`
	Category       string          `json:"category"`
	Price          float64         `json:"price"`
	Status         string          `json:"status"`
	ImageURL       string          `json:"image_url,omitempty"`
	AIMetadata     json.RawMessage `json:"ai_metadata,omitempty"`
	Lat            float64         `json:"lat"`
	Lon            float64         `json:"lon"`
	DistanceMeters float64         `json:"distance_meters"`
}
