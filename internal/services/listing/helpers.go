package listing

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/rajivgeraev/geoswap-api/internal/db"
	"github.com/rajivgeraev/geoswap-api/internal/models"
)

// isFinite отсекает NaN и бесконечности после strconv.ParseFloat
func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// coordinate принимает координату как JSON-число или строку с числом:
// старые клиенты вебхука присылают оба варианта
type coordinate struct {
	value float64
	set   bool
}

func (c *coordinate) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		return nil
	}

	s = strings.Trim(s, `"`)
	if s == "" {
		return nil
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("некорректная координата %q", s)
	}

	c.value = v
	c.set = true
	return nil
}

// ptr приводит координату к форме, которую ждет missingWebhookFields
func (c *coordinate) ptr() *float64 {
	if !c.set {
		return nil
	}
	return &c.value
}

// missingWebhookFields перечисляет отсутствующие обязательные поля вебхука
// в фиксированном порядке — порядок входит в контракт ответа
func missingWebhookFields(itemName, category, userID string, price, weight, lat, lon *float64) []string {
	missing := []string{}
	if itemName == "" {
		missing = append(missing, "itemName")
	}
	if category == "" {
		missing = append(missing, "category")
	}
	if price == nil {
		missing = append(missing, "suggestedPriceINR")
	}
	if weight == nil {
		missing = append(missing, "estimatedWeightKg")
	}
	if lat == nil {
		missing = append(missing, "lat")
	}
	if lon == nil {
		missing = append(missing, "lon")
	}
	if userID == "" {
		missing = append(missing, "user_id")
	}
	return missing
}

// fetchNearbyListings вызывает функцию базы get_items_within_radius.
// Сама функция непрозрачна для сервиса: дистанция и гео-индекс — её забота.
func fetchNearbyListings(ctx context.Context, lat, lon float64, radiusMeters int) ([]models.NearbyListing, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT id, user_id, title, COALESCE(description, ''), category, price, status,
		       COALESCE(image_url, ''), ai_metadata, lat, lon, distance_meters
		FROM get_items_within_radius($1, $2, $3)
	`, lat, lon, radiusMeters)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var nearby []models.NearbyListing
	for rows.Next() {
		var item models.NearbyListing
		if err := rows.Scan(
			&item.ID, &item.UserID, &item.Title, &item.Description,
			&item.Category, &item.Price, &item.Status,
			&item.ImageURL, &item.AIMetadata, &item.Lat, &item.Lon, &item.DistanceMeters,
		); err != nil {
			return nil, err
		}
		nearby = append(nearby, item)
	}

	return nearby, rows.Err()
}

// filterByCurrentStatus перечитывает актуальные статусы кандидатов и
// отбрасывает проданные и обменянные объявления
func filterByCurrentStatus(ctx context.Context, nearby []models.NearbyListing) ([]models.NearbyListing, error) {
	if len(nearby) == 0 {
		return []models.NearbyListing{}, nil
	}

	ids := make([]uuid.UUID, 0, len(nearby))
	for _, item := range nearby {
		ids = append(ids, item.ID)
	}

	rows, err := db.Pool.Query(ctx, `SELECT id, status FROM listings WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	statuses := make(map[uuid.UUID]string, len(ids))
	for rows.Next() {
		var id uuid.UUID
		var status string
		if err := rows.Scan(&id, &status); err != nil {
			return nil, err
		}
		statuses[id] = status
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	filtered := make([]models.NearbyListing, 0, len(nearby))
	for _, item := range nearby {
		status, ok := statuses[item.ID]
		if !ok {
			// Объявление удалили между гео-выборкой и проверкой
			continue
		}
		if status == models.ListingStatusSold || status == models.ListingStatusSwapped {
			continue
		}
		item.Status = status
		filtered = append(filtered, item)
	}

	return filtered, nil
}

// scanListings читает строки запроса объявлений
func scanListings(rows pgx.Rows) ([]models.Listing, error) {
	var listings []models.Listing
	for rows.Next() {
		var listing models.Listing
		if err := rows.Scan(
			&listing.ID, &listing.UserID, &listing.Title, &listing.Description,
			&listing.Category, &listing.Price, &listing.Status,
			&listing.ImageURL, &listing.AIMetadata, &listing.CreatedAt, &listing.UpdatedAt,
		); err != nil {
			return nil, err
		}
		listings = append(listings, listing)
	}
	return listings, rows.Err()
}
