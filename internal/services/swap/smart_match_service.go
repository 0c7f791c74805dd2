package swap

import (
	"context"
	"log"
	"math"
	"strconv"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/rajivgeraev/geoswap-api/internal/db"
	"github.com/rajivgeraev/geoswap-api/internal/models"
)

// GetSmartMatches возвращает до 20 взаимных совпадений для пользователя.
// Производная выборка: ничего не пишет, пересчитывается на каждый запрос.
func (s *SwapService) GetSmartMatches(c fiber.Ctx) error {
	userIDParam := c.Query("user_id")
	lat := c.Query("lat")
	lon := c.Query("lon")

	if userIDParam == "" || lat == "" || lon == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Query parameters user_id, lat and lon are required",
		})
	}

	viewerID, err := uuid.Parse(userIDParam)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "user_id must be a valid UUID"})
	}

	// ParseFloat пропускает NaN и Inf, в гео-запрос они попасть не должны
	userLat, errLat := strconv.ParseFloat(lat, 64)
	userLon, errLon := strconv.ParseFloat(lon, 64)
	if errLat != nil || errLon != nil || !isFiniteCoord(userLat) || !isFiniteCoord(userLon) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "lat and lon must be valid numbers"})
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	input, err := s.loadMatcherInput(ctx, viewerID, userLat, userLon)
	if err != nil {
		log.Printf("Ошибка загрузки данных для smart match: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to compute smart matches"})
	}

	return c.JSON(ComputeSmartMatches(*input))
}

// isFiniteCoord отсекает NaN и бесконечности после strconv.ParseFloat
func isFiniteCoord(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// loadMatcherInput собирает все выборки для вычисления совпадений
func (s *SwapService) loadMatcherInput(ctx context.Context, viewerID uuid.UUID, lat, lon float64) (*MatcherInput, error) {
	input := &MatcherInput{
		ViewerID:    viewerID,
		SellerWants: make(map[uuid.UUID][]uuid.UUID),
		SellerNames: make(map[uuid.UUID]string),
	}

	// Активные объявления зрителя
	rows, err := db.Pool.Query(ctx, `
		SELECT id, user_id, title, category, price, status
		FROM listings
		WHERE user_id = $1 AND status = 'active'
	`, viewerID)
	if err != nil {
		return nil, err
	}

	for rows.Next() {
		var listing models.Listing
		if err := rows.Scan(&listing.ID, &listing.UserID, &listing.Title,
			&listing.Category, &listing.Price, &listing.Status); err != nil {
			rows.Close()
			return nil, err
		}
		input.OwnListings = append(input.OwnListings, listing)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Список желаний зрителя
	rows, err = db.Pool.Query(ctx, `
		SELECT listing_id FROM wishlists WHERE user_id = $1
	`, viewerID)
	if err != nil {
		return nil, err
	}

	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		input.WishlistIDs = append(input.WishlistIDs, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Пересчет не нужен, если обмен заведомо невозможен
	if len(input.OwnListings) == 0 || len(input.WishlistIDs) == 0 {
		return input, nil
	}

	// Гео-выборка: дистанция приходит из функции базы
	rows, err = db.Pool.Query(ctx, `
		SELECT id, user_id, title, COALESCE(description, ''), category, price, status,
		       COALESCE(image_url, ''), ai_metadata, lat, lon, distance_meters
		FROM get_items_within_radius($1, $2, $3)
	`, lat, lon, 5000)
	if err != nil {
		return nil, err
	}

	sellerSet := make(map[uuid.UUID]bool)
	for rows.Next() {
		var item models.NearbyListing
		if err := rows.Scan(
			&item.ID, &item.UserID, &item.Title, &item.Description,
			&item.Category, &item.Price, &item.Status,
			&item.ImageURL, &item.AIMetadata, &item.Lat, &item.Lon, &item.DistanceMeters,
		); err != nil {
			rows.Close()
			return nil, err
		}
		input.Nearby = append(input.Nearby, item)
		if item.UserID != viewerID {
			sellerSet[item.UserID] = true
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(sellerSet) == 0 {
		return input, nil
	}

	sellerIDs := make([]uuid.UUID, 0, len(sellerSet))
	for id := range sellerSet {
		sellerIDs = append(sellerIDs, id)
	}

	ownIDs := make([]uuid.UUID, 0, len(input.OwnListings))
	for _, listing := range input.OwnListings {
		ownIDs = append(ownIDs, listing.ID)
	}

	// Желания продавцов, указывающие на вещи зрителя.
	// Порядок фиксирован: выигрывает самая ранняя запись продавца.
	rows, err = db.Pool.Query(ctx, `
		SELECT user_id, listing_id
		FROM wishlists
		WHERE user_id = ANY($1) AND listing_id = ANY($2)
		ORDER BY created_at ASC, listing_id ASC
	`, sellerIDs, ownIDs)
	if err != nil {
		return nil, err
	}

	for rows.Next() {
		var sellerID, listingID uuid.UUID
		if err := rows.Scan(&sellerID, &listingID); err != nil {
			rows.Close()
			return nil, err
		}
		input.SellerWants[sellerID] = append(input.SellerWants[sellerID], listingID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	names, err := db.FetchUsernames(ctx, sellerIDs)
	if err != nil {
		return nil, err
	}
	input.SellerNames = names

	return input, nil
}
