package swap

import (
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/rajivgeraev/geoswap-api/internal/models"
)

// Максимальное количество уведомлений в ответе
const maxSmartMatches = 20

// MatcherInput собирает данные, нужные для вычисления взаимных совпадений.
// Все выборки делает сервис; сама функция чистая и без побочных эффектов.
type MatcherInput struct {
	ViewerID uuid.UUID

	// Активные объявления зрителя
	OwnListings []models.Listing

	// Список желаний зрителя (ID объявлений)
	WishlistIDs []uuid.UUID

	// Гео-выборка активных объявлений поблизости
	Nearby []models.NearbyListing

	// Желания продавцов: продавец -> ID объявлений зрителя, которые он хочет.
	// Порядок внутри среза — порядок создания записей (created_at, затем id),
	// первый элемент выигрывает при нескольких кандидатах.
	SellerWants map[uuid.UUID][]uuid.UUID

	// Имена продавцов для текста уведомления
	SellerNames map[uuid.UUID]string
}

// ComputeSmartMatches вычисляет до 20 взаимных совпадений: рядом есть продавец,
// который продает вещь из списка желаний зрителя и сам хочет что-то из вещей
// зрителя. Результат отсортирован по возрастанию дистанции и детерминирован:
// при равной дистанции раньше идет меньший ID объявления.
func ComputeSmartMatches(input MatcherInput) []models.SmartMatchNotification {
	// Без своих вещей или желаний взаимный обмен невозможен
	if len(input.OwnListings) == 0 || len(input.WishlistIDs) == 0 || len(input.Nearby) == 0 {
		return []models.SmartMatchNotification{}
	}

	wanted := make(map[uuid.UUID]bool, len(input.WishlistIDs))
	for _, id := range input.WishlistIDs {
		wanted[id] = true
	}

	ownTitles := make(map[uuid.UUID]string, len(input.OwnListings))
	for _, listing := range input.OwnListings {
		ownTitles[listing.ID] = listing.Title
	}

	seen := make(map[[2]uuid.UUID]bool)
	var matches []models.SmartMatchNotification

	for _, nearby := range input.Nearby {
		// Свои объявления не предлагать самому себе
		if nearby.UserID == input.ViewerID {
			continue
		}

		if nearby.Status == models.ListingStatusSold || nearby.Status == models.ListingStatusSwapped {
			continue
		}

		if !wanted[nearby.ID] {
			continue
		}

		// Первая запись желаний продавца, указывающая на вещь зрителя
		yourItemID, ok := firstOwned(input.SellerWants[nearby.UserID], ownTitles)
		if !ok {
			continue
		}

		key := [2]uuid.UUID{nearby.ID, yourItemID}
		if seen[key] {
			continue
		}
		seen[key] = true

		counterpartName := input.SellerNames[nearby.UserID]
		if counterpartName == "" {
			counterpartName = "Local User"
		}

		distance := formatDistance(nearby.DistanceMeters)

		matches = append(matches, models.SmartMatchNotification{
			Type:             models.SmartMatchType,
			Title:            "Smart Swap Match Found!",
			Message: fmt.Sprintf("%s (%s away) is selling '%s' from your wishlist and wants a %s.",
				counterpartName, distance, nearby.Title, ownTitles[yourItemID]),
			MatchedListingID: nearby.ID,
			MatchedItem:      nearby.Title,
			YourListingID:    yourItemID,
			YourItem:         ownTitles[yourItemID],
			CounterpartID:    nearby.UserID,
			CounterpartName:  counterpartName,
			DistanceMeters:   nearby.DistanceMeters,
			Distance:         distance,
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].DistanceMeters != matches[j].DistanceMeters {
			return matches[i].DistanceMeters < matches[j].DistanceMeters
		}
		return matches[i].MatchedListingID.String() < matches[j].MatchedListingID.String()
	})

	if len(matches) > maxSmartMatches {
		matches = matches[:maxSmartMatches]
	}

	return matches
}

// firstOwned возвращает первый ID из wants, принадлежащий зрителю
func firstOwned(wants []uuid.UUID, owned map[uuid.UUID]string) (uuid.UUID, bool) {
	for _, id := range wants {
		if _, ok := owned[id]; ok {
			return id, true
		}
	}
	return uuid.Nil, false
}

// formatDistance переводит метры в человекочитаемые километры
func formatDistance(meters float64) string {
	return fmt.Sprintf("%.1f km", meters/1000)
}
