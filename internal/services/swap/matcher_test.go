package swap

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rajivgeraev/geoswap-api/internal/models"
)

func makeListing(owner uuid.UUID, title string) models.Listing {
	return models.Listing{
		ID:     uuid.New(),
		UserID: owner,
		Title:  title,
		Status: models.ListingStatusActive,
	}
}

func makeNearby(owner uuid.UUID, title string, distance float64) models.NearbyListing {
	return models.NearbyListing{
		ID:             uuid.New(),
		UserID:         owner,
		Title:          title,
		Status:         models.ListingStatusActive,
		DistanceMeters: distance,
	}
}

// Базовый сценарий: продавец рядом продает вещь из списка желаний зрителя
// и сам хочет вещь зрителя
func TestComputeSmartMatches_MutualMatch(t *testing.T) {
	viewer := uuid.New()
	seller := uuid.New()

	own := makeListing(viewer, "Study Table")
	theirBike := makeNearby(seller, "Mountain Bike", 1200)

	input := MatcherInput{
		ViewerID:    viewer,
		OwnListings: []models.Listing{own},
		WishlistIDs: []uuid.UUID{theirBike.ID},
		Nearby:      []models.NearbyListing{theirBike},
		SellerWants: map[uuid.UUID][]uuid.UUID{seller: {own.ID}},
		SellerNames: map[uuid.UUID]string{seller: "Anil"},
	}

	matches := ComputeSmartMatches(input)
	require.Len(t, matches, 1)

	m := matches[0]
	assert.Equal(t, models.SmartMatchType, m.Type)
	assert.Equal(t, theirBike.ID, m.MatchedListingID)
	assert.Equal(t, own.ID, m.YourListingID)
	assert.Equal(t, seller, m.CounterpartID)
	assert.Equal(t, "Anil", m.CounterpartName)
	assert.Equal(t, "1.2 km", m.Distance)
	assert.Equal(t, "Anil (1.2 km away) is selling 'Mountain Bike' from your wishlist and wants a Study Table.", m.Message)
}

// Пустые входы не дают совпадений
func TestComputeSmartMatches_ShortCircuits(t *testing.T) {
	viewer := uuid.New()
	seller := uuid.New()

	own := makeListing(viewer, "Chair")
	nearby := makeNearby(seller, "Lamp", 300)

	base := MatcherInput{
		ViewerID:    viewer,
		OwnListings: []models.Listing{own},
		WishlistIDs: []uuid.UUID{nearby.ID},
		Nearby:      []models.NearbyListing{nearby},
		SellerWants: map[uuid.UUID][]uuid.UUID{seller: {own.ID}},
	}

	noOwn := base
	noOwn.OwnListings = nil
	assert.Empty(t, ComputeSmartMatches(noOwn))

	noWishlist := base
	noWishlist.WishlistIDs = nil
	assert.Empty(t, ComputeSmartMatches(noWishlist))

	noNearby := base
	noNearby.Nearby = nil
	assert.Empty(t, ComputeSmartMatches(noNearby))
}

// Свои объявления никогда не попадают в совпадения
func TestComputeSmartMatches_SkipsOwnListings(t *testing.T) {
	viewer := uuid.New()

	own := makeListing(viewer, "Desk")
	mine := makeNearby(viewer, "Old Phone", 100)

	input := MatcherInput{
		ViewerID:    viewer,
		OwnListings: []models.Listing{own},
		WishlistIDs: []uuid.UUID{mine.ID},
		Nearby:      []models.NearbyListing{mine},
		SellerWants: map[uuid.UUID][]uuid.UUID{viewer: {own.ID}},
	}

	assert.Empty(t, ComputeSmartMatches(input))
}

// Проданные и обменянные объявления не участвуют
func TestComputeSmartMatches_SkipsInactive(t *testing.T) {
	viewer := uuid.New()
	seller := uuid.New()

	own := makeListing(viewer, "Desk")
	sold := makeNearby(seller, "Sofa", 500)
	sold.Status = models.ListingStatusSold

	input := MatcherInput{
		ViewerID:    viewer,
		OwnListings: []models.Listing{own},
		WishlistIDs: []uuid.UUID{sold.ID},
		Nearby:      []models.NearbyListing{sold},
		SellerWants: map[uuid.UUID][]uuid.UUID{seller: {own.ID}},
	}

	assert.Empty(t, ComputeSmartMatches(input))
}

// Без взаимного интереса продавца совпадения нет
func TestComputeSmartMatches_RequiresMutualInterest(t *testing.T) {
	viewer := uuid.New()
	seller := uuid.New()

	own := makeListing(viewer, "Desk")
	theirs := makeNearby(seller, "Guitar", 800)

	input := MatcherInput{
		ViewerID:    viewer,
		OwnListings: []models.Listing{own},
		WishlistIDs: []uuid.UUID{theirs.ID},
		Nearby:      []models.NearbyListing{theirs},
		SellerWants: map[uuid.UUID][]uuid.UUID{},
	}

	assert.Empty(t, ComputeSmartMatches(input))
}

// При нескольких желаниях продавца выигрывает самое раннее
func TestComputeSmartMatches_EarliestWishlistEntryWins(t *testing.T) {
	viewer := uuid.New()
	seller := uuid.New()

	first := makeListing(viewer, "Desk")
	second := makeListing(viewer, "Chair")
	theirs := makeNearby(seller, "Guitar", 800)

	input := MatcherInput{
		ViewerID:    viewer,
		OwnListings: []models.Listing{first, second},
		WishlistIDs: []uuid.UUID{theirs.ID},
		Nearby:      []models.NearbyListing{theirs},
		SellerWants: map[uuid.UUID][]uuid.UUID{seller: {first.ID, second.ID}},
	}

	matches := ComputeSmartMatches(input)
	require.Len(t, matches, 1)
	assert.Equal(t, first.ID, matches[0].YourListingID)
}

// Результат отсортирован по дистанции, при равенстве — по ID объявления
func TestComputeSmartMatches_SortedAndDeterministic(t *testing.T) {
	viewer := uuid.New()

	own := makeListing(viewer, "Desk")

	var nearby []models.NearbyListing
	var wishlist []uuid.UUID
	wants := make(map[uuid.UUID][]uuid.UUID)

	distances := []float64{4200, 900, 900, 150}
	for i, d := range distances {
		seller := uuid.New()
		item := makeNearby(seller, fmt.Sprintf("Item %d", i), d)
		nearby = append(nearby, item)
		wishlist = append(wishlist, item.ID)
		wants[seller] = []uuid.UUID{own.ID}
	}

	input := MatcherInput{
		ViewerID:    viewer,
		OwnListings: []models.Listing{own},
		WishlistIDs: wishlist,
		Nearby:      nearby,
		SellerWants: wants,
	}

	matches := ComputeSmartMatches(input)
	require.Len(t, matches, 4)

	for i := 1; i < len(matches); i++ {
		prev, cur := matches[i-1], matches[i]
		assert.LessOrEqual(t, prev.DistanceMeters, cur.DistanceMeters)
		if prev.DistanceMeters == cur.DistanceMeters {
			assert.Less(t, prev.MatchedListingID.String(), cur.MatchedListingID.String())
		}
	}

	// Повторный вызов дает тот же порядок
	again := ComputeSmartMatches(input)
	assert.Equal(t, matches, again)
}

// Одна и та же пара объявлений не дублируется
func TestComputeSmartMatches_Deduplicates(t *testing.T) {
	viewer := uuid.New()
	seller := uuid.New()

	own := makeListing(viewer, "Desk")
	theirs := makeNearby(seller, "Guitar", 800)

	input := MatcherInput{
		ViewerID:    viewer,
		OwnListings: []models.Listing{own},
		WishlistIDs: []uuid.UUID{theirs.ID, theirs.ID},
		Nearby:      []models.NearbyListing{theirs, theirs},
		SellerWants: map[uuid.UUID][]uuid.UUID{seller: {own.ID}},
	}

	matches := ComputeSmartMatches(input)
	assert.Len(t, matches, 1)
}

// Больше 20 совпадений не возвращается
func TestComputeSmartMatches_CapsAtTwenty(t *testing.T) {
	viewer := uuid.New()

	own := makeListing(viewer, "Desk")

	var nearby []models.NearbyListing
	var wishlist []uuid.UUID
	wants := make(map[uuid.UUID][]uuid.UUID)

	for i := 0; i < 30; i++ {
		seller := uuid.New()
		item := makeNearby(seller, fmt.Sprintf("Item %d", i), float64(100*i))
		nearby = append(nearby, item)
		wishlist = append(wishlist, item.ID)
		wants[seller] = []uuid.UUID{own.ID}
	}

	input := MatcherInput{
		ViewerID:    viewer,
		OwnListings: []models.Listing{own},
		WishlistIDs: wishlist,
		Nearby:      nearby,
		SellerWants: wants,
	}

	matches := ComputeSmartMatches(input)
	assert.Len(t, matches, maxSmartMatches)

	// Остаются ближайшие
	assert.Equal(t, float64(0), matches[0].DistanceMeters)
	assert.Equal(t, float64(1900), matches[len(matches)-1].DistanceMeters)
}

// Продавец без имени получает нейтральную подпись
func TestComputeSmartMatches_FallbackName(t *testing.T) {
	viewer := uuid.New()
	seller := uuid.New()

	own := makeListing(viewer, "Desk")
	theirs := makeNearby(seller, "Guitar", 800)

	input := MatcherInput{
		ViewerID:    viewer,
		OwnListings: []models.Listing{own},
		WishlistIDs: []uuid.UUID{theirs.ID},
		Nearby:      []models.NearbyListing{theirs},
		SellerWants: map[uuid.UUID][]uuid.UUID{seller: {own.ID}},
	}

	matches := ComputeSmartMatches(input)
	require.Len(t, matches, 1)
	assert.Equal(t, "Local User", matches[0].CounterpartName)
}
