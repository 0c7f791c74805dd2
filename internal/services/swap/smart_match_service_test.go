package swap

import (
	"fmt"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rajivgeraev/geoswap-api/internal/config"
	"github.com/rajivgeraev/geoswap-api/internal/realtime"
)

func newSmartMatchApp() *fiber.App {
	app := fiber.New()
	s := NewSwapService(&config.Config{JWTSecret: "secret"}, realtime.NewHub())
	app.Get("/api/swaps/smart-matches", s.GetSmartMatches)
	return app
}

func getSmartMatches(t *testing.T, app *fiber.App, query string) int {
	t.Helper()

	req := httptest.NewRequest("GET", "/api/swaps/smart-matches"+query, nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp.StatusCode
}

func TestGetSmartMatches_MissingParams(t *testing.T) {
	app := newSmartMatchApp()

	assert.Equal(t, fiber.StatusBadRequest, getSmartMatches(t, app, ""))
	assert.Equal(t, fiber.StatusBadRequest, getSmartMatches(t, app, "?lat=1&lon=2"))
	assert.Equal(t, fiber.StatusBadRequest, getSmartMatches(t, app, fmt.Sprintf("?user_id=%s&lat=1", uuid.New())))
}

func TestGetSmartMatches_BadUserID(t *testing.T) {
	app := newSmartMatchApp()

	assert.Equal(t, fiber.StatusBadRequest, getSmartMatches(t, app, "?user_id=not-a-uuid&lat=1&lon=2"))
}

// NaN и Inf проходят через ParseFloat, но не должны дойти до гео-запроса
func TestGetSmartMatches_NonFiniteCoordinates(t *testing.T) {
	app := newSmartMatchApp()
	userID := uuid.New()

	assert.Equal(t, fiber.StatusBadRequest, getSmartMatches(t, app, fmt.Sprintf("?user_id=%s&lat=NaN&lon=2", userID)))
	assert.Equal(t, fiber.StatusBadRequest, getSmartMatches(t, app, fmt.Sprintf("?user_id=%s&lat=1&lon=Inf", userID)))
	assert.Equal(t, fiber.StatusBadRequest, getSmartMatches(t, app, fmt.Sprintf("?user_id=%s&lat=-Inf&lon=2", userID)))
}
