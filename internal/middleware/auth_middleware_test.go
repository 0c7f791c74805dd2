package middleware

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rajivgeraev/geoswap-api/internal/utils"
)

func newTestApp(t *testing.T, jwtService *utils.JWTService) *fiber.App {
	t.Helper()

	app := fiber.New()
	app.Get("/protected", func(c fiber.Ctx) error {
		return c.SendString(c.Locals("userID").(string))
	}, AuthMiddleware(jwtService))

	return app
}

func TestAuthMiddleware_MissingHeader(t *testing.T) {
	app := newTestApp(t, utils.NewJWTService("secret"))

	req := httptest.NewRequest("GET", "/protected", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestAuthMiddleware_BadFormat(t *testing.T) {
	app := newTestApp(t, utils.NewJWTService("secret"))

	req := httptest.NewRequest("GET", "/protected", nil)
	req.Header.Set("Authorization", "Token abc")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestAuthMiddleware_InvalidToken(t *testing.T) {
	app := newTestApp(t, utils.NewJWTService("secret"))

	req := httptest.NewRequest("GET", "/protected", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

// ID в токене обязан быть UUID
func TestAuthMiddleware_NonUUIDSubject(t *testing.T) {
	jwtService := utils.NewJWTService("secret")
	app := newTestApp(t, jwtService)

	token, err := jwtService.GenerateToken("not-a-uuid")
	require.NoError(t, err)

	req := httptest.NewRequest("GET", "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	jwtService := utils.NewJWTService("secret")
	app := newTestApp(t, jwtService)

	userID := uuid.New().String()
	token, err := jwtService.GenerateToken(userID)
	require.NoError(t, err)

	req := httptest.NewRequest("GET", "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, userID, string(body))
}

// Необязательная авторизация пропускает запросы без токена
func TestOptionalAuthMiddleware(t *testing.T) {
	jwtService := utils.NewJWTService("secret")

	app := fiber.New()
	app.Get("/hook", func(c fiber.Ctx) error {
		if userID, ok := c.Locals("userID").(string); ok {
			return c.SendString(userID)
		}
		return c.SendString("anonymous")
	}, OptionalAuthMiddleware(jwtService))

	// Без токена
	req := httptest.NewRequest("GET", "/hook", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "anonymous", string(body))

	// С валидным токеном userID попадает в контекст
	userID := uuid.New().String()
	token, err := jwtService.GenerateToken(userID)
	require.NoError(t, err)

	req = httptest.NewRequest("GET", "/hook", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err = app.Test(req)
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	assert.Equal(t, userID, string(body))

	// Кривой токен не мешает запросу
	req = httptest.NewRequest("GET", "/hook", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	body, _ = io.ReadAll(resp.Body)
	assert.Equal(t, "anonymous", string(body))
}
