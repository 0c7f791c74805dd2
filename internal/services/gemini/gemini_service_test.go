package gemini

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/rajivgeraev/geoswap-api/internal/config"
)

func TestExtractJSON(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "чистый JSON",
			in:   `{"itemName":"Chair"}`,
			want: `{"itemName":"Chair"}`,
		},
		{
			name: "код-фенсы",
			in:   "```json\n{\"itemName\":\"Chair\"}\n```",
			want: `{"itemName":"Chair"}`,
		},
		{
			name: "текст вокруг объекта",
			in:   "Here is the result: {\"itemName\":\"Chair\"} hope it helps",
			want: `{"itemName":"Chair"}`,
		},
		{
			name: "вложенные объекты",
			in:   `{"a":{"b":1}}`,
			want: `{"a":{"b":1}}`,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, extractJSON(tc.in))
		})
	}
}

func TestExtractJSON_NoObject(t *testing.T) {
	assert.Equal(t, "no json here", extractJSON("no json here"))
}

func postScan(t *testing.T, app *fiber.App, body string) int {
	t.Helper()

	req := httptest.NewRequest("POST", "/api/scan", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp.StatusCode
}

func TestScanImage_MissingImageURL(t *testing.T) {
	app := fiber.New()
	s := &GeminiService{client: &genai.Client{}}
	app.Post("/api/scan", s.ScanImage)

	assert.Equal(t, fiber.StatusBadRequest, postScan(t, app, `{}`))
}

// Недоступная картинка — сбой получения, а не ошибка клиента
func TestScanImage_DownloadFailure(t *testing.T) {
	app := fiber.New()
	s := &GeminiService{client: &genai.Client{}}
	app.Post("/api/scan", s.ScanImage)

	status := postScan(t, app, `{"imageUrl":"http://127.0.0.1:9/photo.jpg"}`)
	assert.Equal(t, fiber.StatusInternalServerError, status)
}

func TestScanImage_NoClient(t *testing.T) {
	app := fiber.New()
	s := &GeminiService{}
	app.Post("/api/scan", s.ScanImage)

	assert.Equal(t, fiber.StatusServiceUnavailable, postScan(t, app, `{"imageUrl":"http://example.com/x.jpg"}`))
}

// Маршрут публичный: без токена запрос доходит до обработчика
func TestScanRoute_NoAuthRequired(t *testing.T) {
	app := fiber.New()
	s := NewGeminiService(&config.Config{})
	s.SetupRoutes(app)

	// Без ключа API сервис отвечает 503, но не 401
	status := postScan(t, app, `{"imageUrl":"http://example.com/x.jpg"}`)
	assert.Equal(t, fiber.StatusServiceUnavailable, status)
}
