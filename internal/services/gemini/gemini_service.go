package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"google.golang.org/genai"

	"github.com/rajivgeraev/geoswap-api/internal/config"
)

// Модель по умолчанию для распознавания фотографий
const visionModel = "gemini-2.0-flash"

// GeminiService представляет сервис автоматической разметки фотографий
type GeminiService struct {
	cfg    *config.Config
	client *genai.Client
}

// ScanResult — структурированный ответ модели по фотографии вещи
type ScanResult struct {
	ItemName          string  `json:"itemName"`
	Description       string  `json:"description"`
	Category          string  `json:"category"`
	SuggestedPriceINR float64 `json:"suggestedPriceINR"`
	EstimatedWeightKg float64 `json:"estimatedWeightKg"`
}

// NewGeminiService создает новый экземпляр GeminiService.
// Без ключа API сервис поднимается, но сканирование вернет 503.
func NewGeminiService(cfg *config.Config) *GeminiService {
	s := &GeminiService{cfg: cfg}

	if cfg.GeminiAPIKey == "" {
		log.Println("⚠️ GEMINI_API_KEY не задан, сканирование фотографий отключено")
		return s
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		log.Printf("❌ Ошибка создания клиента Gemini: %v", err)
		return s
	}

	s.client = client
	log.Println("✅ Клиент Gemini инициализирован")
	return s
}

// ScanImage скачивает фотографию по URL и просит модель описать вещь
func (s *GeminiService) ScanImage(c fiber.Ctx) error {
	if s.client == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "AI scanning is not available"})
	}

	var requestData struct {
		ImageURL string `json:"imageUrl"`
	}

	if err := c.Bind().Body(&requestData); err != nil {
		log.Printf("Ошибка чтения тела запроса: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	if requestData.ImageURL == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "imageUrl is required"})
	}

	imageData, mimeType, err := downloadImage(requestData.ImageURL)
	if err != nil {
		log.Printf("Ошибка загрузки изображения: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to download image"})
	}

	result, err := s.describeImage(context.Background(), imageData, mimeType)
	if err != nil {
		log.Printf("❌ Ошибка распознавания изображения: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to analyze image"})
	}

	return c.JSON(result)
}

// describeImage выполняет запрос к модели и разбирает JSON-ответ
func (s *GeminiService) describeImage(ctx context.Context, imageData []byte, mimeType string) (*ScanResult, error) {
	prompt := `You are an assistant for a local secondhand marketplace.
Look at the photo and describe the item for a listing.

Respond with pure JSON only, no code fences, no extra text:
{
  "itemName": "short item name",
  "description": "one or two sentences for the listing",
  "category": "one of: Electronics, Furniture, Clothing, Books, Sports, Appliances, Toys, Other",
  "suggestedPriceINR": number (fair secondhand price in Indian rupees),
  "estimatedWeightKg": number (approximate weight in kilograms)
}`

	content := genai.NewContentFromParts([]*genai.Part{
		genai.NewPartFromText(prompt),
		genai.NewPartFromBytes(imageData, mimeType),
	}, genai.RoleUser)

	resp, err := s.client.Models.GenerateContent(ctx, visionModel, []*genai.Content{content}, nil)
	if err != nil {
		return nil, err
	}

	responseText := collectPartsText(resp)
	jsonText := extractJSON(responseText)

	var result ScanResult
	if err := json.Unmarshal([]byte(jsonText), &result); err != nil {
		return nil, fmt.Errorf("некорректный JSON в ответе модели: %w", err)
	}

	if result.ItemName == "" || result.Category == "" {
		return nil, fmt.Errorf("неполный ответ модели: %s", jsonText)
	}

	return &result, nil
}

// collectPartsText склеивает текстовые части первого кандидата ответа
func collectPartsText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		b.WriteString(part.Text)
	}
	return b.String()
}

// extractJSON вырезает первый JSON-объект из текста, отбрасывая код-фенсы
func extractJSON(text string) string {
	text = regexp.MustCompile("```json\\s*").ReplaceAllString(text, "")
	text = regexp.MustCompile("```\\s*").ReplaceAllString(text, "")

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		return strings.TrimSpace(text[start : end+1])
	}
	return text
}

// downloadImage скачивает изображение и возвращает байты и MIME-тип
func downloadImage(url string) ([]byte, string, error) {
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		return nil, "", fmt.Errorf("failed to download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("bad status: %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read body: %w", err)
	}

	mimeType := resp.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	return data, mimeType, nil
}
