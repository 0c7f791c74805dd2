package cloudinary

import (
	"fmt"
	"log"
	"net/url"
	"time"

	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/rajivgeraev/geoswap-api/internal/config"
	"github.com/rajivgeraev/geoswap-api/internal/utils"
)

// CloudinaryService предоставляет методы для работы с Cloudinary
type CloudinaryService struct {
	cfg          *config.Config
	jwtService   *utils.JWTService
	uploadFolder string
	uploadPreset string
}

// NewCloudinaryService создает новый экземпляр CloudinaryService
func NewCloudinaryService(cfg *config.Config) *CloudinaryService {
	return &CloudinaryService{
		cfg:          cfg,
		jwtService:   utils.NewJWTService(cfg.JWTSecret),
		uploadFolder: cfg.CloudinaryConfig.UploadFolder,
		uploadPreset: cfg.CloudinaryConfig.UploadPreset,
	}
}

// GenerateUploadParams создаёт подписанные параметры для прямой загрузки
// фотографий с клиента. Подпись считает SDK Cloudinary.
func (s *CloudinaryService) GenerateUploadParams(c fiber.Ctx) error {
	// Генерируем ID для объявления, если не передан
	listingID := c.Query("listing_id")
	if listingID == "" {
		listingID = uuid.New().String()
	}

	timestamp := fmt.Sprintf("%d", time.Now().Unix())

	params := url.Values{}
	params.Set("timestamp", timestamp)
	if s.uploadFolder != "" {
		params.Set("folder", s.uploadFolder)
	}
	if s.uploadPreset != "" {
		params.Set("upload_preset", s.uploadPreset)
	}

	signature, err := api.SignParameters(params, s.cfg.CloudinaryConfig.APISecret)
	if err != nil {
		log.Printf("Ошибка подписи параметров загрузки: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to sign upload parameters"})
	}

	return c.JSON(fiber.Map{
		"timestamp":     timestamp,
		"signature":     signature,
		"api_key":       s.cfg.CloudinaryConfig.APIKey,
		"cloud_name":    s.cfg.CloudinaryConfig.CloudName,
		"folder":        s.uploadFolder,
		"upload_preset": s.uploadPreset,
		"listing_id":    listingID,
	})
}
