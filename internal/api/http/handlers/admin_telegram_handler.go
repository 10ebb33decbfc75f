package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/telegram-auth-service/internal/api/dto"
	"github.com/spec-kit/telegram-auth-service/internal/domain"
	"github.com/spec-kit/telegram-auth-service/internal/observability"
	"github.com/spec-kit/telegram-auth-service/internal/service"
	apperrors "github.com/spec-kit/telegram-auth-service/pkg/util"
)

// AdminTelegramHandler exposes bot configuration endpoints for administrators.
type AdminTelegramHandler struct {
	settings *service.TelegramSettingsService
	metrics  *observability.Metrics
}

// NewAdminTelegramHandler constructs handler.
func NewAdminTelegramHandler(settings *service.TelegramSettingsService, metrics *observability.Metrics) *AdminTelegramHandler {
	return &AdminTelegramHandler{settings: settings, metrics: metrics}
}

// GetConfig handles GET /api/v2/admin/telegram/config.
func (h *AdminTelegramHandler) GetConfig(c *fiber.Ctx) error {
	view, err := h.settings.View(c.UserContext())
	if err != nil {
		return telegramError(err)
	}
	return c.JSON(fiber.Map{"data": dto.NewTelegramSettingsResponse(view)})
}

// UpdateConfig handles PUT /api/v2/admin/telegram/config.
func (h *AdminTelegramHandler) UpdateConfig(c *fiber.Ctx) error {
	var patch domain.SettingsPatch
	if err := c.BodyParser(&patch); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	view, err := h.settings.Update(c.UserContext(), patch)
	if err != nil {
		return telegramError(err)
	}
	return c.JSON(fiber.Map{"data": dto.NewTelegramSettingsResponse(view)})
}

// TestBot handles POST /api/v2/admin/telegram/test-bot.
func (h *AdminTelegramHandler) TestBot(c *fiber.Ctx) error {
	var req dto.TestBotRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	info, err := h.settings.TestBotToken(c.UserContext(), req.BotToken)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.TestBotResponse{
		Valid:   true,
		BotInfo: info,
		Message: "Bot token is valid",
	}})
}

// Stats handles GET /api/v2/admin/telegram/stats.
func (h *AdminTelegramHandler) Stats(c *fiber.Ctx) error {
	stats, err := h.settings.Stats(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTelegramStatsResponse(stats)})
}

// SetupWebhook handles POST /api/v2/admin/telegram/webhook/setup.
func (h *AdminTelegramHandler) SetupWebhook(c *fiber.Ctx) error {
	var req dto.WebhookSetupRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	info, err := h.settings.SetupWebhook(c.UserContext(), req.WebhookURL)
	if err != nil {
		return webhookError(err)
	}
	return c.JSON(fiber.Map{"data": fiber.Map{
		"success":      true,
		"message":      "Webhook setup successfully",
		"webhook_info": info,
	}})
}

// WebhookInfo handles GET /api/v2/admin/telegram/webhook/info.
func (h *AdminTelegramHandler) WebhookInfo(c *fiber.Ctx) error {
	info, err := h.settings.WebhookInfo(c.UserContext())
	if err != nil {
		return webhookError(err)
	}
	return c.JSON(fiber.Map{"data": info})
}

// DeleteWebhook handles DELETE /api/v2/admin/telegram/webhook.
func (h *AdminTelegramHandler) DeleteWebhook(c *fiber.Ctx) error {
	if err := h.settings.DeleteWebhook(c.UserContext()); err != nil {
		return webhookError(err)
	}
	return c.JSON(fiber.Map{"data": fiber.Map{
		"success": true,
		"message": "Webhook deleted successfully",
	}})
}

// Metrics handles GET /api/v2/admin/metrics.
func (h *AdminTelegramHandler) Metrics(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"data": h.metrics.Snapshot()})
}

func webhookError(err error) error {
	if errors.Is(err, domain.ErrNotConfigured) {
		return apperrors.NewBadRequest("NOT_CONFIGURED", "Bot token is not configured")
	}
	return telegramError(err)
}
