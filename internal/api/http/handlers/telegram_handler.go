package handlers

import (
	"encoding/json"
	"net/url"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/telegram-auth-service/internal/api/dto"
	"github.com/spec-kit/telegram-auth-service/internal/auth"
	"github.com/spec-kit/telegram-auth-service/internal/domain"
	"github.com/spec-kit/telegram-auth-service/internal/observability"
	"github.com/spec-kit/telegram-auth-service/internal/service"
	apperrors "github.com/spec-kit/telegram-auth-service/pkg/util"
)

const callbackPath = "/api/v1/passport/telegram/callback"

// TelegramHandler exposes the login widget endpoints and account linking.
type TelegramHandler struct {
	resolver  *service.TelegramResolver
	settings  *service.TelegramSettingsService
	sessions  *service.AuthService
	metrics   *observability.Metrics
	logger    *zap.Logger
	publicURL string
}

// TelegramHandlerDeps bundles handler collaborators.
type TelegramHandlerDeps struct {
	Resolver  *service.TelegramResolver
	Settings  *service.TelegramSettingsService
	Sessions  *service.AuthService
	Metrics   *observability.Metrics
	Logger    *zap.Logger
	PublicURL string
}

// NewTelegramHandler constructs handler.
func NewTelegramHandler(deps TelegramHandlerDeps) *TelegramHandler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TelegramHandler{
		resolver:  deps.Resolver,
		settings:  deps.Settings,
		sessions:  deps.Sessions,
		metrics:   deps.Metrics,
		logger:    logger,
		publicURL: strings.TrimRight(deps.PublicURL, "/"),
	}
}

// Config handles GET /api/v1/passport/telegram/config.
func (h *TelegramHandler) Config(c *fiber.Ctx) error {
	cfg, err := h.settings.WidgetConfig(c.UserContext(), h.publicURL+callbackPath, c.Query("lang", "en"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewWidgetConfigResponse(cfg)})
}

// Callback handles POST /api/v1/passport/telegram/callback.
func (h *TelegramHandler) Callback(c *fiber.Ctx) error {
	var req dto.TelegramAuthRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewBadRequest(string(domain.RejectInvalidData), "invalid payload")
	}
	claim, err := req.Claim()
	if err != nil {
		return apperrors.NewBadRequest(string(domain.RejectInvalidData), err.Error())
	}

	resp, err := h.authenticate(c, claim)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": resp})
}

// CallbackRedirect handles GET /api/v1/passport/telegram/callback, the
// widget's redirect mode. The browser is sent back to the frontend with the
// session token or the rejection code in the URL fragment.
func (h *TelegramHandler) CallbackRedirect(c *fiber.Ctx) error {
	req := dto.TelegramAuthRequest{
		FirstName: optionalQuery(c, domain.ClaimFieldFirstName),
		LastName:  optionalQuery(c, domain.ClaimFieldLastName),
		Username:  optionalQuery(c, domain.ClaimFieldUsername),
		PhotoURL:  optionalQuery(c, domain.ClaimFieldPhotoURL),
		Hash:      c.Query(domain.ClaimFieldHash),
	}
	req.ID = json.Number(c.Query(domain.ClaimFieldID))
	req.AuthDate = json.Number(c.Query(domain.ClaimFieldAuthDate))

	claim, err := req.Claim()
	if err != nil {
		return h.redirect(c, url.Values{"telegram_error": {string(domain.RejectInvalidData)}})
	}

	resp, err := h.authenticate(c, claim)
	if err != nil {
		code := apperrors.ToDomainError(err).Code
		return h.redirect(c, url.Values{"telegram_error": {code}})
	}
	return h.redirect(c, url.Values{"token": {resp.Token}, "action": {resp.Action}})
}

func (h *TelegramHandler) redirect(c *fiber.Ctx, params url.Values) error {
	return c.Redirect(h.publicURL+"/#/login?"+params.Encode(), fiber.StatusFound)
}

func (h *TelegramHandler) authenticate(c *fiber.Ctx, claim domain.IdentityClaim) (*dto.TelegramAuthResponse, error) {
	outcome, settings := h.resolver.Authenticate(c.UserContext(), claim, c.Hostname())
	h.metrics.RecordAuthOutcome(string(outcome.Action), string(outcome.Reason))

	if !outcome.Succeeded() {
		h.logger.Info("telegram authentication rejected",
			zap.Int64("telegram_id", claim.ID),
			zap.String("reason", string(outcome.Reason)))
		return nil, rejectionError(outcome.Reason)
	}

	token, err := h.sessions.IssueSession(outcome.User, settings.SessionTTL())
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return &dto.TelegramAuthResponse{
		Token:     token.Value,
		ExpiresAt: token.ExpiresAt,
		User:      dto.NewUserResponse(outcome.User),
		Action:    string(outcome.Action),
		Message:   outcome.Message(),
	}, nil
}

// Link handles POST /api/v1/user/telegram/link.
func (h *TelegramHandler) Link(c *fiber.Ctx) error {
	user, err := auth.CurrentUser(c)
	if err != nil {
		return err
	}

	var req dto.TelegramAuthRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewBadRequest(string(domain.RejectInvalidData), "invalid payload")
	}

	settings, err := h.resolver.CurrentSettings(c.UserContext())
	if err != nil {
		return err
	}
	if !settings.IsConfigured() {
		return telegramError(domain.ErrNotConfigured)
	}
	if user.IsTelegramLinked() {
		return telegramError(domain.ErrAlreadyLinked)
	}

	claim, err := req.Claim()
	if err != nil {
		return apperrors.NewBadRequest(string(domain.RejectInvalidData), err.Error())
	}
	if err := h.resolver.Link(c.UserContext(), user, claim, settings); err != nil {
		return telegramError(err)
	}

	return c.JSON(fiber.Map{"data": dto.TelegramLinkResponse{
		Message:           "Telegram account linked successfully",
		TelegramUsername:  user.Telegram.Username,
		TelegramFirstName: user.Telegram.FirstName,
	}})
}

// Unlink handles DELETE /api/v1/user/telegram/unlink.
func (h *TelegramHandler) Unlink(c *fiber.Ctx) error {
	user, err := auth.CurrentUser(c)
	if err != nil {
		return err
	}
	if err := h.resolver.Unlink(c.UserContext(), user); err != nil {
		return telegramError(err)
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"message": "Telegram account unlinked successfully"}})
}

func optionalQuery(c *fiber.Ctx, key string) *string {
	if !c.Context().QueryArgs().Has(key) {
		return nil
	}
	v := c.Query(key)
	return &v
}
