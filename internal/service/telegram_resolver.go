package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/telegram-auth-service/internal/auth"
	"github.com/spec-kit/telegram-auth-service/internal/config"
	"github.com/spec-kit/telegram-auth-service/internal/domain"
	"github.com/spec-kit/telegram-auth-service/internal/events"
	"github.com/spec-kit/telegram-auth-service/internal/repository"
)

const (
	placeholderEmailDomain = "telegram.local"
	maxEmailSuffix         = 1000
	maxSignupAttempts      = 3
)

// TrialPolicy provisions new Telegram accounts with a plan. A zero PlanID
// disables provisioning.
type TrialPolicy struct {
	PlanID   int64
	Duration time.Duration
}

// TelegramResolver decides what a verified Telegram identity means for the
// local account store: login, signup or rejection.
type TelegramResolver struct {
	users         repository.UserRepository
	plans         repository.PlanRepository
	settings      repository.SettingsRepository
	dispatcher    events.Dispatcher
	logger        *zap.Logger
	bcryptCost    int
	trial         TrialPolicy
	remindExpire  bool
	remindTraffic bool
	now           func() time.Time
}

// ResolverDependencies bundles collaborators for the resolver.
type ResolverDependencies struct {
	UserRepo     repository.UserRepository
	PlanRepo     repository.PlanRepository
	SettingsRepo repository.SettingsRepository
	Dispatcher   events.Dispatcher
	Logger       *zap.Logger
}

// NewTelegramResolver builds the resolver.
func NewTelegramResolver(cfg config.Config, deps ResolverDependencies) *TelegramResolver {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TelegramResolver{
		users:      deps.UserRepo,
		plans:      deps.PlanRepo,
		settings:   deps.SettingsRepo,
		dispatcher: deps.Dispatcher,
		logger:     logger,
		bcryptCost: cfg.Auth.BcryptCost,
		trial: TrialPolicy{
			PlanID:   cfg.Telegram.TrialPlanID,
			Duration: time.Duration(cfg.Telegram.TrialHours) * time.Hour,
		},
		remindExpire:  cfg.Telegram.DefaultRemindExpire,
		remindTraffic: cfg.Telegram.DefaultRemindTraffic,
		now:           time.Now,
	}
}

// CurrentSettings returns the settings snapshot, or nil when none is stored.
func (r *TelegramResolver) CurrentSettings(ctx context.Context) (*domain.BotSettings, error) {
	settings, err := r.settings.Current(ctx)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	return settings, err
}

// Authenticate loads the current settings, applies the login gates and
// resolves the claim. The snapshot used for the decision is returned so the
// caller can size the session.
func (r *TelegramResolver) Authenticate(ctx context.Context, claim domain.IdentityClaim, requestDomain string) (domain.AuthOutcome, *domain.BotSettings) {
	settings, err := r.CurrentSettings(ctx)
	if err != nil {
		r.logger.Error("load telegram settings", zap.Error(err))
		return domain.Rejected(domain.RejectLoginFailed), nil
	}
	if !settings.IsConfigured() {
		return domain.Rejected(domain.RejectNotConfigured), settings
	}
	if !settings.IsLoginEnabled() {
		return domain.Rejected(domain.RejectLoginDisabled), settings
	}
	return r.Resolve(ctx, claim, settings, r.now(), requestDomain), settings
}

// Resolve evaluates a claim against a settings snapshot. Persistence failures
// never escape; they surface as rejections.
func (r *TelegramResolver) Resolve(ctx context.Context, claim domain.IdentityClaim, settings *domain.BotSettings, now time.Time, requestDomain string) domain.AuthOutcome {
	token := ""
	if settings != nil {
		token = settings.BotToken
	}
	if !claim.Valid() || !auth.VerifyTelegramClaim(claim, token) {
		return domain.Rejected(domain.RejectInvalidData)
	}
	if !auth.IsTelegramClaimFresh(claim, settings.MaxAuthAge(), now) {
		return domain.Rejected(domain.RejectDataExpired)
	}

	user, err := r.users.FindByTelegramID(ctx, claim.ID)
	switch {
	case err == nil:
		return r.login(ctx, user, claim, now)
	case !errors.Is(err, domain.ErrNotFound):
		r.logger.Error("lookup telegram user", zap.Int64("telegram_id", claim.ID), zap.Error(err))
		return domain.Rejected(domain.RejectLoginFailed)
	}

	if !settings.IsSignupEnabled() {
		return domain.Rejected(domain.RejectSignupDisabled)
	}
	if !settings.IsDomainAllowed(requestDomain) {
		return domain.Rejected(domain.RejectDomainRestricted)
	}
	return r.signup(ctx, claim, settings, now)
}

func (r *TelegramResolver) login(ctx context.Context, user *domain.User, claim domain.IdentityClaim, now time.Time) domain.AuthOutcome {
	if user.Banned {
		return domain.Rejected(domain.RejectAccountBanned)
	}

	mergeTelegramProfile(user, claim)
	loginAt := now
	user.LastLoginAt = &loginAt
	if err := r.users.Update(ctx, user); err != nil {
		r.logger.Error("update telegram user on login", zap.Int64("user_id", user.ID), zap.Error(err))
		return domain.Rejected(domain.RejectLoginFailed)
	}

	r.publish(ctx, events.EventTelegramLoggedIn, user, claim.ID, nil)
	return domain.LoggedIn(user)
}

func (r *TelegramResolver) signup(ctx context.Context, claim domain.IdentityClaim, settings *domain.BotSettings, now time.Time) domain.AuthOutcome {
	var err error
	for attempt := 0; attempt < maxSignupAttempts; attempt++ {
		var user *domain.User
		user, err = r.newAccount(ctx, claim, now)
		if err != nil {
			break
		}

		err = r.users.Create(ctx, user)
		switch {
		case err == nil:
			r.onSignedUp(ctx, user, claim, settings)
			return domain.SignedUp(user)
		case errors.Is(err, domain.ErrIdentifierTaken):
			return r.resolveSignupConflict(ctx, claim, now)
		case errors.Is(err, domain.ErrAlreadyExists):
			// placeholder email claimed concurrently, synthesize again
			continue
		}
		break
	}

	r.logger.Error("create telegram user", zap.Int64("telegram_id", claim.ID), zap.Error(err))
	return domain.Rejected(domain.RejectCreateFailed)
}

// resolveSignupConflict handles a concurrent signup that won the race for the
// same Telegram identifier.
func (r *TelegramResolver) resolveSignupConflict(ctx context.Context, claim domain.IdentityClaim, now time.Time) domain.AuthOutcome {
	existing, err := r.users.FindByTelegramID(ctx, claim.ID)
	if err != nil {
		r.logger.Warn("telegram identifier taken during signup", zap.Int64("telegram_id", claim.ID), zap.Error(err))
		return domain.Rejected(domain.RejectIdentifierTaken)
	}
	return r.login(ctx, existing, claim, now)
}

func (r *TelegramResolver) newAccount(ctx context.Context, claim domain.IdentityClaim, now time.Time) (*domain.User, error) {
	email, err := r.placeholderEmail(ctx, claim)
	if err != nil {
		return nil, err
	}
	hash, err := auth.HashPassword(uuid.NewString(), r.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	subscriptionToken, err := auth.RandomSecret(24)
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}

	link := claim.Link()
	link.LinkedAt = now
	user := &domain.User{
		UUID:          uuid.NewString(),
		Email:         email,
		PasswordHash:  hash,
		Token:         subscriptionToken,
		RemindExpire:  r.remindExpire,
		RemindTraffic: r.remindTraffic,
		Telegram:      link,
	}
	r.applyTrial(ctx, user, now)
	return user, nil
}

func (r *TelegramResolver) applyTrial(ctx context.Context, user *domain.User, now time.Time) {
	if r.trial.PlanID == 0 || r.plans == nil {
		return
	}
	plan, err := r.plans.GetByID(ctx, r.trial.PlanID)
	if err != nil {
		r.logger.Warn("trial plan unavailable", zap.Int64("plan_id", r.trial.PlanID), zap.Error(err))
		return
	}

	expiresAt := now.Add(r.trial.Duration)
	user.PlanID = &plan.ID
	user.GroupID = plan.GroupID
	user.TransferEnable = plan.TransferEnable * domain.BytesPerGiB
	user.SpeedLimit = plan.SpeedLimit
	user.ExpiredAt = &expiresAt
}

// placeholderEmail derives a local, unique email for a Telegram account:
// username@telegram.local or user<id>@telegram.local, with a numeric suffix
// before the @ until no user holds it.
func (r *TelegramResolver) placeholderEmail(ctx context.Context, claim domain.IdentityClaim) (string, error) {
	local := "user" + strconv.FormatInt(claim.ID, 10)
	if claim.Username != nil && strings.TrimSpace(*claim.Username) != "" {
		local = strings.ToLower(strings.TrimSpace(*claim.Username))
	}

	for suffix := 0; suffix <= maxEmailSuffix; suffix++ {
		candidate := local
		if suffix > 0 {
			candidate += strconv.Itoa(suffix)
		}
		email := candidate + "@" + placeholderEmailDomain

		exists, err := r.users.EmailExists(ctx, email)
		if err != nil {
			return "", fmt.Errorf("check email %s: %w", email, err)
		}
		if !exists {
			return email, nil
		}
	}
	return "", fmt.Errorf("no free placeholder email for %q", local)
}

func (r *TelegramResolver) onSignedUp(ctx context.Context, user *domain.User, claim domain.IdentityClaim, settings *domain.BotSettings) {
	payload := events.SignedUpPayload{Email: user.Email}
	if settings.WantsWelcome() {
		payload.WelcomeMessage = settings.WelcomeMessage
	}
	r.publish(ctx, events.EventTelegramSignedUp, user, claim.ID, payload)
}

// Link binds the claim's Telegram account to user. The already-linked check
// precedes claim verification.
func (r *TelegramResolver) Link(ctx context.Context, user *domain.User, claim domain.IdentityClaim, settings *domain.BotSettings) error {
	if !settings.IsConfigured() {
		return domain.ErrNotConfigured
	}
	if user.IsTelegramLinked() {
		return domain.ErrAlreadyLinked
	}
	if !claim.Valid() || !auth.VerifyTelegramClaim(claim, settings.BotToken) {
		return domain.ErrInvalidClaim
	}

	owner, err := r.users.FindByTelegramID(ctx, claim.ID)
	switch {
	case err == nil:
		if owner.ID != user.ID {
			return domain.ErrIdentifierTaken
		}
		return domain.ErrAlreadyLinked
	case !errors.Is(err, domain.ErrNotFound):
		return fmt.Errorf("lookup telegram owner: %w", err)
	}

	link := claim.Link()
	link.LinkedAt = r.now()
	if err := r.users.LinkTelegram(ctx, user.ID, link); err != nil {
		return err
	}
	user.Telegram = link

	r.publish(ctx, events.EventTelegramLinked, user, claim.ID, nil)
	return nil
}

// Unlink clears the Telegram account bound to user.
func (r *TelegramResolver) Unlink(ctx context.Context, user *domain.User) error {
	if !user.IsTelegramLinked() {
		return domain.ErrNotLinked
	}
	telegramID := user.Telegram.ID
	if err := r.users.UnlinkTelegram(ctx, user.ID); err != nil {
		return err
	}
	user.Telegram = nil

	r.publish(ctx, events.EventTelegramUnlinked, user, telegramID, nil)
	return nil
}

func (r *TelegramResolver) publish(ctx context.Context, eventType events.EventType, user *domain.User, telegramID int64, payload interface{}) {
	if r.dispatcher == nil {
		return
	}
	_ = r.dispatcher.Publish(ctx, events.Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		UserID:     user.ID,
		TelegramID: telegramID,
		Timestamp:  r.now(),
		Payload:    payload,
	})
}

// mergeTelegramProfile overwrites stored display fields with the non-empty
// values of the claim. Absent or empty values keep what is stored.
func mergeTelegramProfile(user *domain.User, claim domain.IdentityClaim) {
	if user.Telegram == nil {
		user.Telegram = &domain.TelegramLink{ID: claim.ID}
	}
	fillForward(&user.Telegram.Username, claim.Username)
	fillForward(&user.Telegram.FirstName, claim.FirstName)
	fillForward(&user.Telegram.LastName, claim.LastName)
	fillForward(&user.Telegram.PhotoURL, claim.PhotoURL)
}

func fillForward(dst **string, src *string) {
	if src == nil || *src == "" {
		return
	}
	v := *src
	*dst = &v
}
