package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/telegram-auth-service/internal/auth"
	"github.com/spec-kit/telegram-auth-service/internal/config"
	"github.com/spec-kit/telegram-auth-service/internal/domain"
	"github.com/spec-kit/telegram-auth-service/internal/events"
)

const testBotToken = "123:secret"

var testNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func testSettings() *domain.BotSettings {
	return &domain.BotSettings{
		ID:                   1,
		BotToken:             testBotToken,
		BotUsername:          "ana_login_bot",
		LoginEnabled:         true,
		SignupEnabled:        true,
		NotificationsEnabled: true,
		WelcomeMessage:       "Welcome aboard!",
		SessionTimeout:       3600,
		AuthMaxAge:           3600,
	}
}

func sign(claim domain.IdentityClaim) domain.IdentityClaim {
	claim.Hash = auth.SignTelegramClaim(claim, testBotToken)
	return claim
}

func anaClaim() domain.IdentityClaim {
	return sign(domain.IdentityClaim{
		ID:        42,
		Username:  domain.StringPtr("Ana"),
		FirstName: domain.StringPtr("Ana"),
		AuthDate:  testNow.Unix(),
	})
}

type resolverFixture struct {
	resolver   *TelegramResolver
	users      *memoryUsers
	settings   *memorySettings
	dispatcher *recordingDispatcher
}

func newResolverFixture(t *testing.T, seed ...*domain.User) *resolverFixture {
	t.Helper()
	cfg := config.Config{
		Auth: config.AuthConfig{BcryptCost: bcrypt.MinCost},
		Telegram: config.TelegramConfig{
			TrialPlanID:          7,
			TrialHours:           24,
			DefaultRemindExpire:  true,
			DefaultRemindTraffic: false,
		},
	}
	f := &resolverFixture{
		users:      newMemoryUsers(seed...),
		settings:   &memorySettings{settings: testSettings()},
		dispatcher: &recordingDispatcher{},
	}
	groupID, speed := int64(3), int64(100)
	f.resolver = NewTelegramResolver(cfg, ResolverDependencies{
		UserRepo:     f.users,
		PlanRepo:     memoryPlans{7: {ID: 7, GroupID: &groupID, TransferEnable: 5, SpeedLimit: &speed}},
		SettingsRepo: f.settings,
		Dispatcher:   f.dispatcher,
	})
	f.resolver.now = func() time.Time { return testNow }
	return f
}

func TestResolve_SignupThenLogin(t *testing.T) {
	f := newResolverFixture(t)
	ctx := context.Background()

	outcome := f.resolver.Resolve(ctx, anaClaim(), testSettings(), testNow, "example.com")
	require.Equal(t, domain.AuthActionSignup, outcome.Action)
	require.NotNil(t, outcome.User)

	user := outcome.User
	assert.Equal(t, "ana@telegram.local", user.Email)
	assert.NotEmpty(t, user.UUID)
	assert.NotEmpty(t, user.Token)
	assert.True(t, user.RemindExpire)
	assert.False(t, user.RemindTraffic)
	require.True(t, user.IsTelegramLinked())
	assert.Equal(t, int64(42), user.Telegram.ID)
	assert.Equal(t, testNow, user.Telegram.LinkedAt)

	require.NotNil(t, user.PlanID)
	assert.Equal(t, int64(7), *user.PlanID)
	assert.Equal(t, int64(3), *user.GroupID)
	assert.Equal(t, 5*domain.BytesPerGiB, user.TransferEnable)
	assert.Equal(t, int64(100), *user.SpeedLimit)
	assert.Equal(t, testNow.Add(24*time.Hour), *user.ExpiredAt)

	again := f.resolver.Resolve(ctx, anaClaim(), testSettings(), testNow.Add(time.Minute), "example.com")
	require.Equal(t, domain.AuthActionLogin, again.Action)
	assert.Equal(t, user.ID, again.User.ID)
	require.NotNil(t, again.User.LastLoginAt)
	assert.Equal(t, testNow.Add(time.Minute), *again.User.LastLoginAt)
	assert.Equal(t, 1, f.users.count())
}

func TestResolve_SignupPasswordIsRandom(t *testing.T) {
	f := newResolverFixture(t)

	outcome := f.resolver.Resolve(context.Background(), anaClaim(), testSettings(), testNow, "")
	require.Equal(t, domain.AuthActionSignup, outcome.Action)

	hash := outcome.User.PasswordHash
	assert.NotEmpty(t, hash)
	assert.Error(t, auth.ComparePassword(hash, "42"))
	assert.Error(t, auth.ComparePassword(hash, "ana"))
}

func TestResolve_Rejections(t *testing.T) {
	banned := &domain.User{Email: "b@x", Banned: true, Telegram: &domain.TelegramLink{ID: 99}}

	tests := []struct {
		name     string
		claim    func() domain.IdentityClaim
		settings func(s *domain.BotSettings)
		now      time.Time
		domain   string
		want     domain.RejectReason
	}{
		{
			name:  "wrong bot token",
			claim: anaClaim,
			settings: func(s *domain.BotSettings) {
				s.BotToken = "123:other"
			},
			now:  testNow,
			want: domain.RejectInvalidData,
		},
		{
			name: "tampered username",
			claim: func() domain.IdentityClaim {
				c := anaClaim()
				c.Username = domain.StringPtr("mallory")
				return c
			},
			now:  testNow,
			want: domain.RejectInvalidData,
		},
		{
			name: "missing hash",
			claim: func() domain.IdentityClaim {
				c := anaClaim()
				c.Hash = ""
				return c
			},
			now:  testNow,
			want: domain.RejectInvalidData,
		},
		{
			name:  "expired one second past window",
			claim: anaClaim,
			now:   testNow.Add(3601 * time.Second),
			want:  domain.RejectDataExpired,
		},
		{
			name: "banned account",
			claim: func() domain.IdentityClaim {
				return sign(domain.IdentityClaim{ID: 99, AuthDate: testNow.Unix()})
			},
			now:  testNow,
			want: domain.RejectAccountBanned,
		},
		{
			name:  "signup disabled",
			claim: anaClaim,
			settings: func(s *domain.BotSettings) {
				s.SignupEnabled = false
			},
			now:  testNow,
			want: domain.RejectSignupDisabled,
		},
		{
			name:  "domain restricted",
			claim: anaClaim,
			settings: func(s *domain.BotSettings) {
				s.AllowedDomains = []string{"example.com"}
			},
			now:    testNow,
			domain: "evil.com",
			want:   domain.RejectDomainRestricted,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newResolverFixture(t, cloneUser(banned))
			settings := testSettings()
			if tt.settings != nil {
				tt.settings(settings)
			}

			outcome := f.resolver.Resolve(context.Background(), tt.claim(), settings, tt.now, tt.domain)
			assert.Equal(t, domain.AuthActionRejected, outcome.Action)
			assert.Equal(t, tt.want, outcome.Reason)
			assert.Nil(t, outcome.User)
			assert.False(t, outcome.Succeeded())
		})
	}
}

func TestResolve_FreshnessBoundaryInclusive(t *testing.T) {
	f := newResolverFixture(t)

	outcome := f.resolver.Resolve(context.Background(), anaClaim(), testSettings(), testNow.Add(3600*time.Second), "")
	assert.Equal(t, domain.AuthActionSignup, outcome.Action)
}

func TestResolve_DomainRestrictionSkipsReturningUsers(t *testing.T) {
	f := newResolverFixture(t, &domain.User{Email: "ana@x", Telegram: &domain.TelegramLink{ID: 42}})
	settings := testSettings()
	settings.AllowedDomains = []string{"example.com"}
	settings.SignupEnabled = false

	outcome := f.resolver.Resolve(context.Background(), anaClaim(), settings, testNow, "evil.com")
	assert.Equal(t, domain.AuthActionLogin, outcome.Action)
}

func TestResolve_AllowedDomainSignsUp(t *testing.T) {
	f := newResolverFixture(t)
	settings := testSettings()
	settings.AllowedDomains = []string{"example.com"}

	outcome := f.resolver.Resolve(context.Background(), anaClaim(), settings, testNow, "example.com")
	assert.Equal(t, domain.AuthActionSignup, outcome.Action)
}

func TestResolve_LoginFillsForwardDisplayFields(t *testing.T) {
	stored := &domain.User{
		Email: "ana@x",
		Telegram: &domain.TelegramLink{
			ID:        42,
			Username:  domain.StringPtr("old_name"),
			FirstName: domain.StringPtr("Old"),
			LastName:  domain.StringPtr("Keep"),
			PhotoURL:  domain.StringPtr("https://t.me/old.jpg"),
		},
	}
	f := newResolverFixture(t, stored)

	claim := sign(domain.IdentityClaim{
		ID:        42,
		Username:  domain.StringPtr(""),
		FirstName: domain.StringPtr("New"),
		AuthDate:  testNow.Unix(),
	})
	outcome := f.resolver.Resolve(context.Background(), claim, testSettings(), testNow, "")
	require.Equal(t, domain.AuthActionLogin, outcome.Action)

	saved := f.users.get(outcome.User.ID)
	require.NotNil(t, saved)
	assert.Equal(t, "old_name", *saved.Telegram.Username)
	assert.Equal(t, "New", *saved.Telegram.FirstName)
	assert.Equal(t, "Keep", *saved.Telegram.LastName)
	assert.Equal(t, "https://t.me/old.jpg", *saved.Telegram.PhotoURL)
	require.NotNil(t, saved.LastLoginAt)
	assert.Equal(t, testNow, *saved.LastLoginAt)
}

func TestResolve_PlaceholderEmailCollisions(t *testing.T) {
	f := newResolverFixture(t,
		&domain.User{Email: "ana@telegram.local"},
		&domain.User{Email: "ana1@telegram.local"},
	)

	outcome := f.resolver.Resolve(context.Background(), anaClaim(), testSettings(), testNow, "")
	require.Equal(t, domain.AuthActionSignup, outcome.Action)
	assert.Equal(t, "ana2@telegram.local", outcome.User.Email)
}

func TestResolve_FallbackEmailIsInjective(t *testing.T) {
	f := newResolverFixture(t)
	ctx := context.Background()

	first := f.resolver.Resolve(ctx, sign(domain.IdentityClaim{ID: 7, AuthDate: testNow.Unix()}), testSettings(), testNow, "")
	require.Equal(t, domain.AuthActionSignup, first.Action)
	assert.Equal(t, "user7@telegram.local", first.User.Email)

	// occupy the fallback address of the next account
	require.NoError(t, f.users.Create(ctx, &domain.User{Email: "user8@telegram.local"}))

	second := f.resolver.Resolve(ctx, sign(domain.IdentityClaim{ID: 8, AuthDate: testNow.Unix()}), testSettings(), testNow, "")
	require.Equal(t, domain.AuthActionSignup, second.Action)
	assert.Equal(t, "user81@telegram.local", second.User.Email)
	assert.NotEqual(t, first.User.Email, second.User.Email)
}

func TestResolve_ConcurrentSignupCreatesOneAccount(t *testing.T) {
	f := newResolverFixture(t)
	claim := anaClaim()

	const attempts = 16
	outcomes := make([]domain.AuthOutcome, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outcomes[i] = f.resolver.Resolve(context.Background(), claim, testSettings(), testNow, "")
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, f.users.count())
	signups := 0
	for _, o := range outcomes {
		require.True(t, o.Succeeded(), "unexpected rejection %s", o.Reason)
		if o.Action == domain.AuthActionSignup {
			signups++
		}
	}
	assert.Equal(t, 1, signups)
}

func TestResolve_PersistenceFailuresBecomeRejections(t *testing.T) {
	t.Run("lookup", func(t *testing.T) {
		f := newResolverFixture(t)
		f.users.findErr = errors.New("connection reset")
		outcome := f.resolver.Resolve(context.Background(), anaClaim(), testSettings(), testNow, "")
		assert.Equal(t, domain.RejectLoginFailed, outcome.Reason)
	})

	t.Run("create", func(t *testing.T) {
		f := newResolverFixture(t)
		f.users.createErr = errors.New("disk full")
		outcome := f.resolver.Resolve(context.Background(), anaClaim(), testSettings(), testNow, "")
		assert.Equal(t, domain.RejectCreateFailed, outcome.Reason)
	})

	t.Run("login save", func(t *testing.T) {
		f := newResolverFixture(t, &domain.User{Email: "ana@x", Telegram: &domain.TelegramLink{ID: 42}})
		f.users.updateErr = errors.New("deadlock")
		outcome := f.resolver.Resolve(context.Background(), anaClaim(), testSettings(), testNow, "")
		assert.Equal(t, domain.RejectLoginFailed, outcome.Reason)
	})
}

func TestResolve_PublishesWelcome(t *testing.T) {
	f := newResolverFixture(t)

	outcome := f.resolver.Resolve(context.Background(), anaClaim(), testSettings(), testNow, "")
	require.Equal(t, domain.AuthActionSignup, outcome.Action)

	signedUp := f.dispatcher.ofType(events.EventTelegramSignedUp)
	require.Len(t, signedUp, 1)
	assert.Equal(t, int64(42), signedUp[0].TelegramID)
	assert.Equal(t, outcome.User.ID, signedUp[0].UserID)
	payload, ok := signedUp[0].Payload.(events.SignedUpPayload)
	require.True(t, ok)
	assert.Equal(t, "Welcome aboard!", payload.WelcomeMessage)
}

func TestResolve_NoWelcomeWhenNotificationsDisabled(t *testing.T) {
	f := newResolverFixture(t)
	settings := testSettings()
	settings.NotificationsEnabled = false

	f.resolver.Resolve(context.Background(), anaClaim(), settings, testNow, "")

	signedUp := f.dispatcher.ofType(events.EventTelegramSignedUp)
	require.Len(t, signedUp, 1)
	assert.Empty(t, signedUp[0].Payload.(events.SignedUpPayload).WelcomeMessage)
}

func TestAuthenticate_Gates(t *testing.T) {
	t.Run("no settings row", func(t *testing.T) {
		f := newResolverFixture(t)
		f.settings.settings = nil
		outcome, settings := f.resolver.Authenticate(context.Background(), anaClaim(), "")
		assert.Equal(t, domain.RejectNotConfigured, outcome.Reason)
		assert.Nil(t, settings)
	})

	t.Run("missing username", func(t *testing.T) {
		f := newResolverFixture(t)
		f.settings.settings.BotUsername = ""
		outcome, _ := f.resolver.Authenticate(context.Background(), anaClaim(), "")
		assert.Equal(t, domain.RejectNotConfigured, outcome.Reason)
	})

	t.Run("login disabled", func(t *testing.T) {
		f := newResolverFixture(t)
		f.settings.settings.LoginEnabled = false
		outcome, _ := f.resolver.Authenticate(context.Background(), anaClaim(), "")
		assert.Equal(t, domain.RejectLoginDisabled, outcome.Reason)
	})

	t.Run("store failure", func(t *testing.T) {
		f := newResolverFixture(t)
		f.settings.err = errors.New("timeout")
		outcome, _ := f.resolver.Authenticate(context.Background(), anaClaim(), "")
		assert.Equal(t, domain.RejectLoginFailed, outcome.Reason)
	})

	t.Run("enabled", func(t *testing.T) {
		f := newResolverFixture(t)
		outcome, settings := f.resolver.Authenticate(context.Background(), anaClaim(), "")
		assert.Equal(t, domain.AuthActionSignup, outcome.Action)
		require.NotNil(t, settings)
		assert.Equal(t, time.Hour, settings.SessionTTL())
	})
}

func TestLink_AlreadyLinkedRegardlessOfClaim(t *testing.T) {
	f := newResolverFixture(t, &domain.User{Email: "ana@x", Telegram: &domain.TelegramLink{ID: 5}})
	user := f.users.get(1)

	garbage := domain.IdentityClaim{ID: 42, Hash: "nope"}
	assert.ErrorIs(t, f.resolver.Link(context.Background(), user, garbage, testSettings()), domain.ErrAlreadyLinked)
	assert.ErrorIs(t, f.resolver.Link(context.Background(), user, anaClaim(), testSettings()), domain.ErrAlreadyLinked)
}

func TestLink_Errors(t *testing.T) {
	f := newResolverFixture(t,
		&domain.User{Email: "me@x"},
		&domain.User{Email: "owner@x", Telegram: &domain.TelegramLink{ID: 42}},
	)
	me := f.users.get(1)
	ctx := context.Background()

	unconfigured := testSettings()
	unconfigured.BotToken = ""
	assert.ErrorIs(t, f.resolver.Link(ctx, me, anaClaim(), unconfigured), domain.ErrNotConfigured)
	assert.ErrorIs(t, f.resolver.Link(ctx, me, anaClaim(), nil), domain.ErrNotConfigured)

	tampered := anaClaim()
	tampered.ID = 43
	assert.ErrorIs(t, f.resolver.Link(ctx, me, tampered, testSettings()), domain.ErrInvalidClaim)

	assert.ErrorIs(t, f.resolver.Link(ctx, me, anaClaim(), testSettings()), domain.ErrIdentifierTaken)
	assert.False(t, f.users.get(1).IsTelegramLinked())
}

func TestUnlinkLinkRoundTrip(t *testing.T) {
	f := newResolverFixture(t)
	ctx := context.Background()

	signup := f.resolver.Resolve(ctx, anaClaim(), testSettings(), testNow, "")
	require.Equal(t, domain.AuthActionSignup, signup.Action)
	original := f.users.get(signup.User.ID)

	user := cloneUser(original)
	require.NoError(t, f.resolver.Unlink(ctx, user))
	assert.False(t, user.IsTelegramLinked())
	assert.False(t, f.users.get(user.ID).IsTelegramLinked())
	assert.ErrorIs(t, f.resolver.Unlink(ctx, user), domain.ErrNotLinked)

	require.NoError(t, f.resolver.Link(ctx, user, anaClaim(), testSettings()))
	relinked := f.users.get(user.ID)
	assert.Equal(t, original.Telegram, relinked.Telegram)

	assert.Len(t, f.dispatcher.ofType(events.EventTelegramUnlinked), 1)
	assert.Len(t, f.dispatcher.ofType(events.EventTelegramLinked), 1)
}
