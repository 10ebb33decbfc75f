package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/spec-kit/telegram-auth-service/internal/domain"
	"github.com/spec-kit/telegram-auth-service/internal/events"
)

// memoryUsers mimics the users table, including its unique constraints.
type memoryUsers struct {
	mu     sync.Mutex
	nextID int64
	byID   map[int64]*domain.User

	findErr   error
	createErr error
	updateErr error
}

func newMemoryUsers(seed ...*domain.User) *memoryUsers {
	m := &memoryUsers{byID: map[int64]*domain.User{}}
	for _, u := range seed {
		m.nextID++
		if u.ID == 0 {
			u.ID = m.nextID
		}
		m.byID[u.ID] = cloneUser(u)
	}
	return m
}

func cloneUser(u *domain.User) *domain.User {
	c := *u
	if u.Telegram != nil {
		tg := *u.Telegram
		c.Telegram = &tg
	}
	return &c
}

func (m *memoryUsers) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byID)
}

func (m *memoryUsers) get(id int64) *domain.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.byID[id]; ok {
		return cloneUser(u)
	}
	return nil
}

func (m *memoryUsers) Create(_ context.Context, user *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	for _, u := range m.byID {
		if user.IsTelegramLinked() && u.IsTelegramLinked() && u.Telegram.ID == user.Telegram.ID {
			return fmt.Errorf("%w: users_telegram_id_key", domain.ErrIdentifierTaken)
		}
	}
	for _, u := range m.byID {
		if u.Email == user.Email {
			return fmt.Errorf("%w: users_email_key", domain.ErrAlreadyExists)
		}
	}
	m.nextID++
	user.ID = m.nextID
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	m.byID[user.ID] = cloneUser(user)
	return nil
}

func (m *memoryUsers) Update(_ context.Context, user *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return m.updateErr
	}
	stored, ok := m.byID[user.ID]
	if !ok {
		return domain.ErrNotFound
	}
	next := cloneUser(user)
	// the identifier only changes through LinkTelegram and UnlinkTelegram
	if stored.Telegram == nil {
		next.Telegram = nil
	} else if next.Telegram != nil {
		next.Telegram.ID = stored.Telegram.ID
		next.Telegram.LinkedAt = stored.Telegram.LinkedAt
	}
	m.byID[user.ID] = next
	return nil
}

func (m *memoryUsers) GetByID(_ context.Context, id int64) (*domain.User, error) {
	if u := m.get(id); u != nil {
		return u, nil
	}
	return nil, domain.ErrNotFound
}

func (m *memoryUsers) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if u.Email == email {
			return cloneUser(u), nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memoryUsers) EmailExists(ctx context.Context, email string) (bool, error) {
	_, err := m.GetByEmail(ctx, email)
	return err == nil, nil
}

func (m *memoryUsers) FindByTelegramID(_ context.Context, telegramID int64) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return nil, m.findErr
	}
	for _, u := range m.byID {
		if u.IsTelegramLinked() && u.Telegram.ID == telegramID {
			return cloneUser(u), nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memoryUsers) LinkTelegram(_ context.Context, userID int64, link *domain.TelegramLink) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if u.IsTelegramLinked() && u.Telegram.ID == link.ID {
			return domain.ErrIdentifierTaken
		}
	}
	u, ok := m.byID[userID]
	if !ok || u.IsTelegramLinked() {
		return domain.ErrAlreadyLinked
	}
	tg := *link
	u.Telegram = &tg
	return nil
}

func (m *memoryUsers) UnlinkTelegram(_ context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[userID]
	if !ok || !u.IsTelegramLinked() {
		return domain.ErrNotLinked
	}
	u.Telegram = nil
	return nil
}

func (m *memoryUsers) TelegramStats(_ context.Context, startOfDay, weekAgo time.Time) (domain.TelegramStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var stats domain.TelegramStats
	for _, u := range m.byID {
		stats.TotalUsers++
		if !u.IsTelegramLinked() {
			continue
		}
		stats.TelegramUsers++
		if !u.Telegram.LinkedAt.Before(startOfDay) {
			stats.LinkedToday++
		}
		if !u.Telegram.LinkedAt.Before(weekAgo) {
			stats.LinkedThisWeek++
		}
	}
	return stats, nil
}

type memoryPlans map[int64]*domain.Plan

func (m memoryPlans) GetByID(_ context.Context, id int64) (*domain.Plan, error) {
	if p, ok := m[id]; ok {
		return p, nil
	}
	return nil, domain.ErrNotFound
}

// memorySettings is a settings store holding at most one row.
type memorySettings struct {
	mu       sync.Mutex
	settings *domain.BotSettings
	err      error
	updates  int
}

func (m *memorySettings) Current(context.Context) (*domain.BotSettings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	if m.settings == nil {
		return nil, domain.ErrNotFound
	}
	s := *m.settings
	return &s, nil
}

func (m *memorySettings) Update(_ context.Context, patch domain.SettingsPatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.settings == nil {
		return domain.ErrNotFound
	}
	next := patch.Apply(*m.settings)
	m.settings = &next
	m.updates++
	return nil
}

// recordingDispatcher captures published events.
type recordingDispatcher struct {
	mu     sync.Mutex
	events []events.Event
}

func (d *recordingDispatcher) Publish(_ context.Context, event events.Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, event)
	return nil
}

func (d *recordingDispatcher) Subscribe(events.EventType, events.EventHandler) {}

func (d *recordingDispatcher) ofType(t events.EventType) []events.Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []events.Event
	for _, e := range d.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}
