package fraud

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dootan2020/deals-hub/backend/internal/entities"
)

type fakeEventStore struct {
	events    []entities.SecurityEvent
	alerts    []entities.SecurityAlert
	countries int
	average   float64
	err       error
}

func (f *fakeEventStore) InsertEvent(_ context.Context, e *entities.SecurityEvent) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, *e)
	return nil
}

func (f *fakeEventStore) CountEvents(_ context.Context, filter EventFilter) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	count := 0
	for _, e := range f.events {
		if filter.Type != "" && e.Type != filter.Type {
			continue
		}
		if filter.Email != "" && e.Email != filter.Email {
			continue
		}
		if filter.IPAddress != "" && e.IPAddress != filter.IPAddress {
			continue
		}
		if filter.UserID != nil && (e.UserID == nil || *e.UserID != *filter.UserID) {
			continue
		}
		if filter.Success != nil && e.Success != *filter.Success {
			continue
		}
		if !filter.Since.IsZero() && e.CreatedAt.Before(filter.Since) {
			continue
		}
		count++
	}
	return count, nil
}

func (f *fakeEventStore) DistinctCountries(context.Context, int64, time.Time) (int, error) {
	return f.countries, f.err
}

func (f *fakeEventStore) AveragePurchaseAmount(context.Context, int64, time.Time) (float64, error) {
	return f.average, f.err
}

func (f *fakeEventStore) InsertAlert(_ context.Context, alert *entities.SecurityAlert) error {
	f.alerts = append(f.alerts, *alert)
	return nil
}

type fakeProfileStore struct {
	profile *entities.Profile
	err     error
}

func (f *fakeProfileStore) GetProfile(context.Context, int64) (*entities.Profile, error) {
	return f.profile, f.err
}

type fakeNotifier struct {
	messages []string
}

func (f *fakeNotifier) NotifyAdmin(_ context.Context, _, message string) error {
	f.messages = append(f.messages, message)
	return nil
}

func newTestScorer(events *fakeEventStore, profiles *fakeProfileStore, notifier *fakeNotifier, failOpen bool, now time.Time) *Scorer {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	var n Notifier
	if notifier != nil {
		n = notifier
	}
	s := NewScorer(logger, events, profiles, n, failOpen)
	s.now = func() time.Time { return now }
	return s
}

func failedLogins(email, ip string, count int, at time.Time) []entities.SecurityEvent {
	events := make([]entities.SecurityEvent, 0, count)
	for i := 0; i < count; i++ {
		events = append(events, entities.SecurityEvent{
			Type:      entities.SecurityEventLogin,
			Email:     email,
			IPAddress: ip,
			Success:   false,
			CreatedAt: at,
		})
	}
	return events
}

func loginEvents(email, ip string, count int, success bool, at time.Time) []entities.SecurityEvent {
	events := make([]entities.SecurityEvent, 0, count)
	for i := 0; i < count; i++ {
		events = append(events, entities.SecurityEvent{
			Type:      entities.SecurityEventLogin,
			Email:     email,
			IPAddress: ip,
			Success:   success,
			CreatedAt: at,
		})
	}
	return events
}

func purchaseEvents(userID int64, count int, success bool, at time.Time) []entities.SecurityEvent {
	events := make([]entities.SecurityEvent, 0, count)
	for i := 0; i < count; i++ {
		events = append(events, entities.SecurityEvent{
			Type:      entities.SecurityEventPurchase,
			UserID:    &userID,
			Success:   success,
			Amount:    10_000,
			CreatedAt: at,
		})
	}
	return events
}

func TestCheckLoginFlagsRepeatedFailures(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	events := &fakeEventStore{events: failedLogins("bob@example.com", "1.2.3.4", 5, now.Add(-time.Hour))}
	scorer := newTestScorer(events, &fakeProfileStore{}, nil, true, now)

	verdict, err := scorer.CheckLogin(context.Background(), nil, "bob@example.com", "9.9.9.9")
	require.NoError(t, err)
	require.True(t, verdict.Suspicious)
	require.Equal(t, 5, verdict.FailedForEmail)

	require.Len(t, events.alerts, 1)
	require.Equal(t, entities.AlertTypeSuspiciousLogin, events.alerts[0].AlertType)
}

func TestCheckLoginFewFailuresIsClean(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	events := &fakeEventStore{events: failedLogins("bob@example.com", "1.2.3.4", 2, now.Add(-time.Hour))}
	scorer := newTestScorer(events, &fakeProfileStore{}, nil, true, now)

	verdict, err := scorer.CheckLogin(context.Background(), nil, "bob@example.com", "9.9.9.9")
	require.NoError(t, err)
	require.False(t, verdict.Suspicious)
	require.Empty(t, events.alerts)
}

func TestCheckLoginIgnoresFailuresOutsideWindow(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	events := &fakeEventStore{events: failedLogins("bob@example.com", "1.2.3.4", 10, now.Add(-48*time.Hour))}
	scorer := newTestScorer(events, &fakeProfileStore{}, nil, true, now)

	verdict, err := scorer.CheckLogin(context.Background(), nil, "bob@example.com", "9.9.9.9")
	require.NoError(t, err)
	require.False(t, verdict.Suspicious)
	require.Equal(t, 0, verdict.FailedForEmail)
}

func TestCheckLoginIPAndVelocityThresholds(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		events     []entities.SecurityEvent
		email      string
		ip         string
		suspicious bool
	}{
		{
			// Ten failures from one address trip the IP threshold even when
			// every attempt used a different email.
			name:       "ten failures from one ip",
			events:     failedLogins("other@example.com", "1.2.3.4", 10, now.Add(-time.Hour)),
			email:      "target@example.com",
			ip:         "1.2.3.4",
			suspicious: true,
		},
		{
			name:       "nine failures from one ip is clean",
			events:     failedLogins("other@example.com", "1.2.3.4", 9, now.Add(-time.Hour)),
			email:      "target@example.com",
			ip:         "1.2.3.4",
			suspicious: false,
		},
		{
			// Fifteen attempts in ten minutes trip the velocity threshold
			// regardless of whether the attempts succeeded.
			name:       "fifteen attempts in ten minutes",
			events:     loginEvents("target@example.com", "1.2.3.4", 15, true, now.Add(-5*time.Minute)),
			email:      "target@example.com",
			ip:         "9.9.9.9",
			suspicious: true,
		},
		{
			name:       "fourteen attempts in ten minutes is clean",
			events:     loginEvents("target@example.com", "1.2.3.4", 14, true, now.Add(-5*time.Minute)),
			email:      "target@example.com",
			ip:         "9.9.9.9",
			suspicious: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events := &fakeEventStore{events: tt.events}
			scorer := newTestScorer(events, &fakeProfileStore{}, nil, true, now)

			verdict, err := scorer.CheckLogin(context.Background(), nil, tt.email, tt.ip)
			require.NoError(t, err)
			require.Equal(t, tt.suspicious, verdict.Suspicious)
			if tt.suspicious {
				require.Len(t, events.alerts, 1)
			} else {
				require.Empty(t, events.alerts)
			}
		})
	}
}

func TestCheckPurchaseVolumeAndBurstFlags(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	userID := int64(7)

	tests := []struct {
		name     string
		events   []entities.SecurityEvent
		wantFlag string
	}{
		{
			name:     "fifteen purchases today",
			events:   purchaseEvents(userID, 15, true, now.Add(-2*time.Hour)),
			wantFlag: "daily_volume",
		},
		{
			name:   "fourteen purchases today is clean",
			events: purchaseEvents(userID, 14, true, now.Add(-2*time.Hour)),
		},
		{
			// Burst counts any purchase attempt, successful or not.
			name:     "three purchases in five minutes",
			events:   purchaseEvents(userID, 3, false, now.Add(-time.Minute)),
			wantFlag: "burst",
		},
		{
			name:   "two purchases in five minutes is clean",
			events: purchaseEvents(userID, 2, false, now.Add(-time.Minute)),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events := &fakeEventStore{events: tt.events}
			profiles := &fakeProfileStore{profile: &entities.Profile{
				UserID:    userID,
				CreatedAt: now.Add(-90 * 24 * time.Hour),
			}}
			scorer := newTestScorer(events, profiles, nil, true, now)

			verdict, err := scorer.CheckPurchase(context.Background(), userID, 10_000)
			require.NoError(t, err)
			if tt.wantFlag == "" {
				require.False(t, verdict.Suspicious)
				require.Empty(t, verdict.Flags)
				return
			}
			require.True(t, verdict.Suspicious)
			require.Equal(t, []string{tt.wantFlag}, verdict.Flags)
		})
	}
}

func TestRecordLoginAppendsEvent(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	events := &fakeEventStore{}
	scorer := newTestScorer(events, &fakeProfileStore{}, nil, true, now)

	_, err := scorer.RecordLogin(context.Background(), &entities.SecurityEvent{
		Email:     "bob@example.com",
		IPAddress: "1.2.3.4",
		Success:   true,
	})
	require.NoError(t, err)
	require.Len(t, events.events, 1)
	require.Equal(t, entities.SecurityEventLogin, events.events[0].Type)
}

func TestCheckPurchaseYoungAccountWithFailedLogins(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	userID := int64(7)

	events := &fakeEventStore{}
	for _, e := range failedLogins("bob@example.com", "1.2.3.4", 2, now.Add(-time.Hour)) {
		e.UserID = &userID
		events.events = append(events.events, e)
	}
	profiles := &fakeProfileStore{profile: &entities.Profile{
		UserID:    userID,
		Email:     "bob@example.com",
		CreatedAt: now.Add(-2 * time.Hour),
	}}
	notifier := &fakeNotifier{}
	scorer := newTestScorer(events, profiles, notifier, true, now)

	// Account under a day old (30) plus two failed logins (20) crosses the
	// score threshold without any flags.
	verdict, err := scorer.CheckPurchase(context.Background(), userID, 10_000)
	require.NoError(t, err)
	require.True(t, verdict.Suspicious)
	require.Equal(t, 50, verdict.RiskScore)
	require.Empty(t, verdict.Flags)

	require.Len(t, events.alerts, 1)
	require.Equal(t, entities.AlertTypeSuspiciousPurchase, events.alerts[0].AlertType)
	require.Len(t, notifier.messages, 1)
}

func TestCheckPurchaseLargeAmountFlag(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	userID := int64(7)
	profiles := &fakeProfileStore{profile: &entities.Profile{
		UserID:    userID,
		CreatedAt: now.Add(-90 * 24 * time.Hour),
	}}
	events := &fakeEventStore{}
	scorer := newTestScorer(events, profiles, nil, true, now)

	verdict, err := scorer.CheckPurchase(context.Background(), userID, 600_000)
	require.NoError(t, err)
	require.True(t, verdict.Suspicious)
	require.Contains(t, verdict.Flags, "large_amount")
}

func TestCheckPurchaseAboveAverageFlag(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	userID := int64(7)
	profiles := &fakeProfileStore{profile: &entities.Profile{
		UserID:    userID,
		CreatedAt: now.Add(-90 * 24 * time.Hour),
	}}
	events := &fakeEventStore{average: 30_000}
	scorer := newTestScorer(events, profiles, nil, true, now)

	verdict, err := scorer.CheckPurchase(context.Background(), userID, 200_000)
	require.NoError(t, err)
	require.True(t, verdict.Suspicious)
	require.Contains(t, verdict.Flags, "above_average")
}

func TestCheckPurchaseCleanHistory(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	userID := int64(7)
	profiles := &fakeProfileStore{profile: &entities.Profile{
		UserID:    userID,
		CreatedAt: now.Add(-90 * 24 * time.Hour),
	}}
	events := &fakeEventStore{average: 20_000}
	scorer := newTestScorer(events, profiles, nil, true, now)

	verdict, err := scorer.CheckPurchase(context.Background(), userID, 25_000)
	require.NoError(t, err)
	require.False(t, verdict.Suspicious)
	require.Zero(t, verdict.RiskScore)
	require.Empty(t, verdict.Flags)
	require.Empty(t, events.alerts)
}

func TestCheckPurchaseFailOpen(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	events := &fakeEventStore{err: errors.New("db down")}
	profiles := &fakeProfileStore{err: errors.New("db down")}

	open := newTestScorer(events, profiles, nil, true, now)
	verdict, err := open.CheckPurchase(context.Background(), 7, 25_000)
	require.NoError(t, err)
	require.False(t, verdict.Suspicious)

	closed := newTestScorer(events, profiles, nil, false, now)
	_, err = closed.CheckPurchase(context.Background(), 7, 25_000)
	require.Error(t, err)
}
