package fraud

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dootan2020/deals-hub/backend/internal/entities"
)

// Rule thresholds. The scorer is deliberately a rule engine over rolling
// window counts, not a trained model.
const (
	loginWindow          = 24 * time.Hour
	loginVelocityWindow  = 10 * time.Minute
	failedPerEmailLimit  = 5
	failedPerIPLimit     = 10
	attemptVelocityLimit = 15

	riskScoreThreshold     = 40
	scoreAccountUnderDay   = 30
	scoreAccountUnderWeek  = 15
	scorePerFailedLogin    = 10
	scoreManyCountries     = 20
	countriesWindow        = 7 * 24 * time.Hour
	countriesLimit         = 2
	dailyPurchaseLimit     = 15
	largeAmountThreshold   = 500_000
	averageMultiplier      = 5
	averageAmountFloor     = 100_000
	averageWindow          = 30 * 24 * time.Hour
	burstWindow            = 5 * time.Minute
	burstPurchaseLimit     = 3
)

// EventStore is the slice of the security-event repository the scorer needs.
type EventStore interface {
	InsertEvent(ctx context.Context, e *entities.SecurityEvent) error
	CountEvents(ctx context.Context, f EventFilter) (int, error)
	DistinctCountries(ctx context.Context, userID int64, since time.Time) (int, error)
	AveragePurchaseAmount(ctx context.Context, userID int64, since time.Time) (float64, error)
	InsertAlert(ctx context.Context, alert *entities.SecurityAlert) error
}

// ProfileStore resolves account metadata for the age signal.
type ProfileStore interface {
	GetProfile(ctx context.Context, userID int64) (*entities.Profile, error)
}

// Notifier delivers best-effort admin notifications.
type Notifier interface {
	NotifyAdmin(ctx context.Context, notificationType, message string) error
}

// LoginVerdict carries the counts behind a login decision so alerts can
// record them.
type LoginVerdict struct {
	Suspicious     bool `json:"suspicious"`
	FailedForEmail int  `json:"failed_for_email"`
	FailedFromIP   int  `json:"failed_from_ip"`
	RecentAttempts int  `json:"recent_attempts"`
}

// PurchaseVerdict combines the weighted risk score with the independent flags.
type PurchaseVerdict struct {
	Suspicious bool     `json:"suspicious"`
	RiskScore  int      `json:"risk_score"`
	Flags      []string `json:"flags,omitempty"`
}

// Scorer classifies login and purchase events as suspicious. It is an
// advisory signal, never a hard gate: with FailOpen set (the default), any
// internal error yields "not suspicious" rather than blocking the user.
type Scorer struct {
	logger   *slog.Logger
	events   EventStore
	profiles ProfileStore
	notifier Notifier
	failOpen bool

	now func() time.Time
}

func NewScorer(logger *slog.Logger, events EventStore, profiles ProfileStore, notifier Notifier, failOpen bool) *Scorer {
	return &Scorer{
		logger:   logger,
		events:   events,
		profiles: profiles,
		notifier: notifier,
		failOpen: failOpen,
		now:      time.Now,
	}
}

// RecordLogin appends the login event and scores it. The insert is
// best-effort: a failed append must not block the login path.
func (s *Scorer) RecordLogin(ctx context.Context, event *entities.SecurityEvent) (LoginVerdict, error) {
	event.Type = entities.SecurityEventLogin
	if err := s.events.InsertEvent(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "Failed to record login event", "error", err, "email", event.Email)
	}
	return s.CheckLogin(ctx, event.UserID, event.Email, event.IPAddress)
}

// CheckLogin applies the OR-combined login thresholds.
func (s *Scorer) CheckLogin(ctx context.Context, userID *int64, email, ipAddress string) (LoginVerdict, error) {
	failed := false
	dayAgo := s.now().Add(-loginWindow)

	failedForEmail, err := s.events.CountEvents(ctx, EventFilter{
		Type:    entities.SecurityEventLogin,
		Email:   email,
		Success: &failed,
		Since:   dayAgo,
	})
	if err != nil {
		return s.loginFailure(ctx, err)
	}

	failedFromIP, err := s.events.CountEvents(ctx, EventFilter{
		Type:      entities.SecurityEventLogin,
		IPAddress: ipAddress,
		Success:   &failed,
		Since:     dayAgo,
	})
	if err != nil {
		return s.loginFailure(ctx, err)
	}

	recentAttempts, err := s.events.CountEvents(ctx, EventFilter{
		Type:  entities.SecurityEventLogin,
		Email: email,
		Since: s.now().Add(-loginVelocityWindow),
	})
	if err != nil {
		return s.loginFailure(ctx, err)
	}

	verdict := LoginVerdict{
		FailedForEmail: failedForEmail,
		FailedFromIP:   failedFromIP,
		RecentAttempts: recentAttempts,
	}
	verdict.Suspicious = failedForEmail >= failedPerEmailLimit ||
		failedFromIP >= failedPerIPLimit ||
		recentAttempts >= attemptVelocityLimit

	if verdict.Suspicious {
		alert := &entities.SecurityAlert{
			UserID:    userID,
			AlertType: entities.AlertTypeSuspiciousLogin,
			Details: fmt.Sprintf("email=%s failed_for_email=%d failed_from_ip=%d recent_attempts=%d",
				email, failedForEmail, failedFromIP, recentAttempts),
		}
		if err := s.events.InsertAlert(ctx, alert); err != nil {
			s.logger.ErrorContext(ctx, "Failed to persist login alert", "error", err, "email", email)
		}

		s.logger.WarnContext(ctx, "Suspicious login detected",
			"email", email,
			"failed_for_email", failedForEmail,
			"failed_from_ip", failedFromIP,
			"recent_attempts", recentAttempts)
	}

	return verdict, nil
}

// RecordPurchase appends a purchase event and scores it.
func (s *Scorer) RecordPurchase(ctx context.Context, event *entities.SecurityEvent) (PurchaseVerdict, error) {
	event.Type = entities.SecurityEventPurchase
	if err := s.events.InsertEvent(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "Failed to record purchase event", "error", err, "user_id", event.UserID)
	}

	if event.UserID == nil {
		return PurchaseVerdict{}, nil
	}
	return s.CheckPurchase(ctx, *event.UserID, event.Amount)
}

// CheckPurchase combines the weighted risk score with the independent
// volume/velocity/amount flags.
func (s *Scorer) CheckPurchase(ctx context.Context, userID int64, amount int64) (PurchaseVerdict, error) {
	now := s.now()

	score, err := s.purchaseRiskScore(ctx, userID, now)
	if err != nil {
		return s.purchaseFailure(ctx, err)
	}

	flags, err := s.purchaseFlags(ctx, userID, amount, now)
	if err != nil {
		return s.purchaseFailure(ctx, err)
	}

	verdict := PurchaseVerdict{
		RiskScore:  score,
		Flags:      flags,
		Suspicious: score >= riskScoreThreshold || len(flags) > 0,
	}

	if verdict.Suspicious {
		alert := &entities.SecurityAlert{
			UserID:    &userID,
			AlertType: entities.AlertTypeSuspiciousPurchase,
			Details:   fmt.Sprintf("amount=%d risk_score=%d flags=%v", amount, score, flags),
		}
		if err := s.events.InsertAlert(ctx, alert); err != nil {
			s.logger.ErrorContext(ctx, "Failed to persist purchase alert", "error", err, "user_id", userID)
		}

		if s.notifier != nil {
			msg := fmt.Sprintf("Suspicious purchase by user %d: amount=%d score=%d flags=%v", userID, amount, score, flags)
			if err := s.notifier.NotifyAdmin(ctx, entities.NotificationSuspiciousPurchase, msg); err != nil {
				s.logger.ErrorContext(ctx, "Failed to notify admin about purchase", "error", err, "user_id", userID)
			}
		}

		s.logger.WarnContext(ctx, "Suspicious purchase detected",
			"user_id", userID, "amount", amount, "risk_score", score, "flags", flags)
	}

	return verdict, nil
}

func (s *Scorer) purchaseRiskScore(ctx context.Context, userID int64, now time.Time) (int, error) {
	score := 0

	profile, err := s.profiles.GetProfile(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to load profile: %w", err)
	}
	if profile != nil {
		age := now.Sub(profile.CreatedAt)
		switch {
		case age < 24*time.Hour:
			score += scoreAccountUnderDay
		case age < 7*24*time.Hour:
			score += scoreAccountUnderWeek
		}
	}

	failed := false
	failedLogins, err := s.events.CountEvents(ctx, EventFilter{
		Type:    entities.SecurityEventLogin,
		UserID:  &userID,
		Success: &failed,
		Since:   now.Add(-loginWindow),
	})
	if err != nil {
		return 0, err
	}
	score += failedLogins * scorePerFailedLogin

	countries, err := s.events.DistinctCountries(ctx, userID, now.Add(-countriesWindow))
	if err != nil {
		return 0, err
	}
	if countries > countriesLimit {
		score += scoreManyCountries
	}

	return score, nil
}

func (s *Scorer) purchaseFlags(ctx context.Context, userID int64, amount int64, now time.Time) ([]string, error) {
	var flags []string
	succeeded := true

	daily, err := s.events.CountEvents(ctx, EventFilter{
		Type:    entities.SecurityEventPurchase,
		UserID:  &userID,
		Success: &succeeded,
		Since:   now.Truncate(24 * time.Hour),
	})
	if err != nil {
		return nil, err
	}
	if daily >= dailyPurchaseLimit {
		flags = append(flags, "daily_volume")
	}

	if amount >= largeAmountThreshold {
		flags = append(flags, "large_amount")
	}

	avg, err := s.events.AveragePurchaseAmount(ctx, userID, now.Add(-averageWindow))
	if err != nil {
		return nil, err
	}
	if avg > 0 && float64(amount) > averageMultiplier*avg && amount > averageAmountFloor {
		flags = append(flags, "above_average")
	}

	burst, err := s.events.CountEvents(ctx, EventFilter{
		Type:   entities.SecurityEventPurchase,
		UserID: &userID,
		Since:  now.Add(-burstWindow),
	})
	if err != nil {
		return nil, err
	}
	if burst >= burstPurchaseLimit {
		flags = append(flags, "burst")
	}

	return flags, nil
}

func (s *Scorer) loginFailure(ctx context.Context, err error) (LoginVerdict, error) {
	if s.failOpen {
		s.logger.ErrorContext(ctx, "Login scoring failed, failing open", "error", err)
		return LoginVerdict{}, nil
	}
	return LoginVerdict{}, fmt.Errorf("login scoring failed: %w", err)
}

func (s *Scorer) purchaseFailure(ctx context.Context, err error) (PurchaseVerdict, error) {
	if s.failOpen {
		s.logger.ErrorContext(ctx, "Purchase scoring failed, failing open", "error", err)
		return PurchaseVerdict{}, nil
	}
	return PurchaseVerdict{}, fmt.Errorf("purchase scoring failed: %w", err)
}
