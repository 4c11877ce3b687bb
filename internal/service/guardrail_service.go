package service

import (
	"context"
	"fmt"
	"time"

	"loyalty-ledger/config"
	"loyalty-ledger/internal/core/domain"
	"loyalty-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// GuardrailServiceImpl implements ports.GuardrailService. Checks run in a
// fixed order against the activity tracker; the first violation rejects the
// candidate. Tracker failures never block an operation: the check is skipped,
// logged, and filed as a VALIDATION_ERROR record for later review.
type GuardrailServiceImpl struct {
	tracker    ports.ActivityTracker
	suspicious ports.SuspiciousActivityRepository
	settings   *config.SettingsStore
	log        zerolog.Logger
	now        func() time.Time
}

// NewGuardrailService creates a new GuardrailServiceImpl.
func NewGuardrailService(
	tracker ports.ActivityTracker,
	suspicious ports.SuspiciousActivityRepository,
	settings *config.SettingsStore,
	log zerolog.Logger,
) *GuardrailServiceImpl {
	return &GuardrailServiceImpl{
		tracker:    tracker,
		suspicious: suspicious,
		settings:   settings,
		log:        log,
		now:        time.Now,
	}
}

// Evaluate runs the guardrail checks against the candidate. Accepted
// candidates are recorded in the tracker immediately, so a burst of
// submissions sees each predecessor.
func (s *GuardrailServiceImpl) Evaluate(ctx context.Context, candidate domain.Candidate) domain.Verdict {
	cfg := s.settings.Current()
	now := s.now()

	checks := []func(context.Context, domain.Candidate, config.GuardrailSettings, time.Time) *domain.Verdict{
		s.checkCooldown,
		s.checkWeeklyLimit,
		s.checkGeoAnomaly,
		s.checkBusinessHours,
		s.checkDevices,
	}
	for _, check := range checks {
		if verdict := check(ctx, candidate, cfg, now); verdict != nil {
			s.recordSuspicious(ctx, candidate, verdict.Category, verdict.Reason)
			s.log.Warn().
				Str("actor_id", candidate.ActorID).
				Str("category", string(verdict.Category)).
				Str("reason", verdict.Reason).
				Msg("guardrail rejected operation")
			return *verdict
		}
	}

	if err := s.tracker.Observe(ctx, candidate, now); err != nil {
		// Losing one observation widens the window slightly; it must not
		// block the operation itself.
		s.log.Error().Err(err).Str("actor_id", candidate.ActorID).
			Msg("failed to record guardrail observation")
	}
	return domain.Accept()
}

func (s *GuardrailServiceImpl) checkCooldown(ctx context.Context, candidate domain.Candidate, cfg config.GuardrailSettings, now time.Time) *domain.Verdict {
	if cfg.CooldownMinutes <= 0 {
		return nil
	}
	last, err := s.tracker.LastActivity(ctx, candidate.ActorID, candidate.OperationType)
	if err != nil {
		s.failOpen(ctx, candidate, "cooldown", err)
		return nil
	}
	if last == nil {
		return nil
	}
	cooldown := time.Duration(cfg.CooldownMinutes) * time.Minute
	if elapsed := now.Sub(*last); elapsed < cooldown {
		v := domain.Reject(domain.SuspiciousRateLimit,
			fmt.Sprintf("operation attempted %s after the previous one, cooldown is %s",
				elapsed.Round(time.Second), cooldown))
		return &v
	}
	return nil
}

func (s *GuardrailServiceImpl) checkWeeklyLimit(ctx context.Context, candidate domain.Candidate, cfg config.GuardrailSettings, _ time.Time) *domain.Verdict {
	if cfg.LimitsPerWeek <= 0 || candidate.DNI == "" {
		return nil
	}
	count, err := s.tracker.WeeklyCount(ctx, candidate.DNI, candidate.OperationType)
	if err != nil {
		s.failOpen(ctx, candidate, "weekly limit", err)
		return nil
	}
	if count >= int64(cfg.LimitsPerWeek) {
		v := domain.Reject(domain.SuspiciousRateLimit,
			fmt.Sprintf("weekly limit of %d operations reached", cfg.LimitsPerWeek))
		return &v
	}
	return nil
}

func (s *GuardrailServiceImpl) checkGeoAnomaly(ctx context.Context, candidate domain.Candidate, cfg config.GuardrailSettings, now time.Time) *domain.Verdict {
	if candidate.Location == nil {
		return nil
	}
	last, err := s.tracker.LastLocation(ctx, candidate.ActorID)
	if err != nil {
		s.failOpen(ctx, candidate, "geo anomaly", err)
		return nil
	}
	if last == nil {
		return nil
	}

	// Only a sample from the trailing hour is conclusive; a long jump after
	// a long gap is ordinary travel.
	elapsed := now.Sub(last.At)
	if elapsed <= 0 || elapsed > time.Hour {
		return nil
	}

	distance := candidate.Location.DistanceKm(last.Point)
	speed := distance / elapsed.Hours()
	if cfg.MaxDistanceKm > 0 && distance > cfg.MaxDistanceKm &&
		cfg.MaxSpeedKmh > 0 && speed > cfg.MaxSpeedKmh {
		v := domain.Reject(domain.SuspiciousGeoAnomaly,
			fmt.Sprintf("location jumped %.0f km at an implied %.0f km/h", distance, speed))
		return &v
	}
	return nil
}

// checkBusinessHours applies to redemptions only: a weekend or an hour
// outside the configured window rejects in strict mode, otherwise the
// operation proceeds and leaves a suspicious-activity record.
func (s *GuardrailServiceImpl) checkBusinessHours(ctx context.Context, candidate domain.Candidate, cfg config.GuardrailSettings, now time.Time) *domain.Verdict {
	if !cfg.EnforceBusinessHours || candidate.OperationType != domain.EntryTypeRedemption {
		return nil
	}
	weekday := now.Weekday()
	weekend := weekday == time.Saturday || weekday == time.Sunday
	hour := now.Hour()
	if !weekend && hour >= cfg.BusinessHoursStart && hour < cfg.BusinessHoursEnd {
		return nil
	}
	var reason string
	if weekend {
		reason = fmt.Sprintf("redemption on a %s, business hours are weekdays %02d:00-%02d:00",
			weekday, cfg.BusinessHoursStart, cfg.BusinessHoursEnd)
	} else {
		reason = fmt.Sprintf("redemption at %02d:00, business hours are weekdays %02d:00-%02d:00",
			hour, cfg.BusinessHoursStart, cfg.BusinessHoursEnd)
	}
	if cfg.StrictBusinessHours {
		v := domain.Reject(domain.SuspiciousOutOfHours, reason)
		return &v
	}
	s.recordSuspicious(ctx, candidate, domain.SuspiciousOutOfHours, reason)
	s.log.Warn().Str("actor_id", candidate.ActorID).Msg("operation outside business hours")
	return nil
}

// checkDevices rejects an unseen device when admitting it would bring the
// actor's distinct-device count up to the cap. Known devices always pass.
// When blocking is disabled the excess device is only recorded.
func (s *GuardrailServiceImpl) checkDevices(ctx context.Context, candidate domain.Candidate, cfg config.GuardrailSettings, _ time.Time) *domain.Verdict {
	if cfg.MaxDevicesPerUser <= 0 || candidate.DeviceID == "" {
		return nil
	}
	known, err := s.tracker.IsKnownDevice(ctx, candidate.ActorID, candidate.DeviceID)
	if err != nil {
		s.failOpen(ctx, candidate, "device check", err)
		return nil
	}
	if known {
		return nil
	}
	count, err := s.tracker.DeviceCount(ctx, candidate.ActorID)
	if err != nil {
		s.failOpen(ctx, candidate, "device check", err)
		return nil
	}
	if count+1 < int64(cfg.MaxDevicesPerUser) {
		return nil
	}
	reason := fmt.Sprintf("new device would reach the limit of %d per user", cfg.MaxDevicesPerUser)
	if cfg.BlockMultipleDevices {
		v := domain.Reject(domain.SuspiciousMultiDevice, reason)
		return &v
	}
	s.recordSuspicious(ctx, candidate, domain.SuspiciousMultiDevice, reason)
	return nil
}

// failOpen logs a tracker failure and files it for review without affecting
// the verdict.
func (s *GuardrailServiceImpl) failOpen(ctx context.Context, candidate domain.Candidate, check string, err error) {
	s.log.Error().Err(err).
		Str("actor_id", candidate.ActorID).
		Str("check", check).
		Msg("guardrail check skipped, tracker unavailable")
	s.recordSuspicious(ctx, candidate, domain.SuspiciousValidationError,
		fmt.Sprintf("%s check skipped: %v", check, err))
}

func (s *GuardrailServiceImpl) recordSuspicious(ctx context.Context, candidate domain.Candidate, category domain.SuspiciousCategory, details string) {
	record := &domain.SuspiciousActivityRecord{
		ID:               uuid.New(),
		UserID:           candidate.ActorID,
		Category:         category,
		Details:          details,
		RelatedOperation: string(candidate.OperationType),
		CreatedAt:        s.now().UTC(),
	}
	if err := s.suspicious.Create(ctx, record); err != nil {
		s.log.Error().Err(err).Str("category", string(category)).
			Msg("failed to persist suspicious activity record")
	}
}
