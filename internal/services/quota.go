package services

import (
	"context"
	"time"

	"github.com/astropulse/astropulse/internal/datastore"
	"github.com/astropulse/astropulse/internal/models"
	"github.com/astropulse/astropulse/pkg/logger"
	"github.com/astropulse/astropulse/pkg/utils"
	"github.com/google/uuid"
)

// QuotaService enforces per-period generation limits. The nightly batch
// job is the authority for resets; Check falls back to a lazy reset for
// users the job has not reached yet.
type QuotaService struct {
	ents         *datastore.EntitlementRepository
	freeLimit    int
	premiumLimit int
	period       time.Duration
	log          *logger.Logger
	now          func() time.Time
}

func NewQuotaService(ents *datastore.EntitlementRepository, freeLimit, premiumLimit int, period time.Duration, log *logger.Logger) *QuotaService {
	return &QuotaService{
		ents:         ents,
		freeLimit:    freeLimit,
		premiumLimit: premiumLimit,
		period:       period,
		log:          log,
		now:          time.Now,
	}
}

// QuotaStatus is the quota view returned to clients.
type QuotaStatus struct {
	Plan      models.Plan `json:"plan"`
	Used      int         `json:"used"`
	Limit     int         `json:"limit"`
	Remaining int         `json:"remaining"`
	ResetsAt  time.Time   `json:"resets_at"`
}

func (s *QuotaService) limitFor(plan models.Plan) int {
	if plan == models.PlanPremium {
		return s.premiumLimit
	}
	return s.freeLimit
}

func (s *QuotaService) current(ctx context.Context, userID uuid.UUID) (*models.Entitlement, error) {
	now := s.now().UTC()
	ent, err := s.ents.GetOrCreate(ctx, userID, models.PlanFree, s.freeLimit, now.Add(s.period))
	if err != nil {
		return nil, err
	}
	if !ent.PeriodResetAt.After(now) {
		resetAt := now.Add(s.period)
		if err := s.ents.Reset(ctx, userID, resetAt); err != nil {
			return nil, err
		}
		ent.RequestsUsed = 0
		ent.PeriodResetAt = resetAt
	}
	return ent, nil
}

// Check returns the user's entitlement, or a QUOTA_EXCEEDED error with
// usage details when the period's budget is spent.
func (s *QuotaService) Check(ctx context.Context, userID uuid.UUID) (*models.Entitlement, error) {
	ent, err := s.current(ctx, userID)
	if err != nil {
		return nil, err
	}
	if ent.Exhausted() {
		return nil, utils.NewError(utils.CodeQuotaExceeded, "Generation quota exceeded", map[string]interface{}{
			"used":      ent.RequestsUsed,
			"limit":     ent.RequestsLimit,
			"resets_at": ent.PeriodResetAt.UTC().Format(time.RFC3339),
		})
	}
	return ent, nil
}

// Consume records one generation against the user's quota.
func (s *QuotaService) Consume(ctx context.Context, userID uuid.UUID) error {
	return s.ents.Increment(ctx, userID)
}

// Status reports the user's current usage.
func (s *QuotaService) Status(ctx context.Context, userID uuid.UUID) (*QuotaStatus, error) {
	ent, err := s.current(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &QuotaStatus{
		Plan:      ent.Plan,
		Used:      ent.RequestsUsed,
		Limit:     ent.RequestsLimit,
		Remaining: ent.Remaining(),
		ResetsAt:  ent.PeriodResetAt.UTC(),
	}, nil
}

// SetPlan switches a user's tier, adjusting the limit to the tier's default.
func (s *QuotaService) SetPlan(ctx context.Context, userID uuid.UUID, plan models.Plan) error {
	if plan != models.PlanFree && plan != models.PlanPremium {
		return utils.NewError(utils.CodeValidation, "Plan must be free or premium")
	}
	if _, err := s.current(ctx, userID); err != nil {
		return err
	}
	return s.ents.SetPlan(ctx, userID, plan, s.limitFor(plan))
}
