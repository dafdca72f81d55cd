package services

import (
	"context"
	"fmt"

	"github.com/astropulse/astropulse/internal/datastore"
	"github.com/astropulse/astropulse/internal/llm"
	"github.com/astropulse/astropulse/internal/models"
	"github.com/astropulse/astropulse/pkg/logger"
	"github.com/astropulse/astropulse/pkg/utils"
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// CompatibilityService matches the user against a partner's chart.
type CompatibilityService struct {
	reports *datastore.CompatibilityRepository
	users   *datastore.UserRepository
	astro   KutaSource
	llm     llm.Client
	log     *logger.Logger
}

func NewCompatibilityService(reports *datastore.CompatibilityRepository, users *datastore.UserRepository, source KutaSource, llmClient llm.Client, log *logger.Logger) *CompatibilityService {
	return &CompatibilityService{reports: reports, users: users, astro: source, llm: llmClient, log: log}
}

// Match scores the user against a partner and stores the report. The
// kuta breakdown comes from the astro backend; the narrative summary is
// rewritten by the astrologer persona when the model cooperates.
func (s *CompatibilityService) Match(ctx context.Context, userID uuid.UUID, partnerName string, partner models.BirthDetails) (*models.CompatibilityReport, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, utils.NewError(utils.CodeNotFound, "User not found")
	}
	if !user.Birth.Complete() {
		return nil, utils.NewError(utils.CodeValidation, "Complete your birth details before matching")
	}
	if !partner.Complete() {
		return nil, utils.NewError(utils.CodeValidation, "Partner birth date, time and coordinates are required")
	}

	kuta, err := s.astro.MatchKuta(ctx, birthInput(user.Birth), birthInput(partner))
	if err != nil {
		return nil, err
	}

	summary := kuta.Summary
	prompt := fmt.Sprintf(
		"Write a short compatibility summary (3-4 sentences) for %s and %s. Their kuta match scored %.1f out of %.1f. Raw breakdown: %s",
		user.Name, partnerName, kuta.TotalScore, kuta.MaxScore, string(kuta.Kutas),
	)
	if rewritten, err := s.llm.Complete(ctx, llm.AstrologerPersona, prompt); err != nil {
		s.log.Warn(ctx).WithFields("error", err, "user_id", userID).Logs("compatibility summary rewrite failed, keeping backend summary")
	} else if rewritten != "" {
		summary = rewritten
	}

	report := &models.CompatibilityReport{
		UserID:       userID,
		PartnerName:  partnerName,
		PartnerBirth: partner,
		Kutas:        datatypes.JSON(kuta.Kutas),
		TotalScore:   kuta.TotalScore,
		MaxScore:     kuta.MaxScore,
		Summary:      summary,
	}
	if err := s.reports.Create(ctx, report); err != nil {
		return nil, err
	}
	return report, nil
}

// List returns the user's reports, newest first.
func (s *CompatibilityService) List(ctx context.Context, userID uuid.UUID) ([]models.CompatibilityReport, error) {
	return s.reports.List(ctx, userID)
}

// GetByID returns one owned report.
func (s *CompatibilityService) GetByID(ctx context.Context, userID, id uuid.UUID) (*models.CompatibilityReport, error) {
	report, err := s.reports.GetByID(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if report == nil {
		return nil, utils.NewError(utils.CodeNotFound, "Report not found")
	}
	return report, nil
}

// Delete removes an owned report.
func (s *CompatibilityService) Delete(ctx context.Context, userID, id uuid.UUID) error {
	deleted, err := s.reports.Delete(ctx, id, userID)
	if err != nil {
		return err
	}
	if !deleted {
		return utils.NewError(utils.CodeNotFound, "Report not found")
	}
	return nil
}
