package services

import (
	"context"

	"github.com/astropulse/astropulse/internal/datastore"
	"github.com/astropulse/astropulse/internal/models"
	"github.com/astropulse/astropulse/pkg/logger"
	"github.com/astropulse/astropulse/pkg/utils"
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// ChartService manages calculated charts.
type ChartService struct {
	charts *datastore.ChartRepository
	users  *datastore.UserRepository
	astro  ChartSource
	log    *logger.Logger
}

func NewChartService(charts *datastore.ChartRepository, users *datastore.UserRepository, source ChartSource, log *logger.Logger) *ChartService {
	return &ChartService{charts: charts, users: users, astro: source, log: log}
}

// EnsureNatal returns the user's natal chart, calculating and storing
// it on first use.
func (s *ChartService) EnsureNatal(ctx context.Context, userID uuid.UUID) (*models.Chart, error) {
	chart, err := s.charts.GetNatal(ctx, userID)
	if err != nil {
		return nil, err
	}
	if chart != nil {
		return chart, nil
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, utils.NewError(utils.CodeNotFound, "User not found")
	}
	if !user.Birth.Complete() {
		return nil, utils.NewError(utils.CodeValidation, "Complete your birth details before requesting a chart")
	}

	data, err := s.astro.CalculateChart(ctx, birthInput(user.Birth))
	if err != nil {
		return nil, err
	}

	chart = &models.Chart{
		UserID:    userID,
		ChartType: models.ChartNatal,
		Name:      "Natal chart",
		IsOwn:     true,
		Birth:     user.Birth,
		Planets:   datatypes.JSON(data.Planets),
		Houses:    datatypes.JSON(data.Houses),
		Dashas:    datatypes.JSON(data.Dashas),
	}
	if err := s.charts.Create(ctx, chart); err != nil {
		// Lost a create race; the winner's chart is the one to serve.
		if existing, getErr := s.charts.GetNatal(ctx, userID); getErr == nil && existing != nil {
			return existing, nil
		}
		return nil, err
	}
	return chart, nil
}

// Create calculates and stores a chart for arbitrary birth details,
// e.g. a family member's.
func (s *ChartService) Create(ctx context.Context, userID uuid.UUID, name string, birth models.BirthDetails) (*models.Chart, error) {
	if !birth.Complete() {
		return nil, utils.NewError(utils.CodeValidation, "Birth date, time and coordinates are required")
	}

	data, err := s.astro.CalculateChart(ctx, birthInput(birth))
	if err != nil {
		return nil, err
	}

	chart := &models.Chart{
		UserID:    userID,
		ChartType: models.ChartNatal,
		Name:      name,
		Birth:     birth,
		Planets:   datatypes.JSON(data.Planets),
		Houses:    datatypes.JSON(data.Houses),
		Dashas:    datatypes.JSON(data.Dashas),
	}
	if err := s.charts.Create(ctx, chart); err != nil {
		return nil, err
	}
	return chart, nil
}

// List returns the user's charts.
func (s *ChartService) List(ctx context.Context, userID uuid.UUID) ([]models.Chart, error) {
	return s.charts.List(ctx, userID)
}

// GetByID returns one owned chart.
func (s *ChartService) GetByID(ctx context.Context, userID, id uuid.UUID) (*models.Chart, error) {
	chart, err := s.charts.GetByID(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if chart == nil {
		return nil, utils.NewError(utils.CodeNotFound, "Chart not found")
	}
	return chart, nil
}

// Delete removes an owned chart.
func (s *ChartService) Delete(ctx context.Context, userID, id uuid.UUID) error {
	deleted, err := s.charts.Delete(ctx, id, userID)
	if err != nil {
		return err
	}
	if !deleted {
		return utils.NewError(utils.CodeNotFound, "Chart not found")
	}
	return nil
}
