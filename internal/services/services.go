// Package services holds the business logic between the HTTP handlers
// and the repositories. Each service owns one domain surface and
// depends on the narrowest slice of the astro and LLM clients it needs.
package services

import (
	"context"

	"github.com/astropulse/astropulse/internal/astro"
	"github.com/astropulse/astropulse/internal/models"
)

// TransitSource is the slice of the astro client reading generation needs.
type TransitSource interface {
	CurrentTransits(ctx context.Context, birth astro.BirthInput, date string) (*astro.TransitData, error)
}

// ChartSource is the slice of the astro client chart management needs.
type ChartSource interface {
	CalculateChart(ctx context.Context, birth astro.BirthInput) (*astro.ChartData, error)
}

// KutaSource is the slice of the astro client compatibility matching needs.
type KutaSource interface {
	MatchKuta(ctx context.Context, a, b astro.BirthInput) (*astro.KutaResult, error)
}

func birthInput(b models.BirthDetails) astro.BirthInput {
	return astro.BirthInput{
		Date:      b.BirthDate,
		Time:      b.BirthTime,
		Latitude:  b.Latitude,
		Longitude: b.Longitude,
		Timezone:  b.Timezone,
	}
}
