package services

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/votehub-backend/internal/domain"
)

// DemographicsRepo defines the repository contract required by DemographicsService.
type DemographicsRepo interface {
	// ListVoterDemographics returns the demographic rows of the topic's voters,
	// grouped by profile with the earliest row first.
	ListVoterDemographics(ctx context.Context, db *gorm.DB, topicID string) ([]domain.ProfileDemographics, error)
}

// DemographicsService joins a topic's voters to their demographic profiles.
type DemographicsService struct {
	DB   *gorm.DB
	Repo DemographicsRepo
}

// NewDemographicsService constructs a DemographicsService.
func NewDemographicsService(db *gorm.DB, r DemographicsRepo) *DemographicsService {
	return &DemographicsService{DB: db, Repo: r}
}

// Breakdown counts the voters of topicID per age range, gender and country.
// Each voter counts once, using their earliest demographics row; voters
// without one are skipped.
//
// A failed lookup returns empty maps together with an error wrapping
// ErrDemographicsUnavailable, so callers can tell "nobody shared data" apart
// from "could not read the data".
func (s *DemographicsService) Breakdown(ctx context.Context, topicID string) (domain.DemographicBreakdown, error) {
	tr := otel.Tracer("services/DemographicsService")
	ctx, span := tr.Start(ctx, "Breakdown",
		trace.WithAttributes(attribute.String("topic.id", topicID)),
	)
	defer span.End()

	out := domain.NewDemographicBreakdown()
	rows, err := s.Repo.ListVoterDemographics(ctx, s.DB, topicID)
	if err != nil {
		span.RecordError(err)
		return out, fmt.Errorf("%w: %w", ErrDemographicsUnavailable, err)
	}

	seen := make(map[string]struct{}, len(rows))
	for _, r := range rows {
		if _, dup := seen[r.ProfileID]; dup {
			continue
		}
		seen[r.ProfileID] = struct{}{}
		out.Add(r)
	}
	span.SetAttributes(attribute.Int("voters.with_demographics", len(seen)))
	return out, nil
}
