// Package services – ResultsService
//
// This file implements the results cache. Each topic has at most one
// VoteResultsCache row holding the aggregate of all votes, the aggregate of
// verified votes only and a demographic breakdown. Rows are served while they
// are at most ResultsFreshness old; older rows, missing rows and forced
// requests trigger a full recomputation that replaces the row.
//
// Observability: Get and Recalculate are OpenTelemetry-instrumented and feed
// the votehub_results_* Prometheus collectors.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/tbourn/votehub-backend/internal/domain"
)

// ResultsFreshness is how long a cached result is served before it is
// recomputed on the next read.
const ResultsFreshness = 60 * time.Second

// ResultsRepo defines the repository contract required by ResultsService.
type ResultsRepo interface {
	// GetTopic fetches a topic with its vote type preloaded.
	GetTopic(ctx context.Context, db *gorm.DB, id string) (*domain.Topic, error)

	// ListTopicVotes returns a topic's votes in cast order.
	ListTopicVotes(ctx context.Context, db *gorm.DB, topicID string, verifiedOnly bool) ([]domain.Vote, error)

	// GetResultsCache returns the cached row of a topic.
	GetResultsCache(ctx context.Context, db *gorm.DB, topicID string) (*domain.VoteResultsCache, error)

	// UpsertResultsCache replaces the cached row of a topic.
	UpsertResultsCache(ctx context.Context, db *gorm.DB, row *domain.VoteResultsCache) (*domain.VoteResultsCache, error)
}

// DemographicsJoiner produces the demographic breakdown of a topic's voters.
type DemographicsJoiner interface {
	Breakdown(ctx context.Context, topicID string) (domain.DemographicBreakdown, error)
}

// ResultsService serves and maintains the per-topic results cache.
type ResultsService struct {
	DB           *gorm.DB
	Repo         ResultsRepo
	Demographics DemographicsJoiner

	// Now returns the current time; defaults to time.Now.
	Now func() time.Time
}

// NewResultsService constructs a ResultsService.
func NewResultsService(db *gorm.DB, r ResultsRepo, d DemographicsJoiner) *ResultsService {
	return &ResultsService{DB: db, Repo: r, Demographics: d, Now: time.Now}
}

func (s *ResultsService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// Get returns the results of topicID. A cached row is returned as is while
// now - last_calculated <= ResultsFreshness; otherwise, or when force is set,
// the results are recomputed and stored first.
func (s *ResultsService) Get(ctx context.Context, topicID string, force bool) (*domain.VoteResultsCache, error) {
	tr := otel.Tracer("services/ResultsService")
	ctx, span := tr.Start(ctx, "Get",
		trace.WithAttributes(
			attribute.String("topic.id", topicID),
			attribute.Bool("force", force),
		),
	)
	defer span.End()

	outcome := outcomeForced
	if !force {
		cached, err := s.Repo.GetResultsCache(ctx, s.DB, topicID)
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			outcome = outcomeMiss
		case err != nil:
			return nil, err
		case s.now().Sub(cached.LastCalculated) > ResultsFreshness:
			outcome = outcomeStale
		default:
			resultsRequests.WithLabelValues(outcomeHit).Inc()
			span.SetAttributes(attribute.String("cache.outcome", outcomeHit))
			return cached, nil
		}
	}
	resultsRequests.WithLabelValues(outcome).Inc()
	span.SetAttributes(attribute.String("cache.outcome", outcome))

	// A recompute that has started runs to completion and updates the
	// cache even if the caller goes away.
	return s.Recalculate(context.WithoutCancel(ctx), topicID)
}

// Recalculate recomputes the results of topicID from its votes and replaces
// the cached row. The row is written in a single upsert, so a failure leaves
// the previous row untouched.
func (s *ResultsService) Recalculate(ctx context.Context, topicID string) (*domain.VoteResultsCache, error) {
	tr := otel.Tracer("services/ResultsService")
	ctx, span := tr.Start(ctx, "Recalculate",
		trace.WithAttributes(attribute.String("topic.id", topicID)),
	)
	defer span.End()

	start := time.Now()
	defer func() { recomputeSeconds.Observe(time.Since(start).Seconds()) }()

	topic, err := s.Repo.GetTopic(ctx, s.DB, topicID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTopicNotFound
		}
		return nil, err
	}

	votes, err := s.Repo.ListTopicVotes(ctx, s.DB, topicID, false)
	if err != nil {
		return nil, err
	}
	all := make([]domain.Payload, 0, len(votes))
	verified := make([]domain.Payload, 0, len(votes))
	for i := range votes {
		p := votes[i].Payload()
		all = append(all, p)
		if votes[i].IsVerifiedVote {
			verified = append(verified, p)
		}
	}

	kind := domain.ResolveKind(voteTypeName(topic), all)
	allJSON, err := json.Marshal(domain.Aggregate(kind, all))
	if err != nil {
		return nil, err
	}
	verifiedJSON, err := json.Marshal(domain.Aggregate(kind, verified))
	if err != nil {
		return nil, err
	}

	breakdown := domain.NewDemographicBreakdown()
	if s.Demographics != nil {
		b, derr := s.Demographics.Breakdown(ctx, topicID)
		if derr != nil {
			demographicsFailures.Inc()
			log.Ctx(ctx).Warn().Err(derr).Str("topic_id", topicID).Msg("results without demographic breakdown")
		} else {
			breakdown = b
		}
	}

	span.SetAttributes(
		attribute.Int("votes.all", len(all)),
		attribute.Int("votes.verified", len(verified)),
		attribute.String("vote.kind", string(kind)),
	)

	return s.Repo.UpsertResultsCache(ctx, s.DB, &domain.VoteResultsCache{
		TopicID:              topicID,
		AllVotes:             datatypes.JSON(allJSON),
		VerifiedVotes:        datatypes.JSON(verifiedJSON),
		DemographicBreakdown: datatypes.NewJSONType(breakdown),
		LastCalculated:       s.now(),
		VoteCountAll:         int64(len(all)),
		VoteCountVerified:    int64(len(verified)),
	})
}

// voteTypeName returns the name of the topic's vote type, or "" when it was
// not loaded.
func voteTypeName(t *domain.Topic) string {
	if t.VoteType == nil {
		return ""
	}
	return t.VoteType.Name
}
