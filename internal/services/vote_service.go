// Package services – VoteService
//
// This file implements vote casting. A voter has at most one vote per topic;
// casting again overwrites the payload and the verification snapshot. Every
// accepted cast refreshes the topic's vote_count and recomputes the results
// cache before returning, so a read right after a vote sees it.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/tbourn/votehub-backend/internal/domain"
)

// VoteRepo defines the repository contract required by VoteService.
type VoteRepo interface {
	// GetTopic fetches a topic with its vote type preloaded.
	GetTopic(ctx context.Context, db *gorm.DB, id string) (*domain.Topic, error)

	// GetProfile fetches a voter profile.
	GetProfile(ctx context.Context, db *gorm.DB, id string) (*domain.Profile, error)

	// UpsertVote inserts or overwrites the voter's vote on a topic.
	UpsertVote(ctx context.Context, db *gorm.DB, v *domain.Vote) (*domain.Vote, error)

	// GetVote fetches the vote of a voter on a topic.
	GetVote(ctx context.Context, db *gorm.DB, topicID, profileID string) (*domain.Vote, error)

	// RefreshTopicVoteCount recounts topics.vote_count from the votes table.
	RefreshTopicVoteCount(ctx context.Context, db *gorm.DB, id string) error
}

// ResultsRecalculator recomputes and stores the results of a topic.
type ResultsRecalculator interface {
	Recalculate(ctx context.Context, topicID string) (*domain.VoteResultsCache, error)
}

// CastVoteInput carries one ballot. IsVerified and VerificationLevel are the
// voter's verification state at cast time and are stored as a snapshot.
type CastVoteInput struct {
	TopicID           string
	VoterID           string
	Payload           domain.Payload
	IsVerified        bool
	VerificationLevel string
	IPAddress         string
	UserAgent         string
}

// VoteService casts and reads votes.
type VoteService struct {
	DB      *gorm.DB
	Repo    VoteRepo
	Results ResultsRecalculator

	// Now returns the current time; defaults to time.Now.
	Now func() time.Time
}

// NewVoteService constructs a VoteService.
func NewVoteService(db *gorm.DB, r VoteRepo, results ResultsRecalculator) *VoteService {
	return &VoteService{DB: db, Repo: r, Results: results, Now: time.Now}
}

// VerificationOf returns the verification flag and level of voterID as
// recorded in the profile store. Voters without a profile are unverified.
func (s *VoteService) VerificationOf(ctx context.Context, voterID string) (bool, string, error) {
	p, err := s.Repo.GetProfile(ctx, s.DB, voterID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, domain.VerificationNone, nil
	}
	if err != nil {
		return false, "", err
	}
	level := p.VerificationLevel
	if level == "" {
		level = domain.VerificationNone
	}
	return p.IsVerified, level, nil
}

// Cast records in.Payload as the voter's vote on in.TopicID.
//
// The topic must exist (ErrTopicNotFound) and accept votes (ErrTopicClosed).
// Topics requiring verification reject voters that are unverified or below
// the topic's minimum level (ErrVerificationRequired). The payload must fit
// the topic's vote type and configuration (ErrInvalidVote).
//
// The vote and the topic's vote_count are written in one transaction; the
// results cache is then recomputed and any error from that is returned.
func (s *VoteService) Cast(ctx context.Context, in CastVoteInput) (*domain.Vote, error) {
	tr := otel.Tracer("services/VoteService")
	ctx, span := tr.Start(ctx, "Cast",
		trace.WithAttributes(
			attribute.String("topic.id", in.TopicID),
			attribute.String("voter.id", in.VoterID),
			attribute.String("vote.kind", string(in.Payload.Kind)),
		),
	)
	defer span.End()

	if strings.TrimSpace(in.VoterID) == "" {
		return nil, ErrInvalidVote
	}

	topic, err := s.Repo.GetTopic(ctx, s.DB, in.TopicID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTopicNotFound
		}
		return nil, err
	}
	if !topic.AcceptsVotes(s.now()) {
		return nil, ErrTopicClosed
	}

	level := in.VerificationLevel
	if level == "" {
		level = domain.VerificationNone
	}
	if topic.RequireVerification {
		if !in.IsVerified || !domain.VerificationAtLeast(level, topic.MinVerificationLevel) {
			return nil, ErrVerificationRequired
		}
	}

	if err := validatePayload(topic, in.Payload); err != nil {
		return nil, err
	}

	row := &domain.Vote{
		TopicID:           in.TopicID,
		ProfileID:         in.VoterID,
		VoteData:          datatypes.NewJSONType(in.Payload),
		IsVerifiedVote:    in.IsVerified,
		VerificationLevel: level,
		IPAddress:         optional(in.IPAddress),
		UserAgent:         optional(in.UserAgent),
	}

	var vote *domain.Vote
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		v, err := s.Repo.UpsertVote(ctx, tx, row)
		if err != nil {
			return err
		}
		vote = v
		return s.Repo.RefreshTopicVoteCount(ctx, tx, in.TopicID)
	})
	if err != nil {
		return nil, err
	}
	votesCast.WithLabelValues(voteTypeLabel(topic)).Inc()

	// The vote is committed; finish the cache refresh even if the caller
	// goes away.
	if s.Results != nil {
		if _, err := s.Results.Recalculate(context.WithoutCancel(ctx), in.TopicID); err != nil {
			return nil, err
		}
	}
	return vote, nil
}

// Get returns the vote of voterID on topicID, or ErrVoteNotFound.
func (s *VoteService) Get(ctx context.Context, topicID, voterID string) (*domain.Vote, error) {
	v, err := s.Repo.GetVote(ctx, s.DB, topicID, voterID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrVoteNotFound
		}
		return nil, err
	}
	return v, nil
}

func (s *VoteService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// voteConfig is the subset of topics.vote_config used for validation.
type voteConfig struct {
	Options   []string `json:"options"`
	MinValue  *float64 `json:"min_value"`
	MaxValue  *float64 `json:"max_value"`
	Step      *float64 `json:"step"`
	MaxLength *int     `json:"max_length"`
}

// stepTolerance absorbs float error when checking ratings such as 0.3 on a
// 0.1 step.
const stepTolerance = 1e-9

// onStep reports whether v lies on the grid base + k*step for an integer k.
func onStep(v, base, step float64) bool {
	n := (v - base) / step
	return math.Abs(n-math.Round(n)) <= stepTolerance*math.Max(1, math.Abs(n))
}

// validatePayload checks p against the topic's vote type and vote_config.
// Topics with an unrecognized vote type accept any recognized payload.
func validatePayload(t *domain.Topic, p domain.Payload) error {
	if p.Kind == domain.KindUnknown {
		return ErrInvalidVote
	}
	want := domain.KindForVoteType(voteTypeName(t))
	if want != domain.KindUnknown && p.Kind != want {
		return ErrInvalidVote
	}

	var cfg voteConfig
	if len(t.VoteConfig) > 0 {
		if err := json.Unmarshal(t.VoteConfig, &cfg); err != nil {
			// Unreadable config: only the shape check applies.
			cfg = voteConfig{}
		}
	}

	switch p.Kind {
	case domain.KindChoice:
		if len(cfg.Options) > 0 && !slices.Contains(cfg.Options, p.Choice) {
			return ErrInvalidVote
		}
	case domain.KindRating:
		if cfg.MinValue != nil && p.Rating < *cfg.MinValue {
			return ErrInvalidVote
		}
		if cfg.MaxValue != nil && p.Rating > *cfg.MaxValue {
			return ErrInvalidVote
		}
		if cfg.Step != nil && *cfg.Step > 0 {
			base := 0.0
			if cfg.MinValue != nil {
				base = *cfg.MinValue
			}
			if !onStep(p.Rating, base, *cfg.Step) {
				return ErrInvalidVote
			}
		}
	case domain.KindResponse:
		if strings.TrimSpace(p.Response) == "" {
			return ErrInvalidVote
		}
		if cfg.MaxLength != nil && *cfg.MaxLength > 0 && utf8.RuneCountInString(p.Response) > *cfg.MaxLength {
			return ErrInvalidVote
		}
	}
	return nil
}

// voteTypeLabel bounds the metric label to known vote types.
func voteTypeLabel(t *domain.Topic) string {
	name := voteTypeName(t)
	if domain.KindForVoteType(name) == domain.KindUnknown {
		return "other"
	}
	return name
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
