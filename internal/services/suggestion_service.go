// Package services – SuggestionService
//
// Similarity suggestions pair a topic with a candidate duplicate. They are
// recorded automatically when a topic is created, or reported by users, and
// reviewed by moderators. Accepting a suggestion links the topic to the
// similar one.
package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/votehub-backend/internal/domain"
	"github.com/tbourn/votehub-backend/internal/repo"
)

// UserReportScore is the similarity score given to user reported pairs.
const UserReportScore = 0.8

// SuggestionRepo defines the repository contract required by SuggestionService.
type SuggestionRepo interface {
	GetTopic(ctx context.Context, db *gorm.DB, id string) (*domain.Topic, error)
	LinkTopic(ctx context.Context, db *gorm.DB, id, targetID string) error

	CreateSuggestion(ctx context.Context, db *gorm.DB, s *domain.TopicSimilaritySuggestion) (*domain.TopicSimilaritySuggestion, error)
	ListSuggestions(ctx context.Context, db *gorm.DB, topicID, status string) ([]domain.TopicSimilaritySuggestion, error)
	GetSuggestion(ctx context.Context, db *gorm.DB, id string) (*domain.TopicSimilaritySuggestion, error)
	ReviewSuggestion(ctx context.Context, db *gorm.DB, id, reviewerID, status string, at time.Time) error
}

// SuggestionService lists, reports and reviews similarity suggestions.
type SuggestionService struct {
	DB   *gorm.DB
	Repo SuggestionRepo

	// Now returns the current time; defaults to time.Now.
	Now func() time.Time
}

// NewSuggestionService constructs a SuggestionService.
func NewSuggestionService(db *gorm.DB, r SuggestionRepo) *SuggestionService {
	return &SuggestionService{DB: db, Repo: r, Now: time.Now}
}

// ListPending returns the pending suggestions of topicID, best score first.
func (s *SuggestionService) ListPending(ctx context.Context, topicID string) ([]domain.TopicSimilaritySuggestion, error) {
	if _, err := s.Repo.GetTopic(ctx, s.DB, topicID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTopicNotFound
		}
		return nil, err
	}
	out, err := s.Repo.ListSuggestions(ctx, s.DB, topicID, domain.SuggestionPending)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []domain.TopicSimilaritySuggestion{}
	}
	return out, nil
}

// Report records a user_report suggestion that topicID duplicates
// similarTopicID. Both topics must exist and differ.
func (s *SuggestionService) Report(ctx context.Context, topicID, similarTopicID string) (*domain.TopicSimilaritySuggestion, error) {
	similarTopicID = strings.TrimSpace(similarTopicID)
	if similarTopicID == "" || similarTopicID == topicID {
		return nil, ErrInvalidLink
	}
	if _, err := s.Repo.GetTopic(ctx, s.DB, topicID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTopicNotFound
		}
		return nil, err
	}
	if _, err := s.Repo.GetTopic(ctx, s.DB, similarTopicID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidLink
		}
		return nil, err
	}

	out, err := s.Repo.CreateSuggestion(ctx, s.DB, &domain.TopicSimilaritySuggestion{
		TopicID:          topicID,
		SimilarTopicID:   similarTopicID,
		SimilarityScore:  UserReportScore,
		SuggestionMethod: domain.SuggestionMethodUserReport,
		Status:           domain.SuggestionPending,
	})
	if errors.Is(err, repo.ErrDuplicate) {
		return nil, ErrDuplicateSuggestion
	}
	return out, err
}

// Review records a moderator decision on a pending suggestion. status must be
// accepted or rejected. Accepting links the suggestion's topic to the similar
// topic; the decision and the link commit together.
func (s *SuggestionService) Review(ctx context.Context, suggestionID, reviewerID, status string) (*domain.TopicSimilaritySuggestion, error) {
	tr := otel.Tracer("services/SuggestionService")
	ctx, span := tr.Start(ctx, "Review",
		trace.WithAttributes(
			attribute.String("suggestion.id", suggestionID),
			attribute.String("status", status),
		),
	)
	defer span.End()

	if status != domain.SuggestionAccepted && status != domain.SuggestionRejected {
		return nil, ErrInvalidReview
	}

	sg, err := s.Repo.GetSuggestion(ctx, s.DB, suggestionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSuggestionNotFound
		}
		return nil, err
	}
	if sg.Status != domain.SuggestionPending {
		return nil, ErrSuggestionReviewed
	}

	at := s.now()
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.Repo.ReviewSuggestion(ctx, tx, sg.ID, reviewerID, status, at); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrSuggestionReviewed
			}
			return err
		}
		if status == domain.SuggestionAccepted {
			return linkTopics(ctx, tx, s.Repo, sg.TopicID, sg.SimilarTopicID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sg.Status = status
	sg.ReviewedBy = optional(reviewerID)
	sg.ReviewedAt = &at
	return sg, nil
}

func (s *SuggestionService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}
