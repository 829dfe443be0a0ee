// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// TopicSimilaritySuggestion model.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/votehub-backend/internal/domain"
)

// CreateSuggestions inserts rows, silently skipping pairs that already have
// a suggestion. Empty input is a no-op.
func CreateSuggestions(ctx context.Context, db *gorm.DB, rows []domain.TopicSimilaritySuggestion) error {
	if len(rows) == 0 {
		return nil
	}
	now := time.Now().UTC()
	for i := range rows {
		if rows[i].ID == "" {
			rows[i].ID = uuid.NewString()
		}
		if rows[i].Status == "" {
			rows[i].Status = domain.SuggestionPending
		}
		rows[i].CreatedAt = now
	}
	return db.WithContext(ctx).
		Omit("SimilarTopic").
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "topic_id"}, {Name: "similar_topic_id"}},
			DoNothing: true,
		}).
		Create(&rows).Error
}

// CreateSuggestion inserts a single suggestion and returns ErrDuplicate when
// the pair was already suggested.
func CreateSuggestion(ctx context.Context, db *gorm.DB, s *domain.TopicSimilaritySuggestion) (*domain.TopicSimilaritySuggestion, error) {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.Status == "" {
		s.Status = domain.SuggestionPending
	}
	s.CreatedAt = time.Now().UTC()
	if err := db.WithContext(ctx).Omit("SimilarTopic").Create(s).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return s, nil
}

// ListSuggestions returns the suggestions of topicID with the given status
// (any status when empty), best score first, similar topic preloaded.
func ListSuggestions(ctx context.Context, db *gorm.DB, topicID, status string) ([]domain.TopicSimilaritySuggestion, error) {
	var out []domain.TopicSimilaritySuggestion
	q := db.WithContext(ctx).Preload("SimilarTopic").Where("topic_id = ?", topicID)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	err := q.Order("similarity_score DESC, created_at ASC, id ASC").Find(&out).Error
	return out, err
}

// GetSuggestion fetches a suggestion by id, or ErrNotFound.
func GetSuggestion(ctx context.Context, db *gorm.DB, id string) (*domain.TopicSimilaritySuggestion, error) {
	var s domain.TopicSimilaritySuggestion
	if err := db.WithContext(ctx).Where("id = ?", id).First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// ReviewSuggestion moves a pending suggestion to status. It returns
// ErrNotFound when no pending suggestion with that id exists, which includes
// one that was reviewed concurrently.
func ReviewSuggestion(ctx context.Context, db *gorm.DB, id, reviewerID, status string, at time.Time) error {
	res := db.WithContext(ctx).
		Model(&domain.TopicSimilaritySuggestion{}).
		Where("id = ? AND status = ?", id, domain.SuggestionPending).
		Updates(map[string]any{
			"status":      status,
			"reviewed_by": reviewerID,
			"reviewed_at": at,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
