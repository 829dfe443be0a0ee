// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// VoteResultsCache model.
package repo

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/votehub-backend/internal/domain"
)

// GetResultsCache returns the cached results of topicID, or ErrNotFound.
func GetResultsCache(ctx context.Context, db *gorm.DB, topicID string) (*domain.VoteResultsCache, error) {
	var row domain.VoteResultsCache
	if err := db.WithContext(ctx).Where("topic_id = ?", topicID).First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// UpsertResultsCache replaces the whole cache row of row.TopicID. There is
// never more than one row per topic. The persisted row is returned.
func UpsertResultsCache(ctx context.Context, db *gorm.DB, row *domain.VoteResultsCache) (*domain.VoteResultsCache, error) {
	in := *row
	if in.ID == "" {
		in.ID = uuid.NewString()
	}
	err := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "topic_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"all_votes", "verified_votes", "demographic_breakdown",
				"last_calculated", "vote_count_all", "vote_count_verified",
			}),
		}).
		Create(&in).Error
	if err != nil {
		return nil, err
	}
	return GetResultsCache(ctx, db, row.TopicID)
}
