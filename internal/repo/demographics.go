// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file reads profile data owned by the profile store.
// Both tables are read-only from this service's point of view.
package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/tbourn/votehub-backend/internal/domain"
)

// ListVoterDemographics returns the profile_demographics rows of every voter
// on topicID, grouped by profile and earliest row first within a profile.
// Voters without demographics contribute no rows.
func ListVoterDemographics(ctx context.Context, db *gorm.DB, topicID string) ([]domain.ProfileDemographics, error) {
	var out []domain.ProfileDemographics
	err := db.WithContext(ctx).
		Model(&domain.Vote{}).
		Select("pd.*").
		Joins("JOIN profile_demographics pd ON pd.profile_id = votes.profile_id").
		Where("votes.topic_id = ?", topicID).
		Order("pd.profile_id ASC, pd.created_at ASC, pd.id ASC").
		Scan(&out).Error
	return out, err
}

// GetProfile fetches a voter profile by id, or ErrNotFound.
func GetProfile(ctx context.Context, db *gorm.DB, id string) (*domain.Profile, error) {
	var p domain.Profile
	if err := db.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}
