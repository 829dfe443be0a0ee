// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Vote model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
//
// Error semantics:
//   - When a vote is not found, functions return gorm.ErrRecordNotFound
//     (exported here as ErrNotFound).
//   - On DB errors the raw gorm error is propagated.
//
// Functions:
//
//   - UpsertVote(ctx, db, vote) -> *domain.Vote, error
//     Inserts the vote or overwrites the voter's existing one on the same topic.
//
//   - GetVote(ctx, db, topicID, profileID) -> *domain.Vote, error
//
//   - ListTopicVotes(ctx, db, topicID, verifiedOnly) -> []domain.Vote, error
//     Returns votes in cast order (created_at, id).
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/votehub-backend/internal/domain"
)

// voteUpsertColumns are overwritten when a voter votes again. created_at and
// id keep the values of the first cast.
var voteUpsertColumns = []string{
	"vote_data",
	"is_verified_vote",
	"verification_level",
	"ip_address",
	"user_agent",
	"updated_at",
}

// UpsertVote stores v keyed on (topic_id, profile_id). A second cast by the
// same voter replaces the payload and verification snapshot of the existing
// row instead of adding one. The persisted row is returned.
func UpsertVote(ctx context.Context, db *gorm.DB, v *domain.Vote) (*domain.Vote, error) {
	now := time.Now().UTC()
	row := *v
	if row.ID == "" {
		row.ID = uuid.NewString()
	}
	if row.VerificationLevel == "" {
		row.VerificationLevel = domain.VerificationNone
	}
	row.CreatedAt = now
	row.UpdatedAt = now

	err := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "topic_id"}, {Name: "profile_id"}},
			DoUpdates: clause.AssignmentColumns(voteUpsertColumns),
		}).
		Create(&row).Error
	if err != nil {
		return nil, err
	}
	return GetVote(ctx, db, v.TopicID, v.ProfileID)
}

// GetVote returns the vote of profileID on topicID, or ErrNotFound.
func GetVote(ctx context.Context, db *gorm.DB, topicID, profileID string) (*domain.Vote, error) {
	var v domain.Vote
	err := db.WithContext(ctx).
		Where("topic_id = ? AND profile_id = ?", topicID, profileID).
		First(&v).Error
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// ListTopicVotes returns the votes on topicID in cast order. When verifiedOnly
// is set only votes with is_verified_vote = true are returned.
func ListTopicVotes(ctx context.Context, db *gorm.DB, topicID string, verifiedOnly bool) ([]domain.Vote, error) {
	var out []domain.Vote
	q := db.WithContext(ctx).Where("topic_id = ?", topicID)
	if verifiedOnly {
		q = q.Where("is_verified_vote = ?", true)
	}
	err := q.Order("created_at ASC, id ASC").Find(&out).Error
	return out, err
}
