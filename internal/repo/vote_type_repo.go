// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// VoteTypeConfig model.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/votehub-backend/internal/domain"
)

// ListActiveVoteTypes returns active vote types ordered by name.
func ListActiveVoteTypes(ctx context.Context, db *gorm.DB) ([]domain.VoteTypeConfig, error) {
	var out []domain.VoteTypeConfig
	err := db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("name ASC").
		Find(&out).Error
	return out, err
}

// GetVoteType fetches a vote type by id, or ErrNotFound.
func GetVoteType(ctx context.Context, db *gorm.DB, id string) (*domain.VoteTypeConfig, error) {
	var vt domain.VoteTypeConfig
	if err := db.WithContext(ctx).Where("id = ?", id).First(&vt).Error; err != nil {
		return nil, err
	}
	return &vt, nil
}

// GetVoteTypeByName fetches a vote type by its machine name, or ErrNotFound.
func GetVoteTypeByName(ctx context.Context, db *gorm.DB, name string) (*domain.VoteTypeConfig, error) {
	var vt domain.VoteTypeConfig
	if err := db.WithContext(ctx).Where("name = ?", name).First(&vt).Error; err != nil {
		return nil, err
	}
	return &vt, nil
}

// UpsertVoteType inserts vt or updates the existing row with the same name.
// The stored id of an existing row is kept.
func UpsertVoteType(ctx context.Context, db *gorm.DB, vt *domain.VoteTypeConfig) (*domain.VoteTypeConfig, error) {
	now := time.Now().UTC()
	row := *vt
	if row.ID == "" {
		row.ID = uuid.NewString()
	}
	if row.Version == 0 {
		row.Version = 1
	}
	row.CreatedAt = now
	row.UpdatedAt = now

	err := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "name"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"display_name", "description", "config_schema", "default_config",
				"is_active", "version", "updated_at",
			}),
		}).
		Create(&row).Error
	if err != nil {
		return nil, err
	}
	return GetVoteTypeByName(ctx, db, vt.Name)
}
