package repo

import (
	"context"
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite (no CGO)
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/votehub-backend/internal/domain"
)

func newTestDB(t *testing.T, migrate ...any) *gorm.DB {
	t.Helper()
	// Unique DB per test to avoid schema leaking across tests.
	dsn := fmt.Sprintf("file:repo_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if len(migrate) > 0 {
		if err := db.AutoMigrate(migrate...); err != nil {
			t.Fatalf("automigrate: %v", err)
		}
	}
	return db
}

func newMigratedDB(t *testing.T) *gorm.DB {
	t.Helper()
	return newTestDB(t, Models()...)
}

func seedTopic(t *testing.T, db *gorm.DB, id, title string, active bool) *domain.Topic {
	t.Helper()
	now := time.Now().UTC()
	tp := &domain.Topic{
		ID:                   id,
		Title:                title,
		VoteTypeID:           "vt-yes-no",
		VoteConfig:           datatypes.JSON(`{}`),
		MinVerificationLevel: domain.VerificationNone,
		IsActive:             active,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if err := db.Create(tp).Error; err != nil {
		t.Fatalf("seed topic %s: %v", id, err)
	}
	return tp
}

func castVote(t *testing.T, db *gorm.DB, topicID, profileID string, p domain.Payload, verified bool) *domain.Vote {
	t.Helper()
	v, err := UpsertVote(context.Background(), db, &domain.Vote{
		TopicID:        topicID,
		ProfileID:      profileID,
		VoteData:       datatypes.NewJSONType(p),
		IsVerifiedVote: verified,
	})
	if err != nil {
		t.Fatalf("UpsertVote(%s,%s): %v", topicID, profileID, err)
	}
	return v
}

// countVotes returns the number of vote rows stored for topicID.
func countVotes(t *testing.T, db *gorm.DB, topicID string) int64 {
	t.Helper()
	var n int64
	if err := db.Model(&domain.Vote{}).Where("topic_id = ?", topicID).Count(&n).Error; err != nil {
		t.Fatalf("count votes %s: %v", topicID, err)
	}
	return n
}
