package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/votehub-backend/internal/domain"
	"github.com/tbourn/votehub-backend/internal/repo"
)

// sqlRepo proxies the repo free functions so the services run against a real
// SQLite schema in tests.
type sqlRepo struct{}

func (sqlRepo) GetTopic(ctx context.Context, db *gorm.DB, id string) (*domain.Topic, error) {
	return repo.GetTopic(ctx, db, id)
}
func (sqlRepo) CreateTopic(ctx context.Context, db *gorm.DB, t *domain.Topic) (*domain.Topic, error) {
	return repo.CreateTopic(ctx, db, t)
}
func (sqlRepo) CountTopics(ctx context.Context, db *gorm.DB, f repo.TopicFilter) (int64, error) {
	return repo.CountTopics(ctx, db, f)
}
func (sqlRepo) ListTopicsPage(ctx context.Context, db *gorm.DB, f repo.TopicFilter, offset, limit int) ([]domain.Topic, error) {
	return repo.ListTopicsPage(ctx, db, f, offset, limit)
}
func (sqlRepo) FindSimilarTopics(ctx context.Context, db *gorm.DB, title, excludeID string, limit int) ([]domain.Topic, error) {
	return repo.FindSimilarTopics(ctx, db, title, excludeID, limit)
}
func (sqlRepo) UpdateTopic(ctx context.Context, db *gorm.DB, id string, e repo.TopicEdit) error {
	return repo.UpdateTopic(ctx, db, id, e)
}
func (sqlRepo) LinkTopic(ctx context.Context, db *gorm.DB, id, targetID string) error {
	return repo.LinkTopic(ctx, db, id, targetID)
}
func (sqlRepo) IncrementTopicViews(ctx context.Context, db *gorm.DB, id string) error {
	return repo.IncrementTopicViews(ctx, db, id)
}
func (sqlRepo) RefreshTopicVoteCount(ctx context.Context, db *gorm.DB, id string) error {
	return repo.RefreshTopicVoteCount(ctx, db, id)
}
func (sqlRepo) GetVoteType(ctx context.Context, db *gorm.DB, id string) (*domain.VoteTypeConfig, error) {
	return repo.GetVoteType(ctx, db, id)
}
func (sqlRepo) GetVoteTypeByName(ctx context.Context, db *gorm.DB, name string) (*domain.VoteTypeConfig, error) {
	return repo.GetVoteTypeByName(ctx, db, name)
}
func (sqlRepo) ListActiveVoteTypes(ctx context.Context, db *gorm.DB) ([]domain.VoteTypeConfig, error) {
	return repo.ListActiveVoteTypes(ctx, db)
}
func (sqlRepo) GetProfile(ctx context.Context, db *gorm.DB, id string) (*domain.Profile, error) {
	return repo.GetProfile(ctx, db, id)
}
func (sqlRepo) UpsertVote(ctx context.Context, db *gorm.DB, v *domain.Vote) (*domain.Vote, error) {
	return repo.UpsertVote(ctx, db, v)
}
func (sqlRepo) GetVote(ctx context.Context, db *gorm.DB, topicID, profileID string) (*domain.Vote, error) {
	return repo.GetVote(ctx, db, topicID, profileID)
}
func (sqlRepo) ListTopicVotes(ctx context.Context, db *gorm.DB, topicID string, verifiedOnly bool) ([]domain.Vote, error) {
	return repo.ListTopicVotes(ctx, db, topicID, verifiedOnly)
}
func (sqlRepo) GetResultsCache(ctx context.Context, db *gorm.DB, topicID string) (*domain.VoteResultsCache, error) {
	return repo.GetResultsCache(ctx, db, topicID)
}
func (sqlRepo) UpsertResultsCache(ctx context.Context, db *gorm.DB, row *domain.VoteResultsCache) (*domain.VoteResultsCache, error) {
	return repo.UpsertResultsCache(ctx, db, row)
}
func (sqlRepo) ListVoterDemographics(ctx context.Context, db *gorm.DB, topicID string) ([]domain.ProfileDemographics, error) {
	return repo.ListVoterDemographics(ctx, db, topicID)
}
func (sqlRepo) CreateSuggestions(ctx context.Context, db *gorm.DB, rows []domain.TopicSimilaritySuggestion) error {
	return repo.CreateSuggestions(ctx, db, rows)
}
func (sqlRepo) CreateSuggestion(ctx context.Context, db *gorm.DB, s *domain.TopicSimilaritySuggestion) (*domain.TopicSimilaritySuggestion, error) {
	return repo.CreateSuggestion(ctx, db, s)
}
func (sqlRepo) ListSuggestions(ctx context.Context, db *gorm.DB, topicID, status string) ([]domain.TopicSimilaritySuggestion, error) {
	return repo.ListSuggestions(ctx, db, topicID, status)
}
func (sqlRepo) GetSuggestion(ctx context.Context, db *gorm.DB, id string) (*domain.TopicSimilaritySuggestion, error) {
	return repo.GetSuggestion(ctx, db, id)
}
func (sqlRepo) ReviewSuggestion(ctx context.Context, db *gorm.DB, id, reviewerID, status string, at time.Time) error {
	return repo.ReviewSuggestion(ctx, db, id, reviewerID, status, at)
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:svc_%s?mode=memory&cache=shared", uuid.NewString())
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
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func seedVoteType(t *testing.T, db *gorm.DB, name, defaultConfig string) *domain.VoteTypeConfig {
	t.Helper()
	vt, err := repo.UpsertVoteType(context.Background(), db, &domain.VoteTypeConfig{
		ID:            "vt-" + name,
		Name:          name,
		DisplayName:   name,
		DefaultConfig: datatypes.JSON(defaultConfig),
		IsActive:      true,
	})
	if err != nil {
		t.Fatalf("seed vote type %s: %v", name, err)
	}
	return vt
}

// seedTopic inserts an active topic of the given vote type.
func seedTopic(t *testing.T, db *gorm.DB, id, title, voteType, config string) *domain.Topic {
	t.Helper()
	vt, err := repo.GetVoteTypeByName(context.Background(), db, voteType)
	if err != nil {
		vt = seedVoteType(t, db, voteType, `{}`)
	}
	tp, err := repo.CreateTopic(context.Background(), db, &domain.Topic{
		ID:         id,
		Title:      title,
		VoteTypeID: vt.ID,
		VoteConfig: datatypes.JSON(config),
		IsActive:   true,
	})
	if err != nil {
		t.Fatalf("seed topic %s: %v", id, err)
	}
	return tp
}

func seedDemographics(t *testing.T, db *gorm.DB, profileID, age, gender, country string) {
	t.Helper()
	now := time.Now().UTC()
	row := domain.ProfileDemographics{
		ID:        uuid.NewString(),
		ProfileID: profileID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if age != "" {
		row.AgeRange = &age
	}
	if gender != "" {
		row.Gender = &gender
	}
	if country != "" {
		row.LocationCountry = &country
	}
	if err := db.Create(&row).Error; err != nil {
		t.Fatalf("seed demographics %s: %v", profileID, err)
	}
}

// newStack wires the vote, results and demographics services over db with a
// controllable clock.
func newStack(db *gorm.DB, now *time.Time) (*VoteService, *ResultsService) {
	clock := func() time.Time { return *now }
	results := NewResultsService(db, sqlRepo{}, NewDemographicsService(db, sqlRepo{}))
	results.Now = clock
	votes := NewVoteService(db, sqlRepo{}, results)
	votes.Now = clock
	return votes, results
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
