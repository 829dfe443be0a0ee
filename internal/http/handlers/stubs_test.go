package handlers

import (
	"context"
	"fmt"
	"testing"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/votehub-backend/internal/domain"
	"github.com/tbourn/votehub-backend/internal/repo"
	"github.com/tbourn/votehub-backend/internal/services"
)

// ---------- flexible service stubs ----------

type stubTopicSvc struct {
	voteTypes   func(context.Context) ([]domain.VoteTypeConfig, error)
	create      func(context.Context, services.CreateTopicInput) (*domain.Topic, []domain.Topic, error)
	view        func(context.Context, string) (*domain.Topic, error)
	listPage    func(context.Context, repo.TopicFilter, int, int) ([]domain.Topic, int64, error)
	findSimilar func(context.Context, string, string) ([]domain.Topic, error)
	link        func(context.Context, string, string) error
	update      func(context.Context, string, services.UpdateTopicInput) (*domain.Topic, []domain.Topic, error)
}

func (s stubTopicSvc) ListVoteTypes(ctx context.Context) ([]domain.VoteTypeConfig, error) {
	if s.voteTypes != nil {
		return s.voteTypes(ctx)
	}
	return nil, nil
}

func (s stubTopicSvc) Create(ctx context.Context, in services.CreateTopicInput) (*domain.Topic, []domain.Topic, error) {
	if s.create != nil {
		return s.create(ctx, in)
	}
	return &domain.Topic{ID: "t", Title: in.Title}, []domain.Topic{}, nil
}

func (s stubTopicSvc) View(ctx context.Context, id string) (*domain.Topic, error) {
	if s.view != nil {
		return s.view(ctx, id)
	}
	return &domain.Topic{ID: id}, nil
}

func (s stubTopicSvc) ListPage(ctx context.Context, f repo.TopicFilter, p, ps int) ([]domain.Topic, int64, error) {
	if s.listPage != nil {
		return s.listPage(ctx, f, p, ps)
	}
	return []domain.Topic{}, 0, nil
}

func (s stubTopicSvc) FindSimilar(ctx context.Context, title, excludeID string) ([]domain.Topic, error) {
	if s.findSimilar != nil {
		return s.findSimilar(ctx, title, excludeID)
	}
	return []domain.Topic{}, nil
}

func (s stubTopicSvc) Update(ctx context.Context, id string, in services.UpdateTopicInput) (*domain.Topic, []domain.Topic, error) {
	if s.update != nil {
		return s.update(ctx, id, in)
	}
	return &domain.Topic{ID: id}, []domain.Topic{}, nil
}

func (s stubTopicSvc) Link(ctx context.Context, id, target string) error {
	if s.link != nil {
		return s.link(ctx, id, target)
	}
	return nil
}

type stubVoteSvc struct {
	verification func(context.Context, string) (bool, string, error)
	cast         func(context.Context, services.CastVoteInput) (*domain.Vote, error)
	get          func(context.Context, string, string) (*domain.Vote, error)
}

func (s stubVoteSvc) VerificationOf(ctx context.Context, voterID string) (bool, string, error) {
	if s.verification != nil {
		return s.verification(ctx, voterID)
	}
	return false, domain.VerificationNone, nil
}

func (s stubVoteSvc) Cast(ctx context.Context, in services.CastVoteInput) (*domain.Vote, error) {
	if s.cast != nil {
		return s.cast(ctx, in)
	}
	return &domain.Vote{ID: "v", TopicID: in.TopicID, ProfileID: in.VoterID}, nil
}

func (s stubVoteSvc) Get(ctx context.Context, topicID, voterID string) (*domain.Vote, error) {
	if s.get != nil {
		return s.get(ctx, topicID, voterID)
	}
	return nil, services.ErrVoteNotFound
}

type stubResultsSvc struct {
	get func(context.Context, string, bool) (*domain.VoteResultsCache, error)
}

func (s stubResultsSvc) Get(ctx context.Context, topicID string, force bool) (*domain.VoteResultsCache, error) {
	if s.get != nil {
		return s.get(ctx, topicID, force)
	}
	return &domain.VoteResultsCache{TopicID: topicID}, nil
}

type stubSuggSvc struct {
	list   func(context.Context, string) ([]domain.TopicSimilaritySuggestion, error)
	report func(context.Context, string, string) (*domain.TopicSimilaritySuggestion, error)
	review func(context.Context, string, string, string) (*domain.TopicSimilaritySuggestion, error)
}

func (s stubSuggSvc) ListPending(ctx context.Context, topicID string) ([]domain.TopicSimilaritySuggestion, error) {
	if s.list != nil {
		return s.list(ctx, topicID)
	}
	return []domain.TopicSimilaritySuggestion{}, nil
}

func (s stubSuggSvc) Report(ctx context.Context, topicID, similarID string) (*domain.TopicSimilaritySuggestion, error) {
	if s.report != nil {
		return s.report(ctx, topicID, similarID)
	}
	return &domain.TopicSimilaritySuggestion{TopicID: topicID, SimilarTopicID: similarID}, nil
}

func (s stubSuggSvc) Review(ctx context.Context, id, reviewer, status string) (*domain.TopicSimilaritySuggestion, error) {
	if s.review != nil {
		return s.review(ctx, id, reviewer, status)
	}
	return &domain.TopicSimilaritySuggestion{ID: id, Status: status}, nil
}

// ---------- test DB + repo shim ----------

func newHandlersDB(t *testing.T) *gorm.DB {
	t.Helper()

	// Unique DSN per call to avoid cross-test contamination
	dsn := fmt.Sprintf("file:handlers_%s?mode=memory&cache=shared", uuid.NewString())

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
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// Minimal shim implementing the service repo contracts using the repo
// package (like router.go).
type testRepo struct{}

func (testRepo) GetTopic(ctx context.Context, db *gorm.DB, id string) (*domain.Topic, error) {
	return repo.GetTopic(ctx, db, id)
}
func (testRepo) CreateTopic(ctx context.Context, db *gorm.DB, t *domain.Topic) (*domain.Topic, error) {
	return repo.CreateTopic(ctx, db, t)
}
func (testRepo) CountTopics(ctx context.Context, db *gorm.DB, f repo.TopicFilter) (int64, error) {
	return repo.CountTopics(ctx, db, f)
}
func (testRepo) ListTopicsPage(ctx context.Context, db *gorm.DB, f repo.TopicFilter, offset, limit int) ([]domain.Topic, error) {
	return repo.ListTopicsPage(ctx, db, f, offset, limit)
}
func (testRepo) FindSimilarTopics(ctx context.Context, db *gorm.DB, title, excludeID string, limit int) ([]domain.Topic, error) {
	return repo.FindSimilarTopics(ctx, db, title, excludeID, limit)
}
func (testRepo) UpdateTopic(ctx context.Context, db *gorm.DB, id string, e repo.TopicEdit) error {
	return repo.UpdateTopic(ctx, db, id, e)
}
func (testRepo) LinkTopic(ctx context.Context, db *gorm.DB, id, targetID string) error {
	return repo.LinkTopic(ctx, db, id, targetID)
}
func (testRepo) IncrementTopicViews(ctx context.Context, db *gorm.DB, id string) error {
	return repo.IncrementTopicViews(ctx, db, id)
}
func (testRepo) RefreshTopicVoteCount(ctx context.Context, db *gorm.DB, id string) error {
	return repo.RefreshTopicVoteCount(ctx, db, id)
}
func (testRepo) GetVoteType(ctx context.Context, db *gorm.DB, id string) (*domain.VoteTypeConfig, error) {
	return repo.GetVoteType(ctx, db, id)
}
func (testRepo) GetVoteTypeByName(ctx context.Context, db *gorm.DB, name string) (*domain.VoteTypeConfig, error) {
	return repo.GetVoteTypeByName(ctx, db, name)
}
func (testRepo) ListActiveVoteTypes(ctx context.Context, db *gorm.DB) ([]domain.VoteTypeConfig, error) {
	return repo.ListActiveVoteTypes(ctx, db)
}
func (testRepo) CreateSuggestions(ctx context.Context, db *gorm.DB, rows []domain.TopicSimilaritySuggestion) error {
	return repo.CreateSuggestions(ctx, db, rows)
}
func (testRepo) GetProfile(ctx context.Context, db *gorm.DB, id string) (*domain.Profile, error) {
	return repo.GetProfile(ctx, db, id)
}
func (testRepo) UpsertVote(ctx context.Context, db *gorm.DB, v *domain.Vote) (*domain.Vote, error) {
	return repo.UpsertVote(ctx, db, v)
}
func (testRepo) GetVote(ctx context.Context, db *gorm.DB, topicID, profileID string) (*domain.Vote, error) {
	return repo.GetVote(ctx, db, topicID, profileID)
}
