// Package services – TopicService
//
// This file implements the topic lifecycle: creation and edits (with
// duplicate detection), lookup, listing, the similarity finder and linking of
// duplicates. New and retitled topics are compared against active ones by a
// literal, case-insensitive title substring match; every hit is recorded as a
// pending "manual" similarity suggestion scored by title token overlap.
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/tbourn/votehub-backend/internal/domain"
	"github.com/tbourn/votehub-backend/internal/repo"
	"github.com/tbourn/votehub-backend/internal/search"
)

// SimilarTopicsLimit caps the number of topics returned by FindSimilar.
const SimilarTopicsLimit = 5

// TopicRepo defines the repository contract required by TopicService.
type TopicRepo interface {
	CreateTopic(ctx context.Context, db *gorm.DB, t *domain.Topic) (*domain.Topic, error)
	GetTopic(ctx context.Context, db *gorm.DB, id string) (*domain.Topic, error)
	CountTopics(ctx context.Context, db *gorm.DB, f repo.TopicFilter) (int64, error)
	ListTopicsPage(ctx context.Context, db *gorm.DB, f repo.TopicFilter, offset, limit int) ([]domain.Topic, error)
	FindSimilarTopics(ctx context.Context, db *gorm.DB, title, excludeID string, limit int) ([]domain.Topic, error)
	UpdateTopic(ctx context.Context, db *gorm.DB, id string, e repo.TopicEdit) error
	LinkTopic(ctx context.Context, db *gorm.DB, id, targetID string) error
	IncrementTopicViews(ctx context.Context, db *gorm.DB, id string) error

	GetVoteType(ctx context.Context, db *gorm.DB, id string) (*domain.VoteTypeConfig, error)
	GetVoteTypeByName(ctx context.Context, db *gorm.DB, name string) (*domain.VoteTypeConfig, error)
	ListActiveVoteTypes(ctx context.Context, db *gorm.DB) ([]domain.VoteTypeConfig, error)

	CreateSuggestions(ctx context.Context, db *gorm.DB, rows []domain.TopicSimilaritySuggestion) error
}

// CreateTopicInput carries the fields of a new topic. VoteType accepts either
// the id or the machine name of a vote type.
type CreateTopicInput struct {
	CreatedBy            string
	Title                string
	Description          string
	VoteType             string
	VoteConfig           json.RawMessage
	RequireVerification  bool
	MinVerificationLevel string
	ExpiresAt            *time.Time
}

// UpdateTopicInput carries an author edit. Nil fields are left unchanged; an
// empty Description clears it.
type UpdateTopicInput struct {
	Title       *string
	Description *string
}

// TopicService provides topic-level operations.
type TopicService struct {
	DB      *gorm.DB
	Repo    TopicRepo
	Matcher *search.Matcher

	// TitleMaxLen caps stored titles by rune length.
	TitleMaxLen int

	// Now returns the current time; defaults to time.Now.
	Now func() time.Time
}

// NewTopicService constructs a TopicService with default title handling.
func NewTopicService(db *gorm.DB, r TopicRepo) *TopicService {
	return &TopicService{
		DB:          db,
		Repo:        r,
		Matcher:     search.NewMatcher(),
		TitleMaxLen: 255,
		Now:         time.Now,
	}
}

// ListVoteTypes returns the active vote types ordered by name.
func (s *TopicService) ListVoteTypes(ctx context.Context) ([]domain.VoteTypeConfig, error) {
	return s.Repo.ListActiveVoteTypes(ctx, s.DB)
}

// Create inserts a new topic and records a pending suggestion for every
// similar active topic. It returns the topic and those similar topics.
//
// An empty VoteConfig is seeded from the vote type's default config.
func (s *TopicService) Create(ctx context.Context, in CreateTopicInput) (*domain.Topic, []domain.Topic, error) {
	tr := otel.Tracer("services/TopicService")
	ctx, span := tr.Start(ctx, "Create",
		trace.WithAttributes(
			attribute.String("user.id", in.CreatedBy),
			attribute.String("vote_type", in.VoteType),
		),
	)
	defer span.End()

	title := s.clip(normalizeTitle(in.Title))
	if title == "" {
		return nil, nil, ErrEmptyTitle
	}

	vt, err := s.resolveVoteType(ctx, in.VoteType)
	if err != nil {
		return nil, nil, err
	}

	cfg, err := topicConfig(in.VoteConfig, vt.DefaultConfig)
	if err != nil {
		return nil, nil, err
	}

	level := strings.TrimSpace(in.MinVerificationLevel)
	if level == "" {
		level = domain.VerificationNone
	}
	if !knownVerificationLevel(level) {
		return nil, nil, ErrInvalidTopic
	}
	if in.ExpiresAt != nil && !in.ExpiresAt.After(s.now()) {
		return nil, nil, ErrInvalidTopic
	}

	t := &domain.Topic{
		CreatedBy:            optional(in.CreatedBy),
		Title:                title,
		Description:          optional(in.Description),
		VoteTypeID:           vt.ID,
		VoteConfig:           cfg,
		RequireVerification:  in.RequireVerification,
		MinVerificationLevel: level,
		ExpiresAt:            in.ExpiresAt,
		IsActive:             true,
	}

	var similar []domain.Topic
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		created, err := s.Repo.CreateTopic(ctx, tx, t)
		if err != nil {
			return err
		}
		t = created

		similar, err = s.Repo.FindSimilarTopics(ctx, tx, title, t.ID, SimilarTopicsLimit)
		if err != nil {
			return err
		}
		return s.Repo.CreateSuggestions(ctx, tx, s.suggestionsFor(t, similar))
	})
	if err != nil {
		return nil, nil, err
	}

	t.VoteType = vt
	if similar == nil {
		similar = []domain.Topic{}
	}
	span.SetAttributes(
		attribute.String("topic.id", t.ID),
		attribute.Int("similar.count", len(similar)),
	)
	return t, similar, nil
}

// Update edits the title and description of topic id. When the title is
// edited the topic is compared against other active topics, leaving itself
// out, and every hit is recorded as a pending suggestion. It returns the
// updated topic and those similar topics.
func (s *TopicService) Update(ctx context.Context, id string, in UpdateTopicInput) (*domain.Topic, []domain.Topic, error) {
	tr := otel.Tracer("services/TopicService")
	ctx, span := tr.Start(ctx, "Update",
		trace.WithAttributes(attribute.String("topic.id", id)),
	)
	defer span.End()

	if in.Title == nil && in.Description == nil {
		return nil, nil, ErrInvalidTopic
	}
	var edit repo.TopicEdit
	if in.Title != nil {
		title := s.clip(normalizeTitle(*in.Title))
		if title == "" {
			return nil, nil, ErrEmptyTitle
		}
		edit.Title = &title
	}
	if in.Description != nil {
		d := strings.TrimSpace(*in.Description)
		edit.Description = &d
	}

	var (
		t       *domain.Topic
		similar []domain.Topic
	)
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.Repo.UpdateTopic(ctx, tx, id, edit); err != nil {
			return err
		}
		var err error
		if t, err = s.Repo.GetTopic(ctx, tx, id); err != nil {
			return err
		}
		if edit.Title == nil {
			return nil
		}
		similar, err = s.Repo.FindSimilarTopics(ctx, tx, t.Title, t.ID, SimilarTopicsLimit)
		if err != nil {
			return err
		}
		return s.Repo.CreateSuggestions(ctx, tx, s.suggestionsFor(t, similar))
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrTopicNotFound
		}
		return nil, nil, err
	}

	if similar == nil {
		similar = []domain.Topic{}
	}
	span.SetAttributes(attribute.Int("similar.count", len(similar)))
	return t, similar, nil
}

// Get returns a topic by id, or ErrTopicNotFound.
func (s *TopicService) Get(ctx context.Context, id string) (*domain.Topic, error) {
	t, err := s.Repo.GetTopic(ctx, s.DB, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTopicNotFound
		}
		return nil, err
	}
	return t, nil
}

// View counts a view of the topic and returns it.
func (s *TopicService) View(ctx context.Context, id string) (*domain.Topic, error) {
	if err := s.Repo.IncrementTopicViews(ctx, s.DB, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTopicNotFound
		}
		return nil, err
	}
	return s.Get(ctx, id)
}

// ListPage returns a page of topics matching f and the total match count.
// It applies defaults for invalid page/pageSize.
func (s *TopicService) ListPage(ctx context.Context, f repo.TopicFilter, page, pageSize int) ([]domain.Topic, int64, error) {
	tr := otel.Tracer("services/TopicService")
	ctx, span := tr.Start(ctx, "ListPage",
		trace.WithAttributes(
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	total, err := s.Repo.CountTopics(ctx, s.DB, f)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Topic{}, 0, nil
	}

	items, err := s.Repo.ListTopicsPage(ctx, s.DB, f, offset, pageSize)
	return items, total, err
}

// FindSimilar returns up to SimilarTopicsLimit active topics whose title
// contains title, ignoring case, in database order. excludeID, when set, is
// never returned. A blank title matches nothing.
func (s *TopicService) FindSimilar(ctx context.Context, title, excludeID string) ([]domain.Topic, error) {
	tr := otel.Tracer("services/TopicService")
	ctx, span := tr.Start(ctx, "FindSimilar",
		trace.WithAttributes(attribute.String("exclude.id", excludeID)),
	)
	defer span.End()

	title = normalizeTitle(title)
	if title == "" {
		return []domain.Topic{}, nil
	}
	out, err := s.Repo.FindSimilarTopics(ctx, s.DB, title, strings.TrimSpace(excludeID), SimilarTopicsLimit)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []domain.Topic{}
	}
	span.SetAttributes(attribute.Int("similar.count", len(out)))
	return out, nil
}

// Link marks topicID as a duplicate of targetID: it is deactivated and points
// at the target. Votes and the cached results of topicID are kept.
// Self-links and missing targets yield ErrInvalidLink.
func (s *TopicService) Link(ctx context.Context, topicID, targetID string) error {
	return linkTopics(ctx, s.DB, s.Repo, topicID, targetID)
}

// topicLinker is the subset of repository functions needed to link topics.
type topicLinker interface {
	GetTopic(ctx context.Context, db *gorm.DB, id string) (*domain.Topic, error)
	LinkTopic(ctx context.Context, db *gorm.DB, id, targetID string) error
}

func linkTopics(ctx context.Context, db *gorm.DB, r topicLinker, topicID, targetID string) error {
	targetID = strings.TrimSpace(targetID)
	if targetID == "" || targetID == topicID {
		return ErrInvalidLink
	}
	if _, err := r.GetTopic(ctx, db, topicID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrTopicNotFound
		}
		return err
	}
	if _, err := r.GetTopic(ctx, db, targetID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrInvalidLink
		}
		return err
	}
	if err := r.LinkTopic(ctx, db, topicID, targetID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrTopicNotFound
		}
		return err
	}
	return nil
}

// suggestionsFor scores the similar topics against t and returns one pending
// manual suggestion per topic, best match first.
func (s *TopicService) suggestionsFor(t *domain.Topic, similar []domain.Topic) []domain.TopicSimilaritySuggestion {
	if len(similar) == 0 {
		return nil
	}
	m := s.Matcher
	if m == nil {
		m = search.NewMatcher()
	}
	cands := make([]search.Candidate, len(similar))
	for i, o := range similar {
		cands[i] = search.Candidate{ID: o.ID, Title: o.Title}
	}
	ranked := m.Rank(t.Title, cands)
	out := make([]domain.TopicSimilaritySuggestion, 0, len(ranked))
	for _, r := range ranked {
		out = append(out, domain.TopicSimilaritySuggestion{
			TopicID:          t.ID,
			SimilarTopicID:   r.ID,
			SimilarityScore:  r.Score,
			SuggestionMethod: domain.SuggestionMethodManual,
			Status:           domain.SuggestionPending,
		})
	}
	return out
}

func (s *TopicService) resolveVoteType(ctx context.Context, ref string) (*domain.VoteTypeConfig, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, ErrVoteTypeNotFound
	}
	vt, err := s.Repo.GetVoteType(ctx, s.DB, ref)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		vt, err = s.Repo.GetVoteTypeByName(ctx, s.DB, ref)
	}
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrVoteTypeNotFound
		}
		return nil, err
	}
	if !vt.IsActive {
		return nil, ErrVoteTypeNotFound
	}
	return vt, nil
}

// topicConfig returns raw when it is a JSON object, def when raw is empty or
// null, and ErrInvalidTopic otherwise.
func topicConfig(raw json.RawMessage, def datatypes.JSON) (datatypes.JSON, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		if len(def) == 0 {
			return datatypes.JSON("{}"), nil
		}
		return def, nil
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, ErrInvalidTopic
	}
	return datatypes.JSON(raw), nil
}

func knownVerificationLevel(l string) bool {
	switch l {
	case domain.VerificationNone, domain.VerificationEmail, domain.VerificationPhone,
		domain.VerificationID, domain.VerificationFull:
		return true
	}
	return false
}

func (s *TopicService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// clip truncates a title to the configured maximum rune length.
func (s *TopicService) clip(title string) string {
	if s.TitleMaxLen > 0 && utf8.RuneCountInString(title) > s.TitleMaxLen {
		return string([]rune(title)[:s.TitleMaxLen])
	}
	return title
}

// normalizeTitle trims whitespace and collapses multiple spaces to one.
func normalizeTitle(s string) string {
	return whitespaceRE.ReplaceAllString(strings.TrimSpace(s), " ")
}

// whitespaceRE collapses consecutive whitespace to a single space.
var whitespaceRE = regexp.MustCompile(`\s+`)
