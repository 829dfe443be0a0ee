// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Topic model.
package repo

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/votehub-backend/internal/domain"
)

// TopicFilter narrows topic listings.
type TopicFilter struct {
	CreatedBy       string // exact creator id; empty means any
	Search          string // case-insensitive substring of the title
	IncludeInactive bool   // include deactivated (linked) topics
	OrderBy         string // created_at | vote_count | view_count
	Desc            bool
}

var topicOrderColumns = map[string]bool{
	"created_at": true,
	"vote_count": true,
	"view_count": true,
}

func (f TopicFilter) apply(q *gorm.DB) *gorm.DB {
	if !f.IncludeInactive {
		q = q.Where("is_active = ?", true)
	}
	if f.CreatedBy != "" {
		q = q.Where("created_by = ?", f.CreatedBy)
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		q = whereTitleContains(q, s)
	}
	return q
}

func (f TopicFilter) order() string {
	col := f.OrderBy
	if !topicOrderColumns[col] {
		col = "created_at"
	}
	dir := "ASC"
	if f.Desc {
		dir = "DESC"
	}
	return col + " " + dir + ", id " + dir
}

// EscapeLike escapes LIKE wildcards so s matches literally with ESCAPE '\'.
func EscapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// whereTitleContains folds both sides in SQL so the column and the pattern
// see the same case mapping. SQLite's LOWER is ASCII-only; Postgres gets
// ILIKE, which folds per the database collation.
func whereTitleContains(q *gorm.DB, s string) *gorm.DB {
	pattern := "%" + EscapeLike(s) + "%"
	if q.Dialector != nil && q.Dialector.Name() == "postgres" {
		return q.Where(`title ILIKE ? ESCAPE '\'`, pattern)
	}
	return q.Where(`LOWER(title) LIKE LOWER(?) ESCAPE '\'`, pattern)
}

// CreateTopic inserts t, assigning an ID and timestamps when unset.
func CreateTopic(ctx context.Context, db *gorm.DB, t *domain.Topic) (*domain.Topic, error) {
	now := time.Now().UTC()
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.MinVerificationLevel == "" {
		t.MinVerificationLevel = domain.VerificationNone
	}
	t.CreatedAt = now
	t.UpdatedAt = now
	if err := db.WithContext(ctx).Omit("VoteType").Create(t).Error; err != nil {
		return nil, err
	}
	return t, nil
}

// GetTopic fetches a topic by id with its vote type preloaded, or ErrNotFound.
func GetTopic(ctx context.Context, db *gorm.DB, id string) (*domain.Topic, error) {
	var t domain.Topic
	err := db.WithContext(ctx).
		Preload("VoteType").
		Where("id = ?", id).
		First(&t).Error
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// CountTopics returns the number of topics matching f.
func CountTopics(ctx context.Context, db *gorm.DB, f TopicFilter) (int64, error) {
	var total int64
	err := f.apply(db.WithContext(ctx).Model(&domain.Topic{})).Count(&total).Error
	return total, err
}

// ListTopicsPage returns a page of topics matching f. Use CountTopics for the
// total.
func ListTopicsPage(ctx context.Context, db *gorm.DB, f TopicFilter, offset, limit int) ([]domain.Topic, error) {
	var out []domain.Topic
	err := f.apply(db.WithContext(ctx).Model(&domain.Topic{})).
		Order(f.order()).
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// FindSimilarTopics returns up to limit active topics whose title contains
// title, ignoring case. excludeID, when set, is left out by the query itself.
// Rows come back in database order.
func FindSimilarTopics(ctx context.Context, db *gorm.DB, title, excludeID string, limit int) ([]domain.Topic, error) {
	var out []domain.Topic
	q := whereTitleContains(db.WithContext(ctx).Model(&domain.Topic{}), title).
		Where("is_active = ?", true)
	if excludeID != "" {
		q = q.Where("id <> ?", excludeID)
	}
	err := q.Limit(limit).Find(&out).Error
	return out, err
}

// TopicEdit lists the author-editable fields of a topic. Nil fields are left
// unchanged.
type TopicEdit struct {
	Title       *string
	Description *string
}

// UpdateTopic applies e to topic id and bumps updated_at. Returns ErrNotFound
// when id does not exist.
func UpdateTopic(ctx context.Context, db *gorm.DB, id string, e TopicEdit) error {
	fields := map[string]any{"updated_at": time.Now().UTC()}
	if e.Title != nil {
		fields["title"] = *e.Title
	}
	if e.Description != nil {
		if *e.Description == "" {
			fields["description"] = nil
		} else {
			fields["description"] = *e.Description
		}
	}
	res := db.WithContext(ctx).
		Model(&domain.Topic{}).
		Where("id = ?", id).
		Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// LinkTopic points id at targetID and deactivates it. Votes are untouched.
// Returns ErrNotFound when id does not exist.
func LinkTopic(ctx context.Context, db *gorm.DB, id, targetID string) error {
	res := db.WithContext(ctx).
		Model(&domain.Topic{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"linked_topic_id": targetID,
			"is_active":       false,
			"updated_at":      time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// RefreshTopicVoteCount sets topics.vote_count to the number of vote rows
// for the topic in a single statement.
func RefreshTopicVoteCount(ctx context.Context, db *gorm.DB, id string) error {
	return db.WithContext(ctx).
		Model(&domain.Topic{}).
		Where("id = ?", id).
		UpdateColumn("vote_count", gorm.Expr("(SELECT COUNT(*) FROM votes WHERE votes.topic_id = ?)", id)).
		Error
}

// IncrementTopicViews bumps view_count by one without touching updated_at.
func IncrementTopicViews(ctx context.Context, db *gorm.DB, id string) error {
	res := db.WithContext(ctx).
		Model(&domain.Topic{}).
		Where("id = ?", id).
		UpdateColumn("view_count", gorm.Expr("view_count + ?", 1))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
