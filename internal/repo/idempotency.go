package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/votehub-backend/internal/domain"
)

// GetIdempotency returns the live record for (voterID, topicID, key) at now,
// or ErrNotFound.
func GetIdempotency(ctx context.Context, db *gorm.DB, voterID, topicID, key string, now time.Time) (*domain.Idempotency, error) {
	if strings.TrimSpace(topicID) == "" || key == "" {
		return nil, ErrNotFound
	}
	var rec domain.Idempotency
	err := db.WithContext(ctx).
		Where(map[string]any{"voter_id": voterID, "topic_id": topicID, "key": key}).
		Where("expires_at > ?", now).
		Take(&rec).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, ErrNotFound
	case err != nil:
		return nil, err
	}
	return &rec, nil
}

// CreateIdempotency stores rec, valid for ttl from now. ID and timestamps are
// filled in. A live or expired record with the same key yields ErrDuplicate.
func CreateIdempotency(ctx context.Context, db *gorm.DB, rec domain.Idempotency, now time.Time, ttl time.Duration) (*domain.Idempotency, error) {
	rec.ID = uuid.NewString()
	rec.CreatedAt = now.UTC()
	rec.ExpiresAt = rec.CreatedAt.Add(ttl)
	if err := db.WithContext(ctx).Create(&rec).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return &rec, nil
}

// PurgeExpiredIdempotency deletes records that are no longer live at now.
func PurgeExpiredIdempotency(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	res := db.WithContext(ctx).Where("expires_at <= ?", now).Delete(&domain.Idempotency{})
	return res.RowsAffected, res.Error
}
