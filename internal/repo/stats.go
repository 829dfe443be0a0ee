package repo

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/votehub-backend/internal/domain"
)

// Stamp fingerprints a set of rows for conditional GETs. Inserts and deletes
// change Count; updates move Latest.
type Stamp struct {
	Count  int64
	Latest time.Time // zero when Count is 0
}

// ETag renders s as a weak entity tag. scope keeps stamps of different
// listings (e.g. two query strings) from colliding.
func (s Stamp) ETag(kind, scope string) string {
	var ts int64
	if !s.Latest.IsZero() {
		ts = s.Latest.UnixNano()
	}
	return fmt.Sprintf(`W/"%s:%s:%d:%d"`, kind, scope, s.Count, ts)
}

// TopicsStamp stamps the topics matching f.
func TopicsStamp(ctx context.Context, db *gorm.DB, f TopicFilter) (Stamp, error) {
	return stampOf(func() *gorm.DB {
		return f.apply(db.WithContext(ctx).Model(&domain.Topic{}))
	})
}

// stampOf runs a count and a latest-updated_at query over base. MAX() is
// avoided since SQLite returns it as TEXT.
func stampOf(base func() *gorm.DB) (Stamp, error) {
	var s Stamp
	if err := base().Count(&s.Count).Error; err != nil {
		return Stamp{}, err
	}
	if s.Count == 0 {
		return s, nil
	}
	var row struct{ UpdatedAt time.Time }
	if err := base().Select("updated_at").Order("updated_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return Stamp{}, err
	}
	s.Latest = row.UpdatedAt
	return s, nil
}
