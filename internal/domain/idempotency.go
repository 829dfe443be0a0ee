package domain

import "time"

// Idempotency remembers which vote an Idempotency-Key produced so a retried
// cast replays it. Keys are scoped to one voter on one topic.
type Idempotency struct {
	ID        string    `gorm:"type:char(36);primaryKey"`
	VoterID   string    `gorm:"type:varchar(64);not null;uniqueIndex:ux_idem_voter_topic_key,priority:1"`
	TopicID   string    `gorm:"type:char(36);not null;uniqueIndex:ux_idem_voter_topic_key,priority:2"`
	Key       string    `gorm:"type:varchar(200);not null;uniqueIndex:ux_idem_voter_topic_key,priority:3"`
	VoteID    string    `gorm:"type:char(36);not null"`
	Status    int       `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`
	ExpiresAt time.Time `gorm:"not null;index"`
}

func (Idempotency) TableName() string { return "idempotency_keys" }

// Live reports whether the record still replays at now.
func (i Idempotency) Live(now time.Time) bool { return now.Before(i.ExpiresAt) }
