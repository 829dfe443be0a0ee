// Package domain defines the persistence models for topics, votes, vote
// types, cached results and similarity suggestions. These types are mapped
// with GORM and form the core data layer of the voting service.
package domain

import (
	"time"

	"gorm.io/datatypes"
)

// Verification levels a profile (and therefore a vote snapshot) can carry.
const (
	VerificationNone  = "none"
	VerificationEmail = "email"
	VerificationPhone = "phone"
	VerificationID    = "id"
	VerificationFull  = "full"
)

var verificationRanks = map[string]int{
	VerificationNone:  0,
	VerificationEmail: 1,
	VerificationPhone: 2,
	VerificationID:    3,
	VerificationFull:  4,
}

// VerificationAtLeast reports whether level is the same as or stronger than
// min. Unknown levels rank as none.
func VerificationAtLeast(level, min string) bool {
	return verificationRanks[level] >= verificationRanks[min]
}

// Names of the built-in vote types.
const (
	VoteTypeYesNo          = "yes_no"
	VoteTypeMultipleChoice = "multiple_choice"
	VoteTypeRating         = "rating"
	VoteTypeOpenEnded      = "open_ended"
)

// VoteTypeConfig is a named vote schema. Its DefaultConfig seeds the
// VoteConfig of every new topic that uses it.
//
// Fields:
//   - Name: machine name (yes_no, multiple_choice, rating, open_ended); unique.
//   - ConfigSchema: optional JSON schema describing valid vote_config values.
//   - DefaultConfig: JSON parameters (option list, min/max/step, ...).
//   - Version: bumped by operators when the default config changes.
type VoteTypeConfig struct {
	ID            string         `json:"id"             gorm:"type:char(36);primaryKey"`
	Name          string         `json:"name"           gorm:"type:varchar(64);not null;uniqueIndex:ux_vote_type_name"`
	DisplayName   string         `json:"display_name"   gorm:"type:varchar(128);not null"`
	Description   *string        `json:"description,omitempty" gorm:"type:text"`
	ConfigSchema  datatypes.JSON `json:"config_schema"  swaggertype:"object"`
	DefaultConfig datatypes.JSON `json:"default_config" swaggertype:"object"`
	IsActive      bool           `json:"is_active"      gorm:"not null;index"`
	Version       int            `json:"version"        gorm:"not null;default:1"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// TableName returns the database table name for VoteTypeConfig.
func (VoteTypeConfig) TableName() string { return "vote_type_configs" }

// Topic is a poll question. VoteCount is denormalized and recomputed from
// the votes table after every cast. A topic merged into another one is
// deactivated and points at its target through LinkedTopicID.
type Topic struct {
	ID                   string         `json:"id"                     gorm:"type:char(36);primaryKey"`
	CreatedBy            *string        `json:"created_by,omitempty"   gorm:"type:varchar(64);index:idx_topics_creator"`
	Title                string         `json:"title"                  gorm:"type:varchar(255);not null"`
	Description          *string        `json:"description,omitempty"  gorm:"type:text"`
	VoteTypeID           string         `json:"vote_type_id"           gorm:"type:char(36);not null;index"`
	VoteConfig           datatypes.JSON `json:"vote_config"            swaggertype:"object"`
	RequireVerification  bool           `json:"require_verification"   gorm:"not null"`
	MinVerificationLevel string         `json:"min_verification_level" gorm:"type:varchar(16);not null;default:'none'"`
	ExpiresAt            *time.Time     `json:"expires_at,omitempty"`
	IsActive             bool           `json:"is_active"              gorm:"not null;index:idx_topics_active_created,priority:1"`
	IsClosed             bool           `json:"is_closed"              gorm:"not null"`
	LinkedTopicID        *string        `json:"linked_topic_id,omitempty" gorm:"type:char(36);index"`
	ViewCount            int64          `json:"view_count"             gorm:"not null;default:0"`
	VoteCount            int64          `json:"vote_count"             gorm:"not null;default:0"`
	CreatedAt            time.Time      `json:"created_at"             gorm:"index:idx_topics_active_created,priority:2"`
	UpdatedAt            time.Time      `json:"updated_at"`

	// VoteType is loaded on demand (Preload) for detail views.
	VoteType *VoteTypeConfig `json:"vote_type,omitempty" gorm:"foreignKey:VoteTypeID;references:ID"`
}

// TableName returns the database table name for Topic.
func (Topic) TableName() string { return "topics" }

// AcceptsVotes reports whether new votes may be cast on the topic at now.
func (t *Topic) AcceptsVotes(now time.Time) bool {
	if !t.IsActive || t.IsClosed {
		return false
	}
	return t.ExpiresAt == nil || now.Before(*t.ExpiresAt)
}

// Vote is a single voter's ballot on a topic. There is at most one vote per
// (topic_id, profile_id); re-voting overwrites VoteData and UpdatedAt.
//
// IsVerifiedVote and VerificationLevel are snapshots taken at cast time and
// are never recomputed when the voter's profile changes later.
type Vote struct {
	ID                string                      `json:"id"                 gorm:"type:char(36);primaryKey"`
	TopicID           string                      `json:"topic_id"           gorm:"type:char(36);not null;uniqueIndex:ux_votes_topic_profile,priority:1"`
	ProfileID         string                      `json:"profile_id"         gorm:"type:varchar(64);not null;uniqueIndex:ux_votes_topic_profile,priority:2;index"`
	VoteData          datatypes.JSONType[Payload] `json:"vote_data"          gorm:"not null" swaggertype:"object"`
	IsVerifiedVote    bool                        `json:"is_verified_vote"   gorm:"not null"`
	VerificationLevel string                      `json:"verification_level" gorm:"type:varchar(16);not null;default:'none'"`
	IPAddress         *string                     `json:"-"                  gorm:"type:varchar(64)"`
	UserAgent         *string                     `json:"-"                  gorm:"type:varchar(255)"`
	CreatedAt         time.Time                   `json:"created_at"`
	UpdatedAt         time.Time                   `json:"updated_at"`
}

// TableName returns the database table name for Vote.
func (Vote) TableName() string { return "votes" }

// Payload returns the decoded vote payload.
func (v *Vote) Payload() Payload { return v.VoteData.Data() }

// VoteResultsCache is the materialized result snapshot of one topic. It is
// disposable: every column can be recomputed from votes, topics and profile
// demographics, and a recalculation always replaces the whole row.
type VoteResultsCache struct {
	ID                   string                                   `json:"id"                    gorm:"type:char(36);primaryKey"`
	TopicID              string                                   `json:"topic_id"              gorm:"type:char(36);not null;uniqueIndex:ux_results_topic"`
	AllVotes             datatypes.JSON                           `json:"all_votes"             swaggertype:"object"`
	VerifiedVotes        datatypes.JSON                           `json:"verified_votes"        swaggertype:"object"`
	DemographicBreakdown datatypes.JSONType[DemographicBreakdown] `json:"demographic_breakdown" swaggertype:"object"`
	LastCalculated       time.Time                                `json:"last_calculated"       gorm:"not null"`
	VoteCountAll         int64                                    `json:"vote_count_all"        gorm:"not null;default:0"`
	VoteCountVerified    int64                                    `json:"vote_count_verified"   gorm:"not null;default:0"`
}

// TableName returns the database table name for VoteResultsCache.
func (VoteResultsCache) TableName() string { return "vote_results_cache" }

// Suggestion methods and review states.
const (
	SuggestionMethodAI         = "ai"
	SuggestionMethodManual     = "manual"
	SuggestionMethodUserReport = "user_report"

	SuggestionPending  = "pending"
	SuggestionAccepted = "accepted"
	SuggestionRejected = "rejected"
)

// TopicSimilaritySuggestion records a candidate duplicate pairing. It is
// created when a topic is authored (or reported) and only changes through a
// reviewer decision.
type TopicSimilaritySuggestion struct {
	ID               string     `json:"id"                gorm:"type:char(36);primaryKey"`
	TopicID          string     `json:"topic_id"          gorm:"type:char(36);not null;uniqueIndex:ux_suggestion_pair,priority:1"`
	SimilarTopicID   string     `json:"similar_topic_id"  gorm:"type:char(36);not null;uniqueIndex:ux_suggestion_pair,priority:2"`
	SimilarityScore  float64    `json:"similarity_score"  gorm:"not null;default:0"`
	SuggestionMethod string     `json:"suggestion_method" gorm:"type:varchar(16);not null;check:suggestion_method IN ('ai','manual','user_report')"`
	Status           string     `json:"status"            gorm:"type:varchar(16);not null;index;check:status IN ('pending','accepted','rejected')"`
	ReviewedBy       *string    `json:"reviewed_by,omitempty" gorm:"type:varchar(64)"`
	ReviewedAt       *time.Time `json:"reviewed_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`

	SimilarTopic *Topic `json:"similar_topic,omitempty" gorm:"foreignKey:SimilarTopicID;references:ID"`
}

// TableName returns the database table name for TopicSimilaritySuggestion.
func (TopicSimilaritySuggestion) TableName() string { return "topic_similarity_suggestions" }

// Profile is the voter identity owned by the external profile store. Only
// the verification flags are read here.
type Profile struct {
	ID                string    `json:"id"                 gorm:"type:varchar(64);primaryKey"`
	Username          string    `json:"username"           gorm:"type:varchar(64);not null;index"`
	IsVerified        bool      `json:"is_verified"        gorm:"not null"`
	VerificationLevel string    `json:"verification_level" gorm:"type:varchar(16);not null;default:'none'"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// TableName returns the database table name for Profile.
func (Profile) TableName() string { return "profiles" }

// ProfileDemographics holds optional demographic attributes of a profile.
type ProfileDemographics struct {
	ID              string    `json:"id"               gorm:"type:char(36);primaryKey"`
	ProfileID       string    `json:"profile_id"       gorm:"type:varchar(64);not null;index"`
	AgeRange        *string   `json:"age_range"        gorm:"type:varchar(32)"`
	Gender          *string   `json:"gender"           gorm:"type:varchar(32)"`
	LocationCountry *string   `json:"location_country" gorm:"type:varchar(64)"`
	LocationRegion  *string   `json:"location_region"  gorm:"type:varchar(64)"`
	LocationCity    *string   `json:"location_city"    gorm:"type:varchar(64)"`
	IsVerified      bool      `json:"is_verified"      gorm:"not null"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// TableName returns the database table name for ProfileDemographics.
func (ProfileDemographics) TableName() string { return "profile_demographics" }
