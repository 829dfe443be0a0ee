// Package services defines the business logic for topics, votes, results and
// similarity suggestions. This file centralizes common service-level error
// values so that they can be consistently returned by service methods and
// checked by callers.
//
// These errors are intended for internal use by the service layer and translation
// into user-facing messages or HTTP status codes should be performed at the
// handler/controller layer.
package services

import "errors"

// Topic-related errors.
var (
	// ErrTopicNotFound indicates that the requested topic does not exist.
	ErrTopicNotFound = errors.New("topic not found")

	// ErrTopicClosed is returned when a vote is cast on a topic that is
	// inactive, closed or past its expiry.
	ErrTopicClosed = errors.New("topic is not accepting votes")

	// ErrEmptyTitle is returned when a topic is created without a title.
	ErrEmptyTitle = errors.New("title is empty")

	// ErrVoteTypeNotFound indicates an unknown or inactive vote type.
	ErrVoteTypeNotFound = errors.New("vote type not found")

	// ErrInvalidLink is returned for self-links and links to missing topics.
	ErrInvalidLink = errors.New("invalid topic link")

	// ErrInvalidTopic is returned when topic settings are malformed (vote
	// config that is not a JSON object, unknown verification level, expiry
	// in the past).
	ErrInvalidTopic = errors.New("invalid topic settings")
)

// Vote-related errors.
var (
	// ErrInvalidVote is returned when a payload does not fit the topic's vote
	// type or configuration.
	ErrInvalidVote = errors.New("invalid vote")

	// ErrVerificationRequired is returned when a topic requires a verified
	// voter (at a minimum level) and the voter does not qualify.
	ErrVerificationRequired = errors.New("verified voter required")

	// ErrVoteNotFound indicates the voter has not voted on the topic.
	ErrVoteNotFound = errors.New("vote not found")
)

// Suggestion-related errors.
var (
	// ErrSuggestionNotFound indicates that the requested suggestion does not exist.
	ErrSuggestionNotFound = errors.New("suggestion not found")

	// ErrSuggestionReviewed is returned when a suggestion is no longer pending.
	ErrSuggestionReviewed = errors.New("suggestion already reviewed")

	// ErrInvalidReview is returned for review statuses other than accepted
	// or rejected.
	ErrInvalidReview = errors.New("review status must be accepted or rejected")

	// ErrDuplicateSuggestion is returned when the pair was already suggested.
	ErrDuplicateSuggestion = errors.New("suggestion already exists")
)

// ErrDemographicsUnavailable wraps failures to read voter demographics. Results
// are still served without a breakdown when it occurs.
var ErrDemographicsUnavailable = errors.New("demographics unavailable")
