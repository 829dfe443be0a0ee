package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"
)

// VoteKind identifies which variant of Payload is populated.
type VoteKind string

// Payload kinds. Each maps to exactly one JSON key in the stored vote_data.
const (
	KindUnknown  VoteKind = ""
	KindAnswer   VoteKind = "answer"
	KindChoice   VoteKind = "choice"
	KindRating   VoteKind = "rating"
	KindResponse VoteKind = "response"
)

// KindForVoteType maps a vote type name to the payload kind it expects.
// Unrecognized names map to KindUnknown.
func KindForVoteType(name string) VoteKind {
	switch name {
	case VoteTypeYesNo:
		return KindAnswer
	case VoteTypeMultipleChoice:
		return KindChoice
	case VoteTypeRating:
		return KindRating
	case VoteTypeOpenEnded:
		return KindResponse
	default:
		return KindUnknown
	}
}

// ErrEmptyPayload is returned when decoding a payload from blank input.
var ErrEmptyPayload = errors.New("vote payload is empty")

// Payload is the tagged union stored in votes.vote_data. On the wire it is
// one of {"answer": ...}, {"choice": ...}, {"rating": n} or {"response": ...}.
//
// Objects that carry none of the four keys, and values that are not objects,
// decode to KindUnknown; their raw bytes are kept so they round-trip unchanged.
type Payload struct {
	Kind     VoteKind
	Answer   string
	Choice   string
	Rating   float64
	Response string

	raw json.RawMessage
}

// AnswerPayload builds a yes/no payload.
func AnswerPayload(answer string) Payload { return Payload{Kind: KindAnswer, Answer: answer} }

// ChoicePayload builds a multiple choice payload.
func ChoicePayload(choice string) Payload { return Payload{Kind: KindChoice, Choice: choice} }

// RatingPayload builds a rating payload.
func RatingPayload(rating float64) Payload { return Payload{Kind: KindRating, Rating: rating} }

// ResponsePayload builds an open-ended payload.
func ResponsePayload(response string) Payload {
	return Payload{Kind: KindResponse, Response: response}
}

// MarshalJSON encodes the single populated variant.
func (p Payload) MarshalJSON() ([]byte, error) {
	switch p.Kind {
	case KindAnswer:
		return json.Marshal(map[string]string{"answer": p.Answer})
	case KindChoice:
		return json.Marshal(map[string]string{"choice": p.Choice})
	case KindRating:
		return json.Marshal(map[string]float64{"rating": p.Rating})
	case KindResponse:
		return json.Marshal(map[string]string{"response": p.Response})
	}
	if len(p.raw) > 0 {
		return p.raw, nil
	}
	return []byte("{}"), nil
}

// UnmarshalJSON decodes a vote_data object. Keys are checked in the order
// answer, choice, rating, response; the first one present selects the kind.
//
// Any other valid JSON value, null included, decodes to KindUnknown so a
// stored row that is not an object still scans.
func (p *Payload) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return ErrEmptyPayload
	}
	*p = Payload{}
	var fields map[string]json.RawMessage
	if b[0] != '{' {
		if !json.Valid(b) {
			return errors.New("vote payload is not valid JSON")
		}
		p.raw = append(json.RawMessage(nil), b...)
		return nil
	}
	if err := json.Unmarshal(b, &fields); err != nil {
		return err
	}

	if v, ok := fields["answer"]; ok {
		p.Kind, p.Answer = KindAnswer, scalarString(v)
		return nil
	}
	if v, ok := fields["choice"]; ok {
		p.Kind, p.Choice = KindChoice, scalarString(v)
		return nil
	}
	if v, ok := fields["rating"]; ok {
		if r, ok := scalarNumber(v); ok {
			p.Kind, p.Rating = KindRating, r
			return nil
		}
	}
	if v, ok := fields["response"]; ok {
		p.Kind, p.Response = KindResponse, scalarString(v)
		return nil
	}
	p.raw = append(json.RawMessage(nil), b...)
	return nil
}

// scalarString renders a JSON scalar as the string key it is tallied under.
// Strings are unquoted; anything else keeps its JSON text.
func scalarString(v json.RawMessage) string {
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(v))
}

// scalarNumber accepts JSON numbers and numeric strings.
func scalarNumber(v json.RawMessage) (float64, bool) {
	if bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(v, &f); err == nil {
		return f, true
	}
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
			return f, true
		}
	}
	return 0, false
}
