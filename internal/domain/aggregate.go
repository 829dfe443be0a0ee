package domain

import (
	"encoding/json"
	"strconv"
)

// AggregateResult is the vote-type specific summary of a set of votes.
//
// Its JSON form depends on Kind:
//   - answer, choice: {"<value>": count, ...}
//   - rating:         {"average": n, "distribution": {"<rating>": count}, "count": n}
//   - response:       {"responses": [...], "count": n}
//   - unknown:        {"count": n}, or {} when there were no votes at all
type AggregateResult struct {
	Kind         VoteKind
	Counts       map[string]int
	Average      float64
	Distribution map[string]int
	Responses    []string
	Count        int
}

// MarshalJSON renders the kind-specific shape.
func (r AggregateResult) MarshalJSON() ([]byte, error) {
	switch r.Kind {
	case KindAnswer, KindChoice:
		counts := r.Counts
		if counts == nil {
			counts = map[string]int{}
		}
		return json.Marshal(counts)
	case KindRating:
		dist := r.Distribution
		if dist == nil {
			dist = map[string]int{}
		}
		return json.Marshal(struct {
			Average      float64        `json:"average"`
			Distribution map[string]int `json:"distribution"`
			Count        int            `json:"count"`
		}{r.Average, dist, r.Count})
	case KindResponse:
		responses := r.Responses
		if responses == nil {
			responses = []string{}
		}
		return json.Marshal(struct {
			Responses []string `json:"responses"`
			Count     int      `json:"count"`
		}{responses, r.Count})
	}
	if r.Count == 0 {
		return []byte("{}"), nil
	}
	return json.Marshal(map[string]int{"count": r.Count})
}

// ResolveKind picks the aggregation strategy for a topic. The vote type of
// the topic decides; when it is not one of the built-in types the shape of
// the first vote is used instead.
func ResolveKind(voteTypeName string, payloads []Payload) VoteKind {
	if k := KindForVoteType(voteTypeName); k != KindUnknown {
		return k
	}
	if len(payloads) == 0 {
		return KindUnknown
	}
	return payloads[0].Kind
}

// Aggregate summarizes payloads using the strategy for kind. It is a pure
// function and its output does not depend on the order of payloads, except
// for the response list which keeps input order.
//
// Payloads whose kind differs from kind are left out of the tallies.
func Aggregate(kind VoteKind, payloads []Payload) AggregateResult {
	if len(payloads) == 0 {
		return AggregateResult{}
	}

	switch kind {
	case KindAnswer, KindChoice:
		counts := make(map[string]int)
		for _, p := range payloads {
			if p.Kind != kind {
				continue
			}
			v := p.Answer
			if kind == KindChoice {
				v = p.Choice
			}
			counts[v]++
		}
		return AggregateResult{Kind: kind, Counts: counts}

	case KindRating:
		dist := make(map[string]int)
		var sum float64
		n := 0
		for _, p := range payloads {
			if p.Kind != KindRating {
				continue
			}
			sum += p.Rating
			dist[strconv.FormatFloat(p.Rating, 'f', -1, 64)]++
			n++
		}
		res := AggregateResult{Kind: KindRating, Distribution: dist, Count: n}
		if n > 0 {
			res.Average = sum / float64(n)
		}
		return res

	case KindResponse:
		responses := make([]string, 0, len(payloads))
		for _, p := range payloads {
			if p.Kind == KindResponse {
				responses = append(responses, p.Response)
			}
		}
		return AggregateResult{Kind: KindResponse, Responses: responses, Count: len(responses)}
	}

	return AggregateResult{Count: len(payloads)}
}

// DemographicBreakdown counts voters per demographic bucket. Voters without
// a value for a dimension are not counted in that dimension.
type DemographicBreakdown struct {
	ByAge      map[string]int `json:"by_age"`
	ByGender   map[string]int `json:"by_gender"`
	ByLocation map[string]int `json:"by_location"`
}

// NewDemographicBreakdown returns a breakdown with empty, non-nil maps.
func NewDemographicBreakdown() DemographicBreakdown {
	return DemographicBreakdown{
		ByAge:      map[string]int{},
		ByGender:   map[string]int{},
		ByLocation: map[string]int{},
	}
}

// Add counts one voter's demographics.
func (b *DemographicBreakdown) Add(d ProfileDemographics) {
	if d.AgeRange != nil && *d.AgeRange != "" {
		b.ByAge[*d.AgeRange]++
	}
	if d.Gender != nil && *d.Gender != "" {
		b.ByGender[*d.Gender]++
	}
	if d.LocationCountry != nil && *d.LocationCountry != "" {
		b.ByLocation[*d.LocationCountry]++
	}
}
