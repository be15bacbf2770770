package nostr

import (
	"slices"
	"strings"

	"github.com/mailru/easyjson"
)

// Filter is a subscriber's declared interest. Absent constraints are
// vacuously true; a filter with no constraints matches every event.
type Filter struct {
	IDs     []string // hex id prefixes
	Kinds   []Kind
	Authors []string // hex pubkey prefixes
	Tags    TagMap
	Since   Timestamp
	Until   Timestamp
	Limit   int
	Search  string

	// LimitZero is or must be set when there is a "limit":0 in the filter, and not when "limit" is just omitted
	LimitZero bool `json:"-"`
}

type TagMap map[string][]string

func (ef Filter) String() string {
	j, _ := easyjson.Marshal(ef)
	return string(j)
}

// Matches reports whether all of the filter's present constraints hold
// for the event. "ids" and "authors" entries are prefix-matched so that
// short-id queries work, "kinds" is an exact set, "since"/"until" are
// inclusive bounds and tag constraints are OR within a key and AND
// across keys.
func (ef Filter) Matches(event Event) bool {
	return ef.MatchesWithIndex(event, BuildTagIndex(event.Tags))
}

// MatchesWithIndex is like Matches but takes a prebuilt TagIndex, so a
// dispatcher evaluating one event against many filters can index the
// tags once.
func (ef Filter) MatchesWithIndex(event Event, idx TagIndex) bool {
	if !ef.matchesIgnoringTimestampConstraints(event, idx) {
		return false
	}

	if ef.Since != 0 && event.CreatedAt < ef.Since {
		return false
	}

	if ef.Until != 0 && event.CreatedAt > ef.Until {
		return false
	}

	return true
}

func (ef Filter) matchesIgnoringTimestampConstraints(event Event, idx TagIndex) bool {
	if ef.IDs != nil && !containsPrefixOf(ef.IDs, event.ID.Hex()) {
		return false
	}

	if ef.Kinds != nil && !slices.Contains(ef.Kinds, event.Kind) {
		return false
	}

	if ef.Authors != nil && !containsPrefixOf(ef.Authors, event.PubKey.Hex()) {
		return false
	}

	for f, v := range ef.Tags {
		if v == nil {
			continue
		}
		if len(f) == 1 {
			if !idx.Intersects(f[0], v) {
				return false
			}
		} else if !event.Tags.ContainsAny(f, v) {
			return false
		}
	}

	return true
}

func containsPrefixOf(prefixes []string, full string) bool {
	for _, prefix := range prefixes {
		if strings.HasPrefix(full, prefix) {
			return true
		}
	}
	return false
}

func FilterEqual(a Filter, b Filter) bool {
	if !similar(a.Kinds, b.Kinds) {
		return false
	}

	if !similar(a.IDs, b.IDs) {
		return false
	}

	if !similar(a.Authors, b.Authors) {
		return false
	}

	if len(a.Tags) != len(b.Tags) {
		return false
	}

	for f, av := range a.Tags {
		if bv, ok := b.Tags[f]; !ok {
			return false
		} else {
			if !similar(av, bv) {
				return false
			}
		}
	}

	if a.Since != b.Since {
		return false
	}

	if a.Until != b.Until {
		return false
	}

	if a.Search != b.Search {
		return false
	}

	if a.LimitZero != b.LimitZero {
		return false
	}

	return true
}

func (ef Filter) Clone() Filter {
	clone := Filter{
		IDs:       slices.Clone(ef.IDs),
		Kinds:     slices.Clone(ef.Kinds),
		Authors:   slices.Clone(ef.Authors),
		Limit:     ef.Limit,
		Search:    ef.Search,
		LimitZero: ef.LimitZero,
		Since:     ef.Since,
		Until:     ef.Until,
	}

	if ef.Tags != nil {
		clone.Tags = make(TagMap, len(ef.Tags))
		for k, v := range ef.Tags {
			clone.Tags[k] = slices.Clone(v)
		}
	}

	return clone
}
