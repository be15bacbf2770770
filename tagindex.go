package nostr

import "slices"

// TagIndex maps a single-letter tag name to the set of first-values of
// tags carrying that name. It is derived from an event's Tags and only
// exists to speed up "#<letter>" filter lookups; it is recomputed from
// the tags whenever needed and never stored on its own.
type TagIndex map[byte][]string

// BuildTagIndex walks tags once, grouping first-values by tag name for
// tags whose name is a single ASCII letter. Tags without a value and
// tags with longer names are skipped.
func BuildTagIndex(tags Tags) TagIndex {
	var idx TagIndex
	for _, tag := range tags {
		if len(tag) < 2 || len(tag[0]) != 1 {
			continue
		}
		letter := tag[0][0]
		if !isASCIILetter(letter) {
			continue
		}
		if idx == nil {
			idx = make(TagIndex, 2)
		}
		if !slices.Contains(idx[letter], tag[1]) {
			idx[letter] = append(idx[letter], tag[1])
		}
	}
	return idx
}

// Intersects reports whether the indexed values for letter share at
// least one element with values.
func (idx TagIndex) Intersects(letter byte, values []string) bool {
	for _, have := range idx[letter] {
		if slices.Contains(values, have) {
			return true
		}
	}
	return false
}

func isASCIILetter(c byte) bool {
	return ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}
