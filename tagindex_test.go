package nostr

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildTagIndex(t *testing.T) {
	idx := BuildTagIndex(Tags{
		{"e", "abc"},
		{"e", "def"},
		{"e", "abc"}, // duplicate value, kept once
		{"p", "123"},
		{"t"},                 // no value, skipped
		{"expiration", "100"}, // multi-letter name, skipped
		{"1", "digit"},        // not a letter, skipped
		{"P", "upper"},        // uppercase is a distinct index entry
	})

	require.Equal(t, []string{"abc", "def"}, idx['e'])
	require.Equal(t, []string{"123"}, idx['p'])
	require.Equal(t, []string{"upper"}, idx['P'])
	require.Nil(t, idx['t'])
	require.Nil(t, idx['1'])

	require.True(t, idx.Intersects('e', []string{"zzz", "def"}))
	require.False(t, idx.Intersects('e', []string{"zzz"}))
	require.False(t, idx.Intersects('q', []string{"abc"}))
}

func TestBuildTagIndexEmpty(t *testing.T) {
	require.Nil(t, BuildTagIndex(nil))
	require.Nil(t, BuildTagIndex(Tags{{"expiration", "100"}}))

	// a nil index intersects nothing
	var idx TagIndex
	require.False(t, idx.Intersects('e', []string{"abc"}))
}
