package nostr

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func signedEventJSON(t *testing.T, mutate func(*Event)) []byte {
	t.Helper()
	sk := Generate()
	evt := Event{
		CreatedAt: Now(),
		Kind:      1,
		Tags:      Tags{{"t", "test"}},
		Content:   "valid event",
	}
	if mutate != nil {
		mutate(&evt)
	}
	require.NoError(t, evt.Sign(sk))
	b, err := evt.MarshalJSON()
	require.NoError(t, err)
	return b
}

func TestParseEventAcceptsValid(t *testing.T) {
	raw := signedEventJSON(t, nil)
	evt, err := ParseEvent(raw)
	require.NoError(t, err)
	require.Equal(t, "valid event", evt.Content)
	require.True(t, evt.CheckID())
}

func TestParseEventRejectsMalformed(t *testing.T) {
	for _, tc := range []struct {
		name string
		raw  string
	}{
		{"not json", "not json at all"},
		{"json array", `["EVENT", {}]`},
		{"missing id", `{"pubkey":"79be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798"}`},
		{"uppercase id hex", `{"id":"ABCDEF0123456789ABCDEF0123456789ABCDEF0123456789ABCDEF0123456789"}`},
		{"short sig", `{"id":"abcdef0123456789abcdef0123456789abcdef0123456789abcdef0123456789","pubkey":"abcdef0123456789abcdef0123456789abcdef0123456789abcdef0123456789","sig":"00"}`},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseEvent([]byte(tc.raw))
			require.ErrorIs(t, err, ErrMalformed)
		})
	}
}

func TestParseEventRejectsOversized(t *testing.T) {
	raw := make([]byte, MaxEventSize+1)
	_, err := ParseEvent(raw)
	require.ErrorIs(t, err, ErrMalformed)
}

func TestParseEventRejectsTamperedID(t *testing.T) {
	raw := signedEventJSON(t, nil)
	// swap the content without recomputing the id
	tampered := strings.Replace(string(raw), "valid event", "evil event!", 1)
	_, err := ParseEvent([]byte(tampered))
	require.ErrorIs(t, err, ErrIDMismatch)
}

func TestParseEventRejectsBadSignature(t *testing.T) {
	sk := Generate()
	evt := Event{CreatedAt: Now(), Kind: 1, Content: "x"}
	require.NoError(t, evt.Sign(sk))

	// re-sign territory: replace the sig with a valid-shaped one from
	// another event so the id still checks out but the sig doesn't
	other := Event{CreatedAt: evt.CreatedAt, Kind: 1, Content: "y"}
	require.NoError(t, other.Sign(sk))
	evt.Sig = other.Sig

	b, err := evt.MarshalJSON()
	require.NoError(t, err)
	_, err = ParseEvent(b)
	require.ErrorIs(t, err, ErrBadSignature)
}

func TestValidateStructureLimits(t *testing.T) {
	sk := Generate()

	tooFarOut := Event{CreatedAt: Now() + 2*365*24*60*60, Kind: 1}
	require.NoError(t, tooFarOut.Sign(sk))
	require.ErrorIs(t, tooFarOut.Validate(), ErrMalformed)

	longContent := Event{CreatedAt: Now(), Kind: 1, Content: strings.Repeat("a", MaxContentLength+1)}
	require.NoError(t, longContent.Sign(sk))
	require.ErrorIs(t, longContent.Validate(), ErrMalformed)

	manyTags := Event{CreatedAt: Now(), Kind: 1, Tags: make(Tags, MaxTags+1)}
	for i := range manyTags.Tags {
		manyTags.Tags[i] = Tag{"t", "x"}
	}
	require.NoError(t, manyTags.Sign(sk))
	require.ErrorIs(t, manyTags.Validate(), ErrMalformed)
}

func TestValidateFilter(t *testing.T) {
	require.NoError(t, ValidateFilter(Filter{}))
	require.NoError(t, ValidateFilter(Filter{
		IDs:     []string{"abcd"},
		Authors: []string{"79be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798"},
		Tags:    TagMap{"t": {"nostr"}},
		Limit:   100,
	}))

	require.Error(t, ValidateFilter(Filter{IDs: []string{"XYZ"}}))
	require.Error(t, ValidateFilter(Filter{Authors: []string{""}}))
	require.Error(t, ValidateFilter(Filter{Since: 100, Until: 50}))
	require.Error(t, ValidateFilter(Filter{Limit: MaxQueryLimit + 1}))
	require.Error(t, ValidateFilter(Filter{Tags: TagMap{"tt": {"x"}}}))
	require.Error(t, ValidateFilter(Filter{Tags: TagMap{"t": {}}}))
	require.Error(t, ValidateFilter(Filter{Tags: TagMap{"e": {"notanid"}}}))
}

func TestValidateSubscriptionID(t *testing.T) {
	require.NoError(t, ValidateSubscriptionID("sub1"))
	require.NoError(t, ValidateSubscriptionID(strings.Repeat("x", 64)))

	require.Error(t, ValidateSubscriptionID(""))
	require.Error(t, ValidateSubscriptionID(strings.Repeat("x", 65)))
	require.Error(t, ValidateSubscriptionID("has\nnewline"))
}
