package nostr

import "strconv"

type Kind uint16

func (kind Kind) Num() uint16    { return uint16(kind) }
func (kind Kind) String() string { return "kind::" + kind.Name() + "<" + strconv.Itoa(int(kind)) + ">" }
func (kind Kind) Name() string {
	switch kind {
	case KindProfileMetadata:
		return "ProfileMetadata"
	case KindTextNote:
		return "TextNote"
	case KindFollowList:
		return "FollowList"
	case KindDeletion:
		return "Deletion"
	case KindRepost:
		return "Repost"
	case KindReaction:
		return "Reaction"
	case KindRelayListMetadata:
		return "RelayListMetadata"
	case KindClientAuthentication:
		return "ClientAuthentication"
	default:
		return "Unknown"
	}
}

const (
	KindProfileMetadata      Kind = 0
	KindTextNote             Kind = 1
	KindFollowList           Kind = 3
	KindDeletion             Kind = 5
	KindRepost               Kind = 6
	KindReaction             Kind = 7
	KindRelayListMetadata    Kind = 10002
	KindClientAuthentication Kind = 22242
)

func (kind Kind) IsRegular() bool {
	return kind < 10000 && kind != 0 && kind != 3
}
func (kind Kind) IsReplaceable() bool {
	return kind == 0 || kind == 3 || (10000 <= kind && kind < 20000)
}
func (kind Kind) IsEphemeral() bool {
	return 20000 <= kind && kind < 30000
}
func (kind Kind) IsAddressable() bool {
	return 30000 <= kind && kind < 40000
}

func IsRegularKind(kind Kind) bool     { return kind.IsRegular() }
func IsReplaceableKind(kind Kind) bool { return kind.IsReplaceable() }
func IsEphemeralKind(kind Kind) bool   { return kind.IsEphemeral() }
func IsAddressableKind(kind Kind) bool { return kind.IsAddressable() }
