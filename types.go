package nostr

import (
	"encoding/hex"
	"fmt"
)

type PubKey [32]byte

var ZeroPK = PubKey{}

func (pk PubKey) Hex() string    { return hex.EncodeToString(pk[:]) }
func (pk PubKey) String() string { return pk.Hex() }

func PubKeyFromHex(pkh string) (PubKey, error) {
	pk := PubKey{}
	if len(pkh) != 64 {
		return pk, fmt.Errorf("pubkey should be 64-char hex, got '%s'", pkh)
	}
	if !isLowerHex(pkh) {
		return pk, fmt.Errorf("'%s' is not lowercase hex", pkh)
	}
	if _, err := hex.Decode(pk[:], []byte(pkh)); err != nil {
		return pk, fmt.Errorf("'%s' is not valid hex: %w", pkh, err)
	}
	return pk, nil
}

func MustPubKeyFromHex(pkh string) PubKey {
	pk := PubKey{}
	hex.Decode(pk[:], []byte(pkh))
	return pk
}

type ID [32]byte

var ZeroID = ID{}

func (id ID) Hex() string    { return hex.EncodeToString(id[:]) }
func (id ID) String() string { return id.Hex() }

func IDFromHex(idh string) (ID, error) {
	id := ID{}
	if len(idh) != 64 {
		return id, fmt.Errorf("id should be 64-char hex, got '%s'", idh)
	}
	if !isLowerHex(idh) {
		return id, fmt.Errorf("'%s' is not lowercase hex", idh)
	}
	if _, err := hex.Decode(id[:], []byte(idh)); err != nil {
		return id, fmt.Errorf("'%s' is not valid hex: %w", idh, err)
	}
	return id, nil
}

func MustIDFromHex(idh string) ID {
	id := ID{}
	hex.Decode(id[:], []byte(idh))
	return id
}

type SecretKey = [32]byte
