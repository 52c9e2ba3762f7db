package signing

import (
	"bytes"

	"ledgerclient/crypto"
	"ledgerclient/keys"
	"ledgerclient/ledger"
)

// Verify reports whether sigs satisfy k over body. Single leaves need a
// valid signature under a matching prefix, key lists need every member and
// threshold keys need at least Threshold members.
func Verify(k keys.Key, body []byte, sigs ledger.SignatureMap) bool {
	switch v := k.(type) {
	case keys.Single:
		return verifyLeaf(v, body, sigs)
	case keys.KeyList:
		if len(v.Keys) == 0 {
			return false
		}
		for _, member := range v.Keys {
			if !Verify(member, body, sigs) {
				return false
			}
		}
		return true
	case keys.Threshold:
		satisfied := 0
		for _, member := range v.Keys {
			if Verify(member, body, sigs) {
				satisfied++
			}
		}
		return v.Threshold > 0 && satisfied >= int(v.Threshold)
	default:
		return false
	}
}

func verifyLeaf(leaf keys.Single, body []byte, sigs ledger.SignatureMap) bool {
	pub, err := crypto.PublicKeyFromBytes(leaf.Type, leaf.PublicKey)
	if err != nil {
		return false
	}
	for _, pair := range sigs.Pairs {
		if len(pair.PubKeyPrefix) == 0 || !bytes.HasPrefix(leaf.PublicKey, pair.PubKeyPrefix) {
			continue
		}
		var sig []byte
		switch leaf.Type {
		case crypto.KeyTypeEd25519:
			sig = pair.Ed25519
		case crypto.KeyTypeSecp256k1:
			sig = pair.ECDSASecp256k1
		}
		if len(sig) > 0 && pub.Verify(body, sig) {
			return true
		}
	}
	return false
}
