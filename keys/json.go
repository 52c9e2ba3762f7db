package keys

import (
	"encoding/json"
	"fmt"

	"ledgerclient/crypto"
)

type wireKey struct {
	Ed25519        []byte         `json:"ed25519,omitempty"`
	ECDSASecp256k1 []byte         `json:"ECDSASecp256k1,omitempty"`
	KeyList        *wireKeyList   `json:"keyList,omitempty"`
	ThresholdKey   *wireThreshold `json:"thresholdKey,omitempty"`
}

type wireKeyList struct {
	Keys []wireKey `json:"keys"`
}

type wireThreshold struct {
	Threshold uint32      `json:"threshold"`
	Keys      wireKeyList `json:"keys"`
}

func toWire(k Key) (wireKey, error) {
	switch v := k.(type) {
	case Single:
		switch v.Type {
		case crypto.KeyTypeEd25519:
			return wireKey{Ed25519: v.PublicKey}, nil
		case crypto.KeyTypeSecp256k1:
			return wireKey{ECDSASecp256k1: v.PublicKey}, nil
		default:
			return wireKey{}, fmt.Errorf("%w: %v", ErrInvalidKey, crypto.ErrUnsupportedKeyType)
		}
	case KeyList:
		members, err := membersToWire(v.Keys)
		if err != nil {
			return wireKey{}, err
		}
		return wireKey{KeyList: &wireKeyList{Keys: members}}, nil
	case Threshold:
		members, err := membersToWire(v.Keys)
		if err != nil {
			return wireKey{}, err
		}
		return wireKey{ThresholdKey: &wireThreshold{Threshold: v.Threshold, Keys: wireKeyList{Keys: members}}}, nil
	default:
		return wireKey{}, fmt.Errorf("%w: nil key", ErrInvalidKey)
	}
}

func membersToWire(members []Key) ([]wireKey, error) {
	out := make([]wireKey, 0, len(members))
	for _, m := range members {
		w, err := toWire(m)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, nil
}

func fromWire(w wireKey) (Key, error) {
	switch {
	case w.Ed25519 != nil:
		return Single{Type: crypto.KeyTypeEd25519, PublicKey: w.Ed25519}, nil
	case w.ECDSASecp256k1 != nil:
		return Single{Type: crypto.KeyTypeSecp256k1, PublicKey: w.ECDSASecp256k1}, nil
	case w.KeyList != nil:
		members, err := membersFromWire(w.KeyList.Keys)
		if err != nil {
			return nil, err
		}
		return KeyList{Keys: members}, nil
	case w.ThresholdKey != nil:
		members, err := membersFromWire(w.ThresholdKey.Keys.Keys)
		if err != nil {
			return nil, err
		}
		return Threshold{Threshold: w.ThresholdKey.Threshold, Keys: members}, nil
	default:
		return nil, fmt.Errorf("%w: empty key", ErrInvalidKey)
	}
}

func membersFromWire(members []wireKey) ([]Key, error) {
	out := make([]Key, 0, len(members))
	for _, m := range members {
		k, err := fromWire(m)
		if err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, nil
}

// MarshalJSON encodes a key tree. A nil key encodes as JSON null.
func MarshalJSON(k Key) (json.RawMessage, error) {
	if k == nil {
		return json.RawMessage("null"), nil
	}
	w, err := toWire(k)
	if err != nil {
		return nil, err
	}
	return json.Marshal(w)
}

// UnmarshalJSON decodes a key tree produced by MarshalJSON. JSON null and
// empty input decode to a nil key.
func UnmarshalJSON(data []byte) (Key, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}
	var w wireKey
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, err
	}
	return fromWire(w)
}

// UnmarshalJSONList decodes a JSON array of key trees.
func UnmarshalJSONList(data []byte) ([]Key, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	out := make([]Key, 0, len(raw))
	for _, r := range raw {
		k, err := UnmarshalJSON(r)
		if err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, nil
}

// MarshalJSONList encodes a list of key trees as a JSON array.
func MarshalJSONList(list []Key) (json.RawMessage, error) {
	if list == nil {
		return json.RawMessage("null"), nil
	}
	raw := make([]json.RawMessage, 0, len(list))
	for _, k := range list {
		enc, err := MarshalJSON(k)
		if err != nil {
			return nil, err
		}
		raw = append(raw, enc)
	}
	return json.Marshal(raw)
}

// MarshalJSON encodes the list in the same shape as a nested keyList.
func (l KeyList) MarshalJSON() ([]byte, error) {
	members, err := membersToWire(l.Keys)
	if err != nil {
		return nil, err
	}
	return json.Marshal(wireKeyList{Keys: members})
}

func (l *KeyList) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		l.Keys = nil
		return nil
	}
	var w wireKeyList
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	members, err := membersFromWire(w.Keys)
	if err != nil {
		return err
	}
	l.Keys = members
	return nil
}
