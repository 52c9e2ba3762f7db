// Package ledger defines the request, response and identity values exchanged
// with ledger nodes, and the deterministic body encoding signatures bind to.
package ledger

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"ledgerclient/keys"
)

// ErrInvalidEntityID reports a malformed shard.realm.num string.
var ErrInvalidEntityID = errors.New("ledger: invalid entity id")

// AccountID identifies an account. Assigned by the ledger, immutable.
type AccountID struct {
	Shard int64 `json:"shardNum"`
	Realm int64 `json:"realmNum"`
	Num   int64 `json:"accountNum"`
}

// FileID identifies a file entity.
type FileID struct {
	Shard int64 `json:"shardNum"`
	Realm int64 `json:"realmNum"`
	Num   int64 `json:"fileNum"`
}

// ContractID identifies a contract entity.
type ContractID struct {
	Shard int64 `json:"shardNum"`
	Realm int64 `json:"realmNum"`
	Num   int64 `json:"contractNum"`
}

func formatTriple(shard, realm, num int64) string {
	return fmt.Sprintf("%d.%d.%d", shard, realm, num)
}

func parseTriple(raw string) (int64, int64, int64, error) {
	parts := strings.Split(strings.TrimSpace(raw), ".")
	if len(parts) != 3 {
		return 0, 0, 0, fmt.Errorf("%w: %q", ErrInvalidEntityID, raw)
	}
	var out [3]int64
	for i, p := range parts {
		v, err := strconv.ParseInt(p, 10, 64)
		if err != nil || v < 0 {
			return 0, 0, 0, fmt.Errorf("%w: %q", ErrInvalidEntityID, raw)
		}
		out[i] = v
	}
	return out[0], out[1], out[2], nil
}

func (a AccountID) String() string { return formatTriple(a.Shard, a.Realm, a.Num) }
func (f FileID) String() string    { return formatTriple(f.Shard, f.Realm, f.Num) }
func (c ContractID) String() string { return formatTriple(c.Shard, c.Realm, c.Num) }

// IsZero reports whether the id is unset.
func (a AccountID) IsZero() bool { return a == AccountID{} }

// Ref is the key-store reference of the account.
func (a AccountID) Ref() keys.EntityRef { return keys.EntityRef("account/" + a.String()) }

// Ref is the key-store reference of the file.
func (f FileID) Ref() keys.EntityRef { return keys.EntityRef("file/" + f.String()) }

// Ref is the key-store reference of the contract.
func (c ContractID) Ref() keys.EntityRef { return keys.EntityRef("contract/" + c.String()) }

func ParseAccountID(raw string) (AccountID, error) {
	s, r, n, err := parseTriple(raw)
	if err != nil {
		return AccountID{}, err
	}
	return AccountID{Shard: s, Realm: r, Num: n}, nil
}

func ParseFileID(raw string) (FileID, error) {
	s, r, n, err := parseTriple(raw)
	if err != nil {
		return FileID{}, err
	}
	return FileID{Shard: s, Realm: r, Num: n}, nil
}

func ParseContractID(raw string) (ContractID, error) {
	s, r, n, err := parseTriple(raw)
	if err != nil {
		return ContractID{}, err
	}
	return ContractID{Shard: s, Realm: r, Num: n}, nil
}

// Timestamp is a point in time with nanosecond precision.
type Timestamp struct {
	Seconds int64 `json:"seconds"`
	Nanos   int32 `json:"nanos"`
}

// TimestampOf converts a time.Time.
func TimestampOf(t time.Time) Timestamp {
	return Timestamp{Seconds: t.Unix(), Nanos: int32(t.Nanosecond())}
}

// Time converts back to time.Time in UTC.
func (ts Timestamp) Time() time.Time {
	return time.Unix(ts.Seconds, int64(ts.Nanos)).UTC()
}

func (ts Timestamp) String() string {
	return fmt.Sprintf("%d.%09d", ts.Seconds, ts.Nanos)
}

// Node is a ledger node endpoint: the node's account (which receives query
// payments and is named in transaction bodies) and its network address.
type Node struct {
	Account AccountID
	Address string
}

func (n Node) String() string {
	if n.Address == "" {
		return n.Account.String()
	}
	return n.Account.String() + "@" + n.Address
}
