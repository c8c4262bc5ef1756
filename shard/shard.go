// Package shard defines the shard-topology types and the ShardDirectory
// collaborator: the planner's only window into cluster topology.
package shard

import (
	"context"
	"fmt"

	"github.com/chronokv/backup/keys"
)

// ID identifies a shard, unique within the owning cluster.
type ID string

// Epoch is a shard's monotone version, advanced on membership or
// split/merge changes. Used to detect stale reads against a moved-on shard.
type Epoch uint64

// Peer identifies one replica of a shard.
type Peer struct {
	ID string
}

// Role is this node's relationship to a shard, as reported by the
// ShardDirectory. Non-leader shards are still reported by Seek — the
// planner is responsible for filtering.
type Role int

const (
	RoleFollower Role = iota
	RoleLeader
	RoleLearner
)

func (r Role) String() string {
	switch r {
	case RoleLeader:
		return "leader"
	case RoleLearner:
		return "learner"
	default:
		return "follower"
	}
}

// Shard is a contiguous half-open range [Start, End) over encoded keys.
// An empty Start denotes the minus-infinity bound; an empty End denotes
// plus-infinity.
type Shard struct {
	ID     ID
	Epoch  Epoch
	Start  keys.Encoded
	End    keys.Encoded
	Peers  []Peer
	Leader *Peer // nil if no peer currently holds leadership
}

// String renders a Shard for logging.
func (s Shard) String() string {
	return fmt.Sprintf("shard(id=%s epoch=%d)", s.ID, s.Epoch)
}

// Info pairs a Shard with this node's Role in it, as yielded by
// ShardDirectory.Seek.
type Info struct {
	Shard Shard
	Role  Role
}

// Directory is the ShardDirectory collaborator: shard topology lookup,
// ordered by ascending shard start. Implementations must not
// mutate Shards handed back through a previously-returned Iterator.
type Directory interface {
	// Seek returns an Iterator over shards whose encoded range is >= from,
	// presented in ascending shard_start order. A nil/empty from seeks
	// from the beginning of the keyspace.
	Seek(ctx context.Context, from keys.Encoded) (Iterator, error)
}

// Iterator yields shard topology entries in ascending shard_start order.
type Iterator interface {
	// Next advances the iterator and returns the next Info. The second
	// return is false once the iterator is exhausted (not an error).
	Next(ctx context.Context) (Info, bool, error)
	// Close releases any resources (e.g. a watch or cursor) held by the
	// iterator. Safe to call multiple times.
	Close()
}
