// Package engine defines the Engine/Snapshot/EntryScanner collaborators:
// the storage layer's read path, entirely external to this module's
// concerns except for the narrow interface the backup core reads through.
package engine

import (
	"context"

	"github.com/chronokv/backup/keys"
	"github.com/chronokv/backup/shard"
)

// ReadContext carries the shard identity a read is scoped to, so the
// engine can reject reads against a shard that has since changed epoch or
// lost its leader.
type ReadContext struct {
	ShardID    shard.ID
	ShardEpoch shard.Epoch
	Leader     shard.Peer
}

// Entry is one committed MVCC record: a user key, the transaction commit
// timestamp that produced this version, and its value.
type Entry struct {
	Key      keys.Encoded
	CommitTS uint64
	Value    []byte
}

// ScanStats summarizes one EntryScanner's work, extracted once scanning
// completes.
type ScanStats struct {
	KeysScanned  uint64
	BytesScanned uint64
}

// Add accumulates other into s, for rolling per-unit stats into a
// task-level summary.
func (s *ScanStats) Add(other ScanStats) {
	s.KeysScanned += other.KeysScanned
	s.BytesScanned += other.BytesScanned
}

// EntryScanner streams committed MVCC entries over one [start, end) range
// under snapshot isolation at a fixed backup timestamp.
type EntryScanner interface {
	// NextBatch fills buf with up to len(buf) entries and returns the
	// count filled. A return of (0, nil) signals exhaustion.
	NextBatch(ctx context.Context, buf []Entry) (int, error)
	// TakeStats returns accumulated statistics. Valid only after the
	// scanner is exhausted or closed.
	TakeStats() ScanStats
	// Close releases scanner resources. Safe to call multiple times.
	Close()
}

// Snapshot is a consistent, point-in-time view of the engine, acquired
// under snapshot isolation with block-cache fill disabled: a backup scan
// must not evict hot working-set blocks.
type Snapshot interface {
	// NewScanner opens an EntryScanner over [start, end), observing only
	// entries committed at or before the timestamp this Snapshot was
	// acquired at.
	NewScanner(start, end keys.Encoded) (EntryScanner, error)
	// Release returns the snapshot to the engine. Must be called exactly
	// once, and only after every EntryScanner derived from it is closed.
	Release()
}

// Engine is the storage-engine collaborator.
type Engine interface {
	// Snapshot acquires a consistent read-only view scoped to rc, valid at
	// backupTS. Failures are always unit-scoped: they are reported on the
	// affected unit only and never abort its siblings.
	Snapshot(ctx context.Context, rc ReadContext, backupTS uint64) (Snapshot, error)
}
