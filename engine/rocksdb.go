package engine

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/jgraettinger/gorocksdb"

	"github.com/chronokv/backup/errkind"
	"github.com/chronokv/backup/keys"
	"github.com/chronokv/backup/shard"
)

// RocksEngine is an Engine backed by a single embedded RocksDB instance,
// one column family per locally-hosted shard. Keys are stored as
// Encode(user key) followed by an 8-byte big-endian timestamp complement,
// so that within one user key, versions with a higher commit timestamp
// sort first — a scan for the newest visible version at or below a given
// timestamp is then a forward seek plus a skip of older siblings.
type RocksEngine struct {
	mu  sync.RWMutex
	db  *gorocksdb.DB
	cfs map[shard.ID]*gorocksdb.ColumnFamilyHandle

	// leaders tracks the epoch this node most recently observed itself
	// leading a shard at, so Snapshot can reject a ReadContext that has
	// since gone stale.
	leaders map[shard.ID]shard.Epoch

	// snapshotSem bounds the number of RocksDB snapshots open at once
	// across all tasks on this node, independent of the Dispatcher's
	// worker-pool size: a held snapshot pins the LSM against compaction,
	// so unbounded concurrent snapshots inflate space-amp even if the
	// worker pool itself is small. Nil means unbounded.
	snapshotSem chan struct{}
}

// OpenRocksEngine opens (or creates) a RocksDB instance at path with one
// column family per name in cfNames, plus the default column family.
// maxConcurrentSnapshots, if positive, bounds the number of snapshots this
// engine will have open at once; Snapshot blocks until a slot is free.
// Zero leaves it unbounded.
func OpenRocksEngine(path string, cfNames []string, maxConcurrentSnapshots int) (*RocksEngine, error) {
	var opts = gorocksdb.NewDefaultOptions()
	opts.SetCreateIfMissing(true)
	opts.SetCreateIfMissingColumnFamilies(true)

	var names = append([]string{"default"}, cfNames...)
	var cfOpts = make([]*gorocksdb.Options, len(names))
	for i := range names {
		cfOpts[i] = gorocksdb.NewDefaultOptions()
	}

	db, handles, err := gorocksdb.OpenDbColumnFamilies(opts, path, names, cfOpts)
	if err != nil {
		return nil, fmt.Errorf("opening rocksdb at %q: %w", path, err)
	}

	var cfs = make(map[shard.ID]*gorocksdb.ColumnFamilyHandle, len(cfNames))
	for i, name := range cfNames {
		// handles[0] is the default column family; shard handles begin at 1.
		cfs[shard.ID(name)] = handles[i+1]
	}

	var sem chan struct{}
	if maxConcurrentSnapshots > 0 {
		sem = make(chan struct{}, maxConcurrentSnapshots)
	}

	return &RocksEngine{
		db:          db,
		cfs:         cfs,
		leaders:     make(map[shard.ID]shard.Epoch),
		snapshotSem: sem,
	}, nil
}

// Close releases the underlying RocksDB handle.
func (e *RocksEngine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, cf := range e.cfs {
		cf.Destroy()
	}
	e.db.Close()
}

// ObserveLeader records that this node currently leads shard id at epoch.
// A concrete deployment wires this to whatever component learns of
// leadership transitions; it is exposed here so Snapshot has something to
// check staleness against.
func (e *RocksEngine) ObserveLeader(id shard.ID, epoch shard.Epoch) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.leaders[id] = epoch
}

func (e *RocksEngine) Snapshot(ctx context.Context, rc ReadContext, backupTS uint64) (Snapshot, error) {
	e.mu.RLock()
	cf, ok := e.cfs[rc.ShardID]
	observed, leading := e.leaders[rc.ShardID]
	e.mu.RUnlock()

	if !ok {
		return nil, errkind.New(errkind.StaleTopology, fmt.Errorf("unknown shard %s", rc.ShardID))
	}
	if !leading || observed != rc.ShardEpoch {
		return nil, errkind.New(errkind.StaleTopology,
			fmt.Errorf("shard %s epoch %d no longer led locally (observed %d, leading=%v)",
				rc.ShardID, rc.ShardEpoch, observed, leading))
	}

	if e.snapshotSem != nil {
		select {
		case e.snapshotSem <- struct{}{}:
		case <-ctx.Done():
			return nil, errkind.New(errkind.SnapshotUnavailable, fmt.Errorf("waiting for a snapshot slot: %w", ctx.Err()))
		}
	}

	snap := e.db.NewSnapshot()
	return &rocksSnapshot{db: e.db, cf: cf, snap: snap, backupTS: backupTS, sem: e.snapshotSem}, nil
}

type rocksSnapshot struct {
	db       *gorocksdb.DB
	cf       *gorocksdb.ColumnFamilyHandle
	snap     *gorocksdb.Snapshot
	backupTS uint64
	sem      chan struct{} // the engine's snapshotSem slot held by this snapshot, if bounded
	mu       sync.Mutex
	released bool
}

func (s *rocksSnapshot) NewScanner(start, end keys.Encoded) (EntryScanner, error) {
	var ro = gorocksdb.NewDefaultReadOptions()
	ro.SetSnapshot(s.snap)
	ro.SetFillCache(false)

	it := s.db.NewIteratorCF(ro, s.cf)
	if !start.Unbounded() {
		it.Seek([]byte(start))
	} else {
		it.SeekToFirst()
	}

	return &rocksScanner{it: it, ro: ro, end: end, backupTS: s.backupTS}, nil
}

func (s *rocksSnapshot) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return
	}
	s.released = true
	s.db.ReleaseSnapshot(s.snap)
	releaseSlot(s.sem)
}

// releaseSlot frees a snapshotSem slot previously acquired by Snapshot. A
// nil sem means the engine was opened with no concurrency bound.
func releaseSlot(sem chan struct{}) {
	if sem != nil {
		<-sem
	}
}

// rocksScanner walks a CF iterator, collapsing MVCC siblings of one user
// key down to the newest version not newer than backupTS.
type rocksScanner struct {
	it       *gorocksdb.Iterator
	ro       *gorocksdb.ReadOptions
	end      keys.Encoded
	backupTS uint64
	stats    ScanStats
	lastKey  []byte // most recently emitted user key, to skip older siblings
	closed   bool
}

func (sc *rocksScanner) NextBatch(ctx context.Context, buf []Entry) (int, error) {
	var n int
	for n < len(buf) {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		if !sc.it.Valid() {
			break
		}
		if err := sc.it.Err(); err != nil {
			return n, errkind.New(errkind.ScanFailure, fmt.Errorf("iterating: %w", err))
		}

		var storKey = sc.it.Key()
		var raw = cloneSlice(storKey)
		storKey.Free()

		if !sc.end.Unbounded() && len(raw) >= 8 && bytes.Compare(raw[:len(raw)-8], []byte(sc.end)) >= 0 {
			break
		}

		userKey, ts := splitStorageKey(raw)

		if sc.lastKey != nil && bytes.Equal(userKey, sc.lastKey) {
			// an older version of a key already emitted; keep advancing
			// past it.
			sc.it.Next()
			continue
		}
		if ts > sc.backupTS {
			// newer than the requested snapshot: not yet visible, but a
			// strictly older sibling might be. Do not mark lastKey so the
			// next iteration can inspect the next (older) version.
			sc.it.Next()
			continue
		}

		var valSlice = sc.it.Value()
		var val = cloneSlice(valSlice)
		valSlice.Free()

		sc.lastKey = userKey
		sc.stats.KeysScanned++
		sc.stats.BytesScanned += uint64(len(userKey) + len(val))

		buf[n] = Entry{Key: keys.Encoded(userKey), CommitTS: ts, Value: val}
		n++
		sc.it.Next()
	}
	return n, nil
}

func (sc *rocksScanner) TakeStats() ScanStats { return sc.stats }

func (sc *rocksScanner) Close() {
	if sc.closed {
		return
	}
	sc.closed = true
	sc.it.Close()
	sc.ro.Destroy()
}

// storageKey = encodedUserKey || complement(commitTS), big-endian.
func splitStorageKey(raw []byte) (userKey []byte, commitTS uint64) {
	var n = len(raw)
	var tsBytes = raw[n-8:]
	var complement = binary.BigEndian.Uint64(tsBytes)
	return raw[:n-8], ^complement
}

// EncodeStorageKey builds the on-disk composite key for a user key at a
// given commit timestamp. Exported so tests and any write-path tooling
// can construct fixtures matching this engine's on-disk layout.
func EncodeStorageKey(user keys.Encoded, commitTS uint64) []byte {
	var out = make([]byte, len(user)+8)
	copy(out, user)
	binary.BigEndian.PutUint64(out[len(user):], ^commitTS)
	return out
}

func cloneSlice(s *gorocksdb.Slice) []byte {
	var data = s.Data()
	var out = make([]byte, len(data))
	copy(out, data)
	return out
}
