package backuptest

import (
	"bytes"
	"context"
	"sort"

	"github.com/chronokv/backup/engine"
	"github.com/chronokv/backup/errkind"
	"github.com/chronokv/backup/keys"
	"github.com/chronokv/backup/shard"
)

// EntryFixture is one MVCC record to seed into a FakeEngine, in raw key
// terms for test readability.
type EntryFixture struct {
	KeyRaw   string
	CommitTS uint64
	Value    []byte
}

// FakeEngine is an in-memory engine.Engine over a fixed set of entries,
// grouped by shard. It supports injecting a snapshot failure or a scan
// failure on a specific shard, to exercise unit-scoped error handling.
type FakeEngine struct {
	byShard map[shard.ID][]engine.Entry

	failSnapshot map[shard.ID]error
	failScan     map[shard.ID]error
}

// NewFakeEngine builds a FakeEngine from per-shard fixture lists. entries
// need not be pre-sorted; NewFakeEngine sorts them by encoded key ascending,
// then by descending commit timestamp (matching MVCC storage order).
func NewFakeEngine(fixtures map[shard.ID][]EntryFixture) *FakeEngine {
	var byShard = make(map[shard.ID][]engine.Entry, len(fixtures))
	for id, fs := range fixtures {
		var entries = make([]engine.Entry, 0, len(fs))
		for _, f := range fs {
			entries = append(entries, engine.Entry{
				Key:      keys.Encode(keys.Raw(f.KeyRaw)),
				CommitTS: f.CommitTS,
				Value:    f.Value,
			})
		}
		sort.Slice(entries, func(i, j int) bool {
			if c := bytes.Compare(entries[i].Key, entries[j].Key); c != 0 {
				return c < 0
			}
			return entries[i].CommitTS > entries[j].CommitTS
		})
		byShard[id] = entries
	}
	return &FakeEngine{
		byShard:      byShard,
		failSnapshot: make(map[shard.ID]error),
		failScan:     make(map[shard.ID]error),
	}
}

// FailSnapshot arranges for Snapshot(rc) to return err for shard id.
func (e *FakeEngine) FailSnapshot(id shard.ID, err error) { e.failSnapshot[id] = err }

// FailScan arranges for a scanner over shard id to fail partway through the
// scan: its first NextBatch call delivers entries normally, and every later
// call returns err.
func (e *FakeEngine) FailScan(id shard.ID, err error) { e.failScan[id] = err }

// Snapshot returns a fake Snapshot for rc.ShardID. A shard with no fixture
// entries is not an error: it behaves as a shard holding zero entries, the
// common case for a freshly-created or never-written shard.
func (e *FakeEngine) Snapshot(_ context.Context, rc engine.ReadContext, backupTS uint64) (engine.Snapshot, error) {
	if err, ok := e.failSnapshot[rc.ShardID]; ok {
		return nil, errkind.New(errkind.SnapshotUnavailable, err)
	}
	return &fakeSnapshot{
		entries:  e.byShard[rc.ShardID],
		backupTS: backupTS,
		failScan: e.failScan[rc.ShardID],
	}, nil
}

type fakeSnapshot struct {
	entries  []engine.Entry
	backupTS uint64
	failScan error
}

func (s *fakeSnapshot) NewScanner(start, end keys.Encoded) (engine.EntryScanner, error) {
	var out []engine.Entry
	var lastKey []byte
	for _, e := range s.entries {
		if !start.Unbounded() && bytes.Compare(e.Key, []byte(start)) < 0 {
			continue
		}
		if !end.Unbounded() && bytes.Compare(e.Key, []byte(end)) >= 0 {
			continue
		}
		if e.CommitTS > s.backupTS {
			continue
		}
		if lastKey != nil && bytes.Equal(e.Key, lastKey) {
			continue // older sibling already shadowed by a visible version
		}
		lastKey = e.Key
		out = append(out, e)
	}
	return &fakeScanner{entries: out, err: s.failScan}, nil
}

func (s *fakeSnapshot) Release() {}

type fakeScanner struct {
	entries []engine.Entry
	pos     int
	stats   engine.ScanStats
	err     error
	called  bool
}

func (sc *fakeScanner) NextBatch(ctx context.Context, buf []engine.Entry) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if sc.err != nil && sc.called {
		return 0, errkind.New(errkind.ScanFailure, sc.err)
	}
	sc.called = true
	var n int
	for n < len(buf) && sc.pos < len(sc.entries) {
		var e = sc.entries[sc.pos]
		buf[n] = e
		sc.stats.KeysScanned++
		sc.stats.BytesScanned += uint64(len(e.Key) + len(e.Value))
		sc.pos++
		n++
	}
	return n, nil
}

func (sc *fakeScanner) TakeStats() engine.ScanStats { return sc.stats }

func (sc *fakeScanner) Close() {}
