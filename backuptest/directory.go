// Package backuptest provides deterministic, in-memory fakes of the core's
// external collaborators (ShardDirectory, Engine) shared across the test
// suites of planner, worker, and dispatcher.
package backuptest

import (
	"bytes"
	"context"
	"fmt"
	"sort"

	"github.com/chronokv/backup/keys"
	"github.com/chronokv/backup/shard"
)

// ShardFixture describes one shard entry for FakeDirectory, in raw (not
// yet encoded) key terms for readability in tests.
type ShardFixture struct {
	StartRaw string // "" means unbounded
	EndRaw   string // "" means unbounded
	ID       string
	Epoch    uint64
	LeaderID string // "" means no elected leader
	SelfID   string // this node's peer id; used to compute Role
}

// FakeDirectory is an in-memory shard.Directory over a fixed, caller-supplied
// shard list. It is intentionally dumb: no watches, no incremental updates,
// just a deterministic ascending-by-start traversal, matching the
// ShardDirectory contract.
type FakeDirectory struct {
	shards []shard.Info
	failAt int // if >= 0, Seek fails when called for the failAt'th time
	calls  int
}

// NewFakeDirectory builds a FakeDirectory from fixtures, encoding keys and
// deriving each shard's Role relative to selfID.
func NewFakeDirectory(fixtures []ShardFixture) *FakeDirectory {
	var infos = make([]shard.Info, 0, len(fixtures))
	for _, f := range fixtures {
		var s = shard.Shard{
			ID:    shard.ID(f.ID),
			Epoch: shard.Epoch(f.Epoch),
			Start: encodeOrEmpty(f.StartRaw),
			End:   encodeOrEmpty(f.EndRaw),
		}
		var role = shard.RoleFollower
		if f.LeaderID != "" {
			var leader = shard.Peer{ID: f.LeaderID}
			s.Leader = &leader
			s.Peers = append(s.Peers, leader)
			if f.LeaderID == f.SelfID {
				role = shard.RoleLeader
			}
		}
		infos = append(infos, shard.Info{Shard: s, Role: role})
	}
	sort.Slice(infos, func(i, j int) bool {
		return bytes.Compare([]byte(infos[i].Shard.Start), []byte(infos[j].Shard.Start)) < 0
	})
	return &FakeDirectory{shards: infos, failAt: -1}
}

// FailNextSeek arranges for the next call to Seek to return err, modeling
// a PlanFailure.
func (d *FakeDirectory) FailNextSeek() {
	d.failAt = d.calls
}

func (d *FakeDirectory) Seek(_ context.Context, from keys.Encoded) (shard.Iterator, error) {
	d.calls++
	if d.failAt == d.calls-1 {
		return nil, fmt.Errorf("fake directory: injected failure")
	}

	// A shard is included if its range reaches past from: this covers the
	// shard containing from as well as every shard starting after it.
	var out []shard.Info
	for _, info := range d.shards {
		if from.Unbounded() || info.Shard.End.Unbounded() || bytes.Compare([]byte(info.Shard.End), []byte(from)) > 0 {
			out = append(out, info)
		}
	}
	return &fakeIterator{infos: out}, nil
}

func encodeOrEmpty(raw string) keys.Encoded {
	if raw == "" {
		return nil
	}
	return keys.Encode(keys.Raw(raw))
}

type fakeIterator struct {
	infos []shard.Info
	pos   int
	err   error // set to simulate a mid-iteration failure
}

func (it *fakeIterator) Next(context.Context) (shard.Info, bool, error) {
	if it.err != nil {
		return shard.Info{}, false, it.err
	}
	if it.pos >= len(it.infos) {
		return shard.Info{}, false, nil
	}
	var info = it.infos[it.pos]
	it.pos++
	return info, true, nil
}

func (it *fakeIterator) Close() {}
