package backuptest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chronokv/backup/engine"
	"github.com/chronokv/backup/shard"
)

func TestFakeEngineScansVisibleVersions(t *testing.T) {
	var e = NewFakeEngine(map[shard.ID][]EntryFixture{
		"s1": {
			{KeyRaw: "a", CommitTS: 10, Value: []byte("v10")},
			{KeyRaw: "a", CommitTS: 20, Value: []byte("v20")},
			{KeyRaw: "b", CommitTS: 5, Value: []byte("vb")},
		},
	})

	snap, err := e.Snapshot(context.Background(), engine.ReadContext{ShardID: "s1"}, 15)
	require.NoError(t, err)
	defer snap.Release()

	sc, err := snap.NewScanner(nil, nil)
	require.NoError(t, err)
	defer sc.Close()

	var buf = make([]engine.Entry, 10)
	n, err := sc.NextBatch(context.Background(), buf)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.Equal(t, "v10", string(buf[0].Value)) // ts 20 > backupTS 15, not visible
	require.Equal(t, "vb", string(buf[1].Value))
}

func TestFakeEngineSnapshotFailureIsUnitScoped(t *testing.T) {
	var e = NewFakeEngine(nil)
	e.FailSnapshot("s1", context.DeadlineExceeded)

	_, err := e.Snapshot(context.Background(), engine.ReadContext{ShardID: "s1"}, 1)
	require.Error(t, err)
}
