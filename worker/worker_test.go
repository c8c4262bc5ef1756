package worker

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chronokv/backup/backuptest"
	"github.com/chronokv/backup/errkind"
	"github.com/chronokv/backup/keys"
	"github.com/chronokv/backup/planner"
	"github.com/chronokv/backup/shard"
	"github.com/chronokv/backup/sink"
)

func TestRunProducesFileForVisibleEntries(t *testing.T) {
	var eng = backuptest.NewFakeEngine(map[shard.ID][]backuptest.EntryFixture{
		"s1": {
			{KeyRaw: "a", CommitTS: 1, Value: []byte("va")},
			{KeyRaw: "b", CommitTS: 1, Value: []byte("vb")},
		},
	})

	var s = sink.NewFileSink(t.TempDir())

	var unit = planner.PlanUnit{
		Start: keys.Encode(keys.Raw("a")),
		End:   nil,
		Shard: shard.Shard{ID: "s1", Epoch: 3},
	}

	result := Run(context.Background(), eng, s, "store1", unit, 1)
	require.NoError(t, result.Err)
	require.Len(t, result.Files, 1)
	require.Equal(t, "store1_s1_3", result.Files[0].Name)
	require.Equal(t, uint64(2), result.Stats.KeysScanned)
}

func TestRunSurfacesSnapshotFailureAsUnitScoped(t *testing.T) {
	var eng = backuptest.NewFakeEngine(nil)
	eng.FailSnapshot("s1", errors.New("engine down"))

	var s = sink.NewFileSink(t.TempDir())
	var unit = planner.PlanUnit{Shard: shard.Shard{ID: "s1", Epoch: 1}}

	result := Run(context.Background(), eng, s, "store1", unit, 1)
	require.Error(t, result.Err)

	var e *errkind.Error
	require.True(t, errors.As(result.Err, &e))
	require.Equal(t, errkind.SnapshotUnavailable, e.Kind)
}

func TestRunDegenerateUnitYieldsEmptyFile(t *testing.T) {
	var eng = backuptest.NewFakeEngine(map[shard.ID][]backuptest.EntryFixture{
		"s1": {{KeyRaw: "a", CommitTS: 1, Value: []byte("va")}},
	})
	var s = sink.NewFileSink(t.TempDir())

	var bound = keys.Encode(keys.Raw("a"))
	var unit = planner.PlanUnit{Start: bound, End: bound, Shard: shard.Shard{ID: "s1", Epoch: 1}}

	result := Run(context.Background(), eng, s, "store1", unit, 1)
	require.NoError(t, result.Err)
	require.Equal(t, uint64(0), result.Stats.KeysScanned)
	require.Len(t, result.Files, 1)
	require.Equal(t, uint64(0), result.Files[0].Size)
}
