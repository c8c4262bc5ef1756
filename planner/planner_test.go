package planner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chronokv/backup/backuptest"
	"github.com/chronokv/backup/keys"
)

func encOrNil(raw string) keys.Encoded {
	if raw == "" {
		return nil
	}
	return keys.Encode(keys.Raw(raw))
}

func TestPlanClipsToUserRangeWithinOneShard(t *testing.T) {
	var dir = backuptest.NewFakeDirectory([]backuptest.ShardFixture{
		{StartRaw: "a", EndRaw: "z", ID: "s1", Epoch: 1, LeaderID: "self", SelfID: "self"},
	})

	p, err := Plan(context.Background(), dir, encOrNil("c"), encOrNil("m"))
	require.NoError(t, err)
	require.Equal(t, 1, p.Len())

	u, ok := p.Next()
	require.True(t, ok)
	require.Equal(t, encOrNil("c"), u.Start)
	require.Equal(t, encOrNil("m"), u.End)

	_, ok = p.Next()
	require.False(t, ok)
}

func TestPlanUnboundedUserStartClipsToShardStart(t *testing.T) {
	var dir = backuptest.NewFakeDirectory([]backuptest.ShardFixture{
		{StartRaw: "d", EndRaw: "z", ID: "s1", Epoch: 1, LeaderID: "self", SelfID: "self"},
	})

	p, err := Plan(context.Background(), dir, nil, encOrNil("m"))
	require.NoError(t, err)

	u, ok := p.Next()
	require.True(t, ok)
	require.Equal(t, encOrNil("d"), u.Start, "empty user start must clip down to the shard's own start")
}

func TestPlanUnboundedShardEndIsNotClippedByItself(t *testing.T) {
	// The shard's own End is unbounded (""), which means plus-infinity —
	// the opposite meaning of an unbounded Start. clipEnd must special-case
	// this rather than comparing bytes, since an empty shardEnd must never
	// be treated as "smaller" than the user's end.
	var dir = backuptest.NewFakeDirectory([]backuptest.ShardFixture{
		{StartRaw: "d", EndRaw: "", ID: "s1", Epoch: 1, LeaderID: "self", SelfID: "self"},
	})

	p, err := Plan(context.Background(), dir, encOrNil("d"), encOrNil("m"))
	require.NoError(t, err)

	u, ok := p.Next()
	require.True(t, ok)
	require.Equal(t, encOrNil("m"), u.End, "user end is tighter than the shard's unbounded end")
}

func TestPlanBothEndsUnboundedYieldsUnboundedUnit(t *testing.T) {
	var dir = backuptest.NewFakeDirectory([]backuptest.ShardFixture{
		{StartRaw: "", EndRaw: "", ID: "s1", Epoch: 1, LeaderID: "self", SelfID: "self"},
	})

	p, err := Plan(context.Background(), dir, nil, nil)
	require.NoError(t, err)

	u, ok := p.Next()
	require.True(t, ok)
	require.True(t, u.Start.Unbounded())
	require.True(t, u.End.Unbounded())
}

func TestPlanEmitsDegenerateUnitWhenRangeTouchesShardBoundary(t *testing.T) {
	var dir = backuptest.NewFakeDirectory([]backuptest.ShardFixture{
		{StartRaw: "a", EndRaw: "m", ID: "s1", Epoch: 1, LeaderID: "self", SelfID: "self"},
		{StartRaw: "m", EndRaw: "z", ID: "s2", Epoch: 1, LeaderID: "self", SelfID: "self"},
	})

	// The user's range [m, m) degenerates once clipped into shard s2: its
	// start clips to the user bound "m" and its end clips to the same
	// bound, since the user's end "m" is tighter than the shard's end "z".
	p, err := Plan(context.Background(), dir, encOrNil("m"), encOrNil("m"))
	require.NoError(t, err)
	require.Equal(t, 1, p.Len(), "degenerate start==end units are still emitted, never filtered")

	u, ok := p.Next()
	require.True(t, ok)
	require.Equal(t, u.Start, u.End)
}

func TestPlanSkipsNonLeaderAndLeaderlessShards(t *testing.T) {
	var dir = backuptest.NewFakeDirectory([]backuptest.ShardFixture{
		{StartRaw: "a", EndRaw: "b", ID: "s1", Epoch: 1, LeaderID: "other", SelfID: "self"},
		{StartRaw: "b", EndRaw: "c", ID: "s2", Epoch: 1, LeaderID: "", SelfID: "self"},
		{StartRaw: "c", EndRaw: "d", ID: "s3", Epoch: 1, LeaderID: "self", SelfID: "self"},
	})

	p, err := Plan(context.Background(), dir, nil, nil)
	require.NoError(t, err)
	require.Equal(t, 1, p.Len())

	u, _ := p.Next()
	require.Equal(t, "s3", string(u.Shard.ID))
}

func TestPlanTerminatesOnceShardsStartAfterUserEnd(t *testing.T) {
	var dir = backuptest.NewFakeDirectory([]backuptest.ShardFixture{
		{StartRaw: "a", EndRaw: "b", ID: "s1", Epoch: 1, LeaderID: "self", SelfID: "self"},
		{StartRaw: "z", EndRaw: "", ID: "s2", Epoch: 1, LeaderID: "self", SelfID: "self"},
	})

	p, err := Plan(context.Background(), dir, nil, encOrNil("m"))
	require.NoError(t, err)
	require.Equal(t, 1, p.Len(), "s2 starts beyond the user's end and must not be visited")
}

func TestPlanPropagatesDirectoryFailureAndYieldsNoUnits(t *testing.T) {
	var dir = backuptest.NewFakeDirectory(nil)
	dir.FailNextSeek()

	p, err := Plan(context.Background(), dir, nil, nil)
	require.Error(t, err)
	require.Nil(t, p)
}

func TestNextIsFalseAfterExhaustion(t *testing.T) {
	var dir = backuptest.NewFakeDirectory(nil)

	p, err := Plan(context.Background(), dir, nil, nil)
	require.NoError(t, err)
	require.Equal(t, 0, p.Len())

	_, ok := p.Next()
	require.False(t, ok)
	_, ok = p.Next()
	require.False(t, ok)
}
