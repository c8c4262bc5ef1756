package dispatcher

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chronokv/backup/backuptest"
	"github.com/chronokv/backup/errkind"
	"github.com/chronokv/backup/shard"
	"github.com/chronokv/backup/sink"
)

func baseFixtures() []backuptest.ShardFixture {
	return []backuptest.ShardFixture{
		{StartRaw: "", EndRaw: "1", ID: "s0", Epoch: 1, LeaderID: "self", SelfID: "self"},
		{StartRaw: "1", EndRaw: "2", ID: "s1", Epoch: 2, LeaderID: "self", SelfID: "self"},
		{StartRaw: "3", EndRaw: "4", ID: "s2", Epoch: 3, LeaderID: "self", SelfID: "self"},
		{StartRaw: "7", EndRaw: "", ID: "s3", Epoch: 4, LeaderID: "self", SelfID: "self"},
	}
}

type rangePair struct{ start, end string }

func collect(t *testing.T, rawStart, rawEnd string) ([]rangePair, int) {
	t.Helper()

	var dir = backuptest.NewFakeDirectory(baseFixtures())
	var eng = backuptest.NewFakeEngine(nil)
	var d = Dispatcher{Engine: eng, Directory: dir, StoreID: "store1"}

	var task = Task{
		RawStart: []byte(rawStart),
		RawEnd:   []byte(rawEnd),
		StartTS:  1,
		EndTS:    1,
		Sink:     sink.NewFileSink(t.TempDir()),
	}

	var out = make(chan BackupResponse, 16)
	d.Run(context.Background(), task, out)
	close(out)

	var pairs []rangePair
	var sentinels int
	for resp := range out {
		if resp.Done {
			sentinels++
			continue
		}
		pairs = append(pairs, rangePair{string(resp.StartKeyRaw), string(resp.EndKeyRaw)})
	}
	return pairs, sentinels
}

func requireSetEqual(t *testing.T, got []rangePair, want []rangePair) {
	t.Helper()
	require.ElementsMatch(t, want, got)
}

func TestDispatcherScenario1(t *testing.T) {
	pairs, sentinels := collect(t, "", "1")
	require.Equal(t, 1, sentinels)
	requireSetEqual(t, pairs, []rangePair{{"", "1"}, {"1", "1"}})
}

func TestDispatcherScenario2(t *testing.T) {
	pairs, _ := collect(t, "", "2")
	requireSetEqual(t, pairs, []rangePair{{"", "1"}, {"1", "2"}})
}

func TestDispatcherScenario3(t *testing.T) {
	pairs, _ := collect(t, "1", "3")
	requireSetEqual(t, pairs, []rangePair{{"1", "2"}, {"3", "3"}})
}

func TestDispatcherScenario4NoIntersection(t *testing.T) {
	pairs, sentinels := collect(t, "4", "6")
	require.Equal(t, 1, sentinels)
	require.Empty(t, pairs)
}

func TestDispatcherScenario5(t *testing.T) {
	pairs, _ := collect(t, "3", "")
	requireSetEqual(t, pairs, []rangePair{{"3", "4"}, {"7", ""}})
}

func TestDispatcherScenario6FullRange(t *testing.T) {
	pairs, _ := collect(t, "", "")
	requireSetEqual(t, pairs, []rangePair{{"", "1"}, {"1", "2"}, {"3", "4"}, {"7", ""}})
}

func TestDispatcherInvalidTaskYieldsOnlySentinel(t *testing.T) {
	var dir = backuptest.NewFakeDirectory(baseFixtures())
	var eng = backuptest.NewFakeEngine(nil)
	var d = Dispatcher{Engine: eng, Directory: dir, StoreID: "store1"}

	var task = Task{RawStart: []byte(""), RawEnd: []byte(""), StartTS: 1, EndTS: 2, Sink: sink.NewFileSink(t.TempDir())}

	var out = make(chan BackupResponse, 4)
	d.Run(context.Background(), task, out)
	close(out)

	var responses []BackupResponse
	for r := range out {
		responses = append(responses, r)
	}
	require.Len(t, responses, 1)
	require.True(t, responses[0].Done)
}

func TestDispatcherPlanFailureYieldsOnlySentinel(t *testing.T) {
	var dir = backuptest.NewFakeDirectory(baseFixtures())
	dir.FailNextSeek()
	var eng = backuptest.NewFakeEngine(nil)
	var d = Dispatcher{Engine: eng, Directory: dir, StoreID: "store1"}

	var task = Task{RawStart: []byte(""), RawEnd: []byte(""), StartTS: 1, EndTS: 1, Sink: sink.NewFileSink(t.TempDir())}

	var out = make(chan BackupResponse, 4)
	d.Run(context.Background(), task, out)
	close(out)

	var responses []BackupResponse
	for r := range out {
		responses = append(responses, r)
	}
	require.Len(t, responses, 1)
	require.True(t, responses[0].Done)
}

func TestDispatcherErrorIsolation(t *testing.T) {
	var dir = backuptest.NewFakeDirectory(baseFixtures())
	var eng = backuptest.NewFakeEngine(nil)
	eng.FailSnapshot("s1", errors.New("boom"))
	var d = Dispatcher{Engine: eng, Directory: dir, StoreID: "store1"}

	var task = Task{RawStart: []byte(""), RawEnd: []byte(""), StartTS: 1, EndTS: 1, Sink: sink.NewFileSink(t.TempDir())}

	var out = make(chan BackupResponse, 16)
	d.Run(context.Background(), task, out)
	close(out)

	var okRanges []rangePair
	var failed int
	var sentinels int
	for r := range out {
		if r.Done {
			sentinels++
			continue
		}
		if r.Err != nil {
			failed++
			var e *errkind.Error
			require.True(t, errors.As(r.Err, &e))
			require.Equal(t, errkind.SnapshotUnavailable, e.Kind)
			continue
		}
		okRanges = append(okRanges, rangePair{string(r.StartKeyRaw), string(r.EndKeyRaw)})
	}

	require.Equal(t, 1, sentinels)
	require.Equal(t, 1, failed)
	requireSetEqual(t, okRanges, []rangePair{{"", "1"}, {"3", "4"}, {"7", ""}})
}
