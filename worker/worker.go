// Package worker implements the SnapshotWorker: it turns one PlanUnit
// into a UnitResult by opening an engine snapshot, scanning committed
// MVCC entries, and uploading the resulting file(s) to a sink.
package worker

import (
	"context"
	"errors"
	"fmt"

	"github.com/chronokv/backup/engine"
	"github.com/chronokv/backup/errkind"
	"github.com/chronokv/backup/filebuilder"
	"github.com/chronokv/backup/namescheme"
	"github.com/chronokv/backup/planner"
	"github.com/chronokv/backup/sink"
)

// batchCapacity bounds how many entries are pulled from the scanner per
// round-trip.
const batchCapacity = 1024

// UnitResult is the outcome of running one PlanUnit, paired with the unit
// that produced it so the dispatcher can stamp and route the response.
type UnitResult struct {
	Unit  planner.PlanUnit
	Files []filebuilder.FileMeta
	Stats engine.ScanStats
	Err   error
}

// Run executes the SnapshotWorker protocol for one PlanUnit and returns
// its UnitResult. Run never panics on a collaborator failure; it always
// returns, with Err populated as an *errkind.Error.
func Run(ctx context.Context, eng engine.Engine, s sink.Sink, storeID string, unit planner.PlanUnit, backupTS uint64) UnitResult {
	var rc = engine.ReadContext{
		ShardID:    unit.Shard.ID,
		ShardEpoch: unit.Shard.Epoch,
		Leader:     unit.Leader,
	}

	snap, err := eng.Snapshot(ctx, rc, backupTS)
	if err != nil {
		return UnitResult{Unit: unit, Err: asUnitError(err, errkind.StaleTopology)}
	}
	defer snap.Release()

	scanner, err := snap.NewScanner(unit.Start, unit.End)
	if err != nil {
		return UnitResult{Unit: unit, Err: asUnitError(err, errkind.ScanFailure)}
	}
	defer scanner.Close()

	var stem = namescheme.Stem(storeID, unit.Shard)
	w, err := s.Create(ctx, stem)
	if err != nil {
		return UnitResult{Unit: unit, Err: errkind.New(errkind.SinkFailure, err)}
	}

	builder, err := filebuilder.New(w, stem)
	if err != nil {
		w.Abort()
		return UnitResult{Unit: unit, Err: errkind.New(errkind.SinkFailure, err)}
	}

	var buf = make([]engine.Entry, batchCapacity)
	for {
		n, err := scanner.NextBatch(ctx, buf)
		if err != nil {
			builder.Abort()
			return UnitResult{Unit: unit, Err: asUnitError(err, errkind.ScanFailure)}
		}
		for i := 0; i < n; i++ {
			if err := builder.WriteEntry(buf[i]); err != nil {
				builder.Abort()
				return UnitResult{Unit: unit, Err: errkind.New(errkind.SinkFailure, err)}
			}
		}
		if n == 0 {
			break
		}
	}

	var stats = scanner.TakeStats()
	meta, err := builder.Finalize(stats)
	if err != nil {
		return UnitResult{Unit: unit, Err: errkind.New(errkind.SinkFailure, err)}
	}

	return UnitResult{
		Unit:  unit,
		Files: []filebuilder.FileMeta{meta},
		Stats: stats,
	}
}

// asUnitError wraps err as an *errkind.Error of fallback kind unless it
// already carries a kind of its own.
func asUnitError(err error, fallback errkind.Kind) error {
	var e *errkind.Error
	if errors.As(err, &e) {
		return e
	}
	return errkind.New(fallback, fmt.Errorf("%w", err))
}
