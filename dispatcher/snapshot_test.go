package dispatcher

import (
	"errors"
	"testing"

	"github.com/bradleyjkemp/cupaloy"

	"github.com/chronokv/backup/errkind"
	"github.com/chronokv/backup/filebuilder"
	"github.com/chronokv/backup/keys"
	"github.com/chronokv/backup/planner"
	"github.com/chronokv/backup/shard"
	"github.com/chronokv/backup/worker"
)

var errScanFailureFixture = errkind.New(errkind.ScanFailure, errors.New("injected corruption"))

// toResponse is the only place a worker.UnitResult is reshaped into the
// wire-facing BackupResponse; a snapshot catches accidental field drift
// across that boundary better than asserting each field by hand.
func TestToResponseSnapshot(t *testing.T) {
	var task = Task{StartTS: 100, EndTS: 100}
	var unit = planner.PlanUnit{
		Start: keys.Encode(keys.Raw("a")),
		End:   keys.Encode(keys.Raw("m")),
		Shard: shard.Shard{ID: "s1", Epoch: 7},
	}

	result := worker.UnitResult{
		Unit: unit,
		Files: []filebuilder.FileMeta{
			{Name: "node1_s1_7", Size: 128, ChecksumHH64: 0xdeadbeef, KeysScanned: 3, BytesScanned: 96},
		},
	}

	cupaloy.SnapshotT(t, toResponse(result, task))
}

func TestToResponseSnapshotOnError(t *testing.T) {
	var task = Task{StartTS: 100, EndTS: 100}
	var unit = planner.PlanUnit{
		Start: keys.Encode(keys.Raw("a")),
		End:   keys.Encode(keys.Raw("m")),
		Shard: shard.Shard{ID: "s1", Epoch: 7},
	}

	result := worker.UnitResult{
		Unit: unit,
		Err:  errScanFailureFixture,
	}

	cupaloy.SnapshotT(t, toResponse(result, task))
}
