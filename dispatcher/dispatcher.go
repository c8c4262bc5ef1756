// Package dispatcher drives one backup Task to completion: it decodes raw
// key bounds, runs the planner, fans PlanUnits out to a worker pool,
// collects UnitResults, and streams BackupResponses terminated by a
// sentinel.
package dispatcher

import (
	"context"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/chronokv/backup/engine"
	"github.com/chronokv/backup/filebuilder"
	"github.com/chronokv/backup/keys"
	"github.com/chronokv/backup/planner"
	"github.com/chronokv/backup/shard"
	"github.com/chronokv/backup/sink"
	"github.com/chronokv/backup/worker"
)

// Task is one backup request, already resolved to a concrete Sink.
type Task struct {
	RawStart []byte
	RawEnd   []byte
	StartTS  uint64
	EndTS    uint64
	Sink     sink.Sink
}

// Valid reports whether t is well-formed. Incremental backup
// (StartTS != EndTS) is not implemented and makes a Task InvalidTask.
func (t Task) Valid() bool { return t.StartTS == t.EndTS }

// FileMeta is one finished backup file, stamped with the range and
// timestamps of the response it's reported under.
type FileMeta struct {
	filebuilder.FileMeta
	StartKeyRaw []byte
	EndKeyRaw   []byte
	StartTS     uint64
	EndTS       uint64
}

// BackupResponse is one unit's outcome, or the terminal sentinel when Done
// is true.
type BackupResponse struct {
	StartKeyRaw []byte
	EndKeyRaw   []byte
	Files       []FileMeta
	Err         error
	Done        bool
}

// TaskSummary aggregates statistics across every unit of a task, rolled up
// on the collector goroutine only.
type TaskSummary struct {
	UnitsOK     int
	UnitsFailed int
	Stats       engine.ScanStats
}

// Dispatcher runs Tasks against a fixed Engine, store identity, and shard
// Directory.
type Dispatcher struct {
	Engine    engine.Engine
	Directory shard.Directory
	StoreID   string
	// PoolSize bounds concurrent SnapshotWorker goroutines. Zero means
	// unbounded (one goroutine per unit).
	PoolSize int
}

// Run drives task to completion, sending one BackupResponse per completed
// unit followed by exactly one terminal response (Done == true) on out.
// Run blocks until the terminal response has been sent. It returns the
// task-level summary: counts of successful and failed units, and the scan
// statistics summed over the successful ones.
func (d *Dispatcher) Run(ctx context.Context, task Task, out chan<- BackupResponse) TaskSummary {
	var summary TaskSummary

	if !task.Valid() {
		out <- BackupResponse{Done: true}
		return summary
	}

	start, end := decodeBounds(task.RawStart, task.RawEnd)

	p, err := planner.Plan(ctx, d.Directory, start, end)
	if err != nil {
		// PlanFailure: task ends with sentinel, zero unit responses. The
		// error is logged so an operator can tell it apart from a range
		// with no intersecting shards.
		log.WithField("err", err).Error("planning backup task failed")
		out <- BackupResponse{Done: true}
		return summary
	}

	var results = make(chan worker.UnitResult, p.Len())
	var sem chan struct{}
	if d.PoolSize > 0 {
		sem = make(chan struct{}, d.PoolSize)
	}

	var wg sync.WaitGroup
	for {
		unit, ok := p.Next()
		if !ok {
			break
		}
		wg.Add(1)
		go func(u planner.PlanUnit) {
			defer wg.Done()
			if sem != nil {
				sem <- struct{}{}
				defer func() { <-sem }()
			}
			results <- worker.Run(ctx, d.Engine, task.Sink, d.StoreID, u, task.EndTS)
		}(unit)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	for r := range results {
		var resp = toResponse(r, task)
		if r.Err != nil {
			summary.UnitsFailed++
		} else {
			summary.UnitsOK++
			summary.Stats.Add(r.Stats)
		}
		out <- resp
	}

	out <- BackupResponse{Done: true}
	return summary
}

func decodeBounds(rawStart, rawEnd []byte) (keys.Encoded, keys.Encoded) {
	var start, end keys.Encoded
	if len(rawStart) > 0 {
		start = keys.Encode(keys.Raw(rawStart))
	}
	if len(rawEnd) > 0 {
		end = keys.Encode(keys.Raw(rawEnd))
	}
	return start, end
}

func toResponse(r worker.UnitResult, task Task) BackupResponse {
	var startRaw = decodeOrEmpty(r.Unit.Start)
	var endRaw = decodeOrEmpty(r.Unit.End)

	if r.Err != nil {
		return BackupResponse{
			StartKeyRaw: startRaw,
			EndKeyRaw:   endRaw,
			Err:         r.Err,
		}
	}

	var files = make([]FileMeta, 0, len(r.Files))
	for _, f := range r.Files {
		files = append(files, FileMeta{
			FileMeta:    f,
			StartKeyRaw: startRaw,
			EndKeyRaw:   endRaw,
			StartTS:     task.StartTS,
			EndTS:       task.EndTS,
		})
	}

	return BackupResponse{
		StartKeyRaw: startRaw,
		EndKeyRaw:   endRaw,
		Files:       files,
	}
}

func decodeOrEmpty(e keys.Encoded) []byte {
	if e.Unbounded() {
		return nil
	}
	raw, err := keys.Decode(e)
	if err != nil {
		// An undecodable bound can only arise from an engine or planner
		// defect; report the bound as empty (best-effort) rather than
		// panicking the collector goroutine.
		return nil
	}
	return []byte(raw)
}
