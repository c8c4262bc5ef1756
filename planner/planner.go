// Package planner implements the ShardPlanner: it intersects a user key
// range with this node's locally-led shards and produces a disjoint,
// ascending sequence of clipped PlanUnits.
package planner

import (
	"bytes"
	"context"
	"fmt"

	"github.com/chronokv/backup/keys"
	"github.com/chronokv/backup/shard"
)

// PlanUnit is one leader-local, range-clipped work item.
// Start/End are always within [Shard.Start, Shard.End), with the single
// exception that a None (empty) bound is permitted where the shard's own
// bound is itself unbounded (see Plan's clipping rules).
type PlanUnit struct {
	Start  keys.Encoded
	End    keys.Encoded
	Shard  shard.Shard
	Leader shard.Peer
}

// Planner produces a lazy, ascending sequence of PlanUnits for one task.
// The ShardDirectory traversal (Plan's single blocking call) happens
// up-front; Next merely walks the already-ordered, already-filtered result,
// so a directory failure is always surfaced before any unit is emitted.
type Planner struct {
	units []PlanUnit
	pos   int
}

// Plan queries dir for every shard intersecting [start, end) — empty bounds
// denoting the unbounded ends — filters to shards this node leads, clips
// each to the intersection, and returns a Planner ready to be drained with
// Next. On directory failure it returns the error directly: no Planner (and
// thus no units) is produced, matching "closes the unit sequence and does
// not emit partial units".
func Plan(ctx context.Context, dir shard.Directory, start, end keys.Encoded) (*Planner, error) {
	it, err := dir.Seek(ctx, start)
	if err != nil {
		return nil, fmt.Errorf("seeking shard directory: %w", err)
	}
	defer it.Close()

	var units []PlanUnit
	for {
		info, ok, err := it.Next(ctx)
		if err != nil {
			return nil, fmt.Errorf("reading shard directory: %w", err)
		}
		if !ok {
			break
		}

		// Termination test: once the shard starts strictly after the user's
		// end, no further (ascending) shard can intersect the range. A shard
		// starting exactly at the user's end still yields a degenerate
		// start == end unit.
		if !end.Unbounded() && bytes.Compare([]byte(end), []byte(info.Shard.Start)) < 0 {
			break
		}

		// Leadership test.
		if info.Role != shard.RoleLeader {
			continue
		}
		if info.Shard.Leader == nil {
			continue
		}

		units = append(units, PlanUnit{
			Start:  clipStart(start, info.Shard.Start),
			End:    clipEnd(end, info.Shard.End),
			Shard:  info.Shard,
			Leader: *info.Shard.Leader,
		})
	}

	return &Planner{units: units}, nil
}

// Next returns the next PlanUnit in ascending key order. The second return
// is false once the sequence is exhausted.
func (p *Planner) Next() (PlanUnit, bool) {
	if p.pos >= len(p.units) {
		return PlanUnit{}, false
	}
	var u = p.units[p.pos]
	p.pos++
	return u, true
}

// Len reports the total number of units this Planner will yield. Useful to
// a Dispatcher sizing its fan-out without draining the sequence twice.
func (p *Planner) Len() int { return len(p.units) }

// clipStart computes the tighter of the user's start bound and the shard's
// own start bound. An empty (unbounded) shardStart represents
// minus-infinity, and empty sorts first under byte comparison, so no
// special case is needed here (unlike clipEnd).
func clipStart(userStart, shardStart keys.Encoded) keys.Encoded {
	if userStart.Unbounded() || bytes.Compare([]byte(userStart), []byte(shardStart)) < 0 {
		return shardStart
	}
	return userStart
}

// clipEnd computes the tighter of the user's end bound and the shard's own
// end bound. An empty shardEnd represents plus-infinity — the opposite
// semantic of an empty start — so it must be checked explicitly before any
// byte comparison.
func clipEnd(userEnd, shardEnd keys.Encoded) keys.Encoded {
	if shardEnd.Unbounded() {
		return userEnd
	}
	if userEnd.Unbounded() || bytes.Compare([]byte(userEnd), []byte(shardEnd)) > 0 {
		return shardEnd
	}
	return userEnd
}
