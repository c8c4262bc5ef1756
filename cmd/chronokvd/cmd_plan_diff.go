package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/nsf/jsondiff"
	clientv3 "go.etcd.io/etcd/client/v3"
	mbp "go.gazette.dev/core/mainboilerplate"

	"github.com/chronokv/backup/keys"
	"github.com/chronokv/backup/planner"
	"github.com/chronokv/backup/shard"
)

// cmdPlanDiff runs the planner twice against the same shard directory, a
// configurable interval apart, and prints a structural diff of the two
// PlanUnit sequences. It exists to make topology flapping between poll
// cycles visible without standing up a full backup task.
type cmdPlanDiff struct {
	StoreID     string        `long:"store-id" required:"true" description:"Identity used to resolve shard leadership"`
	ShardPrefix string        `long:"shard-prefix" default:"/chronokv/shards/" description:"Etcd key prefix of the shard topology"`
	StartKey    string        `long:"start-key" description:"Inclusive start of the range to plan"`
	EndKey      string        `long:"end-key" description:"Exclusive end of the range to plan"`
	Interval    time.Duration `long:"interval" default:"5s" description:"Delay between the two plan runs"`

	Etcd mbp.EtcdConfig `group:"Etcd" namespace:"etcd" env-namespace:"ETCD"`
	Log  mbp.LogConfig  `group:"Logging" namespace:"log" env-namespace:"LOG"`
}

// planUnitView is the JSON-friendly projection of a planner.PlanUnit used
// for diffing; planner.PlanUnit itself carries encoded, non-printable keys.
type planUnitView struct {
	Start    string `json:"start"`
	End      string `json:"end"`
	ShardID  string `json:"shard_id"`
	Epoch    uint64 `json:"epoch"`
	LeaderID string `json:"leader_id"`
}

func (cmd cmdPlanDiff) Execute(_ []string) error {
	mbp.InitLog(cmd.Log)

	etcdClient, err := cmd.dial()
	if err != nil {
		return err
	}
	defer etcdClient.Close()

	var directory = &shard.EtcdDirectory{
		Client:   etcdClient,
		Prefix:   cmd.ShardPrefix,
		SelfPeer: shard.Peer{ID: cmd.StoreID},
	}

	var ctx = context.Background()
	var start, end keys.Encoded
	if cmd.StartKey != "" {
		start = keys.Encode(keys.Raw(cmd.StartKey))
	}
	if cmd.EndKey != "" {
		end = keys.Encode(keys.Raw(cmd.EndKey))
	}

	before, err := cmd.planOnce(ctx, directory, start, end)
	if err != nil {
		return fmt.Errorf("first plan run: %w", err)
	}

	time.Sleep(cmd.Interval)

	after, err := cmd.planOnce(ctx, directory, start, end)
	if err != nil {
		return fmt.Errorf("second plan run: %w", err)
	}

	beforeJSON, err := json.MarshalIndent(before, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding first plan: %w", err)
	}
	afterJSON, err := json.MarshalIndent(after, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding second plan: %w", err)
	}

	diffOpts := jsondiff.DefaultConsoleOptions()
	difference, report := jsondiff.Compare(beforeJSON, afterJSON, &diffOpts)

	if difference == jsondiff.FullMatch {
		color.Green("plans are identical (%d units)", len(before))
		return nil
	}

	color.Yellow("plans differ (%s):", difference)
	fmt.Println(report)
	return nil
}

func (cmd cmdPlanDiff) dial() (*clientv3.Client, error) {
	var client = cmd.Etcd.MustDial()
	if client == nil {
		return nil, fmt.Errorf("failed to dial etcd")
	}
	return client, nil
}

func (cmd cmdPlanDiff) planOnce(ctx context.Context, dir shard.Directory, start, end keys.Encoded) ([]planUnitView, error) {
	p, err := planner.Plan(ctx, dir, start, end)
	if err != nil {
		return nil, err
	}

	var views = make([]planUnitView, 0, p.Len())
	for {
		u, ok := p.Next()
		if !ok {
			break
		}
		var leaderID string
		if u.Shard.Leader != nil {
			leaderID = u.Shard.Leader.ID
		}
		var startRaw, endRaw keys.Raw
		if !u.Start.Unbounded() {
			if startRaw, err = keys.Decode(u.Start); err != nil {
				return nil, fmt.Errorf("decoding unit start: %w", err)
			}
		}
		if !u.End.Unbounded() {
			if endRaw, err = keys.Decode(u.End); err != nil {
				return nil, fmt.Errorf("decoding unit end: %w", err)
			}
		}
		views = append(views, planUnitView{
			Start:    string(startRaw),
			End:      string(endRaw),
			ShardID:  string(u.Shard.ID),
			Epoch:    uint64(u.Shard.Epoch),
			LeaderID: leaderID,
		})
	}
	return views, nil
}
