// Package config defines the service configuration and the JSON
// merge-patch overlay mechanism used to layer environment- or
// deployment-specific values onto a base config, in the style of the
// driver-checkpoint merge-patch accumulation used elsewhere in this
// module's dependency stack.
package config

import (
	"encoding/json"
	"fmt"

	jsonpatch "github.com/evanphx/json-patch/v5"
)

// Config is the service-level configuration for a chronokvd node.
type Config struct {
	// StoreID identifies this node in NameScheme-derived file stems.
	StoreID string `json:"store_id"`
	// ListenAddr is the gRPC bind address.
	ListenAddr string `json:"listen_addr"`
	// MetricsAddr is the Prometheus scrape bind address.
	MetricsAddr string `json:"metrics_addr"`
	// RocksDBPath is the base directory of the embedded storage engine.
	RocksDBPath string `json:"rocksdb_path"`
	// EtcdEndpoints addresses the shard topology keyspace.
	EtcdEndpoints []string `json:"etcd_endpoints"`
	// ShardPrefix is the etcd key prefix under which shard records live.
	ShardPrefix string `json:"shard_prefix"`
	// PoolSize bounds concurrent SnapshotWorker goroutines per task. Zero
	// means unbounded.
	PoolSize int `json:"pool_size"`
	// MaxConcurrentSnapshots, if positive, bounds the number of engine
	// snapshots open at once across all tasks on this node.
	MaxConcurrentSnapshots int `json:"max_concurrent_snapshots"`
}

// Default returns a Config with reasonable standalone defaults.
func Default() Config {
	return Config{
		StoreID:     "store1",
		ListenAddr:  ":7070",
		MetricsAddr: ":9091",
		RocksDBPath: "./chronokv-data",
		ShardPrefix: "/chronokv/shards/",
	}
}

// ApplyPatch layers a JSON merge-patch (RFC 7386) document onto base and
// returns the resulting Config. Unset fields in patch leave base's value
// unchanged; a field explicitly set to null removes it.
func ApplyPatch(base Config, patch []byte) (Config, error) {
	baseJSON, err := json.Marshal(base)
	if err != nil {
		return Config{}, fmt.Errorf("marshaling base config: %w", err)
	}

	merged, err := jsonpatch.MergePatch(baseJSON, patch)
	if err != nil {
		return Config{}, fmt.Errorf("applying config overlay: %w", err)
	}

	var out Config
	if err := json.Unmarshal(merged, &out); err != nil {
		return Config{}, fmt.Errorf("decoding merged config: %w", err)
	}
	return out, nil
}
