package main

import (
	"fmt"
	"net"

	grpcprom "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	mbp "go.gazette.dev/core/mainboilerplate"
	"google.golang.org/grpc"

	"net/http"

	"github.com/chronokv/backup/backuppb"
	"github.com/chronokv/backup/config"
	"github.com/chronokv/backup/dispatcher"
	"github.com/chronokv/backup/engine"
	"github.com/chronokv/backup/metrics"
	"github.com/chronokv/backup/rpcserver"
	"github.com/chronokv/backup/shard"
)

// cmdServe runs the backup endpoint as a long-lived gRPC service.
type cmdServe struct {
	StoreID     string `long:"store-id" required:"true" description:"Identity of this node, used in backup file stems"`
	ListenAddr  string `long:"listen" default:":7070" description:"gRPC listen address"`
	RocksDBPath string `long:"rocksdb-path" required:"true" description:"Base directory of the embedded storage engine"`

	// MetricsAddr, ShardPrefix, PoolSize and MaxConcurrentSnapshots are
	// layered on top of config.Default() (optionally overlaid by
	// ConfigPatch): a flag value other than the zero value always wins,
	// letting an operator pin one setting on the command line while the
	// rest come from a shared deployment config.
	MetricsAddr            string `long:"metrics-listen" description:"Prometheus metrics listen address"`
	ShardPrefix            string `long:"shard-prefix" description:"Etcd key prefix of the shard topology"`
	PoolSize               int    `long:"pool-size" description:"Bound on concurrent snapshot workers per task; 0 is unbounded"`
	MaxConcurrentSnapshots int    `long:"max-concurrent-snapshots" description:"Bound on RocksDB snapshots open at once across all tasks; 0 is unbounded"`
	ConfigPatch            string `long:"config-patch" description:"JSON merge-patch (RFC 7386) overlaid onto the default config before flag overrides are applied"`

	Etcd        mbp.EtcdConfig        `group:"Etcd" namespace:"etcd" env-namespace:"ETCD"`
	Log         mbp.LogConfig         `group:"Logging" namespace:"log" env-namespace:"LOG"`
	Diagnostics mbp.DiagnosticsConfig `group:"Debug" namespace:"debug" env-namespace:"DEBUG"`
}

func (cmd cmdServe) Execute(_ []string) error {
	defer mbp.InitDiagnosticsAndRecover(cmd.Diagnostics)()
	mbp.InitLog(cmd.Log)

	var cfg = config.Default()
	if cmd.ConfigPatch != "" {
		patched, err := config.ApplyPatch(cfg, []byte(cmd.ConfigPatch))
		if err != nil {
			return fmt.Errorf("applying --config-patch: %w", err)
		}
		cfg = patched
	}
	cfg.StoreID = cmd.StoreID
	cfg.RocksDBPath = cmd.RocksDBPath
	if cmd.ListenAddr != "" {
		cfg.ListenAddr = cmd.ListenAddr
	}
	if cmd.MetricsAddr != "" {
		cfg.MetricsAddr = cmd.MetricsAddr
	}
	if cmd.ShardPrefix != "" {
		cfg.ShardPrefix = cmd.ShardPrefix
	}
	if cmd.PoolSize != 0 {
		cfg.PoolSize = cmd.PoolSize
	}
	if cmd.MaxConcurrentSnapshots != 0 {
		cfg.MaxConcurrentSnapshots = cmd.MaxConcurrentSnapshots
	}

	log.WithFields(log.Fields{
		"storeID":    cfg.StoreID,
		"listenAddr": cfg.ListenAddr,
	}).Info("chronokvd starting")

	var etcdClient = cmd.Etcd.MustDial()
	defer etcdClient.Close()

	var directory = &shard.EtcdDirectory{
		Client:   etcdClient,
		Prefix:   cfg.ShardPrefix,
		SelfPeer: shard.Peer{ID: cfg.StoreID},
	}

	// No shard column family names are passed: only the default column
	// family is opened, and no command-line flag supplies a list of shard
	// column families.
	rocksEngine, err := engine.OpenRocksEngine(cfg.RocksDBPath, nil, cfg.MaxConcurrentSnapshots)
	if err != nil {
		return fmt.Errorf("opening storage engine: %w", err)
	}
	defer rocksEngine.Close()

	var d = &dispatcher.Dispatcher{
		Engine:    rocksEngine,
		Directory: directory,
		StoreID:   cfg.StoreID,
		PoolSize:  cfg.PoolSize,
	}

	var grpcServer = grpc.NewServer(metrics.ServerOptions()...)
	backuppb.RegisterBackupServer(grpcServer, &rpcserver.Server{Dispatcher: d})
	grpcprom.Register(grpcServer)

	lis, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("binding %s: %w", cfg.ListenAddr, err)
	}

	go func() {
		var mux = http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		log.WithField("addr", cfg.MetricsAddr).Info("serving metrics")
		if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
			log.WithField("err", err).Error("metrics server exited")
		}
	}()

	log.WithField("addr", cfg.ListenAddr).Info("serving backup RPC")
	return grpcServer.Serve(lis)
}
