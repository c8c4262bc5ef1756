// Package metrics defines the prometheus series this module exports, and
// wires go-grpc-prometheus interceptors into the gRPC server.
package metrics

import (
	grpcprom "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"google.golang.org/grpc"
)

var (
	UnitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chronokv_backup_units_total",
		Help: "Count of backup units completed, by outcome.",
	}, []string{"outcome"})

	UnitBytesScanned = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chronokv_backup_bytes_scanned_total",
		Help: "Total bytes of MVCC entry keys and values scanned across all units.",
	})

	UnitKeysScanned = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chronokv_backup_keys_scanned_total",
		Help: "Total MVCC keys scanned across all units.",
	})

	TaskDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "chronokv_backup_task_duration_seconds",
		Help:    "Wall-clock duration of a backup task from submission to terminal sentinel.",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	})
)

// ServerOptions returns the grpc.ServerOptions needed to install
// go-grpc-prometheus interceptors on a server. Call
// grpcprom.Register(server) after construction to register per-method
// metrics.
func ServerOptions() []grpc.ServerOption {
	return []grpc.ServerOption{
		grpc.StreamInterceptor(grpcprom.StreamServerInterceptor),
		grpc.UnaryInterceptor(grpcprom.UnaryServerInterceptor),
	}
}
