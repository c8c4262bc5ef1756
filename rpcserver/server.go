// Package rpcserver adapts a dispatcher.Dispatcher to the backuppb gRPC
// service: decoding requests, relaying streamed responses, and recording
// per-task metrics and log lines.
package rpcserver

import (
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/chronokv/backup/backuppb"
	"github.com/chronokv/backup/dispatcher"
	"github.com/chronokv/backup/errkind"
	"github.com/chronokv/backup/metrics"
	"github.com/chronokv/backup/ops"
	"github.com/chronokv/backup/sink"
)

// Server implements backuppb.BackupServer over a Dispatcher.
type Server struct {
	Dispatcher *dispatcher.Dispatcher
	Logger     ops.Logger
}

// Backup runs req to completion, streaming one BackupResponse per
// completed unit and a terminal sentinel, as required by the Backup RPC.
func (srv *Server) Backup(req *backuppb.BackupRequest, stream backuppb.Backup_BackupServer) error {
	if err := req.Validate(); err != nil {
		return err
	}

	var logger = srv.Logger
	if logger == nil {
		logger = ops.StdLogger()
	}
	logger = ops.NewLoggerWithFields(logger, log.Fields{
		"start_key": fmt.Sprintf("%q", req.StartKeyRaw),
		"end_key":   fmt.Sprintf("%q", req.EndKeyRaw),
	})

	dest, err := sink.Open(stream.Context(), req.Path)
	if err != nil {
		return fmt.Errorf("resolving sink %q: %w", req.Path, err)
	}

	var task = dispatcher.Task{
		RawStart: req.StartKeyRaw,
		RawEnd:   req.EndKeyRaw,
		StartTS:  req.StartVersion,
		EndTS:    req.EndVersion,
		Sink:     dest,
	}

	var out = make(chan dispatcher.BackupResponse, 16)
	var done = make(chan struct{})

	go func() {
		defer close(done)
		for resp := range out {
			if err := stream.Send(toWire(resp)); err != nil {
				logger.Log(log.WarnLevel, log.Fields{"error": err.Error()}, "dropping response, stream send failed")
			}
		}
	}()

	var started = time.Now()
	var summary = srv.Dispatcher.Run(stream.Context(), task, out)
	close(out)
	<-done
	metrics.TaskDuration.Observe(time.Since(started).Seconds())

	logger.Log(log.InfoLevel, log.Fields{
		"units_ok":     summary.UnitsOK,
		"units_failed": summary.UnitsFailed,
		"keys_scanned": summary.Stats.KeysScanned,
	}, "backup task complete")

	metrics.UnitsTotal.WithLabelValues("ok").Add(float64(summary.UnitsOK))
	metrics.UnitsTotal.WithLabelValues("failed").Add(float64(summary.UnitsFailed))
	metrics.UnitKeysScanned.Add(float64(summary.Stats.KeysScanned))
	metrics.UnitBytesScanned.Add(float64(summary.Stats.BytesScanned))

	return nil
}

func toWire(r dispatcher.BackupResponse) *backuppb.BackupResponse {
	if r.Done {
		return &backuppb.BackupResponse{Done: true}
	}

	var wire = &backuppb.BackupResponse{
		StartKeyRaw: r.StartKeyRaw,
		EndKeyRaw:   r.EndKeyRaw,
	}
	if r.Err != nil {
		var kind = errkind.Unspecified
		var e *errkind.Error
		if errors.As(r.Err, &e) {
			kind = e.Kind
		}
		wire.ErrorKind = kind.String()
		wire.ErrorDetail = r.Err.Error()
		return wire
	}

	for _, f := range r.Files {
		wire.Files = append(wire.Files, &backuppb.FileMeta{
			Name:         f.Name,
			Size:         f.Size,
			ChecksumHH64: f.ChecksumHH64,
			StartKeyRaw:  f.StartKeyRaw,
			EndKeyRaw:    f.EndKeyRaw,
			StartVersion: f.StartTS,
			EndVersion:   f.EndTS,
		})
	}
	return wire
}
