package main

import (
	"context"
	"fmt"
	"io"

	log "github.com/sirupsen/logrus"
	mbp "go.gazette.dev/core/mainboilerplate"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/chronokv/backup/backuppb"
)

// cmdBackup invokes the Backup RPC against a running endpoint and prints
// every streamed response until the terminal sentinel.
type cmdBackup struct {
	Addr       string `long:"addr" required:"true" description:"chronokvd gRPC address"`
	StartKey   string `long:"start-key" description:"Inclusive start of the backup range; empty means unbounded"`
	EndKey     string `long:"end-key" description:"Exclusive end of the backup range; empty means unbounded"`
	Version    uint64 `long:"version" required:"true" description:"Snapshot timestamp; used as both start and end version"`
	SinkURL    string `long:"sink" required:"true" description:"Destination sink URL (file:// or gs://)"`

	Log mbp.LogConfig `group:"Logging" namespace:"log" env-namespace:"LOG"`
}

func (cmd cmdBackup) Execute(_ []string) error {
	mbp.InitLog(cmd.Log)

	conn, err := grpc.NewClient(cmd.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return fmt.Errorf("dialing %s: %w", cmd.Addr, err)
	}
	defer conn.Close()

	var client = backuppb.NewBackupClient(conn)
	var req = &backuppb.BackupRequest{
		StartKeyRaw:  []byte(cmd.StartKey),
		EndKeyRaw:    []byte(cmd.EndKey),
		StartVersion: cmd.Version,
		EndVersion:   cmd.Version,
		Path:         cmd.SinkURL,
	}

	stream, err := client.Backup(context.Background(), req)
	if err != nil {
		return fmt.Errorf("starting backup: %w", err)
	}

	for {
		resp, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("receiving response: %w", err)
		}
		if resp.Done {
			break
		}
		if resp.ErrorKind != "" {
			log.WithFields(log.Fields{
				"start": string(resp.StartKeyRaw),
				"end":   string(resp.EndKeyRaw),
				"kind":  resp.ErrorKind,
				"error": resp.ErrorDetail,
			}).Error("unit failed")
			continue
		}
		log.WithFields(log.Fields{
			"start": string(resp.StartKeyRaw),
			"end":   string(resp.EndKeyRaw),
			"files": len(resp.Files),
		}).Info("unit complete")
	}

	return nil
}
