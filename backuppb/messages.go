// Package backuppb defines the wire request/response messages of the
// backup service and a hand-maintained streaming gRPC service around
// them, in the gogo/protobuf idiom used elsewhere in this module's
// dependency stack.
//
// The message types below satisfy proto.Message (Reset/String/ProtoMessage)
// but carry no field tags and no generated Marshal/Unmarshal: a real gRPC
// codec would serialize them as empty bodies. They stand in for the
// generated .pb.go this service would normally vendor, so in-process
// callers (the dispatcher, the CLI clients) see the intended shape without
// a protoc step; wiring an actual code generator is out of scope here.
package backuppb

import (
	"fmt"

	pb "go.gazette.dev/core/broker/protocol"
)

// BackupRequest is the client-submitted task description.
type BackupRequest struct {
	StartKeyRaw  []byte
	EndKeyRaw    []byte
	StartVersion uint64
	EndVersion   uint64
	// Path is the sink URL the resulting files are uploaded to
	// (file:// or gs://).
	Path string
}

func (m *BackupRequest) Reset()         { *m = BackupRequest{} }
func (m *BackupRequest) String() string { return fmt.Sprintf("%+v", *m) }
func (*BackupRequest) ProtoMessage()    {}

// Validate returns an error if the request is malformed. StartVersion !=
// EndVersion is not a validation error here: incremental tasks are valid
// requests that the dispatcher refuses at a different layer (InvalidTask),
// so that refusal is visible in the same terminal-sentinel shape a client
// already expects.
func (m *BackupRequest) Validate() error {
	if m.Path == "" {
		return pb.NewValidationError("missing Path")
	}
	return nil
}

// FileMeta describes one uploaded backup file, stamped with the raw key
// range and timestamps of its enclosing unit.
type FileMeta struct {
	Name         string
	Size         uint64
	ChecksumHH64 uint64
	StartKeyRaw  []byte
	EndKeyRaw    []byte
	StartVersion uint64
	EndVersion   uint64
}

func (m *FileMeta) Reset()         { *m = FileMeta{} }
func (m *FileMeta) String() string { return fmt.Sprintf("%+v", *m) }
func (*FileMeta) ProtoMessage()    {}

// BackupResponse is one streamed unit outcome. A zero-value response with
// Done set true is the terminal sentinel; no further responses follow it.
type BackupResponse struct {
	StartKeyRaw []byte
	EndKeyRaw   []byte
	Files       []*FileMeta
	ErrorKind   string
	ErrorDetail string
	Done        bool
}

func (m *BackupResponse) Reset()         { *m = BackupResponse{} }
func (m *BackupResponse) String() string { return fmt.Sprintf("%+v", *m) }
func (*BackupResponse) ProtoMessage()    {}

// Validate returns an error if the response is malformed: a terminal
// sentinel must carry no range, files or error, and a non-terminal response
// must carry either files or an error, never both.
func (m *BackupResponse) Validate() error {
	if m.Done {
		if len(m.StartKeyRaw) != 0 || len(m.EndKeyRaw) != 0 || len(m.Files) != 0 || m.ErrorKind != "" {
			return pb.NewValidationError("terminal response must not carry a range, files or an error")
		}
		return nil
	}
	if len(m.Files) != 0 && m.ErrorKind != "" {
		return pb.NewValidationError("response must not carry both files and an error")
	}
	return nil
}
