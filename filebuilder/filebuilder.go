// Package filebuilder implements the FileBuilder collaborator: it encodes
// a stream of engine.Entry records into one backup file and checksums the
// result as it's written, without buffering the whole file in memory.
package filebuilder

import (
	"encoding/binary"
	"fmt"
	"hash"

	"github.com/minio/highwayhash"

	"github.com/chronokv/backup/engine"
	"github.com/chronokv/backup/sink"
)

// hashKey is the fixed 32-byte HighwayHash key used for file checksums.
// It need not be secret — only stable, so two nodes computing a checksum
// of the same bytes agree — so a fixed key (rather than one read from
// /dev/random at startup) is used.
var hashKey = make([]byte, 32)

// FileMeta describes one finished backup file.
type FileMeta struct {
	Name         string
	Size         uint64
	ChecksumHH64 uint64
	KeysScanned  uint64
	BytesScanned uint64
}

// Builder accumulates entries into a single backup file and finalizes it
// against a sink.Writer.
type Builder struct {
	w    sink.Writer
	name string
	hash hash.Hash64
	size uint64
}

// New returns a Builder writing to w, an already-created sink object named
// name.
func New(w sink.Writer, name string) (*Builder, error) {
	h, err := highwayhash.New64(hashKey)
	if err != nil {
		return nil, fmt.Errorf("initializing checksum: %w", err)
	}
	return &Builder{w: w, name: name, hash: h}, nil
}

// WriteEntry appends one entry to the file in a simple length-prefixed
// record format: varint key length, key, 8-byte big-endian commit
// timestamp, varint value length, value.
func (b *Builder) WriteEntry(e engine.Entry) error {
	var hdr [binary.MaxVarintLen64]byte

	if err := b.writeVarint(hdr[:], len(e.Key)); err != nil {
		return err
	}
	if err := b.writeAll(e.Key); err != nil {
		return err
	}

	var tsBuf [8]byte
	binary.BigEndian.PutUint64(tsBuf[:], e.CommitTS)
	if err := b.writeAll(tsBuf[:]); err != nil {
		return err
	}

	if err := b.writeVarint(hdr[:], len(e.Value)); err != nil {
		return err
	}
	return b.writeAll(e.Value)
}

func (b *Builder) writeVarint(buf []byte, n int) error {
	var m = binary.PutUvarint(buf, uint64(n))
	return b.writeAll(buf[:m])
}

func (b *Builder) writeAll(p []byte) error {
	n, err := b.w.Write(p)
	b.size += uint64(n)
	if _, hashErr := b.hash.Write(p[:n]); hashErr != nil {
		return fmt.Errorf("updating checksum: %w", hashErr)
	}
	if err != nil {
		return fmt.Errorf("writing backup file: %w", err)
	}
	return nil
}

// Finalize closes the underlying sink.Writer and returns the completed
// file's metadata. stats rolls the originating scan's counters into the
// returned FileMeta.
func (b *Builder) Finalize(stats engine.ScanStats) (FileMeta, error) {
	if err := b.w.Close(); err != nil {
		return FileMeta{}, fmt.Errorf("finalizing backup file %q: %w", b.name, err)
	}
	return FileMeta{
		Name:         b.name,
		Size:         b.size,
		ChecksumHH64: b.hash.Sum64(),
		KeysScanned:  stats.KeysScanned,
		BytesScanned: stats.BytesScanned,
	}, nil
}

// Abort discards the file, leaving no object committed at its name.
func (b *Builder) Abort() {
	b.w.Abort()
}
