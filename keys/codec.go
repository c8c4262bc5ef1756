// Package keys implements the raw/encoded user-key duality used throughout
// the backup endpoint: a Raw key is the caller's literal bytes, an Encoded
// key is the order-preserving transform the engine and shard directory key
// their data by.
package keys

import (
	"fmt"

	"github.com/jgraettinger/cockroach-encoding/encoding"
)

// Raw is a user key exactly as supplied by a client.
type Raw []byte

// Encoded is the order-preserving byte encoding of a Raw key, as used
// internally by the storage engine and the shard directory. Lexicographic
// comparison of Encoded keys matches the desired ordering of the
// corresponding Raw keys.
type Encoded []byte

// Encode transforms a Raw key into its Encoded form. An empty Raw key is
// reserved to mean "unbounded" by callers and is never passed here; Encode
// does not special-case it.
func Encode(r Raw) Encoded {
	return Encoded(encoding.EncodeBytesAscending(nil, []byte(r)))
}

// Decode reverses Encode. It returns an error if e is not a well-formed
// encoded byte string (e.g. a truncated escape sequence).
func Decode(e Encoded) (Raw, error) {
	rest, out, err := encoding.DecodeBytesAscending([]byte(e), nil)
	if err != nil {
		return nil, fmt.Errorf("decoding key: %w", err)
	}
	if len(rest) != 0 {
		return nil, fmt.Errorf("decoding key: %d trailing bytes", len(rest))
	}
	return Raw(out), nil
}

// Unbounded reports whether r represents the open (minus- or plus-infinity)
// bound. An empty raw key denotes an unbounded end of a range; there is no
// separate "option" wrapper type.
func (r Raw) Unbounded() bool { return len(r) == 0 }

// Unbounded reports whether e represents the open bound.
func (e Encoded) Unbounded() bool { return len(e) == 0 }

// Less reports whether e sorts strictly before o under the Encoded
// lexicographic order.
func (e Encoded) Less(o Encoded) bool {
	return compareBytes(e, o) < 0
}

func compareBytes(a, b []byte) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return 0
	}
}
