// Package errkind defines a closed error taxonomy: a small set of kinds,
// each either task-scoped (aborts the whole task, emitting only the
// terminal sentinel) or unit-scoped (reported on the one affected
// BackupResponse, never its siblings).
package errkind

import "fmt"

// Kind is one of the closed set of error kinds this package recognizes.
type Kind int

const (
	// Unspecified is the zero value and never constructed by this package;
	// its presence on an Error would indicate a bug.
	Unspecified Kind = iota

	// PlanFailure: the shard directory is unavailable. Task-scoped: the
	// task ends with the terminal sentinel and zero unit responses.
	PlanFailure

	// StaleTopology: a shard's epoch changed, or this node lost
	// leadership, between planning and snapshot acquisition. Unit-scoped.
	StaleTopology

	// SnapshotUnavailable: a transient engine failure prevented snapshot
	// acquisition. Unit-scoped.
	SnapshotUnavailable

	// ScanFailure: corruption, I/O, or MVCC inconsistency while scanning
	// entries. Unit-scoped.
	ScanFailure

	// SinkFailure: the upload to the storage sink failed. Unit-scoped;
	// partial files must never be published.
	SinkFailure

	// InvalidTask: the task itself is malformed (e.g. start_ts != end_ts).
	// Task-scoped: ends immediately with the terminal sentinel and no
	// per-unit responses.
	InvalidTask
)

func (k Kind) String() string {
	switch k {
	case PlanFailure:
		return "PlanFailure"
	case StaleTopology:
		return "StaleTopology"
	case SnapshotUnavailable:
		return "SnapshotUnavailable"
	case ScanFailure:
		return "ScanFailure"
	case SinkFailure:
		return "SinkFailure"
	case InvalidTask:
		return "InvalidTask"
	default:
		return "Unspecified"
	}
}

// TaskScoped reports whether an error of this Kind aborts the entire task
// (true) versus being scoped to the one unit that produced it (false).
func (k Kind) TaskScoped() bool {
	return k == PlanFailure || k == InvalidTask
}

// Error pairs a Kind with the underlying cause, so callers can recover the
// kind with errors.As without parsing strings.
type Error struct {
	Kind Kind
	Err  error
}

func New(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
