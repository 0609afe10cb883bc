package merge

import "fmt"

// Kind classifies merge failures so callers can tell a bad path from a bad
// schema from a failed write without parsing driver messages.
type Kind int

const (
	// KindConnection — a relation could not be opened or reached.
	KindConnection Kind = iota + 1
	// KindSchemaMismatch — the relations do not share the expected column
	// set, or an identity column is missing. Detected before any write.
	KindSchemaMismatch
	// KindWrite — the batch insert or its commit failed. The transaction is
	// rolled back; the destination keeps its pre-run state.
	KindWrite
)

func (k Kind) String() string {
	switch k {
	case KindConnection:
		return "connection"
	case KindSchemaMismatch:
		return "schema mismatch"
	case KindWrite:
		return "write"
	default:
		return "unknown"
	}
}

// Error wraps an underlying failure with its Kind and the relation side
// ("source" or "destination") it occurred on.
type Error struct {
	Kind Kind
	Side string
	Err  error
}

func (e *Error) Error() string {
	if e.Side != "" {
		return fmt.Sprintf("merge: %s error on %s: %v", e.Kind, e.Side, e.Err)
	}
	return fmt.Sprintf("merge: %s error: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func connErr(side string, err error) error {
	return &Error{Kind: KindConnection, Side: side, Err: err}
}

func schemaErr(side string, format string, args ...any) error {
	return &Error{Kind: KindSchemaMismatch, Side: side, Err: fmt.Errorf(format, args...)}
}

func writeErr(err error) error {
	return &Error{Kind: KindWrite, Side: "destination", Err: err}
}
