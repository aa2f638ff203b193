package engine

import "errors"

var (
	// ErrNotFound means a player, team, room, action or stat reference does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidPhase means the session phase forbids the command.
	ErrInvalidPhase = errors.New("invalid phase")
	// ErrInvalidState means a precondition other than phase is unmet.
	ErrInvalidState = errors.New("invalid state")
	// ErrForbidden means the acting player's role does not allow the command.
	ErrForbidden = errors.New("forbidden")
	// ErrConflict means the state changed underneath a mutation's precondition.
	ErrConflict = errors.New("conflict")
	// ErrInvalidArgument means the command input is malformed.
	ErrInvalidArgument = errors.New("invalid argument")
)

// Kind is the machine-readable class of an engine error.
type Kind string

const (
	KindNotFound        Kind = "not_found"
	KindInvalidPhase    Kind = "invalid_phase"
	KindInvalidState    Kind = "invalid_state"
	KindForbidden       Kind = "forbidden"
	KindConflict        Kind = "conflict"
	KindInvalidArgument Kind = "invalid_argument"
	KindInternal        Kind = "internal"
)

var kinds = []struct {
	err  error
	kind Kind
}{
	{ErrNotFound, KindNotFound},
	{ErrInvalidPhase, KindInvalidPhase},
	{ErrInvalidState, KindInvalidState},
	{ErrForbidden, KindForbidden},
	{ErrConflict, KindConflict},
	{ErrInvalidArgument, KindInvalidArgument},
}

// KindOf classifies err. Unknown errors are KindInternal.
func KindOf(err error) Kind {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindInternal
}
