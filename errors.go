package crossing

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ViolationKind classifies a detected protocol violation
type ViolationKind int

const (
	// No violation
	NoViolation ViolationKind = iota
	// Access called by the unit that already holds the crossing
	ReentrantAccess
	// Leave called by a non-owner, with the wrong direction, or on an empty crossing
	MismatchedLeave
	// Release called on a crossing that has never been granted
	SpuriousRelease
	// Operation called with a direction other than D1 or D2
	InvalidDirection
)

func (k ViolationKind) String() string {
	switch k {
	case NoViolation:
		return "none"
	case ReentrantAccess:
		return "reentrant_access"
	case MismatchedLeave:
		return "mismatched_leave"
	case SpuriousRelease:
		return "spurious_release"
	case InvalidDirection:
		return "invalid_direction"
	default:
		return fmt.Sprintf("ViolationKind(%d)", int(k))
	}
}

// Sentinel errors matched by errors.Is against a *ProtocolError
var (
	ErrReentrantAccess  = errors.New("reentrant access")
	ErrMismatchedLeave  = errors.New("mismatched leave")
	ErrSpuriousRelease  = errors.New("spurious release")
	ErrInvalidDirection = errors.New("invalid direction")
)

// ProtocolError describes one misuse of the crossing protocol.
// Protocol errors are never returned by the controller operations; they are
// counted, kept in a bounded history and handed to observers.
type ProtocolError struct {
	Kind      ViolationKind
	Op        string
	Unit      uuid.UUID
	Direction Direction
	Message   string
	At        time.Time
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol violation [%s] during %s by %s (%s): %s",
		e.Kind, e.Op, e.Unit, e.Direction, e.Message)
}

// Is matches the sentinel error for the violation kind
func (e *ProtocolError) Is(target error) bool {
	switch e.Kind {
	case ReentrantAccess:
		return target == ErrReentrantAccess
	case MismatchedLeave:
		return target == ErrMismatchedLeave
	case SpuriousRelease:
		return target == ErrSpuriousRelease
	case InvalidDirection:
		return target == ErrInvalidDirection
	}
	return false
}

// NewProtocolError creates a new protocol error stamped with the current time
func NewProtocolError(kind ViolationKind, op string, unit uuid.UUID, d Direction, message string) *ProtocolError {
	return &ProtocolError{
		Kind:      kind,
		Op:        op,
		Unit:      unit,
		Direction: d,
		Message:   message,
		At:        time.Now(),
	}
}

// IsProtocolError checks if an error is, or wraps, a ProtocolError
func IsProtocolError(err error) bool {
	var pe *ProtocolError
	return errors.As(err, &pe)
}

// GetViolationKind returns the violation kind for protocol errors
func GetViolationKind(err error) ViolationKind {
	var pe *ProtocolError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return NoViolation
}
