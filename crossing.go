// Package crossing coordinates traffic units that share a single,
// non-reentrant crossing which can only be used in one direction at a time.
//
// The Controller is a monitor: one mutex guards all crossing state and each
// direction has its own wait queue. Units that find the crossing busy park on
// their direction's queue until a departing unit hands the crossing over, or
// until StopAll drains the crossing for good.
package crossing

import (
	"fmt"

	"github.com/google/uuid"
)

// Direction tags the orientation in which a unit traverses the crossing
type Direction int

const (
	// D1 is the first traversal orientation
	D1 Direction = iota
	// D2 is the second traversal orientation
	D2
)

// Opposite returns the other direction
func (d Direction) Opposite() Direction {
	if d == D1 {
		return D2
	}
	return D1
}

// Valid reports whether d is one of the two known directions
func (d Direction) Valid() bool {
	return d == D1 || d == D2
}

func (d Direction) String() string {
	switch d {
	case D1:
		return "D1"
	case D2:
		return "D2"
	default:
		return fmt.Sprintf("Direction(%d)", int(d))
	}
}

// Unit is the capability the controller needs from a traffic unit.
// ID must be stable for the unit's lifetime; it is only ever compared.
type Unit interface {
	ID() uuid.UUID
	Stop()
}
