package crossing

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// ReleasePolicy decides which unit may confirm a deferred same-direction hand-off
type ReleasePolicy int

const (
	// AnyUnit lets any unit confirm a pending hand-off
	AnyUnit ReleasePolicy = iota
	// StrictIdentity only accepts the confirmation from the unit whose Leave deferred it
	StrictIdentity
)

func (p ReleasePolicy) String() string {
	if p == StrictIdentity {
		return "strict_identity"
	}
	return "any_unit"
}

// DefaultViolationHistory is the number of protocol errors kept by default
const DefaultViolationHistory = 64

// Option configures a Controller
type Option func(*Controller)

// WithReleasePolicy sets the release confirmation policy
func WithReleasePolicy(policy ReleasePolicy) Option {
	return func(c *Controller) {
		c.policy = policy
	}
}

// WithObserver registers an observer at construction time
func WithObserver(observer Observer) Option {
	return func(c *Controller) {
		c.observers.AddObserver(observer)
	}
}

// WithViolationHistory bounds the number of protocol errors kept for Violations.
// Zero disables the history; the error counter is unaffected.
func WithViolationHistory(size int) Option {
	return func(c *Controller) {
		if size < 0 {
			size = 0
		}
		c.historyCap = size
	}
}

// Snapshot is a point-in-time copy of the crossing state
type Snapshot struct {
	Occupied        bool
	Owner           uuid.UUID
	OwnerDirection  Direction
	Waiting         [2]int
	HandoffInFlight bool
	ReleaseOwed     bool
	OwedBy          uuid.UUID
	Emergency       bool
	EverGranted     bool
	Errors          int
}

// Controller guards the crossing.
//
// Lock order: mu only. Observers are always notified with mu released.
type Controller struct {
	mu      sync.Mutex
	queue   [2]*sync.Cond
	vacated *sync.Cond

	occupied        bool
	owner           uuid.UUID
	ownerDirection  Direction
	waiting         [2]int
	permits         [2]int // wake-ups handed to a direction and not yet consumed
	handoffInFlight bool
	releaseOwed     bool
	owedBy          uuid.UUID
	owedDirection   Direction
	emergency       bool
	everGranted     bool

	errors     atomic.Int64
	history    []*ProtocolError
	historyCap int
	policy     ReleasePolicy
	observers  *ObserverManager
}

// NewController creates a controller for one crossing
func NewController(opts ...Option) *Controller {
	c := &Controller{
		historyCap: DefaultViolationHistory,
		observers:  NewObserverManager(),
	}
	c.queue[D1] = sync.NewCond(&c.mu)
	c.queue[D2] = sync.NewCond(&c.mu)
	c.vacated = sync.NewCond(&c.mu)

	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AddObserver adds an observer
func (c *Controller) AddObserver(observer Observer) {
	c.observers.AddObserver(observer)
}

// RemoveObserver removes an observer
func (c *Controller) RemoveObserver(observer Observer) {
	c.observers.RemoveObserver(observer)
}

// Policy returns the configured release policy
func (c *Controller) Policy() ReleasePolicy {
	return c.policy
}

// Access requests the crossing for u travelling in direction d. It blocks
// while the crossing is busy and reports whether occupancy was granted.
// A false result means u must not enter: either the request was a protocol
// violation or the emergency stop is active (u has then been told to stop).
func (c *Controller) Access(u Unit, d Direction) bool {
	id := u.ID()

	c.mu.Lock()
	if !d.Valid() {
		pe := c.violate(InvalidDirection, "Access", id, d, "unknown direction")
		c.mu.Unlock()
		c.observers.NotifyViolation(pe)
		return false
	}

	if c.occupied && c.owner == id {
		pe := c.violate(ReentrantAccess, "Access", id, d, "unit already holds the crossing")
		c.mu.Unlock()
		c.observers.NotifyViolation(pe)
		return false
	}

	if c.emergency {
		c.mu.Unlock()
		u.Stop()
		c.observers.NotifyRefused(id, d)
		return false
	}

	if !c.occupied && !c.handoffInFlight && c.waiting[D1]+c.waiting[D2] == 0 {
		c.grant(id, d)
		c.mu.Unlock()
		c.observers.NotifyGrant(id, d, false)
		return true
	}

	c.waiting[d]++
	depth := c.waiting[d]
	c.mu.Unlock()

	c.observers.NotifyWait(id, d, depth)
	u.Stop()

	c.mu.Lock()
	for c.permits[d] == 0 && !c.emergency {
		c.queue[d].Wait()
	}
	if c.emergency {
		c.mu.Unlock()
		c.observers.NotifyRefused(id, d)
		return false
	}
	c.permits[d]--
	c.handoffInFlight = false
	c.grant(id, d)
	c.mu.Unlock()

	c.observers.NotifyGrant(id, d, true)
	return true
}

// Leave gives the crossing up. Waiters in the opposite direction are woken
// immediately; waiters in d stay parked until Release confirms the hand-off.
func (c *Controller) Leave(u Unit, d Direction) {
	id := u.ID()

	c.mu.Lock()
	if !c.occupied || c.owner != id || c.ownerDirection != d {
		pe := c.violate(MismatchedLeave, "Leave", id, d, c.leaveMismatch(id, d))
		c.mu.Unlock()
		c.observers.NotifyViolation(pe)
		return
	}

	c.occupied = false
	c.owner = uuid.Nil

	if c.emergency {
		c.vacated.Broadcast()
		c.mu.Unlock()
		c.observers.NotifyLeave(id, d)
		return
	}

	opposite := d.Opposite()
	handoff, deferred := false, 0
	switch {
	case c.waiting[opposite] > 0:
		c.wake(opposite)
		handoff = true
	case c.waiting[d] > 0:
		c.releaseOwed = true
		c.owedBy = id
		c.owedDirection = d
		deferred = c.waiting[d]
	}
	c.mu.Unlock()

	c.observers.NotifyLeave(id, d)
	if handoff {
		c.observers.NotifyHandoff(id, opposite)
	}
	if deferred > 0 {
		c.observers.NotifyReleaseDeferred(id, d, deferred)
	}
}

// Release confirms a hand-off deferred by Leave and admits exactly one
// same-direction follower. With nothing owed it does nothing, except on a
// crossing that was never granted, where the call is a protocol violation.
func (c *Controller) Release(u Unit) {
	id := u.ID()

	c.mu.Lock()
	if c.emergency {
		c.mu.Unlock()
		return
	}

	if c.releaseOwed {
		if c.policy == StrictIdentity && id != c.owedBy {
			owedBy := c.owedBy
			c.mu.Unlock()
			c.observers.NotifyReleaseIgnored(id, owedBy)
			return
		}
		d := c.owedDirection
		c.releaseOwed = false
		c.owedBy = uuid.Nil
		woke := false
		if c.waiting[d] > 0 {
			c.wake(d)
			woke = true
		}
		c.mu.Unlock()
		if woke {
			c.observers.NotifyHandoff(id, d)
		}
		return
	}

	if !c.everGranted {
		pe := c.violate(SpuriousRelease, "Release", id, D1, "crossing was never granted")
		c.mu.Unlock()
		c.observers.NotifyViolation(pe)
		return
	}
	c.mu.Unlock()
}

// StopAll switches the controller into its permanent emergency state. Every
// parked unit is woken without being admitted, and the call blocks until a
// unit that was inside the crossing has left it.
//
// StopAll must not be called by the occupant itself: it would wait for its
// own Leave.
func (c *Controller) StopAll() {
	c.mu.Lock()
	c.emergency = true

	woken := c.waiting
	c.waiting = [2]int{}
	c.permits = [2]int{}
	c.handoffInFlight = false
	c.releaseOwed = false
	c.owedBy = uuid.Nil
	c.queue[D1].Broadcast()
	c.queue[D2].Broadcast()

	hadOccupant := c.occupied
	for c.occupied {
		c.vacated.Wait()
	}
	c.mu.Unlock()

	c.observers.NotifyEmergency(woken, hadOccupant)
}

// ErrorCount returns the number of protocol violations detected so far
func (c *Controller) ErrorCount() int {
	return int(c.errors.Load())
}

// Emergency reports whether StopAll has been called
func (c *Controller) Emergency() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.emergency
}

// Violations returns the most recent protocol errors, oldest first
func (c *Controller) Violations() []*ProtocolError {
	c.mu.Lock()
	defer c.mu.Unlock()
	result := make([]*ProtocolError, len(c.history))
	copy(result, c.history)
	return result
}

// Snapshot returns a copy of the crossing state
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		Occupied:        c.occupied,
		Owner:           c.owner,
		OwnerDirection:  c.ownerDirection,
		Waiting:         c.waiting,
		HandoffInFlight: c.handoffInFlight,
		ReleaseOwed:     c.releaseOwed,
		OwedBy:          c.owedBy,
		Emergency:       c.emergency,
		EverGranted:     c.everGranted,
		Errors:          c.ErrorCount(),
	}
}

// grant records id as the occupant. Caller holds mu.
func (c *Controller) grant(id uuid.UUID, d Direction) {
	c.occupied = true
	c.owner = id
	c.ownerDirection = d
	c.everGranted = true
}

// wake hands the vacant crossing to one waiter in d. Caller holds mu.
func (c *Controller) wake(d Direction) {
	c.waiting[d]--
	c.permits[d]++
	c.handoffInFlight = true
	c.queue[d].Signal()
}

// violate counts and records a protocol violation. Caller holds mu.
func (c *Controller) violate(kind ViolationKind, op string, id uuid.UUID, d Direction, message string) *ProtocolError {
	c.errors.Add(1)
	pe := NewProtocolError(kind, op, id, d, message)
	if c.historyCap > 0 {
		if len(c.history) == c.historyCap {
			c.history = append(c.history[:0], c.history[1:]...)
		}
		c.history = append(c.history, pe)
	}
	return pe
}

// leaveMismatch explains why a Leave was rejected. Caller holds mu.
func (c *Controller) leaveMismatch(id uuid.UUID, d Direction) string {
	switch {
	case !c.occupied:
		return "crossing is not occupied"
	case c.owner != id:
		return "unit is not the occupant"
	default:
		return "direction " + d.String() + " does not match occupant direction " + c.ownerDirection.String()
	}
}
