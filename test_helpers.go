package crossing

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
)

// TestUnit is a Unit for tests that counts Stop calls
type TestUnit struct {
	id    uuid.UUID
	name  string
	stops atomic.Int32
}

// NewTestUnit creates a test unit with a fresh identity
func NewTestUnit(name string) *TestUnit {
	return &TestUnit{id: uuid.New(), name: name}
}

// ID implements Unit
func (u *TestUnit) ID() uuid.UUID {
	return u.id
}

// Stop implements Unit
func (u *TestUnit) Stop() {
	u.stops.Add(1)
}

// Name returns the label given at construction
func (u *TestUnit) Name() string {
	return u.name
}

// StopCount returns how many times Stop was called
func (u *TestUnit) StopCount() int {
	return int(u.stops.Load())
}

// OccupancyProbe counts units that believe they are inside the crossing
type OccupancyProbe struct {
	inside  atomic.Int32
	overlap atomic.Int32
}

// Enter marks one more unit inside and records an overlap if it is not alone
func (p *OccupancyProbe) Enter() {
	if p.inside.Add(1) != 1 {
		p.overlap.Add(1)
	}
}

// Exit marks one unit as having left
func (p *OccupancyProbe) Exit() {
	p.inside.Add(-1)
}

// Inside returns the current number of units inside
func (p *OccupancyProbe) Inside() int {
	return int(p.inside.Load())
}

// Overlaps returns how many entries found another unit already inside
func (p *OccupancyProbe) Overlaps() int {
	return int(p.overlap.Load())
}

// GrantEvent records an OnGrant notification
type GrantEvent struct {
	Unit      uuid.UUID
	Direction Direction
	Waited    bool
}

// HandoffEvent records an OnHandoff notification
type HandoffEvent struct {
	From      uuid.UUID
	Direction Direction
}

// TestObserver captures every controller notification
type TestObserver struct {
	mutex      sync.RWMutex
	Grants     []GrantEvent
	Leaves     []GrantEvent
	Waits      []GrantEvent
	Handoffs   []HandoffEvent
	Deferred   []HandoffEvent
	Ignored    []uuid.UUID
	Refused    []uuid.UUID
	Violations []*ProtocolError
	Emergency  [][2]int
	Errors     []error
}

// NewTestObserver creates a new test observer
func NewTestObserver() *TestObserver {
	return &TestObserver{}
}

func (o *TestObserver) OnGrant(unit uuid.UUID, d Direction, waited bool) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.Grants = append(o.Grants, GrantEvent{Unit: unit, Direction: d, Waited: waited})
}

func (o *TestObserver) OnLeave(unit uuid.UUID, d Direction) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.Leaves = append(o.Leaves, GrantEvent{Unit: unit, Direction: d})
}

func (o *TestObserver) OnWait(unit uuid.UUID, d Direction, depth int) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.Waits = append(o.Waits, GrantEvent{Unit: unit, Direction: d, Waited: true})
}

func (o *TestObserver) OnHandoff(from uuid.UUID, d Direction) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.Handoffs = append(o.Handoffs, HandoffEvent{From: from, Direction: d})
}

func (o *TestObserver) OnReleaseDeferred(unit uuid.UUID, d Direction, pending int) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.Deferred = append(o.Deferred, HandoffEvent{From: unit, Direction: d})
}

func (o *TestObserver) OnReleaseIgnored(unit uuid.UUID, owedBy uuid.UUID) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.Ignored = append(o.Ignored, unit)
}

func (o *TestObserver) OnRefused(unit uuid.UUID, d Direction) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.Refused = append(o.Refused, unit)
}

func (o *TestObserver) OnViolation(err *ProtocolError) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.Violations = append(o.Violations, err)
}

func (o *TestObserver) OnEmergency(woken [2]int, hadOccupant bool) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.Emergency = append(o.Emergency, woken)
}

func (o *TestObserver) OnError(err error) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.Errors = append(o.Errors, err)
}

// GrantCount returns the number of grants seen
func (o *TestObserver) GrantCount() int {
	o.mutex.RLock()
	defer o.mutex.RUnlock()
	return len(o.Grants)
}

// HandoffCount returns the number of hand-offs seen
func (o *TestObserver) HandoffCount() int {
	o.mutex.RLock()
	defer o.mutex.RUnlock()
	return len(o.Handoffs)
}

// ViolationKinds returns the kinds of all violations seen, in order
func (o *TestObserver) ViolationKinds() []ViolationKind {
	o.mutex.RLock()
	defer o.mutex.RUnlock()
	kinds := make([]ViolationKind, 0, len(o.Violations))
	for _, v := range o.Violations {
		kinds = append(kinds, v.Kind)
	}
	return kinds
}

// AssertErrorCount checks the controller's violation counter
func AssertErrorCount(t *testing.T, c *Controller, expected int) {
	t.Helper()
	if got := c.ErrorCount(); got != expected {
		t.Errorf("Expected %d protocol errors, got %d", expected, got)
	}
}

// AssertOwner checks which unit currently holds the crossing
func AssertOwner(t *testing.T, c *Controller, unit Unit, d Direction) {
	t.Helper()
	snap := c.Snapshot()
	if !snap.Occupied {
		t.Errorf("Expected crossing to be occupied by %s", unit.ID())
		return
	}
	if snap.Owner != unit.ID() || snap.OwnerDirection != d {
		t.Errorf("Expected owner %s (%s), got %s (%s)", unit.ID(), d, snap.Owner, snap.OwnerDirection)
	}
}

// HasWaiting reports whether the controller queues hold exactly d1 and d2 units
func HasWaiting(c *Controller, d1, d2 int) bool {
	snap := c.Snapshot()
	return snap.Waiting[D1] == d1 && snap.Waiting[D2] == d2
}
