package observers

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/anggasct/crossing"
	"github.com/anggasct/crossing/pkg/fsm"
)

// Metrics is a copy of the counters collected by a MetricsObserver
type Metrics struct {
	Grants          [2]int
	Waits           [2]int
	Handoffs        [2]int
	ReleasesOwed    int
	ReleasesIgnored int
	Refused         int
	Violations      map[crossing.ViolationKind]int
	Emergencies     int
	ObserverErrors  int

	StateVisits      map[string]int
	StateTimeSpent   map[string]time.Duration
	EventCounts      map[string]int
	TransitionCounts map[string]int
	MachineErrors    int
}

// MetricsObserver collects metrics about crossing traffic and, through
// Machine, about the unit state machines
type MetricsObserver struct {
	mutex sync.RWMutex
	m     Metrics
}

// NewMetricsObserver creates a new metrics observer
func NewMetricsObserver() *MetricsObserver {
	o := &MetricsObserver{}
	o.reset()
	return o
}

func (o *MetricsObserver) reset() {
	o.m = Metrics{
		Violations:       make(map[crossing.ViolationKind]int),
		StateVisits:      make(map[string]int),
		StateTimeSpent:   make(map[string]time.Duration),
		EventCounts:      make(map[string]int),
		TransitionCounts: make(map[string]int),
	}
}

func (o *MetricsObserver) update(fn func(m *Metrics)) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	fn(&o.m)
}

// OnGrant records a grant
func (o *MetricsObserver) OnGrant(unit uuid.UUID, d crossing.Direction, waited bool) {
	o.update(func(m *Metrics) { m.Grants[d]++ })
}

// OnLeave is a no-op; leaves mirror grants
func (o *MetricsObserver) OnLeave(unit uuid.UUID, d crossing.Direction) {}

// OnWait records a unit parking
func (o *MetricsObserver) OnWait(unit uuid.UUID, d crossing.Direction, depth int) {
	o.update(func(m *Metrics) { m.Waits[d]++ })
}

// OnHandoff records a hand-off to direction d
func (o *MetricsObserver) OnHandoff(from uuid.UUID, d crossing.Direction) {
	o.update(func(m *Metrics) { m.Handoffs[d]++ })
}

// OnReleaseDeferred records a same-direction hand-off left to Release
func (o *MetricsObserver) OnReleaseDeferred(unit uuid.UUID, d crossing.Direction, pending int) {
	o.update(func(m *Metrics) { m.ReleasesOwed++ })
}

// OnReleaseIgnored records a rejected confirmation
func (o *MetricsObserver) OnReleaseIgnored(unit uuid.UUID, owedBy uuid.UUID) {
	o.update(func(m *Metrics) { m.ReleasesIgnored++ })
}

// OnRefused records an access refused by the emergency stop
func (o *MetricsObserver) OnRefused(unit uuid.UUID, d crossing.Direction) {
	o.update(func(m *Metrics) { m.Refused++ })
}

// OnViolation records a protocol violation by kind
func (o *MetricsObserver) OnViolation(err *crossing.ProtocolError) {
	o.update(func(m *Metrics) { m.Violations[err.Kind]++ })
}

// OnEmergency records a completed emergency stop
func (o *MetricsObserver) OnEmergency(woken [2]int, hadOccupant bool) {
	o.update(func(m *Metrics) { m.Emergencies++ })
}

// OnError records an observer failure
func (o *MetricsObserver) OnError(err error) {
	o.update(func(m *Metrics) { m.ObserverErrors++ })
}

// Snapshot returns a copy of the collected metrics
func (o *MetricsObserver) Snapshot() Metrics {
	o.mutex.RLock()
	defer o.mutex.RUnlock()

	result := o.m
	result.Violations = copyMap(o.m.Violations)
	result.StateVisits = copyMap(o.m.StateVisits)
	result.StateTimeSpent = copyMap(o.m.StateTimeSpent)
	result.EventCounts = copyMap(o.m.EventCounts)
	result.TransitionCounts = copyMap(o.m.TransitionCounts)
	return result
}

// Reset resets all metrics
func (o *MetricsObserver) Reset() {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.reset()
}

// Machine returns an observer that adds a unit's state machine activity
// to the shared counters
func (o *MetricsObserver) Machine() fsm.Observer {
	return &machineMetrics{parent: o, entered: make(map[string]time.Time)}
}

type machineMetrics struct {
	parent  *MetricsObserver
	entered map[string]time.Time
}

func (m *machineMetrics) OnStateEnter(state string, ctx fsm.Context) {
	m.parent.update(func(mt *Metrics) {
		mt.StateVisits[state]++
		m.entered[state] = time.Now()
	})
}

func (m *machineMetrics) OnStateExit(state string, ctx fsm.Context) {
	m.parent.update(func(mt *Metrics) {
		if at, ok := m.entered[state]; ok {
			mt.StateTimeSpent[state] += time.Since(at)
			delete(m.entered, state)
		}
	})
}

func (m *machineMetrics) OnTransition(from, to string, event fsm.Event, ctx fsm.Context) {
	m.parent.update(func(mt *Metrics) {
		mt.TransitionCounts[from+"->"+to]++
		mt.EventCounts[event.GetName()]++
	})
}

func (m *machineMetrics) OnGuardEvaluation(from, to string, event fsm.Event, result bool, ctx fsm.Context) {
}

func (m *machineMetrics) OnEventRejected(event fsm.Event, reason string, ctx fsm.Context) {}

func (m *machineMetrics) OnError(err error, ctx fsm.Context) {
	m.parent.update(func(mt *Metrics) { mt.MachineErrors++ })
}

func (m *machineMetrics) OnMachineStarted(ctx fsm.Context) {}
func (m *machineMetrics) OnMachineStopped(ctx fsm.Context) {}

func copyMap[K comparable, V any](src map[K]V) map[K]V {
	dst := make(map[K]V, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
