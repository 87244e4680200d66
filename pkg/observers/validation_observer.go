package observers

import (
	"fmt"
	"sort"
	"sync"

	"github.com/anggasct/crossing/pkg/fsm"
)

// ValidationObserver checks a unit machine against its definition: every
// transition taken must be declared, and rejected events and action
// failures are reported as violations
type ValidationObserver struct {
	expectedStates     map[string]bool
	visitedStates      map[string]bool
	allowedTransitions map[string]map[string]bool
	violations         []string
	mutex              sync.RWMutex
}

// NewValidationObserver creates a validation observer expecting every state
// of def to be visited and allowing only the transitions def declares
func NewValidationObserver(def fsm.Definition) *ValidationObserver {
	o := &ValidationObserver{
		expectedStates:     make(map[string]bool),
		visitedStates:      make(map[string]bool),
		allowedTransitions: make(map[string]map[string]bool),
		violations:         make([]string, 0),
	}
	if def != nil {
		for _, s := range def.GetStates() {
			o.AddExpectedState(s.ID())
		}
		for _, t := range def.GetTransitions() {
			o.AddAllowedTransition(t.SourceState, t.TargetState)
		}
	}
	return o
}

// AddExpectedState adds an expected state
func (o *ValidationObserver) AddExpectedState(stateName string) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.expectedStates[stateName] = true
}

// AddAllowedTransition adds an allowed transition
func (o *ValidationObserver) AddAllowedTransition(from, to string) {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	if _, exists := o.allowedTransitions[from]; !exists {
		o.allowedTransitions[from] = make(map[string]bool)
	}
	o.allowedTransitions[from][to] = true
}

func (o *ValidationObserver) addViolation(message string) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.violations = append(o.violations, message)
}

// OnStateEnter marks state as visited
func (o *ValidationObserver) OnStateEnter(state string, ctx fsm.Context) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.visitedStates[state] = true
}

// OnStateExit implements fsm.Observer
func (o *ValidationObserver) OnStateExit(state string, ctx fsm.Context) {}

// OnTransition checks the transition against the allowed set
func (o *ValidationObserver) OnTransition(from, to string, event fsm.Event, ctx fsm.Context) {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	if !o.allowedTransitions[from][to] {
		o.violations = append(o.violations, fmt.Sprintf(
			"Invalid transition from '%s' to '%s' on event '%s'",
			from, to, event.GetName()))
	}
}

// OnGuardEvaluation implements fsm.ExtendedObserver
func (o *ValidationObserver) OnGuardEvaluation(from, to string, event fsm.Event, result bool, ctx fsm.Context) {
}

// OnEventRejected reports an event the machine could not handle
func (o *ValidationObserver) OnEventRejected(event fsm.Event, reason string, ctx fsm.Context) {
	o.addViolation(fmt.Sprintf("Event '%s' rejected in '%s': %s", event.GetName(), ctx.GetCurrentState(), reason))
}

// OnError reports a failed action
func (o *ValidationObserver) OnError(err error, ctx fsm.Context) {
	o.addViolation(fmt.Sprintf("Error occurred: %v", err))
}

// OnMachineStarted implements fsm.ExtendedObserver
func (o *ValidationObserver) OnMachineStarted(ctx fsm.Context) {}

// OnMachineStopped implements fsm.ExtendedObserver
func (o *ValidationObserver) OnMachineStopped(ctx fsm.Context) {}

// GetViolations returns all validation violations
func (o *ValidationObserver) GetViolations() []string {
	o.mutex.RLock()
	defer o.mutex.RUnlock()

	result := make([]string, len(o.violations))
	copy(result, o.violations)
	return result
}

// GetUnvisitedStates returns expected states that were not visited, sorted
func (o *ValidationObserver) GetUnvisitedStates() []string {
	o.mutex.RLock()
	defer o.mutex.RUnlock()

	var unvisited []string
	for state := range o.expectedStates {
		if !o.visitedStates[state] {
			unvisited = append(unvisited, state)
		}
	}
	sort.Strings(unvisited)
	return unvisited
}

// HasViolations returns whether any violations occurred
func (o *ValidationObserver) HasViolations() bool {
	o.mutex.RLock()
	defer o.mutex.RUnlock()
	return len(o.violations) > 0
}

// Reset resets the validation state
func (o *ValidationObserver) Reset() {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	o.visitedStates = make(map[string]bool)
	o.violations = make([]string, 0)
}
