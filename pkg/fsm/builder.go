package fsm

import (
	"fmt"
	"sort"
)

// MachineBuilder provides a fluent interface for building state machines
type MachineBuilder interface {
	State(id string) StateBuilder
	Validate() error
	Build() Definition
}

// StateBuilder configures one state
type StateBuilder interface {
	Initial() StateBuilder
	Final() StateBuilder
	OnEntry(action ActionFunc) StateBuilder
	OnExit(action ActionFunc) StateBuilder
	To(target string) TransitionBuilder
	State(id string) StateBuilder
	Build() Definition
}

// TransitionBuilder configures one transition
type TransitionBuilder interface {
	On(event string) TransitionBuilder
	When(guard GuardFunc) TransitionBuilder
	Unless(guard GuardFunc) TransitionBuilder
	Do(action ActionFunc) TransitionBuilder
	To(target string) TransitionBuilder
	State(id string) StateBuilder
	Build() Definition
}

type machineBuilder struct {
	states       map[string]*AtomicState
	order        []string
	transitions  []*Transition
	initialState string
}

// NewMachine creates a new machine builder
func NewMachine() MachineBuilder {
	return &machineBuilder{states: make(map[string]*AtomicState)}
}

func (mb *machineBuilder) State(id string) StateBuilder {
	s, ok := mb.states[id]
	if !ok {
		s = NewAtomicState(id)
		mb.states[id] = s
		mb.order = append(mb.order, id)
	}
	return &stateBuilder{mb: mb, state: s}
}

// Validate checks that the definition is complete and consistent
func (mb *machineBuilder) Validate() error {
	if mb.initialState == "" {
		return NewConfigurationError("no initial state defined")
	}
	if _, ok := mb.states[mb.initialState]; !ok {
		return NewConfigurationError(fmt.Sprintf("initial state %q not defined", mb.initialState))
	}

	for _, t := range mb.transitions {
		if t.EventName == "" {
			return NewConfigurationError(fmt.Sprintf("transition %s -> %s has no event", t.SourceState, t.TargetState))
		}
		if _, ok := mb.states[t.TargetState]; !ok {
			return NewConfigurationError(fmt.Sprintf("transition %s -> %s targets undefined state", t.SourceState, t.TargetState))
		}
		if mb.states[t.SourceState].IsFinal() {
			return NewConfigurationError(fmt.Sprintf("final state %q has outgoing transition", t.SourceState))
		}
	}
	return nil
}

// Build validates the definition and panics if it is invalid
func (mb *machineBuilder) Build() Definition {
	if err := mb.Validate(); err != nil {
		panic(fmt.Sprintf("failed to build machine: %v", err))
	}

	def := &definition{
		states:       make(map[string]State, len(mb.states)),
		order:        append([]string(nil), mb.order...),
		transitions:  make(map[string][]*Transition),
		initialState: mb.initialState,
	}
	for id, s := range mb.states {
		def.states[id] = s
	}
	for _, t := range mb.transitions {
		def.transitions[t.SourceState] = append(def.transitions[t.SourceState], t)
	}
	return def
}

type stateBuilder struct {
	mb    *machineBuilder
	state *AtomicState
}

func (sb *stateBuilder) Initial() StateBuilder {
	sb.mb.initialState = sb.state.id
	return sb
}

func (sb *stateBuilder) Final() StateBuilder {
	sb.state.final = true
	return sb
}

func (sb *stateBuilder) OnEntry(action ActionFunc) StateBuilder {
	sb.state.WithEntryAction(action)
	return sb
}

func (sb *stateBuilder) OnExit(action ActionFunc) StateBuilder {
	sb.state.WithExitAction(action)
	return sb
}

func (sb *stateBuilder) To(target string) TransitionBuilder {
	t := NewTransition(sb.state.id, target, "")
	sb.mb.transitions = append(sb.mb.transitions, t)
	return &transitionBuilder{sb: sb, transition: t}
}

func (sb *stateBuilder) State(id string) StateBuilder {
	return sb.mb.State(id)
}

func (sb *stateBuilder) Build() Definition {
	return sb.mb.Build()
}

type transitionBuilder struct {
	sb         *stateBuilder
	transition *Transition
}

func (tb *transitionBuilder) On(event string) TransitionBuilder {
	tb.transition.EventName = event
	return tb
}

func (tb *transitionBuilder) When(guard GuardFunc) TransitionBuilder {
	tb.transition.WithGuard(guard)
	return tb
}

func (tb *transitionBuilder) Unless(guard GuardFunc) TransitionBuilder {
	tb.transition.WithGuard(func(ctx Context) bool { return !guard(ctx) })
	return tb
}

func (tb *transitionBuilder) Do(action ActionFunc) TransitionBuilder {
	tb.transition.WithAction(action)
	return tb
}

func (tb *transitionBuilder) To(target string) TransitionBuilder {
	return tb.sb.To(target)
}

func (tb *transitionBuilder) State(id string) StateBuilder {
	return tb.sb.mb.State(id)
}

func (tb *transitionBuilder) Build() Definition {
	return tb.sb.mb.Build()
}

// Definition is an immutable machine description shared by its instances
type Definition interface {
	CreateInstance() Machine
	GetInitialState() string
	GetStates() []State
	GetTransitions() []*Transition
	GetEvents() []string
}

type definition struct {
	states       map[string]State
	order        []string
	transitions  map[string][]*Transition
	initialState string
}

func (d *definition) CreateInstance() Machine {
	return newMachine(d)
}

func (d *definition) GetInitialState() string {
	return d.initialState
}

// GetStates returns the states in declaration order
func (d *definition) GetStates() []State {
	result := make([]State, 0, len(d.order))
	for _, id := range d.order {
		result = append(result, d.states[id])
	}
	return result
}

// GetTransitions returns all transitions grouped by source in declaration order
func (d *definition) GetTransitions() []*Transition {
	var result []*Transition
	for _, id := range d.order {
		result = append(result, d.transitions[id]...)
	}
	return result
}

// GetEvents returns the sorted set of event names
func (d *definition) GetEvents() []string {
	seen := make(map[string]bool)
	var events []string
	for _, ts := range d.transitions {
		for _, t := range ts {
			if !seen[t.EventName] {
				seen[t.EventName] = true
				events = append(events, t.EventName)
			}
		}
	}
	sort.Strings(events)
	return events
}
