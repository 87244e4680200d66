package fsm

import (
	"context"
	"fmt"
	"sync"
)

// Machine is a running instance of a Definition
type Machine interface {
	Start() error
	Stop() error
	Reset() error

	CurrentState() string
	IsInState(stateID string) bool
	IsStarted() bool

	HandleEvent(eventName string, eventData any) *EventResult
	HandleEventWithContext(ctx context.Context, eventName string, eventData any) *EventResult

	AddObserver(observer Observer)
	RemoveObserver(observer Observer)

	Context() Context
	Definition() Definition
}

type machine struct {
	mutex     sync.Mutex
	def       *definition
	current   string
	started   bool
	ctx       *machineContext
	observers *ObserverManager
}

func newMachine(def *definition) *machine {
	m := &machine{
		def:       def,
		observers: NewObserverManager(),
	}
	m.ctx = NewContext(context.Background(), m).(*machineContext)
	return m
}

// Start enters the initial state
func (m *machine) Start() error {
	m.mutex.Lock()
	if m.started {
		m.mutex.Unlock()
		return newError(ErrCodeMachineAlreadyStarted, m.current, "", "machine already started")
	}
	m.started = true
	initial := m.def.initialState
	m.current = initial
	m.ctx.setCurrentState(initial)
	m.def.states[initial].Enter(m.ctx)
	m.mutex.Unlock()

	m.observers.NotifyMachineStarted(m.ctx)
	m.observers.NotifyStateEnter(initial, m.ctx)
	return nil
}

// Stop exits the current state and halts event processing
func (m *machine) Stop() error {
	m.mutex.Lock()
	if !m.started {
		m.mutex.Unlock()
		return newError(ErrCodeMachineNotStarted, "", "", "machine not started")
	}
	current := m.current
	m.def.states[current].Exit(m.ctx)
	m.started = false
	m.mutex.Unlock()

	m.observers.NotifyStateExit(current, m.ctx)
	m.observers.NotifyMachineStopped(m.ctx)
	return nil
}

// Reset stops the machine if needed, clears the context data and starts again
func (m *machine) Reset() error {
	if m.IsStarted() {
		if err := m.Stop(); err != nil {
			return err
		}
	}
	m.ctx.mutex.Lock()
	m.ctx.data = make(map[string]any)
	m.ctx.event = nil
	m.ctx.mutex.Unlock()
	return m.Start()
}

func (m *machine) CurrentState() string {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.current
}

func (m *machine) IsInState(stateID string) bool {
	return m.CurrentState() == stateID
}

func (m *machine) IsStarted() bool {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.started
}

func (m *machine) HandleEvent(eventName string, eventData any) *EventResult {
	return m.HandleEventWithContext(context.Background(), eventName, eventData)
}

// HandleEventWithContext fires the first transition from the current state
// whose event matches and whose guard passes. The transition action runs
// before the source state is exited; if it fails the machine stays put.
func (m *machine) HandleEventWithContext(ctx context.Context, eventName string, eventData any) *EventResult {
	event := NewEvent(eventName, eventData)

	m.mutex.Lock()
	from := m.current
	if !m.started {
		m.mutex.Unlock()
		err := newError(ErrCodeMachineNotStarted, from, eventName, "machine not started")
		return NewEventResult(false, false, from, from).WithError(err)
	}
	if err := ctx.Err(); err != nil {
		m.mutex.Unlock()
		merr := newError(ErrCodeCancelled, from, eventName, "event cancelled")
		merr.Cause = err
		return NewEventResult(false, false, from, from).WithError(merr).WithRejection("cancelled")
	}

	m.ctx.setCurrentEvent(event)
	ectx := &eventContext{machineContext: m.ctx, parent: ctx}

	candidates := m.def.transitions[from]
	var selected *Transition
	var guardResults []guardResult
	matched := false
	for _, t := range candidates {
		if t.EventName != eventName {
			continue
		}
		matched = true
		ok := t.Guard == nil || safeEvaluateGuard(t.Guard, ectx)
		if t.Guard != nil {
			guardResults = append(guardResults, guardResult{to: t.TargetState, ok: ok})
		}
		if ok {
			selected = t
			break
		}
	}

	if selected == nil {
		m.mutex.Unlock()
		for _, g := range guardResults {
			m.observers.NotifyGuardEvaluation(from, g.to, event, g.ok, ectx)
		}
		var reason string
		var err *MachineError
		if matched {
			reason = "guard rejected"
			err = newError(ErrCodeGuardRejected, from, eventName, "all guards rejected the event")
		} else {
			reason = "no transition"
			err = newError(ErrCodeInvalidTransition, from, eventName, "no transition for event")
		}
		m.observers.NotifyEventRejected(event, reason, ectx)
		return NewEventResult(false, false, from, from).WithError(err).WithRejection(reason)
	}

	if selected.Action != nil {
		if err := safeExecuteAction(selected.Action, ectx); err != nil {
			m.mutex.Unlock()
			merr := newError(ErrCodeActionFailed, from, eventName, "transition action failed")
			merr.Target = selected.TargetState
			merr.Cause = err
			m.observers.NotifyError(merr, ectx)
			return NewEventResult(false, false, from, from).WithError(merr)
		}
	}

	to := selected.TargetState
	m.def.states[from].Exit(ectx)
	m.current = to
	m.ctx.setCurrentState(to)
	m.def.states[to].Enter(ectx)
	m.mutex.Unlock()

	for _, g := range guardResults {
		m.observers.NotifyGuardEvaluation(from, g.to, event, g.ok, ectx)
	}
	m.observers.NotifyStateExit(from, ectx)
	m.observers.NotifyTransition(from, to, event, ectx)
	m.observers.NotifyStateEnter(to, ectx)

	return NewEventResult(true, from != to, from, to)
}

func (m *machine) AddObserver(observer Observer) {
	m.observers.AddObserver(observer)
}

func (m *machine) RemoveObserver(observer Observer) {
	m.observers.RemoveObserver(observer)
}

func (m *machine) Context() Context {
	return m.ctx
}

func (m *machine) Definition() Definition {
	return m.def
}

type guardResult struct {
	to string
	ok bool
}

// safeEvaluateGuard evaluates a guard, treating a panic as false
func safeEvaluateGuard(guard GuardFunc, ctx Context) (result bool) {
	defer func() {
		if r := recover(); r != nil {
			result = false
		}
	}()
	return guard(ctx)
}

// safeExecuteAction runs an action, turning a panic into an error
func safeExecuteAction(action ActionFunc, ctx Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("action panicked: %v", r)
		}
	}()
	return action(ctx)
}
