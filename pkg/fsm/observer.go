package fsm

import (
	"fmt"
	"sync"
)

// Observer represents an entity that observes state machine events
type Observer interface {
	OnTransition(from, to string, event Event, ctx Context)
	OnStateEnter(state string, ctx Context)
	OnStateExit(state string, ctx Context)
}

// ExtendedObserver provides additional optional observation methods
type ExtendedObserver interface {
	Observer

	OnGuardEvaluation(from, to string, event Event, result bool, ctx Context)
	OnEventRejected(event Event, reason string, ctx Context)
	OnError(err error, ctx Context)
	OnMachineStarted(ctx Context)
	OnMachineStopped(ctx Context)
}

// BaseObserver provides a default implementation with no-op methods
type BaseObserver struct{}

func (o *BaseObserver) OnTransition(from, to string, event Event, ctx Context) {}
func (o *BaseObserver) OnStateEnter(state string, ctx Context)                 {}
func (o *BaseObserver) OnStateExit(state string, ctx Context)                  {}
func (o *BaseObserver) OnGuardEvaluation(from, to string, event Event, result bool, ctx Context) {
}
func (o *BaseObserver) OnEventRejected(event Event, reason string, ctx Context) {}
func (o *BaseObserver) OnError(err error, ctx Context)                          {}
func (o *BaseObserver) OnMachineStarted(ctx Context)                            {}
func (o *BaseObserver) OnMachineStopped(ctx Context)                            {}

// ObserverManager manages a collection of observers
type ObserverManager struct {
	mutex     sync.RWMutex
	observers []Observer
}

// NewObserverManager creates a new observer manager
func NewObserverManager() *ObserverManager {
	return &ObserverManager{observers: make([]Observer, 0)}
}

// AddObserver adds an observer to the manager
func (om *ObserverManager) AddObserver(observer Observer) {
	om.mutex.Lock()
	defer om.mutex.Unlock()
	om.observers = append(om.observers, observer)
}

// RemoveObserver removes an observer from the manager
func (om *ObserverManager) RemoveObserver(observer Observer) {
	om.mutex.Lock()
	defer om.mutex.Unlock()
	for i, obs := range om.observers {
		if obs == observer {
			om.observers = append(om.observers[:i], om.observers[i+1:]...)
			break
		}
	}
}

func (om *ObserverManager) each(method string, ctx Context, fn func(Observer)) {
	om.mutex.RLock()
	observers := make([]Observer, len(om.observers))
	copy(observers, om.observers)
	om.mutex.RUnlock()

	for _, observer := range observers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					if extObs, ok := observer.(ExtendedObserver); ok {
						func() {
							defer func() { recover() }()
							extObs.OnError(fmt.Errorf("observer panic in %s: %v", method, r), ctx)
						}()
					}
				}
			}()
			fn(observer)
		}()
	}
}

func (om *ObserverManager) eachExtended(method string, ctx Context, fn func(ExtendedObserver)) {
	om.each(method, ctx, func(o Observer) {
		if extObs, ok := o.(ExtendedObserver); ok {
			fn(extObs)
		}
	})
}

// NotifyTransition notifies all observers of a transition
func (om *ObserverManager) NotifyTransition(from, to string, event Event, ctx Context) {
	om.each("OnTransition", ctx, func(o Observer) { o.OnTransition(from, to, event, ctx) })
}

// NotifyStateEnter notifies all observers of state entry
func (om *ObserverManager) NotifyStateEnter(state string, ctx Context) {
	om.each("OnStateEnter", ctx, func(o Observer) { o.OnStateEnter(state, ctx) })
}

// NotifyStateExit notifies all observers of state exit
func (om *ObserverManager) NotifyStateExit(state string, ctx Context) {
	om.each("OnStateExit", ctx, func(o Observer) { o.OnStateExit(state, ctx) })
}

// NotifyGuardEvaluation notifies all observers of guard evaluation
func (om *ObserverManager) NotifyGuardEvaluation(from, to string, event Event, result bool, ctx Context) {
	om.eachExtended("OnGuardEvaluation", ctx, func(o ExtendedObserver) { o.OnGuardEvaluation(from, to, event, result, ctx) })
}

// NotifyEventRejected notifies all observers of event rejection
func (om *ObserverManager) NotifyEventRejected(event Event, reason string, ctx Context) {
	om.eachExtended("OnEventRejected", ctx, func(o ExtendedObserver) { o.OnEventRejected(event, reason, ctx) })
}

// NotifyError notifies all observers of an error
func (om *ObserverManager) NotifyError(err error, ctx Context) {
	om.eachExtended("OnError", ctx, func(o ExtendedObserver) { o.OnError(err, ctx) })
}

// NotifyMachineStarted notifies all observers of machine start
func (om *ObserverManager) NotifyMachineStarted(ctx Context) {
	om.eachExtended("OnMachineStarted", ctx, func(o ExtendedObserver) { o.OnMachineStarted(ctx) })
}

// NotifyMachineStopped notifies all observers of machine stop
func (om *ObserverManager) NotifyMachineStopped(ctx Context) {
	om.eachExtended("OnMachineStopped", ctx, func(o ExtendedObserver) { o.OnMachineStopped(ctx) })
}
