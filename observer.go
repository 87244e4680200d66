package crossing

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Observer represents an entity that observes crossing traffic
type Observer interface {
	// Required methods

	// OnGrant is called when a unit becomes the occupant. waited is true when
	// the unit was parked before being admitted.
	OnGrant(unit uuid.UUID, d Direction, waited bool)

	// OnLeave is called when the occupant leaves the crossing
	OnLeave(unit uuid.UUID, d Direction)
}

// ExtendedObserver provides additional optional observation methods
type ExtendedObserver interface {
	Observer

	// OnWait is called when a unit parks; depth is the queue depth for d after parking
	OnWait(unit uuid.UUID, d Direction, depth int)

	// OnHandoff is called when a departing or confirming unit wakes a waiter in d
	OnHandoff(from uuid.UUID, d Direction)

	// OnReleaseDeferred is called when Leave leaves same-direction followers
	// waiting for a Release
	OnReleaseDeferred(unit uuid.UUID, d Direction, pending int)

	// OnReleaseIgnored is called when a strict release policy rejects a confirmation
	OnReleaseIgnored(unit uuid.UUID, owedBy uuid.UUID)

	// OnRefused is called when Access returns without granting because of the emergency stop
	OnRefused(unit uuid.UUID, d Direction)

	// OnViolation is called for every detected protocol violation
	OnViolation(err *ProtocolError)

	// OnEmergency is called once StopAll has drained the crossing
	OnEmergency(woken [2]int, hadOccupant bool)

	// OnError is called when an observer panics
	OnError(err error)
}

// BaseObserver provides a default implementation with no-op methods
type BaseObserver struct{}

// OnGrant implements the required Observer method
func (o *BaseObserver) OnGrant(unit uuid.UUID, d Direction, waited bool) {}

// OnLeave implements the required Observer method
func (o *BaseObserver) OnLeave(unit uuid.UUID, d Direction) {}

// OnWait implements the optional ExtendedObserver method
func (o *BaseObserver) OnWait(unit uuid.UUID, d Direction, depth int) {}

// OnHandoff implements the optional ExtendedObserver method
func (o *BaseObserver) OnHandoff(from uuid.UUID, d Direction) {}

// OnReleaseDeferred implements the optional ExtendedObserver method
func (o *BaseObserver) OnReleaseDeferred(unit uuid.UUID, d Direction, pending int) {}

// OnReleaseIgnored implements the optional ExtendedObserver method
func (o *BaseObserver) OnReleaseIgnored(unit uuid.UUID, owedBy uuid.UUID) {}

// OnRefused implements the optional ExtendedObserver method
func (o *BaseObserver) OnRefused(unit uuid.UUID, d Direction) {}

// OnViolation implements the optional ExtendedObserver method
func (o *BaseObserver) OnViolation(err *ProtocolError) {}

// OnEmergency implements the optional ExtendedObserver method
func (o *BaseObserver) OnEmergency(woken [2]int, hadOccupant bool) {}

// OnError implements the optional ExtendedObserver method
func (o *BaseObserver) OnError(err error) {}

// ObserverManager manages a collection of observers
type ObserverManager struct {
	mutex     sync.RWMutex
	observers []Observer
}

// NewObserverManager creates a new observer manager
func NewObserverManager() *ObserverManager {
	return &ObserverManager{
		observers: make([]Observer, 0),
	}
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

func (om *ObserverManager) snapshot() []Observer {
	om.mutex.RLock()
	defer om.mutex.RUnlock()
	observers := make([]Observer, len(om.observers))
	copy(observers, om.observers)
	return observers
}

// each calls fn for every observer, recovering from observer panics
func (om *ObserverManager) each(method string, fn func(Observer)) {
	for _, observer := range om.snapshot() {
		func() {
			defer func() {
				if r := recover(); r != nil {
					if extObs, ok := observer.(ExtendedObserver); ok {
						func() {
							defer func() { recover() }()
							extObs.OnError(fmt.Errorf("observer panic in %s: %v", method, r))
						}()
					}
				}
			}()
			fn(observer)
		}()
	}
}

// eachExtended is like each but only visits ExtendedObservers
func (om *ObserverManager) eachExtended(method string, fn func(ExtendedObserver)) {
	om.each(method, func(observer Observer) {
		if extObs, ok := observer.(ExtendedObserver); ok {
			fn(extObs)
		}
	})
}

// NotifyGrant notifies all observers of a granted occupancy
func (om *ObserverManager) NotifyGrant(unit uuid.UUID, d Direction, waited bool) {
	om.each("OnGrant", func(o Observer) { o.OnGrant(unit, d, waited) })
}

// NotifyLeave notifies all observers that the occupant left
func (om *ObserverManager) NotifyLeave(unit uuid.UUID, d Direction) {
	om.each("OnLeave", func(o Observer) { o.OnLeave(unit, d) })
}

// NotifyWait notifies all observers that a unit parked
func (om *ObserverManager) NotifyWait(unit uuid.UUID, d Direction, depth int) {
	om.eachExtended("OnWait", func(o ExtendedObserver) { o.OnWait(unit, d, depth) })
}

// NotifyHandoff notifies all observers of a hand-off to direction d
func (om *ObserverManager) NotifyHandoff(from uuid.UUID, d Direction) {
	om.eachExtended("OnHandoff", func(o ExtendedObserver) { o.OnHandoff(from, d) })
}

// NotifyReleaseDeferred notifies all observers that a confirmation is owed
func (om *ObserverManager) NotifyReleaseDeferred(unit uuid.UUID, d Direction, pending int) {
	om.eachExtended("OnReleaseDeferred", func(o ExtendedObserver) { o.OnReleaseDeferred(unit, d, pending) })
}

// NotifyReleaseIgnored notifies all observers of a rejected confirmation
func (om *ObserverManager) NotifyReleaseIgnored(unit uuid.UUID, owedBy uuid.UUID) {
	om.eachExtended("OnReleaseIgnored", func(o ExtendedObserver) { o.OnReleaseIgnored(unit, owedBy) })
}

// NotifyRefused notifies all observers of an access refused by the emergency stop
func (om *ObserverManager) NotifyRefused(unit uuid.UUID, d Direction) {
	om.eachExtended("OnRefused", func(o ExtendedObserver) { o.OnRefused(unit, d) })
}

// NotifyViolation notifies all observers of a protocol violation
func (om *ObserverManager) NotifyViolation(err *ProtocolError) {
	om.eachExtended("OnViolation", func(o ExtendedObserver) { o.OnViolation(err) })
}

// NotifyEmergency notifies all observers that the emergency stop completed
func (om *ObserverManager) NotifyEmergency(woken [2]int, hadOccupant bool) {
	om.eachExtended("OnEmergency", func(o ExtendedObserver) { o.OnEmergency(woken, hadOccupant) })
}
