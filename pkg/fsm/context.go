package fsm

import (
	"context"
	"sync"
	"time"
)

// Context is the state machine context: a context.Context plus a small
// key/value store shared by guards and actions of one machine instance.
type Context interface {
	context.Context

	Get(key string) any
	Set(key string, value any)
	GetAll() map[string]any

	GetMachine() Machine
	GetCurrentState() string
	GetCurrentEvent() Event
	GetEventData() any
}

type machineContext struct {
	context.Context
	mutex   sync.RWMutex
	data    map[string]any
	machine Machine
	current string
	event   Event
}

// NewContext creates a machine context on top of parent
func NewContext(parent context.Context, machine Machine) Context {
	if parent == nil {
		parent = context.Background()
	}
	return &machineContext{
		Context: parent,
		data:    make(map[string]any),
		machine: machine,
	}
}

func (c *machineContext) Get(key string) any {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.data[key]
}

func (c *machineContext) Set(key string, value any) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.data[key] = value
}

func (c *machineContext) GetAll() map[string]any {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	result := make(map[string]any, len(c.data))
	for k, v := range c.data {
		result[k] = v
	}
	return result
}

func (c *machineContext) GetMachine() Machine {
	return c.machine
}

func (c *machineContext) GetCurrentState() string {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.current
}

func (c *machineContext) GetCurrentEvent() Event {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.event
}

func (c *machineContext) GetEventData() any {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	if c.event == nil {
		return nil
	}
	return c.event.GetData()
}

func (c *machineContext) setCurrentState(state string) {
	c.mutex.Lock()
	c.current = state
	c.mutex.Unlock()
}

func (c *machineContext) setCurrentEvent(event Event) {
	c.mutex.Lock()
	c.event = event
	c.mutex.Unlock()
}

// eventContext scopes a machine context to the context.Context of one event
type eventContext struct {
	*machineContext
	parent context.Context
}

func (c *eventContext) Deadline() (deadline time.Time, ok bool) { return c.parent.Deadline() }
func (c *eventContext) Done() <-chan struct{}                   { return c.parent.Done() }
func (c *eventContext) Err() error                              { return c.parent.Err() }
func (c *eventContext) Value(key any) any                       { return c.parent.Value(key) }
