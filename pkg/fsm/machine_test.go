package fsm

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingObserver struct {
	BaseObserver
	mutex       sync.Mutex
	transitions []string
	rejected    []string
	errors      []error
	started     int
	stopped     int
}

func (o *recordingObserver) OnTransition(from, to string, event Event, ctx Context) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.transitions = append(o.transitions, from+">"+to)
}

func (o *recordingObserver) OnEventRejected(event Event, reason string, ctx Context) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.rejected = append(o.rejected, event.GetName()+":"+reason)
}

func (o *recordingObserver) OnError(err error, ctx Context) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.errors = append(o.errors, err)
}

func (o *recordingObserver) OnMachineStarted(ctx Context) { o.started++ }
func (o *recordingObserver) OnMachineStopped(ctx Context) { o.stopped++ }

func doorMachine() Definition {
	return NewMachine().
		State("closed").Initial().
		To("open").On("open").When(func(ctx Context) bool {
		locked, _ := ctx.Get("locked").(bool)
		return !locked
	}).
		State("open").
		To("closed").On("close").
		State("broken").Final().
		Build()
}

func TestMachine_Lifecycle(t *testing.T) {
	m := doorMachine().CreateInstance()
	obs := &recordingObserver{}
	m.AddObserver(obs)

	assert.False(t, m.IsStarted())
	require.NoError(t, m.Start())
	assert.True(t, m.IsInState("closed"))
	assert.Equal(t, ErrCodeMachineAlreadyStarted, GetErrorCode(m.Start()))

	require.NoError(t, m.Stop())
	assert.Equal(t, ErrCodeMachineNotStarted, GetErrorCode(m.Stop()))
	assert.Equal(t, 1, obs.started)
	assert.Equal(t, 1, obs.stopped)
}

func TestMachine_HandleEvent(t *testing.T) {
	m := doorMachine().CreateInstance()
	obs := &recordingObserver{}
	m.AddObserver(obs)

	result := m.HandleEvent("open", nil)
	assert.False(t, result.Processed)
	assert.Equal(t, ErrCodeMachineNotStarted, GetErrorCode(result.Error))

	require.NoError(t, m.Start())

	result = m.HandleEvent("open", nil)
	assert.True(t, result.Success())
	assert.True(t, result.StateChanged)
	assert.Equal(t, "closed", result.PreviousState)
	assert.Equal(t, "open", result.CurrentState)

	result = m.HandleEvent("open", nil)
	assert.False(t, result.Processed)
	assert.Equal(t, "no transition", result.RejectionReason)
	assert.Equal(t, ErrCodeInvalidTransition, GetErrorCode(result.Error))

	assert.True(t, m.HandleEvent("close", nil).Success())
	assert.Equal(t, []string{"closed>open", "open>closed"}, obs.transitions)
	assert.Equal(t, []string{"open:no transition"}, obs.rejected)
}

func TestMachine_GuardRejects(t *testing.T) {
	m := doorMachine().CreateInstance()
	require.NoError(t, m.Start())
	m.Context().Set("locked", true)

	result := m.HandleEvent("open", nil)
	assert.False(t, result.Processed)
	assert.True(t, IsGuardError(result.Error))
	assert.Equal(t, "closed", m.CurrentState())

	m.Context().Set("locked", false)
	assert.True(t, m.HandleEvent("open", nil).Success())
}

func TestMachine_FirstPassingGuardWins(t *testing.T) {
	def := NewMachine().
		State("idle").Initial().
		To("low").On("go").When(func(ctx Context) bool { return ctx.GetEventData().(int) < 10 }).
		To("high").On("go").
		State("low").
		State("high").
		Build()

	m := def.CreateInstance()
	require.NoError(t, m.Start())
	assert.Equal(t, "low", m.HandleEvent("go", 3).CurrentState)

	m = def.CreateInstance()
	require.NoError(t, m.Start())
	assert.Equal(t, "high", m.HandleEvent("go", 30).CurrentState)
}

func TestMachine_ActionFailureKeepsState(t *testing.T) {
	boom := errors.New("boom")
	var exited bool
	def := NewMachine().
		State("a").Initial().OnExit(func(ctx Context) error {
		exited = true
		return nil
	}).
		To("b").On("next").Do(func(ctx Context) error { return boom }).
		To("c").On("panic").Do(func(ctx Context) error { panic("bad action") }).
		State("b").
		State("c").
		Build()

	m := def.CreateInstance()
	obs := &recordingObserver{}
	m.AddObserver(obs)
	require.NoError(t, m.Start())

	result := m.HandleEvent("next", nil)
	assert.False(t, result.Processed)
	assert.True(t, IsActionError(result.Error))
	assert.ErrorIs(t, result.Error, boom)
	assert.Equal(t, "a", m.CurrentState())
	assert.False(t, exited)

	result = m.HandleEvent("panic", nil)
	assert.True(t, IsActionError(result.Error))
	assert.Contains(t, result.Error.Error(), "bad action")
	assert.Len(t, obs.errors, 2)
}

func TestMachine_EntryExitOrder(t *testing.T) {
	var trace []string
	record := func(s string) ActionFunc {
		return func(ctx Context) error {
			trace = append(trace, s)
			return nil
		}
	}

	def := NewMachine().
		State("a").Initial().OnEntry(record("enter a")).OnExit(record("exit a")).
		To("b").On("go").Do(record("action")).
		State("b").OnEntry(record("enter b")).
		To("b").On("again").
		Build()

	m := def.CreateInstance()
	require.NoError(t, m.Start())
	require.True(t, m.HandleEvent("go", nil).Success())

	result := m.HandleEvent("again", nil)
	assert.True(t, result.Success())
	assert.False(t, result.StateChanged)

	assert.Equal(t, []string{"enter a", "action", "exit a", "enter b", "enter b"}, trace)
}

func TestMachine_CancelledContext(t *testing.T) {
	m := doorMachine().CreateInstance()
	require.NoError(t, m.Start())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := m.HandleEventWithContext(ctx, "open", nil)
	assert.False(t, result.Processed)
	assert.Equal(t, ErrCodeCancelled, GetErrorCode(result.Error))
	assert.ErrorIs(t, result.Error, context.Canceled)
	assert.Equal(t, "closed", m.CurrentState())
}

func TestMachine_ActionSeesEventContext(t *testing.T) {
	type key struct{}
	var seen any
	def := NewMachine().
		State("a").Initial().
		To("b").On("go").Do(func(ctx Context) error {
		seen = ctx.Value(key{})
		return ctx.Err()
	}).
		State("b").
		Build()

	m := def.CreateInstance()
	require.NoError(t, m.Start())

	ctx := context.WithValue(context.Background(), key{}, "loco-7")
	assert.True(t, m.HandleEventWithContext(ctx, "go", nil).Success())
	assert.Equal(t, "loco-7", seen)
}

func TestMachine_Reset(t *testing.T) {
	m := doorMachine().CreateInstance()
	require.NoError(t, m.Start())
	m.Context().Set("locked", true)
	m.Context().Set("locked", false)
	require.True(t, m.HandleEvent("open", nil).Success())

	require.NoError(t, m.Reset())
	assert.Equal(t, "closed", m.CurrentState())
	assert.Empty(t, m.Context().GetAll())
}

func TestMachine_ObserverPanicRecovered(t *testing.T) {
	m := doorMachine().CreateInstance()
	obs := &recordingObserver{}
	m.AddObserver(&panickingObserver{})
	m.AddObserver(obs)
	require.NoError(t, m.Start())

	assert.NotPanics(t, func() {
		assert.True(t, m.HandleEvent("open", nil).Success())
	})
	assert.Equal(t, []string{"closed>open"}, obs.transitions)

	m.RemoveObserver(obs)
	m.HandleEvent("close", nil)
	assert.Len(t, obs.transitions, 1)
}

type panickingObserver struct {
	BaseObserver
}

func (o *panickingObserver) OnTransition(from, to string, event Event, ctx Context) {
	panic("observer failure")
}

func TestEvent_UniqueIDs(t *testing.T) {
	a := NewEvent("x", 1)
	b := NewEvent("x", 1)
	assert.NotEqual(t, a.GetID(), b.GetID())
	assert.Equal(t, 1, a.GetData())
	assert.False(t, a.GetTimestamp().IsZero())
}
