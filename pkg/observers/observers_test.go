package observers

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anggasct/crossing"
	"github.com/anggasct/crossing/pkg/fsm"
)

type unit struct{ id uuid.UUID }

func (u *unit) ID() uuid.UUID { return u.id }
func (u *unit) Stop()         {}

func newUnit() *unit { return &unit{id: uuid.New()} }

func testMachine() fsm.Definition {
	return fsm.NewMachine().
		State("idle").Initial().
		To("busy").On("start").
		State("busy").
		To("idle").On("stop").
		To("idle").On("fail").Do(func(ctx fsm.Context) error { return assert.AnError }).
		State("unused").
		Build()
}

func TestParseLogLevel(t *testing.T) {
	for in, want := range map[string]LogLevel{
		"error": LogError, "warn": LogWarning, "warning": LogWarning,
		"info": LogInfo, "debug": LogDebug,
	} {
		got, err := ParseLogLevel(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseLogLevel("loud")
	assert.Error(t, err)
}

func TestLoggingObserver_Controller(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggingObserver(LogInfo, "test")
	logger.SetOutput(&buf)

	a, b := newUnit(), newUnit()
	logger.SetUnitName(a.ID(), "loco 7")

	c := crossing.NewController(crossing.WithObserver(logger))
	require.True(t, c.Access(a, crossing.D1))
	c.Leave(b, crossing.D1)
	c.Leave(a, crossing.D1)
	c.StopAll()

	out := buf.String()
	assert.Contains(t, out, "[test] [INFO] Grant: loco 7 enters D1")
	assert.Contains(t, out, "[test] [ERROR] Violation: ")
	assert.Contains(t, out, b.ID().String())
	assert.Contains(t, out, "Leave: loco 7 leaves D1")
	assert.Contains(t, out, "[WARN] EMERGENCY STOP")
}

func TestLoggingObserver_LevelAndFormatter(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggingObserver(LogError, "")
	logger.SetOutput(&buf)
	logger.SetFormatter(func(level LogLevel, format string, args ...interface{}) string {
		return "custom"
	})

	logger.OnGrant(uuid.New(), crossing.D1, false)
	assert.Empty(t, buf.String())

	logger.OnError(assert.AnError)
	assert.Equal(t, "custom\n", buf.String())
}

func TestLoggingObserver_Machine(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggingObserver(LogDebug, "")
	logger.SetOutput(&buf)

	m := testMachine().CreateInstance()
	m.AddObserver(logger.Machine("loco 42"))
	require.NoError(t, m.Start())
	m.HandleEvent("start", nil)
	m.HandleEvent("start", nil)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Contains(t, lines, "[INFO] [loco 42] Started")
	assert.Contains(t, lines, "[INFO] [loco 42] Transition: idle -> busy on event: start")
	assert.Contains(t, lines, "[DEBUG] [loco 42] Entering state: busy")
	assert.Contains(t, lines, "[WARN] [loco 42] Event start rejected: no transition")
}

func TestMetricsObserver_Controller(t *testing.T) {
	metrics := NewMetricsObserver()
	c := crossing.NewController(crossing.WithObserver(metrics))
	a, b := newUnit(), newUnit()

	require.True(t, c.Access(a, crossing.D1))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.Access(b, crossing.D2)
	}()
	require.Eventually(t, func() bool {
		return crossing.HasWaiting(c, 0, 1)
	}, waitFor, tick)

	c.Leave(a, crossing.D1)
	wg.Wait()
	c.Leave(b, crossing.D2)
	c.Leave(b, crossing.D2)

	snap := metrics.Snapshot()
	assert.Equal(t, [2]int{1, 1}, snap.Grants)
	assert.Equal(t, [2]int{0, 1}, snap.Waits)
	assert.Equal(t, [2]int{0, 1}, snap.Handoffs)
	assert.Equal(t, 1, snap.Violations[crossing.MismatchedLeave])

	snap.Violations[crossing.MismatchedLeave] = 99
	assert.Equal(t, 1, metrics.Snapshot().Violations[crossing.MismatchedLeave])

	c.StopAll()
	assert.Equal(t, 1, metrics.Snapshot().Emergencies)

	metrics.Reset()
	assert.Zero(t, metrics.Snapshot().Grants[crossing.D1])
}

func TestMetricsObserver_Machine(t *testing.T) {
	metrics := NewMetricsObserver()
	m := testMachine().CreateInstance()
	m.AddObserver(metrics.Machine())
	require.NoError(t, m.Start())

	m.HandleEvent("start", nil)
	m.HandleEvent("stop", nil)
	m.HandleEvent("start", nil)
	m.HandleEvent("fail", nil)

	snap := metrics.Snapshot()
	assert.Equal(t, 2, snap.StateVisits["idle"])
	assert.Equal(t, 2, snap.StateVisits["busy"])
	assert.Equal(t, 2, snap.TransitionCounts["idle->busy"])
	assert.Equal(t, 1, snap.EventCounts["stop"])
	assert.Equal(t, 1, snap.MachineErrors)
	assert.Contains(t, snap.StateTimeSpent, "idle")
}

func TestValidationObserver(t *testing.T) {
	def := testMachine()
	v := NewValidationObserver(def)
	m := def.CreateInstance()
	m.AddObserver(v)
	require.NoError(t, m.Start())

	m.HandleEvent("start", nil)
	m.HandleEvent("stop", nil)
	assert.False(t, v.HasViolations())
	assert.Equal(t, []string{"unused"}, v.GetUnvisitedStates())

	m.HandleEvent("stop", nil)
	require.True(t, v.HasViolations())
	assert.Contains(t, v.GetViolations()[0], "Event 'stop' rejected in 'idle'")

	v.AddAllowedTransition("x", "y")
	v.OnTransition("idle", "unused", fsm.NewEvent("teleport", nil), m.Context())
	assert.Len(t, v.GetViolations(), 2)

	v.Reset()
	assert.False(t, v.HasViolations())
	assert.Len(t, v.GetUnvisitedStates(), 3)
}

const (
	waitFor = 2 * time.Second
	tick    = time.Millisecond
)
