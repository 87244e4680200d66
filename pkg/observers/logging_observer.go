// Package observers provides observers for monitoring the crossing
// controller and the unit state machines
package observers

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/google/uuid"

	"github.com/anggasct/crossing"
	"github.com/anggasct/crossing/pkg/fsm"
)

// LogLevel represents the logging level
type LogLevel int

const (
	// LogError logs only errors
	LogError LogLevel = iota
	// LogWarning logs errors and warnings
	LogWarning
	// LogInfo logs errors, warnings, and info
	LogInfo
	// LogDebug logs errors, warnings, info, and debug
	LogDebug
)

// ParseLogLevel maps error, warn, info and debug to a LogLevel
func ParseLogLevel(s string) (LogLevel, error) {
	switch s {
	case "error":
		return LogError, nil
	case "warn", "warning":
		return LogWarning, nil
	case "info":
		return LogInfo, nil
	case "debug":
		return LogDebug, nil
	}
	return LogInfo, fmt.Errorf("unknown log level %q", s)
}

// LogFormatter formats log messages
type LogFormatter func(level LogLevel, format string, args ...interface{}) string

// DefaultLogFormatter provides default log formatting
func DefaultLogFormatter(level LogLevel, format string, args ...interface{}) string {
	levelStr := "INFO"
	switch level {
	case LogError:
		levelStr = "ERROR"
	case LogWarning:
		levelStr = "WARN"
	case LogDebug:
		levelStr = "DEBUG"
	}

	return fmt.Sprintf("[%s] %s", levelStr, fmt.Sprintf(format, args...))
}

// LoggingObserver logs crossing traffic. Machine returns a companion
// observer that logs a unit's state machine through the same output.
type LoggingObserver struct {
	level     LogLevel
	prefix    string
	mutex     sync.RWMutex
	formatter LogFormatter
	out       io.Writer
	names     map[uuid.UUID]string
}

// NewLoggingObserver creates a new logging observer writing to stdout
func NewLoggingObserver(level LogLevel, prefix string) *LoggingObserver {
	return &LoggingObserver{
		level:     level,
		prefix:    prefix,
		formatter: DefaultLogFormatter,
		out:       os.Stdout,
		names:     make(map[uuid.UUID]string),
	}
}

// NewDefaultLoggingObserver creates a logging observer with default settings (LogInfo level)
func NewDefaultLoggingObserver() *LoggingObserver {
	return NewLoggingObserver(LogInfo, "crossing")
}

// SetFormatter sets the log formatter
func (o *LoggingObserver) SetFormatter(formatter LogFormatter) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.formatter = formatter
}

// SetOutput sets the destination of log lines
func (o *LoggingObserver) SetOutput(w io.Writer) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.out = w
}

// SetUnitName logs unit id as name instead of its uuid
func (o *LoggingObserver) SetUnitName(id uuid.UUID, name string) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.names[id] = name
}

func (o *LoggingObserver) unitName(id uuid.UUID) string {
	o.mutex.RLock()
	defer o.mutex.RUnlock()
	if name, ok := o.names[id]; ok {
		return name
	}
	return id.String()
}

// log logs a message at the specified level
func (o *LoggingObserver) log(level LogLevel, format string, args ...interface{}) {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	if level > o.level {
		return
	}

	prefix := ""
	if o.prefix != "" {
		prefix = fmt.Sprintf("[%s] ", o.prefix)
	}

	message := ""
	if o.formatter != nil {
		message = o.formatter(level, format, args...)
	} else {
		message = fmt.Sprintf(format, args...)
	}

	fmt.Fprintf(o.out, "%s%s\n", prefix, message)
}

// OnGrant logs a unit entering the crossing
func (o *LoggingObserver) OnGrant(unit uuid.UUID, d crossing.Direction, waited bool) {
	if waited {
		o.log(LogInfo, "Grant: %s enters %s after waiting", o.unitName(unit), d)
		return
	}
	o.log(LogInfo, "Grant: %s enters %s", o.unitName(unit), d)
}

// OnLeave logs a unit leaving the crossing
func (o *LoggingObserver) OnLeave(unit uuid.UUID, d crossing.Direction) {
	o.log(LogInfo, "Leave: %s leaves %s", o.unitName(unit), d)
}

// OnWait logs a unit parking in front of the crossing
func (o *LoggingObserver) OnWait(unit uuid.UUID, d crossing.Direction, depth int) {
	o.log(LogInfo, "Wait: %s stopped on %s (queue %d)", o.unitName(unit), d, depth)
}

// OnHandoff logs a hand-off
func (o *LoggingObserver) OnHandoff(from uuid.UUID, d crossing.Direction) {
	o.log(LogDebug, "Handoff: %s wakes a waiter on %s", o.unitName(from), d)
}

// OnReleaseDeferred logs a same-direction hand-off waiting for Release
func (o *LoggingObserver) OnReleaseDeferred(unit uuid.UUID, d crossing.Direction, pending int) {
	o.log(LogDebug, "Release owed by %s on %s (%d waiting)", o.unitName(unit), d, pending)
}

// OnReleaseIgnored logs a rejected confirmation
func (o *LoggingObserver) OnReleaseIgnored(unit uuid.UUID, owedBy uuid.UUID) {
	o.log(LogWarning, "Release by %s ignored, owed by %s", o.unitName(unit), o.unitName(owedBy))
}

// OnRefused logs an access refused by the emergency stop
func (o *LoggingObserver) OnRefused(unit uuid.UUID, d crossing.Direction) {
	o.log(LogWarning, "Refused: %s on %s, emergency stop active", o.unitName(unit), d)
}

// OnViolation logs a protocol violation
func (o *LoggingObserver) OnViolation(err *crossing.ProtocolError) {
	o.log(LogError, "Violation: %v", err)
}

// OnEmergency logs the end of the emergency drain
func (o *LoggingObserver) OnEmergency(woken [2]int, hadOccupant bool) {
	o.log(LogWarning, "EMERGENCY STOP: %d waiting on D1, %d waiting on D2 released, occupant drained: %t",
		woken[crossing.D1], woken[crossing.D2], hadOccupant)
}

// OnError logs observer failures
func (o *LoggingObserver) OnError(err error) {
	o.log(LogError, "Error: %v", err)
}

// Machine returns an observer that logs the state machine of unit name
func (o *LoggingObserver) Machine(name string) fsm.Observer {
	return &machineLogger{parent: o, name: name}
}

type machineLogger struct {
	parent *LoggingObserver
	name   string
}

func (m *machineLogger) OnStateEnter(state string, ctx fsm.Context) {
	m.parent.log(LogDebug, "[%s] Entering state: %s", m.name, state)
}

func (m *machineLogger) OnStateExit(state string, ctx fsm.Context) {
	m.parent.log(LogDebug, "[%s] Exiting state: %s", m.name, state)
}

func (m *machineLogger) OnTransition(from, to string, event fsm.Event, ctx fsm.Context) {
	m.parent.log(LogInfo, "[%s] Transition: %s -> %s on event: %s", m.name, from, to, event.GetName())
}

func (m *machineLogger) OnGuardEvaluation(from, to string, event fsm.Event, result bool, ctx fsm.Context) {
	m.parent.log(LogDebug, "[%s] Guard %s -> %s on %s: %t", m.name, from, to, event.GetName(), result)
}

func (m *machineLogger) OnEventRejected(event fsm.Event, reason string, ctx fsm.Context) {
	m.parent.log(LogWarning, "[%s] Event %s rejected: %s", m.name, event.GetName(), reason)
}

func (m *machineLogger) OnError(err error, ctx fsm.Context) {
	m.parent.log(LogError, "[%s] Error: %v", m.name, err)
}

func (m *machineLogger) OnMachineStarted(ctx fsm.Context) {
	m.parent.log(LogInfo, "[%s] Started", m.name)
}

func (m *machineLogger) OnMachineStopped(ctx fsm.Context) {
	m.parent.log(LogInfo, "[%s] Stopped in %s", m.name, ctx.GetCurrentState())
}
