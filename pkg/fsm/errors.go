package fsm

import (
	"errors"
	"fmt"
)

// ErrorCode represents different types of state machine errors
type ErrorCode int

const (
	// ErrCodeStateNotFound indicates a referenced state does not exist
	ErrCodeStateNotFound ErrorCode = iota + 1
	// ErrCodeInvalidTransition indicates no transition matched the event
	ErrCodeInvalidTransition
	// ErrCodeGuardRejected indicates every candidate guard returned false
	ErrCodeGuardRejected
	// ErrCodeActionFailed indicates a transition action returned an error or panicked
	ErrCodeActionFailed
	// ErrCodeMachineNotStarted indicates the machine was not started
	ErrCodeMachineNotStarted
	// ErrCodeMachineAlreadyStarted indicates Start was called twice
	ErrCodeMachineAlreadyStarted
	// ErrCodeConfiguration indicates an invalid machine definition
	ErrCodeConfiguration
	// ErrCodeCancelled indicates the event context was done before processing
	ErrCodeCancelled
)

func (c ErrorCode) String() string {
	switch c {
	case ErrCodeStateNotFound:
		return "STATE_NOT_FOUND"
	case ErrCodeInvalidTransition:
		return "INVALID_TRANSITION"
	case ErrCodeGuardRejected:
		return "GUARD_REJECTED"
	case ErrCodeActionFailed:
		return "ACTION_FAILED"
	case ErrCodeMachineNotStarted:
		return "MACHINE_NOT_STARTED"
	case ErrCodeMachineAlreadyStarted:
		return "MACHINE_ALREADY_STARTED"
	case ErrCodeConfiguration:
		return "CONFIGURATION"
	case ErrCodeCancelled:
		return "CANCELLED"
	default:
		return "UNKNOWN"
	}
}

// MachineError carries a code together with the states and event involved
type MachineError struct {
	Code    ErrorCode
	State   string
	Target  string
	Event   string
	Message string
	Cause   error
}

func (e *MachineError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.State != "" {
		msg += fmt.Sprintf(" (state: %s", e.State)
		if e.Target != "" {
			msg += fmt.Sprintf(" -> %s", e.Target)
		}
		if e.Event != "" {
			msg += fmt.Sprintf(", event: %s", e.Event)
		}
		msg += ")"
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause
func (e *MachineError) Unwrap() error {
	return e.Cause
}

func newError(code ErrorCode, state, event, message string) *MachineError {
	return &MachineError{Code: code, State: state, Event: event, Message: message}
}

// NewConfigurationError creates a definition error
func NewConfigurationError(message string) *MachineError {
	return &MachineError{Code: ErrCodeConfiguration, Message: message}
}

// GetErrorCode extracts the error code from an error, or 0 for foreign errors
func GetErrorCode(err error) ErrorCode {
	var me *MachineError
	if errors.As(err, &me) {
		return me.Code
	}
	return 0
}

// IsActionError checks if an error is a failed action
func IsActionError(err error) bool {
	return GetErrorCode(err) == ErrCodeActionFailed
}

// IsGuardError checks if an error is a guard rejection
func IsGuardError(err error) bool {
	return GetErrorCode(err) == ErrCodeGuardRejected
}
