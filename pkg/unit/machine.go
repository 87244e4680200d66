package unit

import (
	"fmt"
	"sync"

	"github.com/anggasct/crossing/pkg/fsm"
)

// Unit machine states
const (
	StateRunning          = "running"
	StateAwaitingCrossing = "awaiting_crossing"
	StateInCrossing       = "in_crossing"
	StateReversing        = "reversing"
	StateHalted           = "halted"
)

// Unit machine events
const (
	EventApproach = "approach"
	EventGranted  = "granted"
	EventRefused  = "refused"
	EventExit     = "exit"
	EventReverse  = "reverse"
	EventResume   = "resume"
	EventHalt     = "halt"
)

const driverKey = "driver"

// Definition returns the state machine shared by every driver
var Definition = sync.OnceValue(func() fsm.Definition {
	return fsm.NewMachine().
		State(StateRunning).Initial().
		To(StateAwaitingCrossing).On(EventApproach).
		To(StateReversing).On(EventReverse).Do(reverse).
		To(StateHalted).On(EventHalt).
		State(StateAwaitingCrossing).OnEntry(say("Requesting crossing")).
		To(StateInCrossing).On(EventGranted).Do(enter).
		To(StateHalted).On(EventRefused).When(emergency).Do(say("Emergency stop")).
		To(StateRunning).On(EventRefused).Unless(emergency).
		To(StateHalted).On(EventHalt).
		State(StateInCrossing).
		To(StateRunning).On(EventExit).Do(exit).
		To(StateReversing).On(EventReverse).Do(reverse).
		To(StateHalted).On(EventHalt).Do(exit).
		State(StateReversing).
		To(StateInCrossing).On(EventResume).When(inside).
		To(StateRunning).On(EventResume).Unless(inside).
		State(StateHalted).Final().
		Build()
})

func driverOf(ctx fsm.Context) *Driver {
	return ctx.Get(driverKey).(*Driver)
}

func say(msg string) fsm.ActionFunc {
	return func(ctx fsm.Context) error {
		driverOf(ctx).loco.DisplayMessage(msg)
		return nil
	}
}

func emergency(ctx fsm.Context) bool {
	return driverOf(ctx).ctrl.Emergency()
}

func inside(ctx fsm.Context) bool {
	return driverOf(ctx).inside
}

// enter records the grant and gets the locomotive moving again; the
// controller stops it while it waits.
func enter(ctx fsm.Context) error {
	d := driverOf(ctx)
	d.inside = true
	d.held = d.direction()
	d.loco.StartMoving()
	d.loco.DisplayMessage("Entering crossing")
	return nil
}

func exit(ctx fsm.Context) error {
	d := driverOf(ctx)
	if !d.inside {
		return nil
	}
	d.ctrl.Leave(d.loco, d.held)
	d.inside = false
	d.loco.DisplayMessage("Leaving crossing")
	d.ctrl.Release(d.loco)
	return nil
}

func reverse(ctx fsm.Context) error {
	d := driverOf(ctx)
	d.clockwise = !d.clockwise
	d.loco.ReverseDirection()
	orientation := "counter-clockwise"
	if d.clockwise {
		orientation = "clockwise"
	}
	d.loco.DisplayMessage(fmt.Sprintf("Direction change: %s", orientation))
	return nil
}
