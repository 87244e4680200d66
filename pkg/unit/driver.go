// Package unit drives one locomotive around its route, requesting the
// crossing on the way in and handing it over on the way out.
package unit

import (
	"context"
	"errors"
	"fmt"

	"github.com/anggasct/crossing"
	"github.com/anggasct/crossing/pkg/fsm"
	"github.com/anggasct/crossing/pkg/layout"
)

// ErrEmergencyStop is returned by Run when the crossing refused entry
// because of an emergency stop
var ErrEmergencyStop = errors.New("emergency stop")

// Crossing is the controller protocol used by a driver
type Crossing interface {
	Access(u crossing.Unit, d crossing.Direction) bool
	Leave(u crossing.Unit, d crossing.Direction)
	Release(u crossing.Unit)
	Emergency() bool
}

// Locomotive is the hardware a driver controls
type Locomotive interface {
	crossing.Unit
	Number() int
	StartMoving()
	ReverseDirection()
	LightsOn()
	SetPosition(back, front layout.Contact)
	DisplayMessage(msg string)
}

// Sensor reports contacts as the locomotive reaches them
type Sensor interface {
	WaitContact(ctx context.Context, contact layout.Contact) error
}

// DriverOption configures a Driver
type DriverOption func(*Driver)

// WithMachineObserver observes the driver's state machine
func WithMachineObserver(observer fsm.Observer) DriverOption {
	return func(d *Driver) {
		d.machine.AddObserver(observer)
	}
}

// Driver runs one unit around its route. A driver is not safe for
// concurrent use: Run owns it until it returns.
type Driver struct {
	loco    Locomotive
	sensor  Sensor
	ctrl    Crossing
	route   layout.Route
	layout  *layout.Layout
	machine fsm.Machine

	index     int
	clockwise bool
	inside    bool
	held      crossing.Direction
}

// NewDriver creates a driver for loco following route on lay
func NewDriver(loco Locomotive, sensor Sensor, ctrl Crossing, route layout.Route, lay *layout.Layout, opts ...DriverOption) *Driver {
	d := &Driver{
		loco:      loco,
		sensor:    sensor,
		ctrl:      ctrl,
		route:     route,
		layout:    lay,
		machine:   Definition().CreateInstance(),
		clockwise: route.Clockwise,
	}
	if i := route.IndexOf(route.Start.Front); i >= 0 {
		d.index = i
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Machine returns the driver's state machine
func (d *Driver) Machine() fsm.Machine {
	return d.machine
}

// Route returns the route the driver follows
func (d *Driver) Route() layout.Route {
	return d.route
}

// Run drives the unit until ctx ends or the crossing refuses entry because
// of an emergency stop. On cancellation a unit inside the crossing leaves
// it before Run returns ctx.Err().
func (d *Driver) Run(ctx context.Context) error {
	if err := d.machine.Start(); err != nil {
		return err
	}
	defer d.machine.Stop()
	d.machine.Context().Set(driverKey, d)

	d.loco.SetPosition(d.route.Start.Back, d.route.Start.Front)
	d.loco.LightsOn()
	d.loco.StartMoving()
	d.loco.DisplayMessage("Ready!")

	for {
		contact := d.route.Path[d.index]
		if err := d.sensor.WaitContact(ctx, contact); err != nil {
			_ = d.fire(EventHalt)
			return err
		}
		d.loco.DisplayMessage(fmt.Sprintf("Contact %d", contact))

		switch {
		case d.layout.IsCrossing(contact) && !d.inside:
			if err := d.requestCrossing(); err != nil {
				return err
			}
		case d.inside && !d.layout.IsCrossing(contact):
			if err := d.fire(EventExit); err != nil {
				return err
			}
		}

		if d.layout.IsReversal(contact) {
			if err := d.fire(EventReverse); err != nil {
				return err
			}
			if err := d.fire(EventResume); err != nil {
				return err
			}
		}

		d.index = d.route.Next(d.index, d.clockwise)
	}
}

func (d *Driver) requestCrossing() error {
	if err := d.fire(EventApproach); err != nil {
		return err
	}
	if d.ctrl.Access(d.loco, d.direction()) {
		return d.fire(EventGranted)
	}
	if err := d.fire(EventRefused); err != nil {
		return err
	}
	if d.machine.IsInState(StateHalted) {
		return ErrEmergencyStop
	}
	return nil
}

// direction maps the travel orientation to a crossing direction
func (d *Driver) direction() crossing.Direction {
	if d.clockwise {
		return crossing.D1
	}
	return crossing.D2
}

// fire feeds event to the machine. Cancellation is observed at contact
// waits only, so a transition that started always completes.
func (d *Driver) fire(event string) error {
	result := d.machine.HandleEvent(event, nil)
	if result.Error != nil {
		return fmt.Errorf("unit %d: %s in %s: %w", d.loco.Number(), event, result.PreviousState, result.Error)
	}
	return nil
}
