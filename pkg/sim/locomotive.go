// Package sim simulates the model railway: locomotives that can be stopped
// and restarted, contact sensors that fire as a locomotive travels, and the
// track switches.
package sim

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/anggasct/crossing/pkg/layout"
)

// Locomotive is a simulated locomotive. It is safe for concurrent use.
type Locomotive struct {
	mutex sync.Mutex
	cond  *sync.Cond

	id       uuid.UUID
	number   int
	speed    int
	moving   bool
	lights   bool
	reversed bool
	back     layout.Contact
	front    layout.Contact
	stops    int
	messages []string
}

// NewLocomotive creates a stopped locomotive
func NewLocomotive(number, speed int) *Locomotive {
	l := &Locomotive{
		id:     uuid.New(),
		number: number,
		speed:  speed,
	}
	l.cond = sync.NewCond(&l.mutex)
	return l
}

// ID returns the identity token used by the crossing controller
func (l *Locomotive) ID() uuid.UUID {
	return l.id
}

// Number returns the locomotive number
func (l *Locomotive) Number() int {
	return l.number
}

// Speed returns the configured speed
func (l *Locomotive) Speed() int {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	return l.speed
}

// SetSpeed changes the speed used by subsequent trips
func (l *Locomotive) SetSpeed(speed int) {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	l.speed = speed
}

// Stop halts the locomotive. Contact waits park until StartMoving.
func (l *Locomotive) Stop() {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	l.moving = false
	l.stops++
}

// StartMoving sets the locomotive in motion
func (l *Locomotive) StartMoving() {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	l.moving = true
	l.cond.Broadcast()
}

// ReverseDirection turns the locomotive around
func (l *Locomotive) ReverseDirection() {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	l.reversed = !l.reversed
	l.back, l.front = l.front, l.back
}

// SetPosition places the locomotive between back and front
func (l *Locomotive) SetPosition(back, front layout.Contact) {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	l.back, l.front = back, front
}

// Position returns the contacts behind and ahead of the locomotive
func (l *Locomotive) Position() (back, front layout.Contact) {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	return l.back, l.front
}

// LightsOn switches the headlights on
func (l *Locomotive) LightsOn() {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	l.lights = true
}

// LightsOff switches the headlights off
func (l *Locomotive) LightsOff() {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	l.lights = false
}

// DisplayMessage appends msg to the locomotive's message log
func (l *Locomotive) DisplayMessage(msg string) {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	l.messages = append(l.messages, msg)
}

// Messages returns a copy of the message log
func (l *Locomotive) Messages() []string {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	result := make([]string, len(l.messages))
	copy(result, l.messages)
	return result
}

// IsMoving reports whether the locomotive is in motion
func (l *Locomotive) IsMoving() bool {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	return l.moving
}

// Lights reports whether the headlights are on
func (l *Locomotive) Lights() bool {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	return l.lights
}

// Reversed reports whether the locomotive runs backwards
func (l *Locomotive) Reversed() bool {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	return l.reversed
}

// StopCount returns how many times Stop was called
func (l *Locomotive) StopCount() int {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	return l.stops
}

func (l *Locomotive) String() string {
	return fmt.Sprintf("loco %d", l.number)
}

// waitMoving parks until the locomotive moves or ctx is done
func (l *Locomotive) waitMoving(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		l.mutex.Lock()
		defer l.mutex.Unlock()
		l.cond.Broadcast()
	})
	defer stop()

	l.mutex.Lock()
	defer l.mutex.Unlock()
	for !l.moving {
		if err := ctx.Err(); err != nil {
			return err
		}
		l.cond.Wait()
	}
	return ctx.Err()
}

// arrive records that the locomotive reached c
func (l *Locomotive) arrive(c layout.Contact) {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	l.back, l.front = l.front, c
}
