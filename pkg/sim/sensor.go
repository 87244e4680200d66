package sim

import (
	"context"
	"time"

	"github.com/anggasct/crossing/pkg/layout"
)

// DefaultSegment is the travel time between two contacts at speed 1
const DefaultSegment = time.Second

// Sensor fires contacts for one simulated locomotive
type Sensor struct {
	loco    *Locomotive
	segment time.Duration
	onHit   func(c layout.Contact)
}

// SensorOption configures a Sensor
type SensorOption func(*Sensor)

// WithSegment sets the travel time between two contacts at speed 1
func WithSegment(d time.Duration) SensorOption {
	return func(s *Sensor) {
		s.segment = d
	}
}

// WithContactHook registers fn to be called each time a contact fires
func WithContactHook(fn func(c layout.Contact)) SensorOption {
	return func(s *Sensor) {
		s.onHit = fn
	}
}

// NewSensor creates the contact sensor for loco
func NewSensor(loco *Locomotive, opts ...SensorOption) *Sensor {
	s := &Sensor{loco: loco, segment: DefaultSegment}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// WaitContact blocks until the locomotive reaches contact. The trip only
// progresses while the locomotive is moving: a stop parks the wait until
// the locomotive is restarted. It returns ctx.Err() if ctx ends first.
func (s *Sensor) WaitContact(ctx context.Context, contact layout.Contact) error {
	if err := s.loco.waitMoving(ctx); err != nil {
		return err
	}

	timer := time.NewTimer(s.travelTime())
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
	}

	// A stop issued during the trip holds the locomotive short of the contact.
	if err := s.loco.waitMoving(ctx); err != nil {
		return err
	}

	s.loco.arrive(contact)
	if s.onHit != nil {
		s.onHit(contact)
	}
	return nil
}

func (s *Sensor) travelTime() time.Duration {
	speed := s.loco.Speed()
	if speed <= 0 {
		speed = 1
	}
	return s.segment / time.Duration(speed)
}
