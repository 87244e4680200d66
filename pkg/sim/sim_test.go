package sim

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anggasct/crossing/pkg/layout"
)

const segment = 10 * time.Millisecond

func TestLocomotive_State(t *testing.T) {
	l := NewLocomotive(7, 10)

	assert.Equal(t, 7, l.Number())
	assert.Equal(t, 10, l.Speed())
	assert.False(t, l.IsMoving())
	assert.NotEqual(t, l.ID(), NewLocomotive(7, 10).ID())

	l.StartMoving()
	assert.True(t, l.IsMoving())
	l.Stop()
	assert.False(t, l.IsMoving())
	assert.Equal(t, 1, l.StopCount())

	l.SetPosition(34, 5)
	l.ReverseDirection()
	back, front := l.Position()
	assert.Equal(t, layout.Contact(5), back)
	assert.Equal(t, layout.Contact(34), front)
	assert.True(t, l.Reversed())

	l.LightsOn()
	assert.True(t, l.Lights())
	l.LightsOff()
	assert.False(t, l.Lights())

	l.DisplayMessage("Ready!")
	assert.Equal(t, []string{"Ready!"}, l.Messages())
	assert.Equal(t, "loco 7", l.String())
}

func TestSensor_WaitContact(t *testing.T) {
	l := NewLocomotive(7, 2)
	l.SetPosition(34, 5)
	var hits []layout.Contact
	s := NewSensor(l, WithSegment(segment), WithContactHook(func(c layout.Contact) {
		hits = append(hits, c)
	}))
	l.StartMoving()

	start := time.Now()
	require.NoError(t, s.WaitContact(context.Background(), 7))
	assert.GreaterOrEqual(t, time.Since(start), segment/2)

	back, front := l.Position()
	assert.Equal(t, layout.Contact(5), back)
	assert.Equal(t, layout.Contact(7), front)
	assert.Equal(t, []layout.Contact{7}, hits)
}

func TestSensor_StoppedLocomotiveParks(t *testing.T) {
	l := NewLocomotive(42, 100)
	s := NewSensor(l, WithSegment(segment))

	done := make(chan error, 1)
	go func() {
		done <- s.WaitContact(context.Background(), 1)
	}()

	select {
	case <-done:
		t.Fatal("contact fired while the locomotive was stopped")
	case <-time.After(5 * segment):
	}

	l.StartMoving()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("contact did not fire after restart")
	}
}

func TestSensor_Cancel(t *testing.T) {
	t.Run("while stopped", func(t *testing.T) {
		l := NewLocomotive(7, 1)
		s := NewSensor(l, WithSegment(segment))
		ctx, cancel := context.WithCancel(context.Background())

		done := make(chan error, 1)
		go func() { done <- s.WaitContact(ctx, 5) }()
		cancel()

		select {
		case err := <-done:
			assert.ErrorIs(t, err, context.Canceled)
		case <-time.After(time.Second):
			t.Fatal("wait did not observe cancellation")
		}
	})

	t.Run("while travelling", func(t *testing.T) {
		l := NewLocomotive(7, 1)
		l.StartMoving()
		s := NewSensor(l, WithSegment(time.Hour))
		ctx, cancel := context.WithTimeout(context.Background(), segment)
		defer cancel()

		assert.ErrorIs(t, s.WaitContact(ctx, 5), context.DeadlineExceeded)
	})
}

func TestTrack_Apply(t *testing.T) {
	track := NewTrack()
	assert.Equal(t, layout.Straight, track.Switch(2))

	track.Apply(layout.Default())
	assert.Equal(t, layout.Deviated, track.Switch(2))
	assert.Equal(t, layout.Straight, track.Switch(1))
	assert.Equal(t, layout.Deviated, track.Switch(21))
}
