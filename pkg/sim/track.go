package sim

import (
	"sync"

	"github.com/anggasct/crossing/pkg/layout"
)

// Track holds the switch settings of the model railway
type Track struct {
	mutex    sync.RWMutex
	switches map[int]layout.SwitchPosition
}

// NewTrack creates a track with every switch straight
func NewTrack() *Track {
	return &Track{switches: make(map[int]layout.SwitchPosition)}
}

// SetSwitch sets switch number to pos
func (t *Track) SetSwitch(number int, pos layout.SwitchPosition) {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	t.switches[number] = pos
}

// Switch returns the setting of switch number
func (t *Track) Switch(number int) layout.SwitchPosition {
	t.mutex.RLock()
	defer t.mutex.RUnlock()
	if pos, ok := t.switches[number]; ok {
		return pos
	}
	return layout.Straight
}

// Apply sets every switch listed in l
func (t *Track) Apply(l *layout.Layout) {
	for _, s := range l.Switches {
		t.SetSwitch(s.Number, s.Position)
	}
}
