// Package layout describes the track: the cyclic path each unit follows,
// the contacts that bound the crossing, and the contacts where units turn
// around.
package layout

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed maquette_a.yaml
var maquetteA []byte

// Contact is the number of a track contact sensor
type Contact int

// SwitchPosition is the setting of a track switch
type SwitchPosition string

const (
	Straight SwitchPosition = "straight"
	Deviated SwitchPosition = "deviated"
)

// Switch is the initial setting of one track switch
type Switch struct {
	Number   int            `yaml:"number"`
	Position SwitchPosition `yaml:"position"`
}

// Position places a unit between two contacts, facing front
type Position struct {
	Back  Contact `yaml:"back"`
	Front Contact `yaml:"front"`
}

// Route is the closed path followed by one unit
type Route struct {
	Name      string    `yaml:"name"`
	Number    int       `yaml:"number"`
	Speed     int       `yaml:"speed"`
	Clockwise bool      `yaml:"clockwise"`
	Start     Position  `yaml:"start"`
	Path      []Contact `yaml:"path"`
}

// Next returns the index that follows index when travelling clockwise, or
// the one before it otherwise. The path wraps around in both directions.
func (r Route) Next(index int, clockwise bool) int {
	n := len(r.Path)
	if clockwise {
		return (index + 1) % n
	}
	return (index - 1 + n) % n
}

// IndexOf returns the first index of c in the path, or -1
func (r Route) IndexOf(c Contact) int {
	for i, p := range r.Path {
		if p == c {
			return i
		}
	}
	return -1
}

// Layout is a complete track description
type Layout struct {
	Name      string    `yaml:"name"`
	Crossing  []Contact `yaml:"crossing"`
	Reversals []Contact `yaml:"reversals"`
	Switches  []Switch  `yaml:"switches"`
	Units     []Route   `yaml:"units"`
}

// IsCrossing reports whether c lies inside the shared section
func (l *Layout) IsCrossing(c Contact) bool {
	return contains(l.Crossing, c)
}

// IsReversal reports whether a unit turns around at c
func (l *Layout) IsReversal(c Contact) bool {
	return contains(l.Reversals, c)
}

// Unit returns the route of the unit with the given number
func (l *Layout) Unit(number int) (Route, bool) {
	for _, r := range l.Units {
		if r.Number == number {
			return r, true
		}
	}
	return Route{}, false
}

var (
	ErrNoCrossing = errors.New("layout has no crossing contacts")
	ErrNoUnits    = errors.New("layout has no units")
)

// Validate checks that the layout can be driven
func (l *Layout) Validate() error {
	if len(l.Crossing) == 0 {
		return ErrNoCrossing
	}
	if len(l.Units) == 0 {
		return ErrNoUnits
	}

	numbers := make(map[int]bool)
	for _, r := range l.Units {
		if numbers[r.Number] {
			return fmt.Errorf("unit %q: duplicate number %d", r.Name, r.Number)
		}
		numbers[r.Number] = true

		if len(r.Path) < 2 {
			return fmt.Errorf("unit %q: path needs at least two contacts", r.Name)
		}
		if r.Speed <= 0 {
			return fmt.Errorf("unit %q: speed must be positive, got %d", r.Name, r.Speed)
		}
		if r.IndexOf(r.Start.Front) < 0 {
			return fmt.Errorf("unit %q: start contact %d is not on the path", r.Name, r.Start.Front)
		}
	}

	for _, s := range l.Switches {
		if s.Position != Straight && s.Position != Deviated {
			return fmt.Errorf("switch %d: unknown position %q", s.Number, s.Position)
		}
	}
	return nil
}

// Load decodes and validates a YAML layout. Unknown fields are rejected.
func Load(r io.Reader) (*Layout, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var l Layout
	if err := dec.Decode(&l); err != nil {
		return nil, fmt.Errorf("decode layout: %w", err)
	}
	if err := l.Validate(); err != nil {
		return nil, fmt.Errorf("invalid layout %q: %w", l.Name, err)
	}
	return &l, nil
}

// LoadFile reads a YAML layout from path
func LoadFile(path string) (*Layout, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Load(f)
}

// Default returns the built-in layout (maquette A)
func Default() *Layout {
	l, err := Load(bytes.NewReader(maquetteA))
	if err != nil {
		panic(fmt.Sprintf("embedded layout: %v", err))
	}
	return l
}

// Marshal encodes l as YAML
func Marshal(l *Layout) ([]byte, error) {
	return yaml.Marshal(l)
}

func contains(set []Contact, c Contact) bool {
	for _, s := range set {
		if s == c {
			return true
		}
	}
	return false
}
