package layout

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	l := Default()

	assert.Equal(t, "maquette_a", l.Name)
	assert.Equal(t, []Contact{5, 7, 19, 21, 23}, l.Crossing)
	assert.Len(t, l.Switches, 24)
	require.Len(t, l.Units, 2)

	a, ok := l.Unit(7)
	require.True(t, ok)
	assert.Equal(t, 10, a.Speed)
	assert.True(t, a.Clockwise)
	assert.Equal(t, Position{Back: 34, Front: 5}, a.Start)
	assert.Equal(t, []Contact{34, 1, 5, 7, 9, 11, 19, 21, 23, 25, 27, 29, 31, 33}, a.Path)

	b, ok := l.Unit(42)
	require.True(t, ok)
	assert.Equal(t, 12, b.Speed)
	assert.False(t, b.Clockwise)
	assert.Equal(t, Position{Back: 31, Front: 1}, b.Start)

	_, ok = l.Unit(99)
	assert.False(t, ok)
}

func TestLayout_Contacts(t *testing.T) {
	l := Default()

	for _, c := range []Contact{5, 7, 19, 21, 23} {
		assert.True(t, l.IsCrossing(c), "contact %d", c)
	}
	assert.False(t, l.IsCrossing(9))
	assert.True(t, l.IsReversal(1))
	assert.True(t, l.IsReversal(29))
	assert.False(t, l.IsReversal(5))
}

func TestRoute_Next(t *testing.T) {
	r := Route{Path: []Contact{10, 20, 30}}

	tests := []struct {
		index     int
		clockwise bool
		want      int
	}{
		{0, true, 1},
		{2, true, 0},
		{1, false, 0},
		{0, false, 2},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, r.Next(tt.index, tt.clockwise))
	}

	assert.Equal(t, 2, r.IndexOf(30))
	assert.Equal(t, -1, r.IndexOf(40))
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "unknown field",
			yaml: "name: x\ncrossing: [1]\ncolour: red\n",
			want: "colour",
		},
		{
			name: "no crossing",
			yaml: "name: x\nunits: []\n",
			want: ErrNoCrossing.Error(),
		},
		{
			name: "no units",
			yaml: "name: x\ncrossing: [1]\n",
			want: ErrNoUnits.Error(),
		},
		{
			name: "short path",
			yaml: "crossing: [1]\nunits:\n  - {name: a, number: 1, speed: 1, path: [1], start: {front: 1}}\n",
			want: "at least two contacts",
		},
		{
			name: "bad speed",
			yaml: "crossing: [1]\nunits:\n  - {name: a, number: 1, speed: 0, path: [1, 2], start: {front: 1}}\n",
			want: "speed must be positive",
		},
		{
			name: "start off path",
			yaml: "crossing: [1]\nunits:\n  - {name: a, number: 1, speed: 1, path: [1, 2], start: {front: 3}}\n",
			want: "not on the path",
		},
		{
			name: "duplicate number",
			yaml: "crossing: [1]\nunits:\n  - {name: a, number: 1, speed: 1, path: [1, 2], start: {front: 1}}\n  - {name: b, number: 1, speed: 1, path: [1, 2], start: {front: 1}}\n",
			want: "duplicate number",
		},
		{
			name: "bad switch",
			yaml: "crossing: [1]\nswitches: [{number: 1, position: sideways}]\nunits:\n  - {name: a, number: 1, speed: 1, path: [1, 2], start: {front: 1}}\n",
			want: "sideways",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(strings.NewReader(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadFile_RoundTrip(t *testing.T) {
	data, err := Marshal(Default())
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "layout.yaml")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	l, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, Default(), l)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
