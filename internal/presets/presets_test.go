package presets

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robalobadob/rings/internal/grid"
)

func TestEmbeddedPresetsLoad(t *testing.T) {
	require.NoError(t, Init())

	n, shapes := Stats()
	assert.Greater(t, n, 5)
	assert.GreaterOrEqual(t, shapes, 1)

	p, err := Get("line-one-off")
	require.NoError(t, err)
	assert.Equal(t, grid.Dims{Rings: 4, Angles: 12}, p.Dims)
	assert.Equal(t, []uint64{1, 1, 1, 2}, p.Rings)
	assert.Equal(t, 4, p.Markers())

	_, err = Get("nope")
	assert.ErrorIs(t, err, ErrUnknownPreset)

	all := All()
	for i := 1; i < len(all); i++ {
		assert.Less(t, all[i-1].Name, all[i].Name)
	}
}

func TestRandomMatchesShape(t *testing.T) {
	require.NoError(t, Init())
	d := grid.Dims{Rings: 4, Angles: 12}
	for i := 0; i < 20; i++ {
		p, err := Random(d)
		require.NoError(t, err)
		assert.Equal(t, d, p.Dims)
	}
	_, err := Random(grid.Dims{Rings: 9, Angles: 40})
	assert.ErrorIs(t, err, ErrNoPresets)
}

func TestParse(t *testing.T) {
	ps, err := Parse([]string{
		"# comment",
		"",
		"a 2x4 0x3,5",
		"b   1x2   0",
	})
	require.NoError(t, err)
	require.Len(t, ps, 2)
	assert.Equal(t, []uint64{3, 5}, ps[0].Rings)
	assert.Equal(t, grid.Dims{Rings: 1, Angles: 2}, ps[1].Dims)

	bad := map[string]string{
		"fields":    "a 2x4",
		"shape":     "a twobyfour 1,2",
		"odd":       "a 2x5 1,2",
		"mask":      "a 2x4 1,zz",
		"count":     "a 2x4 1",
		"stray bit": "a 2x4 0x10,0",
	}
	for name, line := range bad {
		_, err := Parse([]string{line})
		assert.ErrorIs(t, err, ErrBadPreset, name)
	}
	_, err = Parse([]string{"a 1x2 0", "a 1x2 1"})
	assert.ErrorIs(t, err, ErrBadPreset)
}

func TestReadFileSkipsComments(t *testing.T) {
	path := filepath.Join(t.TempDir(), "presets.txt")
	require.NoError(t, os.WriteFile(path, []byte("# mine\n\n  solo 1x2 0x1  \n"), 0o644))

	lines, err := readFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"solo 1x2 0x1"}, lines)

	_, err = readFile(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}
