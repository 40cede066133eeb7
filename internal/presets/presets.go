// internal/presets/presets.go
//
// Preset marker layouts for new sessions.
//
// Responsibilities:
//   - Load layouts from PRESETS_FILE, or fall back to the embedded default
//     list in assets/presets.txt.
//   - Look presets up by name, list them, or pick one at random for a shape.
//
// File format, one preset per line ('#' starts a comment):
//
//	<name> <rings>x<angles> <ring0>,<ring1>,...
//
// Ring values are bitmasks, hex with a 0x prefix or decimal.
//
// Initialization is run once (sync.Once).

package presets

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/robalobadob/rings/assets"
	"github.com/robalobadob/rings/internal/grid"
)

var (
	ErrUnknownPreset = errors.New("unknown preset")
	ErrNoPresets     = errors.New("no preset for shape")
	ErrBadPreset     = errors.New("malformed preset line")
)

// Preset is a named starting layout.
type Preset struct {
	Name  string    `json:"name"`
	Dims  grid.Dims `json:"dims"`
	Rings []uint64  `json:"rings"`
}

// Markers returns the number of markers in the layout.
func (p Preset) Markers() int {
	n := 0
	for _, r := range p.Rings {
		for ; r != 0; r &= r - 1 {
			n++
		}
	}
	return n
}

var (
	initOnce   sync.Once
	loaded     []Preset
	byName     map[string]Preset
	initialErr error
)

// Init loads presets exactly once.
func Init() error {
	initOnce.Do(func() {
		var lines []string
		var err error
		if path := os.Getenv("PRESETS_FILE"); path != "" {
			lines, err = readFile(path)
		} else {
			lines, err = assets.PresetLines()
		}
		if err != nil {
			initialErr = err
			return
		}
		loaded, initialErr = Parse(lines)
		byName = make(map[string]Preset, len(loaded))
		for _, p := range loaded {
			byName[p.Name] = p
		}
		if initialErr == nil && len(loaded) == 0 {
			initialErr = errors.New("presets: list is empty")
		}
	})
	return initialErr
}

func readFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return assets.ReadLines(f)
}

// Parse decodes preset lines. Blank and comment lines are skipped.
func Parse(lines []string) ([]Preset, error) {
	var out []Preset
	seen := make(map[string]bool)
	for i, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		p, err := parseLine(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i+1, err)
		}
		if seen[p.Name] {
			return nil, fmt.Errorf("%w: line %d: duplicate name %q", ErrBadPreset, i+1, p.Name)
		}
		seen[p.Name] = true
		out = append(out, p)
	}
	return out, nil
}

func parseLine(line string) (Preset, error) {
	fields := strings.Fields(line)
	if len(fields) != 3 {
		return Preset{}, fmt.Errorf("%w: want <name> <rings>x<angles> <masks>, got %q", ErrBadPreset, line)
	}
	var d grid.Dims
	if _, err := fmt.Sscanf(fields[1], "%dx%d", &d.Rings, &d.Angles); err != nil {
		return Preset{}, fmt.Errorf("%w: shape %q", ErrBadPreset, fields[1])
	}
	masks := strings.Split(fields[2], ",")
	rings := make([]uint64, 0, len(masks))
	for _, m := range masks {
		v, err := strconv.ParseUint(strings.TrimSpace(m), 0, 64)
		if err != nil {
			return Preset{}, fmt.Errorf("%w: mask %q", ErrBadPreset, m)
		}
		rings = append(rings, v)
	}
	// Decode validates shape, ring count and stray bits.
	if _, err := grid.Decode(d, rings); err != nil {
		return Preset{}, fmt.Errorf("%w: %s: %v", ErrBadPreset, fields[0], err)
	}
	return Preset{Name: fields[0], Dims: d, Rings: rings}, nil
}

// All returns every loaded preset sorted by name.
func All() []Preset {
	out := append([]Preset(nil), loaded...)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Get looks a preset up by name.
func Get(name string) (Preset, error) {
	if p, ok := byName[name]; ok {
		return p, nil
	}
	return Preset{}, fmt.Errorf("%w: %q", ErrUnknownPreset, name)
}

// Random returns a random preset of shape d.
func Random(d grid.Dims) (Preset, error) {
	var fits []Preset
	for _, p := range loaded {
		if p.Dims == d {
			fits = append(fits, p)
		}
	}
	if len(fits) == 0 {
		return Preset{}, fmt.Errorf("%w: %dx%d", ErrNoPresets, d.Rings, d.Angles)
	}
	n, _ := rand.Int(rand.Reader, big.NewInt(int64(len(fits))))
	return fits[n.Int64()], nil
}

// Stats returns the number of loaded presets and distinct shapes.
func Stats() (presets int, shapes int) {
	seen := make(map[grid.Dims]struct{})
	for _, p := range loaded {
		seen[p.Dims] = struct{}{}
	}
	return len(loaded), len(seen)
}
