// internal/daily/daily.go
//
// Deterministic daily puzzle.
// Every player gets the same layout for a given UTC date: marker positions
// are drawn from an HMAC-SHA256 stream keyed by a server salt, so the layout
// cannot be predicted without the salt.

package daily

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/robalobadob/rings/internal/grid"
)

// DateKey returns YYYY-MM-DD in UTC.
func DateKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// draw returns the i-th 64-bit value of the HMAC stream for key.
func draw(salt, key string, i uint64) uint64 {
	h := hmac.New(sha256.New, []byte(salt))
	h.Write([]byte(key))
	var ctr [8]byte
	binary.BigEndian.PutUint64(ctr[:], i)
	h.Write(ctr[:])
	return binary.BigEndian.Uint64(h.Sum(nil)[:8])
}

// Layout places markers distinct cells of a d-shaped grid for date and
// returns the grid's ring encoding.
func Layout(date time.Time, salt string, d grid.Dims, markers int) ([]uint64, error) {
	g, err := grid.New(d)
	if err != nil {
		return nil, err
	}
	if markers < 0 || markers > d.Size() {
		return nil, fmt.Errorf("%w: %d markers on %d cells", grid.ErrInvalidShape, markers, d.Size())
	}

	// Partial Fisher-Yates over cell indices.
	cells := make([]int, d.Size())
	for i := range cells {
		cells[i] = i
	}
	key := DateKey(date)
	for i := 0; i < markers; i++ {
		j := i + int(draw(salt, key, uint64(i+1))%uint64(len(cells)-i))
		cells[i], cells[j] = cells[j], cells[i]
		p := grid.Position{R: cells[i] / d.Angles, Th: cells[i] % d.Angles}
		if err := g.SetMarker(p, true); err != nil {
			return nil, err
		}
	}
	return g.Encode()
}
