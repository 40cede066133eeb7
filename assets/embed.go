// assets/embed.go
//
// Files compiled into the binary: the default preset layouts and the SQL
// migrations applied by internal/db.

package assets

import (
	"bufio"
	"embed"
	"io"
	"io/fs"
	"strings"
)

//go:embed presets.txt sql/*.sql
var FS embed.FS

// ReadLines returns the trimmed lines of r, skipping blanks and '#' comments.
func ReadLines(r io.Reader) ([]string, error) {
	var out []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		s := strings.TrimSpace(sc.Text())
		if s == "" || strings.HasPrefix(s, "#") {
			continue
		}
		out = append(out, s)
	}
	return out, sc.Err()
}

// PresetLines returns the non-comment lines of the embedded preset file.
func PresetLines() ([]string, error) {
	f, err := FS.Open("presets.txt")
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadLines(f)
}

// Migrations returns the embedded migration directory.
func Migrations() fs.FS {
	sub, err := fs.Sub(FS, "sql")
	if err != nil {
		panic(err)
	}
	return sub
}
