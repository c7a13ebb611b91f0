// Package catalog loads the immutable, process-wide set of avatar
// emoji ids available for rooms to draw from.
package catalog

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/concerto-app/theatre/internal/model"
)

// Catalog is the read-only set of avatar emoji ids loaded at startup.
// Safe for concurrent reads from any number of rooms.
type Catalog struct {
	ordered []string
	set     map[string]struct{}
}

// Load reads a newline-delimited list of hex emoji ids from path.
// Blank lines are rejected. Duplicate ids collapse into one entry.
func Load(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	defer f.Close()
	return parse(f, path)
}

func parse(r io.Reader, path string) (*Catalog, error) {
	scanner := bufio.NewScanner(r)
	set := make(map[string]struct{})
	var ordered []string

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			return nil, fmt.Errorf("catalog: %s: blank line not allowed", path)
		}
		if _, seen := set[line]; seen {
			continue
		}
		set[line] = struct{}{}
		ordered = append(ordered, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("catalog: %s: %w", path, err)
	}
	if len(ordered) == 0 {
		return nil, fmt.Errorf("catalog: %s: no entries", path)
	}

	return &Catalog{ordered: ordered, set: set}, nil
}

// IDs returns the catalog's ids in load order. Callers must not mutate
// the returned slice.
func (c *Catalog) IDs() []string {
	return c.ordered
}

// Contains reports whether id is part of the catalog.
func (c *Catalog) Contains(id string) bool {
	_, ok := c.set[id]
	return ok
}

// Entries returns the catalog as a slice of model.Emoji, the shape the
// GET /entries response serializes.
func (c *Catalog) Entries() []model.Emoji {
	entries := make([]model.Emoji, len(c.ordered))
	for i, id := range c.ordered {
		entries[i] = model.Emoji{ID: id}
	}
	return entries
}
