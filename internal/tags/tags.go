// Package tags answers whether a parsed number belongs to a registered
// participant.
package tags

import (
	"errors"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// Default bounds of the range registry.
const (
	DefaultMin = 1
	DefaultMax = 998
)

// Range is an inclusive interval of tag numbers.
type Range struct {
	From int `yaml:"from"`
	To   int `yaml:"to"`
}

// Contains reports whether n lies in r.
func (r Range) Contains(n int) bool { return n >= r.From && n <= r.To }

// Registry holds explicit tag numbers and ranges.
type Registry struct {
	tags   map[int]struct{}
	ranges []Range
}

// NewRange returns a registry accepting every number in [from, to].
func NewRange(from, to int) *Registry {
	return &Registry{ranges: []Range{{From: from, To: to}}}
}

// Known reports whether n is a registered tag.
func (r *Registry) Known(n int) bool {
	if _, ok := r.tags[n]; ok {
		return true
	}
	return slices.ContainsFunc(r.ranges, func(rg Range) bool { return rg.Contains(n) })
}

// Len returns the number of distinct tags in the registry.
func (r *Registry) Len() int {
	n := len(r.tags)
	for _, rg := range r.ranges {
		n += rg.To - rg.From + 1
		for t := range r.tags {
			if rg.Contains(t) {
				n--
			}
		}
	}
	return n
}

type fileFormat struct {
	Tags   []int   `yaml:"tags"`
	Ranges []Range `yaml:"ranges"`
}

// ErrEmptyRegistry is returned for a file listing no tags.
var ErrEmptyRegistry = errors.New("tag registry is empty")

// LoadFile reads a YAML registry:
//
//	tags: [7, 42]
//	ranges:
//	  - {from: 100, to: 199}
func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: registry path comes from configuration
	if err != nil {
		return nil, fmt.Errorf("read tag registry: %w", err)
	}
	var f fileFormat
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse tag registry %s: %w", path, err)
	}
	if len(f.Tags) == 0 && len(f.Ranges) == 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrEmptyRegistry)
	}

	r := &Registry{tags: make(map[int]struct{}, len(f.Tags))}
	for _, t := range f.Tags {
		if t < 0 {
			return nil, fmt.Errorf("tag registry %s: negative tag %d", path, t)
		}
		r.tags[t] = struct{}{}
	}
	for _, rg := range f.Ranges {
		if rg.From > rg.To || rg.From < 0 {
			return nil, fmt.Errorf("tag registry %s: invalid range %d..%d", path, rg.From, rg.To)
		}
		r.ranges = append(r.ranges, rg)
	}
	return r, nil
}
