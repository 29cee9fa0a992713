// Package capability describes the host application's API surface and
// probes it for the methods the bridge needs.
package capability

import (
	"context"
	"sort"
)

// Method is one callable host function. Arguments are positional.
type Method func(ctx context.Context, args ...any) (any, error)

// Host is the capability set exposed by the CAD application: a namespace of
// named methods. Names are "<namespace>.<method>".
type Host interface {
	// Detected reports whether the host environment is present at all.
	Detected() bool
	Lookup(name string) (Method, bool)
}

// MapHost is a Host backed by a plain map, used for embedding and tests.
type MapHost map[string]Method

func (h MapHost) Detected() bool { return h != nil }

func (h MapHost) Lookup(name string) (Method, bool) {
	m, ok := h[name]
	if !ok || m == nil {
		return nil, false
	}
	return m, true
}

func (h MapHost) Names() []string {
	names := make([]string, 0, len(h))
	for name := range h {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
