package graph

import (
	"strconv"
	"strings"
	"sync"
)

// ID prefixes for generated entity ids.
const (
	nodeIDPrefix       = "node"
	groupIDPrefix      = "group"
	annotationIDPrefix = "annotation"
)

// IDAllocator hands out monotonically increasing ids per prefix. Ids are
// unique for the life of the store by construction: counters only move
// forward, and Observe bumps them past any id seen in loaded data.
type IDAllocator struct {
	mu       sync.Mutex
	counters map[string]int
}

func NewIDAllocator() *IDAllocator {
	return &IDAllocator{counters: make(map[string]int)}
}

// Next returns a fresh id for the prefix, e.g. "node-7".
func (a *IDAllocator) Next(prefix string) string {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.counters[prefix]++

	return prefix + "-" + strconv.Itoa(a.counters[prefix])
}

// Observe records an existing id so future allocations never collide with
// it. Ids that don't follow the "prefix-N" shape are ignored.
func (a *IDAllocator) Observe(id string) {
	idx := strings.LastIndex(id, "-")
	if idx <= 0 {
		return
	}

	n, err := strconv.Atoi(id[idx+1:])
	if err != nil {
		return
	}

	prefix := id[:idx]

	a.mu.Lock()
	defer a.mu.Unlock()

	if n > a.counters[prefix] {
		a.counters[prefix] = n
	}
}

// Counter returns the current counter value for a prefix.
func (a *IDAllocator) Counter(prefix string) int {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.counters[prefix]
}
