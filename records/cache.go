/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package records

import (
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const cacheSize = 64

type cached struct {
	set    RecordSet
	source Source
}

// cache holds recently loaded collections for a short time. Entries are
// copied on the way in and out so callers own what they get.
//
// Every remove bumps the collection's generation. A load that started
// before a save only reaches the cache if no save finished meanwhile.
type cache struct {
	lru *expirable.LRU[string, cached]

	mu          sync.Mutex
	generations map[string]uint64
}

// newCache returns nil when ttl disables caching; a nil cache misses.
func newCache(ttl time.Duration) *cache {
	if ttl <= 0 {
		return nil
	}
	return &cache{
		lru:         expirable.NewLRU[string, cached](cacheSize, nil, ttl),
		generations: make(map[string]uint64),
	}
}

func (c *cache) get(name string) (RecordSet, Source, bool) {
	if c == nil {
		return nil, SourceLocal, false
	}

	entry, ok := c.lru.Get(name)
	if !ok {
		return nil, SourceLocal, false
	}

	return entry.set.Clone(), entry.source, true
}

func (c *cache) generation(name string) uint64 {
	if c == nil {
		return 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	return c.generations[name]
}

// add stores set unless name was removed since gen was read.
func (c *cache) add(name string, gen uint64, set RecordSet, source Source) {
	if c == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.generations[name] != gen {
		return
	}
	c.lru.Add(name, cached{set: set.Clone(), source: source})
}

func (c *cache) remove(name string) {
	if c == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.generations[name]++
	c.lru.Remove(name)
}

// Clone returns a deep copy of s.
func (s RecordSet) Clone() RecordSet {
	if s == nil {
		return nil
	}

	out := make(RecordSet, len(s))
	for k, v := range s {
		out[k] = cloneValue(v)
	}

	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case RecordSet:
		return t.Clone()
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = cloneValue(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	case map[string]string:
		return maps.Clone(t)
	case []string:
		return slices.Clone(t)
	default:
		return v
	}
}
