package vm

import (
	"levython/internal/optimizer"
	"levython/internal/value"
)

// Inline caching for call sites.
//
// Every chunk owns a fixed table of ICSize caches. A call site selects its
// cache by bytecode offset; when two sites share a slot the later one takes
// it over and the cache starts again from empty.

// CacheState is the state of one call-site cache.
type CacheState uint8

const (
	CacheUninitialized CacheState = iota // no call seen yet
	CacheMonomorphic                     // one callee
	CachePolymorphic                     // two callees
	CacheMegamorphic                     // more than two, every call does the full lookup
)

func (s CacheState) String() string {
	switch s {
	case CacheMonomorphic:
		return "monomorphic"
	case CachePolymorphic:
		return "polymorphic"
	case CacheMegamorphic:
		return "megamorphic"
	}
	return "uninitialized"
}

// ICSize is the number of caches per chunk.
const ICSize = 64

// MaxPolymorphic is the number of callees a polymorphic cache holds.
const MaxPolymorphic = 2

type cacheEntry struct {
	guard  optimizer.Guard
	target *funcInfo
}

// InlineCache remembers the callees seen at one call site.
type InlineCache struct {
	State   CacheState
	site    int // call-site offset + 1; 0 while the slot is unused
	entries [MaxPolymorphic]cacheEntry
	count   int

	Hits   uint64
	Misses uint64
}

// Lookup returns the resolved target for callee, or nil on a miss.
func (ic *InlineCache) Lookup(callee value.Value) *funcInfo {
	switch ic.State {
	case CacheMonomorphic, CachePolymorphic:
		for i := 0; i < ic.count; i++ {
			if ic.entries[i].guard.Check(callee) {
				ic.Hits++
				return ic.entries[i].target
			}
		}
	}
	ic.Misses++
	return nil
}

// Update records callee after a full lookup and reports whether the state
// changed.
func (ic *InlineCache) Update(callee value.Value, target *funcInfo) bool {
	if target == nil {
		return false
	}
	switch ic.State {
	case CacheUninitialized:
		ic.entries[0] = cacheEntry{optimizer.MonomorphicCallGuard(callee), target}
		ic.count = 1
		ic.State = CacheMonomorphic
		return true

	case CacheMonomorphic, CachePolymorphic:
		for i := 0; i < ic.count; i++ {
			if ic.entries[i].guard.Check(callee) {
				return false
			}
		}
		if ic.count < MaxPolymorphic {
			ic.entries[ic.count] = cacheEntry{optimizer.MonomorphicCallGuard(callee), target}
			ic.count++
			ic.State = CachePolymorphic
			return true
		}
		ic.entries = [MaxPolymorphic]cacheEntry{}
		ic.count = 0
		ic.State = CacheMegamorphic
		return true
	}
	return false
}

// Callees is the number of cached callees.
func (ic *InlineCache) Callees() int { return ic.count }

// CacheTable holds the caches of one chunk.
type CacheTable struct {
	caches [ICSize]InlineCache
}

// At returns the cache for the call site at offset.
func (t *CacheTable) At(offset int) *InlineCache {
	ic := &t.caches[offset%ICSize]
	if ic.site != offset+1 {
		*ic = InlineCache{site: offset + 1}
	}
	return ic
}

// Peek returns the cache for offset without claiming the slot.
func (t *CacheTable) Peek(offset int) *InlineCache {
	ic := &t.caches[offset%ICSize]
	if ic.site != offset+1 {
		return nil
	}
	return ic
}

// ICStats aggregates cache states.
type ICStats struct {
	Monomorphic int     `yaml:"monomorphic"`
	Polymorphic int     `yaml:"polymorphic"`
	Megamorphic int     `yaml:"megamorphic"`
	Callees     int     `yaml:"cached_callees"`
	Hits        uint64  `yaml:"hits"`
	Misses      uint64  `yaml:"misses"`
	HitRate     float64 `yaml:"hit_rate"` // percent
}

func (s *ICStats) add(t *CacheTable) {
	for i := range t.caches {
		ic := &t.caches[i]
		if ic.site == 0 {
			continue
		}
		switch ic.State {
		case CacheMonomorphic:
			s.Monomorphic++
		case CachePolymorphic:
			s.Polymorphic++
		case CacheMegamorphic:
			s.Megamorphic++
		}
		s.Callees += ic.Callees()
		s.Hits += ic.Hits
		s.Misses += ic.Misses
	}
	if total := s.Hits + s.Misses; total > 0 {
		s.HitRate = float64(s.Hits) * 100 / float64(total)
	}
}
