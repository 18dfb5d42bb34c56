package optimizer

import (
	"slices"

	"levython/internal/object"
)

// TypeClass summarizes the values a loop stored across its iterations.
type TypeClass uint8

const (
	ClassUnknown TypeClass = iota
	ClassInt
	ClassFloat
	ClassString
	ClassObject
	ClassMixed
)

func (c TypeClass) String() string {
	switch c {
	case ClassInt:
		return "int"
	case ClassFloat:
		return "float"
	case ClassString:
		return "string"
	case ClassObject:
		return "object"
	case ClassMixed:
		return "mixed"
	}
	return "unknown"
}

// Merge folds another observation into the class; two different concrete
// classes make the result mixed.
func (c TypeClass) Merge(o TypeClass) TypeClass {
	switch {
	case o == ClassUnknown || c == o:
		return c
	case c == ClassUnknown:
		return o
	}
	return ClassMixed
}

// Tier is the execution tier of a function.
type Tier uint8

const (
	TierInterpreted Tier = iota // original bytecode
	TierOptimized               // peephole version
	TierPinned                  // deopted too often, original bytecode for good
)

func (t Tier) String() string {
	switch t {
	case TierOptimized:
		return "optimized"
	case TierPinned:
		return "pinned"
	}
	return "interpreted"
}

// LoopProfile is the counter for one loop back-edge.
type LoopProfile struct {
	Site  Site
	Count uint64
	Class TypeClass
	Hot   bool
}

// CallProfile is the counter for one function.
type CallProfile struct {
	Name  string
	Count uint64
	Tier  Tier
}

// Profiler tracks loop back-edges and function calls. The VM asks for a
// profile once per site and then updates it directly, so the hot path does
// not go through a map. A Profiler belongs to one VM.
type Profiler struct {
	hotLoop int
	hotCall int

	loops map[Site]*LoopProfile
	calls map[*object.FunctionObj]*CallProfile
}

func NewProfiler(hotLoop, hotCall int) *Profiler {
	return &Profiler{
		hotLoop: hotLoop,
		hotCall: hotCall,
		loops:   make(map[Site]*LoopProfile),
		calls:   make(map[*object.FunctionObj]*CallProfile),
	}
}

// Loop returns the profile for a loop, creating it on first use.
func (p *Profiler) Loop(site Site) *LoopProfile {
	lp := p.loops[site]
	if lp == nil {
		lp = &LoopProfile{Site: site}
		p.loops[site] = lp
	}
	return lp
}

// RecordLoop counts one execution of the loop's closing instruction and
// reports whether the loop just became hot. Hot loops are only reported;
// nothing is compiled for them.
func (p *Profiler) RecordLoop(lp *LoopProfile, class TypeClass) bool {
	lp.Count++
	lp.Class = lp.Class.Merge(class)
	if !lp.Hot && lp.Count >= uint64(p.hotLoop) {
		lp.Hot = true
		log.Infof("hot loop at %s after %d iterations (%s)", lp.Site, lp.Count, lp.Class)
		return true
	}
	return false
}

// Call returns the profile for a function, creating it on first use.
func (p *Profiler) Call(fn *object.FunctionObj) *CallProfile {
	cp := p.calls[fn]
	if cp == nil {
		cp = &CallProfile{Name: fn.Name}
		p.calls[fn] = cp
	}
	return cp
}

// RecordCall counts a call and reports whether the function just crossed
// the hot threshold and should move to its optimized tier.
func (p *Profiler) RecordCall(cp *CallProfile) bool {
	cp.Count++
	if cp.Tier == TierInterpreted && cp.Count == uint64(p.hotCall) {
		log.Infof("hot function %s after %d calls", cp.Name, cp.Count)
		return true
	}
	return false
}

// HotLoops lists hot loops, busiest first.
func (p *Profiler) HotLoops() []*LoopProfile {
	var hot []*LoopProfile
	for _, lp := range p.loops {
		if lp.Hot {
			hot = append(hot, lp)
		}
	}
	slices.SortFunc(hot, func(a, b *LoopProfile) int {
		switch {
		case a.Count > b.Count:
			return -1
		case a.Count < b.Count:
			return 1
		}
		return a.Site.Offset - b.Site.Offset
	})
	return hot
}

// ProfileStats summarizes the profiler.
type ProfileStats struct {
	Loops        int    `yaml:"loops"`
	HotLoops     int    `yaml:"hot_loops"`
	Functions    int    `yaml:"functions"`
	Optimized    int    `yaml:"optimized_functions"`
	Pinned       int    `yaml:"pinned_functions"`
	TotalCalls   uint64 `yaml:"total_calls"`
	LoopBackEdge uint64 `yaml:"loop_back_edges"`
}

func (p *Profiler) Stats() ProfileStats {
	var s ProfileStats
	s.Loops = len(p.loops)
	for _, lp := range p.loops {
		if lp.Hot {
			s.HotLoops++
		}
		s.LoopBackEdge += lp.Count
	}
	s.Functions = len(p.calls)
	for _, cp := range p.calls {
		s.TotalCalls += cp.Count
		switch cp.Tier {
		case TierOptimized:
			s.Optimized++
		case TierPinned:
			s.Pinned++
		}
	}
	return s
}
