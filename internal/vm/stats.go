package vm

import (
	"levython/internal/jit"
	"levython/internal/object"
	"levython/internal/optimizer"
)

// Stats is a snapshot of a VM's counters since it was created.
type Stats struct {
	RunID             string          `yaml:"run_id"`
	Instructions      uint64          `yaml:"instructions"`
	Calls             uint64          `yaml:"calls"`
	NativeCalls       uint64          `yaml:"native_calls"`
	Superinstructions uint64          `yaml:"superinstructions"`
	SkippedIterations uint64          `yaml:"skipped_iterations"`
	InlineCaches      ICStats         `yaml:"inline_caches"`
	Optimizer         optimizer.Stats `yaml:"optimizer"`
	JIT               jit.Stats       `yaml:"jit"`
	Heap              object.Stats    `yaml:"heap"`
}

func (vm *VM) Stats() Stats {
	s := Stats{
		RunID:             vm.RunID,
		Instructions:      vm.counters.instructions,
		Calls:             vm.counters.calls,
		NativeCalls:       vm.counters.nativeCalls,
		Superinstructions: vm.counters.superinstructions,
		SkippedIterations: vm.counters.skipped,
		Optimizer:         vm.opt.Stats(),
		JIT:               vm.jit.Stats(),
		Heap:              vm.heap.Stats(),
	}
	for _, ci := range vm.chunks {
		s.InlineCaches.add(&ci.caches)
	}
	return s
}

// CallSite returns the inline cache of the CALL at offset in chunk name, for
// inspection. It returns nil when that call has not run.
func (vm *VM) CallSite(name string, offset int) *InlineCache {
	for c, ci := range vm.chunks {
		if c.Name == name {
			if ic := ci.caches.Peek(offset); ic != nil {
				return ic
			}
		}
	}
	return nil
}
