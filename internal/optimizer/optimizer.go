package optimizer

import (
	"levython/internal/bytecode"
	"levython/internal/config"
)

// Optimizer bundles the adaptive state one VM keeps across a run.
type Optimizer struct {
	Config   config.Optimizer
	Deopts   *Deopts
	Profiler *Profiler

	versions map[*bytecode.Chunk]*Optimized
	failed   map[*bytecode.Chunk]bool
}

func New(cfg config.Optimizer) *Optimizer {
	return &Optimizer{
		Config:   cfg,
		Deopts:   NewDeopts(cfg.DeoptThreshold),
		Profiler: NewProfiler(cfg.HotLoopThreshold, cfg.HotCallThreshold),
		versions: make(map[*bytecode.Chunk]*Optimized),
		failed:   make(map[*bytecode.Chunk]bool),
	}
}

// Version returns the peephole version of c, building it on first request.
// It returns nil when the peephole pass is off, when it failed, or when it
// found nothing to rewrite.
func (o *Optimizer) Version(c *bytecode.Chunk) *Optimized {
	if !o.Config.Peephole || o.failed[c] {
		return nil
	}
	if v, ok := o.versions[c]; ok {
		return v
	}
	v, err := Optimize(c)
	if err != nil {
		log.Warningf("%s", err)
		o.failed[c] = true
		return nil
	}
	if !v.Changed() {
		v = nil
	}
	o.versions[c] = v
	return v
}

// Stats is the optimizer section of the VM statistics.
type Stats struct {
	Profile       ProfileStats `yaml:"profile"`
	Deopts        uint64       `yaml:"deopts"`
	DisabledSites int          `yaml:"disabled_sites"`
	Versions      int          `yaml:"optimized_chunks"`
}

func (o *Optimizer) Stats() Stats {
	s := Stats{
		Profile:       o.Profiler.Stats(),
		Deopts:        o.Deopts.Total(),
		DisabledSites: o.Deopts.Disabled(),
	}
	for _, v := range o.versions {
		if v != nil {
			s.Versions++
		}
	}
	return s
}
