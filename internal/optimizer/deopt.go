package optimizer

import (
	"strconv"

	"levython/internal/bytecode"

	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("levython.optimizer")

// Site is one instruction of one chunk: a loop back-edge, a call or a
// guarded instruction.
type Site struct {
	Chunk  *bytecode.Chunk
	Offset int
}

func (s Site) String() string {
	if s.Chunk == nil {
		return "?"
	}
	return s.Chunk.Name + "@" + strconv.Itoa(s.Offset)
}

// Deopts counts guard failures per site. Once a site has failed more than
// threshold times it is disabled and stays on the generic path for the rest of the
// run.
type Deopts struct {
	threshold int
	counts    map[Site]int
	disabled  map[Site]bool
	total     uint64
}

func NewDeopts(threshold int) *Deopts {
	return &Deopts{
		threshold: threshold,
		counts:    make(map[Site]int),
		disabled:  make(map[Site]bool),
	}
}

// Deopt records a guard failure at site and reports whether the site is now
// disabled.
func (d *Deopts) Deopt(site Site, reason string) bool {
	d.total++
	if d.disabled[site] {
		return true
	}
	d.counts[site]++
	n := d.counts[site]
	log.Debugf("deopt at %s (%d): %s", site, n, reason)
	if n > d.threshold {
		d.disabled[site] = true
		log.Warningf("disabling specialization at %s after %d deopts", site, n)
		return true
	}
	return false
}

// Enabled is false once the site crossed the deopt threshold.
func (d *Deopts) Enabled(site Site) bool { return !d.disabled[site] }

func (d *Deopts) Count(site Site) int { return d.counts[site] }

// Total counts every recorded failure, including ones at disabled sites.
func (d *Deopts) Total() uint64 { return d.total }

// Disabled returns the number of disabled sites.
func (d *Deopts) Disabled() int { return len(d.disabled) }
