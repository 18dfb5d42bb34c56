package jit

import (
	"levython/internal/optimizer"
	"levython/internal/value"

	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("levython.jit")

// Native is a compiled kernel ready to call.
type Native struct {
	Kernel *Kernel
	Code   []byte

	fn     func(int64) int64
	domain optimizer.Guard
	Calls  uint64
}

// Call runs the kernel on v. ok is false when v is outside the kernel's
// domain or the result does not fit a boxed integer; the caller then runs
// the interpreted function instead.
func (n *Native) Call(v value.Value) (value.Value, bool) {
	if !n.domain.Check(v) {
		return value.None, false
	}
	r := n.fn(v.AsInt())
	n.Calls++
	if n.Kernel.Bool {
		return value.Bool(r != 0), true
	}
	if !value.FitsInt(r) {
		return value.None, false
	}
	return value.Int(r), true
}

// Cache compiles kernels on first use and keeps them for the lifetime of
// the VM that owns it.
type Cache struct {
	mem     *Memory
	natives map[kernelKey]*Native
	failed  map[kernelKey]bool
	enabled bool
}

func NewCache(enabled bool) *Cache {
	return &Cache{
		mem:     NewMemory(),
		natives: make(map[kernelKey]*Native),
		failed:  make(map[kernelKey]bool),
		enabled: enabled && Supported,
	}
}

// Lookup returns the native kernel for a function with exactly this name
// and arity, compiling it the first time. It never returns a kernel when the
// cache is disabled or the platform cannot run native code.
func (c *Cache) Lookup(name string, arity int) (*Native, bool) {
	if !c.enabled {
		return nil, false
	}
	key := kernelKey{name, arity}
	if n, ok := c.natives[key]; ok {
		return n, true
	}
	if c.failed[key] {
		return nil, false
	}
	k, ok := kernels[key]
	if !ok {
		c.failed[key] = true
		return nil, false
	}
	n, err := c.compile(k)
	if err != nil {
		log.Warningf("cannot compile %s/%d: %s", name, arity, err)
		c.failed[key] = true
		return nil, false
	}
	c.natives[key] = n
	log.Infof("compiled %s/%d: %d bytes", name, arity, len(n.Code))
	return n, true
}

func (c *Cache) compile(k *Kernel) (*Native, error) {
	code, err := k.Assemble()
	if err != nil {
		return nil, err
	}
	installed, err := c.mem.Install(code)
	if err != nil {
		return nil, err
	}
	return &Native{Kernel: k, Code: installed, fn: entry(installed), domain: k.Domain()}, nil
}

// Stats is the JIT section of the VM statistics.
type Stats struct {
	Enabled  bool   `yaml:"enabled"`
	Compiled int    `yaml:"compiled"`
	Calls    uint64 `yaml:"native_calls"`
	Bytes    int    `yaml:"mapped_bytes"`
}

func (c *Cache) Stats() Stats {
	s := Stats{Enabled: c.enabled, Compiled: len(c.natives), Bytes: c.mem.Size()}
	for _, n := range c.natives {
		s.Calls += n.Calls
	}
	return s
}

// Close releases the executable memory. Natives from this cache must not be
// called afterwards.
func (c *Cache) Close() error {
	c.natives = make(map[kernelKey]*Native)
	return c.mem.Close()
}
