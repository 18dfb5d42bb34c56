// Package config handles levy.toml engine configuration.
package config

import (
	"os"

	"levython/internal/errors"

	"github.com/BurntSushi/toml"
	"golang.org/x/exp/constraints"
)

// Config is the engine configuration. The zero value is not usable; start
// from Default.
type Config struct {
	VM        VM        `toml:"vm"`
	Optimizer Optimizer `toml:"optimizer"`
	JIT       JIT       `toml:"jit"`
	Log       Log       `toml:"log"`
}

// VM sizes the interpreter's bounded stacks.
type VM struct {
	MaxStack     int `toml:"max_stack"`
	MaxFrames    int `toml:"max_frames"`
	MaxIterators int `toml:"max_iterators"`
	MaxHandlers  int `toml:"max_handlers"`
}

// Optimizer toggles the adaptive layer.
type Optimizer struct {
	Superinstructions bool `toml:"superinstructions"`
	InlineCaches      bool `toml:"inline_caches"`
	Peephole          bool `toml:"peephole"`
	HotLoopThreshold  int  `toml:"hot_loop_threshold"`
	HotCallThreshold  int  `toml:"hot_call_threshold"`
	DeoptThreshold    int  `toml:"deopt_threshold"`
}

type JIT struct {
	Enabled bool `toml:"enabled"`
}

type Log struct {
	Verbosity int `toml:"verbosity"`
}

const (
	DefaultMaxStack     = 65536
	DefaultMaxFrames    = 1024
	DefaultMaxIterators = 256
	DefaultMaxHandlers  = 256

	DefaultHotLoopThreshold = 50
	DefaultHotCallThreshold = 100
	DefaultDeoptThreshold   = 10
)

var (
	errUnknownKey = errors.New("unknown configuration key")
	errOutOfRange = errors.New("configuration value out of range")
)

func Default() *Config {
	return &Config{
		VM: VM{
			MaxStack:     DefaultMaxStack,
			MaxFrames:    DefaultMaxFrames,
			MaxIterators: DefaultMaxIterators,
			MaxHandlers:  DefaultMaxHandlers,
		},
		Optimizer: Optimizer{
			Superinstructions: true,
			InlineCaches:      true,
			Peephole:          true,
			HotLoopThreshold:  DefaultHotLoopThreshold,
			HotCallThreshold:  DefaultHotCallThreshold,
			DeoptThreshold:    DefaultDeoptThreshold,
		},
		JIT: JIT{Enabled: true},
	}
}

// Naive returns the defaults with every optimization switched off.
func Naive() *Config {
	c := Default()
	c.DisableOptimizations()
	return c
}

// DisableOptimizations turns off superinstructions, inline caches, the
// peephole pass and the JIT. Limits and thresholds are kept.
func (c *Config) DisableOptimizations() {
	c.Optimizer.Superinstructions = false
	c.Optimizer.InlineCaches = false
	c.Optimizer.Peephole = false
	c.JIT.Enabled = false
}

// Load reads a levy.toml file. Keys missing from the file keep their
// defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot read %s", path)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "parse error in %s", path)
	}
	return c, nil
}

// Parse decodes TOML text over the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	c := Default()
	md, err := toml.Decode(string(data), c)
	if err != nil {
		return nil, err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, errors.Wrapf(errUnknownKey, "%s", undecoded[0].String())
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks every bound.
func (c *Config) Validate() error {
	checks := []error{
		checkRange("vm.max_stack", c.VM.MaxStack, 256, 1<<24),
		checkRange("vm.max_frames", c.VM.MaxFrames, 2, 1<<20),
		checkRange("vm.max_iterators", c.VM.MaxIterators, 1, 1<<16),
		checkRange("vm.max_handlers", c.VM.MaxHandlers, 1, 1<<16),
		checkRange("optimizer.hot_loop_threshold", c.Optimizer.HotLoopThreshold, 1, 1<<30),
		checkRange("optimizer.hot_call_threshold", c.Optimizer.HotCallThreshold, 1, 1<<30),
		checkRange("optimizer.deopt_threshold", c.Optimizer.DeoptThreshold, 0, 1<<30),
		checkRange("log.verbosity", c.Log.Verbosity, -4, 4),
	}
	for _, err := range checks {
		if err != nil {
			return err
		}
	}
	return nil
}

func checkRange[T constraints.Integer](key string, v, lo, hi T) error {
	if v < lo || v > hi {
		return errors.Wrapf(errOutOfRange, "%s = %d (allowed %d..%d)", key, v, lo, hi)
	}
	return nil
}
