package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/kr/pretty"
	"github.com/stretchr/testify/require"
)

func TestParseOverridesDefaults(t *testing.T) {
	c, err := Parse([]byte(`
[vm]
max_frames = 64

[optimizer]
superinstructions = false
deopt_threshold = 3

[jit]
enabled = false
`))
	require.NoError(t, err)

	want := Default()
	want.VM.MaxFrames = 64
	want.Optimizer.Superinstructions = false
	want.Optimizer.DeoptThreshold = 3
	want.JIT.Enabled = false
	if diff := pretty.Diff(want, c); len(diff) > 0 {
		t.Fatalf("config mismatch:\n%v", diff)
	}
}

func TestParseRejectsBadInput(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"unknown key", "[vm]\nmax_stak = 10\n"},
		{"out of range", "[vm]\nmax_frames = 1\n"},
		{"syntax", "[vm\n"},
		{"wrong type", "[jit]\nenabled = 3\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			require.Error(t, err)
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "levy.toml")
	require.NoError(t, os.WriteFile(path, []byte("[log]\nverbosity = 2\n"), 0o644))

	c, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 2, c.Log.Verbosity)
	require.Equal(t, DefaultMaxStack, c.VM.MaxStack)

	_, err = Load(filepath.Join(dir, "missing.toml"))
	require.Error(t, err)
}

func TestNaiveDisablesOptimizations(t *testing.T) {
	c := Naive()
	require.False(t, c.Optimizer.Superinstructions)
	require.False(t, c.Optimizer.InlineCaches)
	require.False(t, c.Optimizer.Peephole)
	require.False(t, c.JIT.Enabled)
	require.NoError(t, c.Validate())
}

func TestDisableOptimizationsKeepsLimits(t *testing.T) {
	c, err := Parse([]byte(`
[vm]
max_frames = 64

[optimizer]
deopt_threshold = 3
`))
	require.NoError(t, err)
	c.DisableOptimizations()

	want := Naive()
	want.VM.MaxFrames = 64
	want.Optimizer.DeoptThreshold = 3
	require.Equal(t, want, c, pretty.Sprint(c))
}
