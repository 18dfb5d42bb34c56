package commands

import (
	"context"
	"fmt"
	"io"
	"runtime"
	"time"

	"levython/internal/config"
	"levython/internal/errors"
	"levython/internal/vm"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"
)

// BenchResult is one configuration run on several independent VMs at once.
type BenchResult struct {
	Instances int
	Elapsed   time.Duration
	Stats     []vm.Stats
}

// Instructions sums the instructions executed by every instance.
func (b *BenchResult) Instructions() uint64 {
	var n uint64
	for _, s := range b.Stats {
		n += s.Instructions
	}
	return n
}

// Bench runs the demo on n VMs in parallel. Each instance compiles the
// program into its own heap; VMs share nothing.
func Bench(ctx context.Context, d *Demo, cfg *config.Config, n int) (*BenchResult, error) {
	r := &BenchResult{Instances: n, Stats: make([]vm.Stats, n)}
	g, ctx := errgroup.WithContext(ctx)
	start := time.Now()
	for i := 0; i < n; i++ {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res, err := Execute(d.Build(), cfg, io.Discard)
			if res == nil {
				return err
			}
			defer res.Machine.Close()
			r.Stats[i] = res.Machine.Stats()
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, errors.Wrapf(err, "benchmark %s", d.Name)
	}
	r.Elapsed = time.Since(start)
	return r, nil
}

// BenchCommand compares the naive and the configured engine on a demo.
// `levy bench [demo] [-n instances]`
func BenchCommand(opts *Options, stdout io.Writer) error {
	name := "range-sum"
	if len(opts.Args) > 0 {
		name = opts.Args[0]
	}
	d, ok := FindDemo(name)
	if !ok {
		return errors.New("unknown demo " + name)
	}
	cfg, err := opts.Config()
	if err != nil {
		return err
	}
	n := opts.Instances
	if n == 0 {
		n = runtime.NumCPU()
	}

	naive := *cfg
	naive.DisableOptimizations()

	fmt.Fprintf(stdout, "%s on %d instances\n", d.Name, n)
	for _, c := range []struct {
		label string
		cfg   *config.Config
	}{{"naive", &naive}, {"adaptive", cfg}} {
		r, err := Bench(context.Background(), d, c.cfg, n)
		if err != nil {
			return err
		}
		var super, native uint64
		for _, s := range r.Stats {
			super += s.Superinstructions
			native += s.NativeCalls
		}
		fmt.Fprintf(stdout, "  %-9s %12s  %s instructions, %s superinstructions, %s native calls\n",
			c.label, r.Elapsed.Round(time.Microsecond),
			humanize.Comma(int64(r.Instructions())), humanize.Comma(int64(super)), humanize.Comma(int64(native)))
	}
	return nil
}
