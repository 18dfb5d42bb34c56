package commands

import (
	"fmt"
	"io"
	"os"
	"time"

	"levython/internal/ast"
	"levython/internal/bytecode"
	"levython/internal/compiler"
	"levython/internal/config"
	"levython/internal/errors"
	"levython/internal/object"
	"levython/internal/optimizer"
	"levython/internal/vm"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"
)

// LoadProgram reads a YAML-serialized program tree.
func LoadProgram(path string) (*ast.Node, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot read %s", path)
	}
	prog, err := ast.DecodeYAML(data)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid program in %s", path)
	}
	return prog, nil
}

// Result is one finished run.
type Result struct {
	Machine *vm.VM
	Value   string
	Elapsed time.Duration
}

// Execute compiles prog into a fresh heap and runs it on a new VM. The
// machine is returned even when the run fails, for its statistics.
func Execute(prog *ast.Node, cfg *config.Config, out io.Writer) (*Result, error) {
	heap := object.NewHeap()
	chunk, err := compiler.New(heap).Compile(prog)
	if err != nil {
		return nil, err
	}
	machine := vm.New(heap, cfg, vm.WithOutput(out))
	start := time.Now()
	v, err := machine.Run(chunk)
	r := &Result{Machine: machine, Value: heap.Display(v), Elapsed: time.Since(start)}
	return r, err
}

// RunCommand runs each program file in turn. `levy run file.yaml [--stats]`
func RunCommand(opts *Options, stdout, stderr io.Writer) error {
	if len(opts.Args) == 0 {
		return errors.New("run: no program file given")
	}
	cfg, err := opts.Config()
	if err != nil {
		return err
	}
	for _, path := range opts.Args {
		prog, err := LoadProgram(path)
		if err != nil {
			return err
		}
		r, err := Execute(prog, cfg, stdout)
		if r != nil {
			if opts.Stats {
				if serr := writeStats(stderr, r); serr != nil {
					return serr
				}
			}
			r.Machine.Close()
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// StatsCommand runs a program with its output discarded and prints the VM
// counters as YAML.
func StatsCommand(opts *Options, stdout io.Writer) error {
	if len(opts.Args) != 1 {
		return errors.New("stats: expected one program file")
	}
	cfg, err := opts.Config()
	if err != nil {
		return err
	}
	prog, err := LoadProgram(opts.Args[0])
	if err != nil {
		return err
	}
	r, err := Execute(prog, cfg, io.Discard)
	if r == nil {
		return err
	}
	defer r.Machine.Close()
	if serr := writeStats(stdout, r); serr != nil {
		return serr
	}
	return err
}

func writeStats(w io.Writer, r *Result) error {
	s := r.Machine.Stats()
	fmt.Fprintf(w, "# %s instructions in %s, heap %s\n",
		humanize.Comma(int64(s.Instructions)), r.Elapsed.Round(time.Microsecond), humanize.Bytes(uint64(s.Heap.Bytes)))
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(s); err != nil {
		return errors.Wrap(err, "cannot encode statistics")
	}
	return enc.Close()
}

// DisasmCommand prints the bytecode of a program: the script chunk and
// every function it defines. With --optimized the peephole version of each
// chunk follows when the pass changed it.
func DisasmCommand(opts *Options, stdout io.Writer) error {
	if len(opts.Args) != 1 {
		return errors.New("disasm: expected one program file")
	}
	if _, err := opts.Config(); err != nil {
		return err
	}
	prog, err := LoadProgram(opts.Args[0])
	if err != nil {
		return err
	}
	heap := object.NewHeap()
	chunk, err := compiler.New(heap).Compile(prog)
	if err != nil {
		return err
	}
	for _, c := range chunks(heap, chunk) {
		if err := bytecode.Disassemble(stdout, c, heap); err != nil {
			return err
		}
		if !opts.Optimized {
			continue
		}
		o, err := optimizer.Optimize(c)
		if err != nil {
			return err
		}
		if o.Changed() {
			fmt.Fprintf(stdout, "-- peephole: %d folded, %d shifts, %d jumps removed --\n", o.Folded, o.Shifts, o.Removed)
			if err := bytecode.Disassemble(stdout, o.Code, heap); err != nil {
				return err
			}
		}
	}
	return nil
}

// chunks lists root and the chunks of the functions in its constant pool,
// depth first.
func chunks(heap *object.Heap, root *bytecode.Chunk) []*bytecode.Chunk {
	out := []*bytecode.Chunk{root}
	for _, k := range root.Constants {
		if fn, ok := heap.Function(k); ok {
			out = append(out, chunks(heap, fn.Chunk)...)
		}
	}
	return out
}
