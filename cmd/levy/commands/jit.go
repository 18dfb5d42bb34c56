package commands

import (
	"fmt"
	"io"

	"levython/internal/errors"
	"levython/internal/jit"
)

// JITCommand lists the native kernel menu, or prints the machine code of
// one kernel. `levy jit [name] [--ir]`
func JITCommand(opts *Options, stdout io.Writer) error {
	if _, err := opts.Config(); err != nil {
		return err
	}
	if len(opts.Args) == 0 {
		if !jit.Supported {
			fmt.Fprintln(stdout, "# native execution is not available on this platform")
		}
		for _, k := range jit.Kernels() {
			code, err := k.Assemble()
			if err != nil {
				return errors.Wrapf(err, "cannot assemble %s", k.Name)
			}
			fmt.Fprintf(stdout, "%-10s arity %d  domain [%d, %d]  %3d bytes\n", k.Name, k.Arity, k.Min, k.Max, len(code))
		}
		return nil
	}

	k, ok := jit.Find(opts.Args[0], 1)
	if !ok {
		return errors.New("no kernel named " + opts.Args[0])
	}
	if opts.IR {
		ir, err := k.LLVMIR()
		if err != nil {
			return err
		}
		fmt.Fprint(stdout, ir)
		return nil
	}
	code, err := k.Assemble()
	if err != nil {
		return errors.Wrapf(err, "cannot assemble %s", k.Name)
	}
	fmt.Fprintf(stdout, "; %s/%d, %d bytes\n", k.Name, k.Arity, len(code))
	return jit.Disassemble(stdout, code)
}
