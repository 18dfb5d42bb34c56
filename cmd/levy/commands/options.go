// Package commands implements the levy subcommands.
package commands

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"levython/internal/config"
	"levython/internal/errors"

	"github.com/mattn/go-isatty"
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"
)

// Options are the flags shared by every subcommand. Anything that is not a
// flag lands in Args.
type Options struct {
	ConfigPath string
	Verbose    int
	Naive      bool
	Stats      bool
	Optimized  bool
	IR         bool
	Instances  int
	Args       []string
}

// ParseOptions reads flags in any position.
func ParseOptions(args []string) (*Options, error) {
	opts := &Options{}
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "-c" || arg == "--config":
			if i+1 >= len(args) {
				return nil, errors.New(arg + " needs a path")
			}
			i++
			opts.ConfigPath = args[i]
		case arg == "-n" || arg == "--instances":
			if i+1 >= len(args) {
				return nil, errors.New(arg + " needs a number")
			}
			i++
			n, err := strconv.Atoi(args[i])
			if err != nil || n < 1 {
				return nil, errors.New("invalid instance count " + args[i])
			}
			opts.Instances = n
		case arg == "--naive":
			opts.Naive = true
		case arg == "--stats":
			opts.Stats = true
		case arg == "--optimized":
			opts.Optimized = true
		case arg == "--ir":
			opts.IR = true
		case arg == "--verbose":
			opts.Verbose++
		case len(arg) > 1 && strings.Trim(arg, "v") == "-":
			opts.Verbose += len(arg) - 1
		case strings.HasPrefix(arg, "-") && arg != "-":
			return nil, errors.New("unknown flag " + arg)
		default:
			opts.Args = append(opts.Args, arg)
		}
	}
	return opts, nil
}

// Config loads the engine configuration and sets up logging.
func (o *Options) Config() (*config.Config, error) {
	cfg := config.Default()
	if o.ConfigPath != "" {
		var err error
		if cfg, err = config.Load(o.ConfigPath); err != nil {
			return nil, err
		}
	}
	if o.Naive {
		cfg.DisableOptimizations()
	}
	commonlog.Configure(cfg.Log.Verbosity+o.Verbose, nil)
	return cfg, nil
}

// ExitCode maps an error to the process status: 2 for VM invariant
// violations, 1 for everything else.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.IsFatal(err):
		return 2
	}
	return 1
}

// ReportError prints err to w, in red when w is a terminal.
func ReportError(w io.Writer, err error) {
	if f, ok := w.(*os.File); ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())) {
		fmt.Fprintf(w, "\x1b[31m%s\x1b[0m\n", err)
		return
	}
	fmt.Fprintln(w, err)
}
