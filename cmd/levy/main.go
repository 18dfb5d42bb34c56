// cmd/levy/main.go
package main

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"levython/cmd/levy/commands"
	"levython/internal/jit"
)

const VERSION = "0.4.0"

// Build variables - can be set during build with ldflags
var (
	BuildDate = time.Now().Format("2006-01-02")
	GitCommit = "unknown"
)

func main() {
	args := os.Args[1:]
	if len(args) == 0 {
		showUsage()
		return
	}

	switch args[0] {
	case "--help", "-h", "help":
		showUsage()
		return
	case "--version", "version":
		showVersion()
		return
	}

	opts, err := commands.ParseOptions(args[1:])
	if err != nil {
		fail(err)
	}

	switch args[0] {
	case "run":
		err = commands.RunCommand(opts, os.Stdout, os.Stderr)
	case "stats":
		err = commands.StatsCommand(opts, os.Stdout)
	case "disasm":
		err = commands.DisasmCommand(opts, os.Stdout)
	case "demo":
		err = commands.DemoCommand(opts, os.Stdout, os.Stderr)
	case "jit":
		err = commands.JITCommand(opts, os.Stdout)
	case "bench":
		err = commands.BenchCommand(opts, os.Stdout)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", args[0])
		showUsage()
		os.Exit(1)
	}
	if err != nil {
		fail(err)
	}
}

func fail(err error) {
	commands.ReportError(os.Stderr, err)
	os.Exit(commands.ExitCode(err))
}

func showUsage() {
	fmt.Println("Levy - adaptive bytecode engine")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  levy run <program.yaml>...   Run programs (YAML program trees)")
	fmt.Println("  levy stats <program.yaml>    Run a program and print engine counters")
	fmt.Println("  levy disasm <program.yaml>   Print bytecode listings")
	fmt.Println("  levy demo [name]             List or run a built-in program")
	fmt.Println("  levy jit [kernel]            List native kernels or print one")
	fmt.Println("  levy bench [demo]            Compare naive and adaptive engines")
	fmt.Println("  levy version                 Show version information")
	fmt.Println()
	fmt.Println("Flags:")
	fmt.Println("  -c, --config <levy.toml>     Engine configuration")
	fmt.Println("  --naive                      Disable superinstructions, caches, peephole and JIT")
	fmt.Println("  --stats                      Print counters to stderr after a run")
	fmt.Println("  --optimized                  disasm: also print peephole versions")
	fmt.Println("  --ir                         jit: print LLVM IR instead of machine code")
	fmt.Println("  -n, --instances <n>          bench: parallel VMs (default: CPU count)")
	fmt.Println("  -v, -vv                      More logging")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  levy demo fib --stats")
	fmt.Println("  levy run program.yaml -c levy.toml")
	fmt.Println("  levy jit is_prime --ir")
}

func showVersion() {
	fmt.Printf("Levy v%s\n", VERSION)
	fmt.Printf("Build Date: %s\n", BuildDate)
	if GitCommit != "unknown" {
		fmt.Printf("Git Commit: %s\n", GitCommit)
	}
	fmt.Printf("Platform: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	if jit.Supported {
		fmt.Println("Native kernels: enabled")
	} else {
		fmt.Println("Native kernels: unavailable")
	}
}
