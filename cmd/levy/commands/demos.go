package commands

import (
	"fmt"
	"io"
	"sort"

	"levython/internal/ast"
	"levython/internal/errors"
)

// Demo is a built-in program.
type Demo struct {
	Name        string
	Description string
	Build       func() *ast.Node
}

var demos = map[string]*Demo{}

func registerDemo(d *Demo) { demos[d.Name] = d }

// Demos lists the built-in programs sorted by name.
func Demos() []*Demo {
	out := make([]*Demo, 0, len(demos))
	for _, d := range demos {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func FindDemo(name string) (*Demo, bool) {
	d, ok := demos[name]
	return d, ok
}

func init() {
	registerDemo(&Demo{"arith", "a <- 2 + 3; say(a)", func() *ast.Node {
		return ast.Prog(
			ast.Set("a", ast.Bin("+", ast.Int(2), ast.Int(3))),
			ast.CallN("say", ast.Var("a")),
		)
	}})

	registerDemo(&Demo{"range-sum", "sum of range(1000000) in a for loop", func() *ast.Node {
		return ast.Prog(
			ast.Set("total", ast.Int(0)),
			ast.ForIn("i", ast.CallN("range", ast.Int(1000000)),
				ast.Set("total", ast.Bin("+", ast.Var("total"), ast.Var("i"))),
			),
			ast.CallN("say", ast.Var("total")),
		)
	}})

	registerDemo(&Demo{"nested", "nested constant loops adding 3", func() *ast.Node {
		return ast.Prog(
			ast.Set("count", ast.Int(0)),
			ast.RepeatN(ast.Int(2000),
				ast.ForIn("j", ast.CallN("range", ast.Int(500)),
					ast.Set("count", ast.Bin("+", ast.Var("count"), ast.Int(3))),
				),
			),
			ast.CallN("say", ast.Var("count")),
		)
	}})

	registerDemo(&Demo{"fib", "recursive fib(25), twice", func() *ast.Node {
		return ast.Prog(
			ast.Act("fib", []string{"n"},
				ast.IfElse(ast.Bin("<", ast.Var("n"), ast.Int(2)), ast.Body(ast.Ret(ast.Var("n"))), nil),
				ast.Ret(ast.Bin("+",
					ast.CallN("fib", ast.Bin("-", ast.Var("n"), ast.Int(1))),
					ast.CallN("fib", ast.Bin("-", ast.Var("n"), ast.Int(2))),
				)),
			),
			ast.CallN("say", ast.CallN("fib", ast.Int(25))),
			ast.CallN("say", ast.CallN("fib", ast.Int(25))),
		)
	}})

	registerDemo(&Demo{"primes", "count primes below 2000 by trial division", func() *ast.Node {
		return ast.Prog(
			ast.Act("is_prime", []string{"n"},
				ast.IfElse(ast.Bin("<", ast.Var("n"), ast.Int(2)), ast.Body(ast.Ret(ast.Bool(false))), nil),
				ast.Set("d", ast.Int(2)),
				ast.WhileLoop(ast.Bin("<=", ast.Bin("*", ast.Var("d"), ast.Var("d")), ast.Var("n")),
					ast.IfElse(ast.Bin("==", ast.Bin("%", ast.Var("n"), ast.Var("d")), ast.Int(0)), ast.Body(ast.Ret(ast.Bool(false))), nil),
					ast.Set("d", ast.Bin("+", ast.Var("d"), ast.Int(1))),
				),
				ast.Ret(ast.Bool(true)),
			),
			ast.Set("primes", ast.Int(0)),
			ast.ForIn("i", ast.CallN("range", ast.Int(2000)),
				ast.IfElse(ast.CallN("is_prime", ast.Var("i")),
					ast.Body(ast.Set("primes", ast.Bin("+", ast.Var("primes"), ast.Int(1)))),
					nil),
			),
			ast.CallN("say", ast.Var("primes")),
		)
	}})

	registerDemo(&Demo{"factorial", "recursive factorial(15)", func() *ast.Node {
		return ast.Prog(
			ast.Act("factorial", []string{"n"},
				ast.IfElse(ast.Bin("<=", ast.Var("n"), ast.Int(1)), ast.Body(ast.Ret(ast.Int(1))), nil),
				ast.Ret(ast.Bin("*", ast.Var("n"), ast.CallN("factorial", ast.Bin("-", ast.Var("n"), ast.Int(1))))),
			),
			ast.CallN("say", ast.CallN("factorial", ast.Int(15))),
		)
	}})

	registerDemo(&Demo{"try", "division by zero caught by try/catch", func() *ast.Node {
		return ast.Prog(
			ast.Act("ratio", []string{"a", "b"}, ast.Ret(ast.Bin("/", ast.Var("a"), ast.Var("b")))),
			ast.ForIn("b", ast.ListOf(ast.Int(4), ast.Int(0), ast.Int(2)),
				ast.TryCatch(
					ast.Body(ast.CallN("say", ast.CallN("ratio", ast.Int(10), ast.Var("b")))),
					"err",
					ast.Body(ast.CallN("say", ast.Bin("+", ast.Str("caught: "), ast.Var("err")))),
				),
			),
		)
	}})

	registerDemo(&Demo{"append", "append 0..999 to a list", func() *ast.Node {
		return ast.Prog(
			ast.Set("xs", ast.ListOf()),
			ast.ForIn("i", ast.CallN("range", ast.Int(1000)),
				ast.CallN("append", ast.Var("xs"), ast.Var("i")),
			),
			ast.CallN("say", ast.CallN("len", ast.Var("xs"))),
			ast.CallN("say", ast.Idx(ast.Var("xs"), ast.Int(999))),
		)
	}})

	registerDemo(&Demo{"scale", "a hot function moved to its peephole version", func() *ast.Node {
		return ast.Prog(
			ast.Act("scale", []string{"x"}, ast.Ret(ast.Bin("+", ast.Bin("*", ast.Var("x"), ast.Int(8)), ast.Int(1)))),
			ast.Set("total", ast.Int(0)),
			ast.ForIn("i", ast.CallN("range", ast.Int(1000)),
				ast.Set("total", ast.Bin("+", ast.Var("total"), ast.CallN("scale", ast.Var("i")))),
			),
			ast.CallN("say", ast.Var("total")),
			ast.CallN("say", ast.CallN("scale", ast.Float(0.5))),
		)
	}})
}

// DemoCommand lists the demos, or runs one. `levy demo [name] [--stats]`
func DemoCommand(opts *Options, stdout, stderr io.Writer) error {
	if len(opts.Args) == 0 {
		for _, d := range Demos() {
			fmt.Fprintf(stdout, "%-10s %s\n", d.Name, d.Description)
		}
		return nil
	}
	d, ok := FindDemo(opts.Args[0])
	if !ok {
		return errors.New("unknown demo " + opts.Args[0])
	}
	cfg, err := opts.Config()
	if err != nil {
		return err
	}
	r, err := Execute(d.Build(), cfg, stdout)
	if r != nil {
		defer r.Machine.Close()
		if opts.Stats {
			if serr := writeStats(stderr, r); serr != nil {
				return serr
			}
		}
	}
	return err
}
