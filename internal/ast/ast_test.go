package ast

import (
	"testing"

	"github.com/kr/pretty"
)

func TestProgNumbersStatements(t *testing.T) {
	p := Prog(
		Set("a", Bin("+", Int(2), Int(3))),
		CallN("say", Var("a")),
	)
	if p.Children[0].Line() != 1 || p.Children[1].Line() != 2 {
		t.Fatalf("lines = %d, %d", p.Children[0].Line(), p.Children[1].Line())
	}
	if p.Children[1].Child(1).Line() != 2 {
		t.Fatal("nested nodes should inherit the statement line")
	}
}

func TestYAMLRoundTrip(t *testing.T) {
	p := Prog(
		Act("fib", []string{"n"},
			IfElse(Bin("<", Var("n"), Int(2)), Body(Ret(Var("n"))), nil),
			Ret(Bin("+", CallN("fib", Bin("-", Var("n"), Int(1))), CallN("fib", Bin("-", Var("n"), Int(2))))),
		),
		CallN("say", CallN("fib", Int(10))),
	)
	data, err := EncodeYAML(p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	back, err := DecodeYAML(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := pretty.Diff(p, back); len(diff) > 0 {
		t.Fatalf("round trip changed the tree:\n%v", diff)
	}
}

func TestDecodeYAMLHandWritten(t *testing.T) {
	doc := `
kind: program
children:
  - kind: assign
    token: {line: 1}
    children:
      - {kind: variable, value: a}
      - kind: binary
        value: "+"
        children:
          - {kind: literal, token: {type: int}, value: "2"}
          - {kind: literal, token: {type: int}, value: "3"}
  - kind: call
    token: {line: 1}
    children:
      - {kind: variable, value: say}
      - {kind: variable, value: a}
`
	p, err := DecodeYAML([]byte(doc))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(p.Children) != 2 || p.Children[0].Child(1).Value != "+" {
		t.Fatalf("unexpected tree: %# v", pretty.Formatter(p))
	}
}

func TestValidateRejectsMalformedTrees(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"not a program", "kind: block\n"},
		{"unknown kind", "kind: program\nchildren:\n  - kind: goto\n"},
		{"binary arity", "kind: program\nchildren:\n  - kind: binary\n    value: '+'\n    children:\n      - {kind: literal, value: '1'}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeYAML([]byte(tt.doc)); err == nil {
				t.Fatal("expected an error")
			}
		})
	}
}
