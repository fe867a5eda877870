package debug

import (
	"testing"
)

func TestTreeWriter_Line(t *testing.T) {
	tests := []struct {
		name   string
		depth  int
		format string
		args   []any
		want   string
	}{
		{name: "top level", depth: 0, format: "root", want: "root\n"},
		{name: "nested", depth: 2, format: "decl %s", args: []any{"color"}, want: "    decl color\n"},
		{name: "negative depth", depth: -1, format: "x", want: "x\n"},
		{name: "source location", depth: 1, format: "rule [%s:%d:%d]", args: []any{"a.css", 3, 5}, want: "  rule [a.css:3:5]\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tw := NewTreeWriter()
			tw.Line(tt.depth, tt.format, tt.args...)
			if got := tw.String(); got != tt.want {
				t.Errorf("Line() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTreeWriter_TextBlock(t *testing.T) {
	tests := []struct {
		name  string
		depth int
		label string
		value string
		want  string
	}{
		{name: "empty value", label: "params", value: "", want: "params: \n"},
		{name: "selector", depth: 1, label: "selector", value: "a:hover", want: "  selector: \"a:hover\"\n"},
		{name: "quoted value", label: "value", value: `url("x.png")`, want: "value: \"url(\\\"x.png\\\")\"\n"},
		{name: "multiline comment", depth: 2, label: "text", value: "one\ntwo", want: "    text: \"one\\ntwo\"\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tw := NewTreeWriter()
			tw.TextBlock(tt.depth, tt.label, tt.value)
			if got := tw.String(); got != tt.want {
				t.Errorf("TextBlock() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTreeWriter_Tree(t *testing.T) {
	tw := NewTreeWriter()
	tw.Line(0, "root")
	tw.Line(1, "atrule @media")
	tw.TextBlock(2, "params", "print")
	tw.Line(2, "decl top")
	tw.TextBlock(3, "value", "0")

	want := "root\n  atrule @media\n    params: \"print\"\n    decl top\n      value: \"0\"\n"
	if got := tw.String(); got != want {
		t.Errorf("tree:\ngot:\n%s\nwant:\n%s", got, want)
	}
}
