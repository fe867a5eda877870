package css

import (
	"fmt"
	"io"
	"strings"
)

// WriteTo writes the tree to w, implementing io.WriterTo. Output is
// normalized: two space indentation, one statement per line and a blank line
// between top level statements.
func (n *Node) WriteTo(w io.Writer) (int64, error) {
	cw := &countingWriter{w: w}
	if n.Kind == KindRoot {
		for i, c := range n.nodes {
			if i > 0 {
				cw.printf("\n")
			}
			writeNode(cw, c, 0)
		}
	} else {
		writeNode(cw, n, 0)
	}
	return cw.n, cw.err
}

// String returns the CSS text of the tree.
func (n *Node) String() string {
	var sb strings.Builder
	n.WriteTo(&sb) //nolint:errcheck
	return sb.String()
}

type countingWriter struct {
	w   io.Writer
	n   int64
	err error
}

func (cw *countingWriter) printf(format string, args ...any) {
	if cw.err != nil {
		return
	}
	n, err := fmt.Fprintf(cw.w, format, args...)
	cw.n += int64(n)
	cw.err = err
}

func writeNode(cw *countingWriter, n *Node, depth int) {
	indent := strings.Repeat("  ", depth)
	switch n.Kind {
	case KindDecl:
		if n.Important {
			cw.printf("%s%s: %s !important;\n", indent, n.Prop, n.Value)
		} else {
			cw.printf("%s%s: %s;\n", indent, n.Prop, n.Value)
		}
	case KindComment:
		cw.printf("%s/* %s */\n", indent, n.Text)
	case KindRule:
		cw.printf("%s%s {\n", indent, n.Selector)
		writeChildren(cw, n, depth+1)
		cw.printf("%s}\n", indent)
	case KindAtRule:
		head := "@" + n.Name
		if n.Params != "" {
			head += " " + n.Params
		}
		if !n.Block && len(n.nodes) == 0 {
			cw.printf("%s%s;\n", indent, head)
			return
		}
		cw.printf("%s%s {\n", indent, head)
		writeChildren(cw, n, depth+1)
		cw.printf("%s}\n", indent)
	case KindRoot:
		writeChildren(cw, n, depth)
	}
}

func writeChildren(cw *countingWriter, n *Node, depth int) {
	for _, c := range n.nodes {
		writeNode(cw, c, depth)
	}
}
