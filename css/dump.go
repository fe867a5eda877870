package css

import (
	"pmix/utils/debug"
)

// Dump returns indented textual representation of the tree structure with
// source locations, used for debug logging.
func Dump(n *Node) string {
	tw := debug.NewTreeWriter()
	dumpNode(tw, n, 0)
	return tw.String()
}

func dumpNode(tw *debug.TreeWriter, n *Node, depth int) {
	switch n.Kind {
	case KindRoot:
		tw.Line(depth, "root [%s]", n.Source)
	case KindRule:
		tw.Line(depth, "rule [%s]", n.Source)
		tw.TextBlock(depth+1, "selector", n.Selector)
	case KindAtRule:
		tw.Line(depth, "atrule @%s [%s]", n.Name, n.Source)
		if n.Params != "" {
			tw.TextBlock(depth+1, "params", n.Params)
		}
	case KindDecl:
		tw.Line(depth, "decl %s [%s]", n.Prop, n.Source)
		tw.TextBlock(depth+1, "value", n.Value)
		if n.Important {
			tw.Line(depth+1, "important")
		}
	case KindComment:
		tw.Line(depth, "comment [%s]", n.Source)
		tw.TextBlock(depth+1, "text", n.Text)
	}
	for _, c := range n.nodes {
		dumpNode(tw, c, depth+1)
	}
}
