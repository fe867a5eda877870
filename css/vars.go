package css

import (
	"regexp"
	"strings"
)

var (
	varPattern       = regexp.MustCompile(`(^|[^\w])\$([\w-]+)`)
	bracedVarPattern = regexp.MustCompile(`\$\(\s*([\w-]+)\s*\)`)
)

// SubstituteVars replaces $name and $(name) references in selectors, at-rule
// params, declaration properties and values of n's descendants (and n
// itself) with textual values. References to names absent from values are
// left untouched.
func SubstituteVars(n *Node, values map[string]string) {
	if len(values) == 0 {
		return
	}
	substituteNode(n, values)
	n.Walk(func(c *Node) error { //nolint:errcheck
		substituteNode(c, values)
		return nil
	})
}

func substituteNode(n *Node, values map[string]string) {
	switch n.Kind {
	case KindRule:
		n.Selector = ReplaceVars(n.Selector, values)
	case KindAtRule:
		n.Params = ReplaceVars(n.Params, values)
	case KindDecl:
		n.Prop = ReplaceVars(n.Prop, values)
		n.Value = ReplaceVars(n.Value, values)
	}
}

// ReplaceVars performs variable substitution in a single string.
func ReplaceVars(s string, values map[string]string) string {
	if !strings.Contains(s, "$") {
		return s
	}
	s = bracedVarPattern.ReplaceAllStringFunc(s, func(m string) string {
		name := bracedVarPattern.FindStringSubmatch(m)[1]
		if v, ok := values[name]; ok {
			return v
		}
		return m
	})
	return varPattern.ReplaceAllStringFunc(s, func(m string) string {
		sub := varPattern.FindStringSubmatch(m)
		if v, ok := values[sub[2]]; ok {
			return sub[1] + v
		}
		return m
	})
}
