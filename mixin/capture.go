package mixin

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"pmix/css"
)

// Capture turns @define-mixin node into definition and removes the node from
// its tree. File is recorded as the definition origin and may be empty.
func Capture(node *css.Node, file string) *Definition {
	def := describe(node, file)
	node.Remove()
	return def
}

func describe(node *css.Node, file string) *Definition {
	name, rest := splitName(node.Params)

	var params []Param
	if rest != "" {
		for _, item := range css.SplitComma(rest) {
			raw, defaults, _ := strings.Cut(item, ":")
			// first character is the variable sigil
			_, size := utf8.DecodeRuneInString(raw)
			raw = raw[size:]
			params = append(params, Param{Name: strings.TrimSpace(raw), Default: strings.TrimSpace(defaults)})
		}
	}

	content := false
	node.WalkAtRules(func(*css.Node) error { //nolint:errcheck
		content = true
		return css.ErrStopWalk
	}, ContentName)

	return &Definition{
		Name:    name,
		Params:  params,
		Content: content,
		Body:    InlineTree{Node: node},
		File:    file,
	}
}

// splitName returns first whitespace delimited token of at-rule params and
// trimmed remainder.
func splitName(params string) (string, string) {
	idx := strings.IndexFunc(params, unicode.IsSpace)
	if idx < 0 {
		return params, ""
	}
	return params[:idx], strings.TrimSpace(params[idx:])
}
