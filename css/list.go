package css

import (
	"strings"
)

// SplitComma splits value on top level commas. Commas inside quotes or
// parentheses do not split, backslash escapes the next character. Empty
// items between separators are dropped, trailing item is always kept.
func SplitComma(value string) []string {
	return Split(value, ",", true)
}

// SplitSpace splits value on top level whitespace.
func SplitSpace(value string) []string {
	return Split(value, " \n\t", false)
}

// Split is the general form of SplitComma and SplitSpace: separators is the
// set of separator characters, last forces the final item to be kept even
// when empty.
func Split(value, separators string, last bool) []string {
	var (
		items   []string
		current strings.Builder
		depth   int
		quote   rune
		escape  bool
	)
	for _, r := range value {
		split := false
		switch {
		case escape:
			escape = false
		case r == '\\':
			escape = true
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '"' || r == '\'':
			quote = r
		case r == '(':
			depth++
		case r == ')':
			if depth > 0 {
				depth--
			}
		case depth == 0 && strings.ContainsRune(separators, r):
			split = true
		}

		if split {
			if current.Len() > 0 {
				items = append(items, strings.TrimSpace(current.String()))
			}
			current.Reset()
			continue
		}
		current.WriteRune(r)
	}
	if last || current.Len() > 0 {
		items = append(items, strings.TrimSpace(current.String()))
	}
	return items
}
