package css

import (
	"strings"

	"go.uber.org/zap"
)

// ParseSugar parses indentation based syntax (SugarSS): nesting is expressed
// by indentation instead of braces, statements end at line end. A line
// starting with "@" is an at-rule, a line with a colon followed by a space
// (or ending with a colon) is a declaration, anything else is a rule
// selector. Selector lines ending with comma continue on the next line.
func (p *Parser) ParseSugar(data []byte, from string) (*Node, error) {
	p.log.Debug("Parsing SugarSS", zap.String("source", from), zap.Int("bytes", len(data)))

	type frame struct {
		indent int
		node   *Node
	}

	root := NewRoot()
	root.Source = Source{File: from, Line: 1, Column: 1}
	stack := []frame{{indent: -1, node: root}}

	lines := strings.Split(strings.ReplaceAll(string(data), "\r\n", "\n"), "\n")
	inComment := false
	for i := 0; i < len(lines); i++ {
		raw := lines[i]
		lineNo := i + 1

		if inComment {
			if _, after, ok := strings.Cut(raw, "*/"); ok {
				inComment = false
				raw = after
				if strings.TrimSpace(raw) == "" {
					continue
				}
			} else {
				continue
			}
		}

		text := strings.TrimRight(raw, " \t;")
		trimmed := strings.TrimLeft(text, " \t")
		if trimmed == "" {
			continue
		}
		indent := len(text) - len(trimmed)
		src := Source{File: from, Line: lineNo, Column: indent + 1}

		for len(stack) > 1 && stack[len(stack)-1].indent >= indent {
			stack = stack[:len(stack)-1]
		}
		parent := stack[len(stack)-1].node

		var node *Node
		switch {
		case strings.HasPrefix(trimmed, "//"):
			node = NewComment(strings.TrimSpace(strings.TrimPrefix(trimmed, "//")))
		case strings.HasPrefix(trimmed, "/*"):
			body := strings.TrimPrefix(trimmed, "/*")
			if before, _, ok := strings.Cut(body, "*/"); ok {
				body = before
			} else {
				inComment = true
			}
			node = NewComment(strings.TrimSpace(body))
		case strings.HasPrefix(trimmed, "@"):
			name, params, _ := strings.Cut(strings.TrimPrefix(trimmed, "@"), " ")
			node = NewAtRule(name, strings.TrimSpace(params))
		case isSugarDecl(trimmed):
			prop, value, _ := strings.Cut(trimmed, ":")
			node = NewDecl(strings.TrimSpace(prop), "")
			node.Value, node.Important = splitImportant(strings.TrimSpace(value))
		default:
			selector := trimmed
			for strings.HasSuffix(selector, ",") && i+1 < len(lines) {
				i++
				selector += " " + strings.TrimSpace(lines[i])
			}
			node = NewRule(selector)
		}
		node.Source = src
		node.Raws.Before = raw[:indent]

		if !parent.IsContainer() {
			return nil, &Error{Source: src, Reason: "unexpected indentation", Err: ErrSyntax}
		}
		parent.Append(node)
		stack = append(stack, frame{indent: indent, node: node})
	}
	if inComment {
		return nil, &Error{Source: Source{File: from, Line: len(lines)}, Reason: "unclosed comment", Err: ErrSyntax}
	}
	p.log.Debug("Parsed SugarSS", zap.String("source", from), zap.Int("nodes", len(root.Nodes())))
	return root, nil
}

// ParseSugar is a shortcut for parsing indentation based syntax with a silent
// parser.
func ParseSugar(data []byte, from string) (*Node, error) {
	return NewParser(nil).ParseSugar(data, from)
}

func isSugarDecl(line string) bool {
	if strings.HasSuffix(line, ":") {
		return true
	}
	idx := strings.Index(line, ": ")
	if idx <= 0 {
		return false
	}
	// "a:hover b" style selectors have no space after colon, and the
	// declaration name never contains spaces
	return !strings.ContainsAny(line[:idx], " \t")
}
