package css

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	parse "github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/css"
	"go.uber.org/zap"
)

// ErrSyntax is the cause of all errors returned by parsers in this package.
var ErrSyntax = errors.New("syntax error")

// Parser parses stylesheets into node trees.
type Parser struct {
	log *zap.Logger
}

// NewParser creates a new CSS parser.
func NewParser(log *zap.Logger) *Parser {
	if log == nil {
		log = zap.NewNop()
	}
	return &Parser{log: log.Named("css-parser")}
}

// Parse is a shortcut for parsing with a silent parser.
func Parse(data []byte, from string) (*Node, error) {
	return NewParser(nil).Parse(data, from)
}

type token struct {
	tt     css.TokenType
	data   string
	line   int
	column int
}

// Parse parses CSS (including nested rules and at-rules with arbitrary
// bodies) into a tree rooted at KindRoot node. The from parameter is recorded
// in every node's Source.
func (p *Parser) Parse(data []byte, from string) (*Node, error) {
	p.log.Debug("Parsing CSS", zap.String("source", from), zap.Int("bytes", len(data)))

	tokens, err := tokenize(data)
	if err != nil {
		return nil, &Error{Source: Source{File: from}, Reason: err.Error(), Err: ErrSyntax}
	}

	b := &builder{tokens: tokens, from: from}
	root := NewRoot()
	root.Source = Source{File: from, Line: 1, Column: 1}
	if err := b.parseBlock(root, true); err != nil {
		return nil, err
	}
	p.log.Debug("Parsed CSS", zap.String("source", from), zap.Int("nodes", len(root.Nodes())))
	return root, nil
}

func tokenize(data []byte) ([]token, error) {
	l := css.NewLexer(parse.NewInput(bytes.NewReader(data)))

	var (
		tokens       []token
		line, column = 1, 1
	)
	for {
		tt, d := l.Next()
		if tt == css.ErrorToken {
			if err := l.Err(); err != nil && !errors.Is(err, io.EOF) {
				return nil, err
			}
			return tokens, nil
		}
		tokens = append(tokens, token{tt: tt, data: string(d), line: line, column: column})
		for _, r := range string(d) {
			if r == '\n' {
				line++
				column = 1
			} else {
				column++
			}
		}
	}
}

type builder struct {
	tokens []token
	pos    int
	from   string
}

func (b *builder) peek() (token, bool) {
	if b.pos >= len(b.tokens) {
		return token{}, false
	}
	return b.tokens[b.pos], true
}

func (b *builder) source(t token) Source {
	return Source{File: b.from, Line: t.line, Column: t.column}
}

func (b *builder) errorf(t token, format string, args ...any) error {
	return &Error{Source: b.source(t), Reason: fmt.Sprintf(format, args...), Err: ErrSyntax}
}

// parseBlock reads statements into parent until closing brace (or end of
// input for the top level).
func (b *builder) parseBlock(parent *Node, top bool) error {
	var before strings.Builder
	for {
		t, ok := b.peek()
		if !ok {
			if !top {
				return &Error{Source: parent.Source, Reason: "unclosed block", Err: ErrSyntax}
			}
			return nil
		}

		switch t.tt {
		case css.WhitespaceToken:
			before.WriteString(t.data)
			b.pos++
			continue
		case css.SemicolonToken, css.CDOToken, css.CDCToken:
			b.pos++
			continue
		case css.RightBraceToken:
			if top {
				return b.errorf(t, "unexpected }")
			}
			b.pos++
			return nil
		}

		var (
			node *Node
			err  error
		)
		switch t.tt {
		case css.CommentToken:
			b.pos++
			node = NewComment(strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(t.data, "/*"), "*/")))
			node.Source = b.source(t)
		case css.AtKeywordToken:
			node, err = b.parseAtRule()
		default:
			node, err = b.parseRuleOrDecl()
		}
		if err != nil {
			return err
		}
		node.Raws.Before = before.String()
		before.Reset()
		parent.Append(node)
	}
}

// collect gathers tokens of a single statement up to (not including) the
// terminator at nesting level zero.
func (b *builder) collect() ([]token, css.TokenType) {
	var (
		out   []token
		depth int
	)
	for {
		t, ok := b.peek()
		if !ok {
			return out, css.ErrorToken
		}
		switch t.tt {
		case css.LeftParenthesisToken, css.LeftBracketToken, css.FunctionToken:
			depth++
		case css.RightParenthesisToken, css.RightBracketToken:
			if depth > 0 {
				depth--
			}
		case css.SemicolonToken, css.LeftBraceToken, css.RightBraceToken:
			if depth == 0 {
				return out, t.tt
			}
		}
		out = append(out, t)
		b.pos++
	}
}

func (b *builder) parseAtRule() (*Node, error) {
	start := b.tokens[b.pos]
	b.pos++

	node := NewAtRule(strings.TrimPrefix(start.data, "@"), "")
	node.Source = b.source(start)

	params, term := b.collect()
	node.Params = joinTokens(params)

	switch term {
	case css.SemicolonToken:
		b.pos++
	case css.LeftBraceToken:
		b.pos++
		node.Block = true
		if err := b.parseBlock(node, false); err != nil {
			return nil, err
		}
	}
	// RightBrace or end of input terminate bodiless at-rule, parent handles them
	return node, nil
}

func (b *builder) parseRuleOrDecl() (*Node, error) {
	start := b.tokens[b.pos]
	parts, term := b.collect()

	if term == css.LeftBraceToken {
		b.pos++
		node := NewRule(joinTokens(parts))
		node.Source = b.source(start)
		if err := b.parseBlock(node, false); err != nil {
			return nil, err
		}
		return node, nil
	}
	if term == css.SemicolonToken {
		b.pos++
	}

	colon := -1
	depth := 0
	for i, t := range parts {
		switch t.tt {
		case css.LeftParenthesisToken, css.LeftBracketToken, css.FunctionToken:
			depth++
		case css.RightParenthesisToken, css.RightBracketToken:
			if depth > 0 {
				depth--
			}
		case css.ColonToken:
			if depth == 0 && colon < 0 {
				colon = i
			}
		}
	}
	if colon < 0 {
		return nil, b.errorf(start, "unknown word %q", joinTokens(parts))
	}

	node := NewDecl(joinTokens(parts[:colon]), "")
	node.Source = b.source(start)
	node.Value, node.Important = splitImportant(joinTokens(parts[colon+1:]))
	if node.Prop == "" {
		return nil, b.errorf(start, "missing property name")
	}
	return node, nil
}

// joinTokens rebuilds text from tokens collapsing whitespace runs into single
// spaces and dropping comments.
func joinTokens(tokens []token) string {
	var sb strings.Builder
	space := false
	for _, t := range tokens {
		switch t.tt {
		case css.WhitespaceToken:
			space = true
			continue
		case css.CommentToken:
			continue
		}
		if space && sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		space = false
		sb.WriteString(t.data)
	}
	return sb.String()
}

const importantSuffix = "!important"

func splitImportant(value string) (string, bool) {
	if len(value) >= len(importantSuffix) && strings.EqualFold(value[len(value)-len(importantSuffix):], importantSuffix) {
		return strings.TrimSpace(value[:len(value)-len(importantSuffix)]), true
	}
	// lexer splits "!important" into delimiter and identifier
	if i := strings.LastIndex(value, "!"); i >= 0 && strings.EqualFold(strings.ReplaceAll(value[i:], " ", ""), importantSuffix) {
		return strings.TrimSpace(value[:i]), true
	}
	return value, false
}
