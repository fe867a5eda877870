package css

import (
	"errors"
	"fmt"
	"slices"
)

// Kind identifies what a Node represents.
type Kind int

const (
	KindRoot    Kind = iota // Document or fragment container
	KindRule                // selector { ... }
	KindAtRule              // @name params; or @name params { ... }
	KindDecl                // prop: value
	KindComment             // /* text */
)

// String returns a short human readable name of the kind.
func (k Kind) String() string {
	switch k {
	case KindRoot:
		return "root"
	case KindRule:
		return "rule"
	case KindAtRule:
		return "atrule"
	case KindDecl:
		return "decl"
	case KindComment:
		return "comment"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Source is the location a node originates from.
type Source struct {
	File   string
	Line   int
	Column int
}

func (s Source) String() string {
	file := s.File
	if file == "" {
		file = "<input>"
	}
	if s.Line == 0 {
		return file
	}
	return fmt.Sprintf("%s:%d:%d", file, s.Line, s.Column)
}

// Raws keeps formatting details captured by the parser.
type Raws struct {
	Before string // whitespace preceding the node in source
}

// Node is a single element of a stylesheet tree. Which fields are meaningful
// depends on Kind.
type Node struct {
	Kind Kind

	Selector  string // KindRule
	Name      string // KindAtRule, without leading "@"
	Params    string // KindAtRule
	Block     bool   // KindAtRule: has { } body
	Prop      string // KindDecl
	Value     string // KindDecl
	Important bool   // KindDecl
	Text      string // KindComment

	Source Source
	Raws   Raws

	nodes  []*Node
	parent *Node
}

func NewRoot() *Node {
	return &Node{Kind: KindRoot}
}

func NewRule(selector string) *Node {
	return &Node{Kind: KindRule, Selector: selector}
}

func NewAtRule(name, params string) *Node {
	return &Node{Kind: KindAtRule, Name: name, Params: params}
}

func NewDecl(prop, value string) *Node {
	return &Node{Kind: KindDecl, Prop: prop, Value: value}
}

func NewComment(text string) *Node {
	return &Node{Kind: KindComment, Text: text}
}

// IsContainer returns true if node may hold children.
func (n *Node) IsContainer() bool {
	return n.Kind == KindRoot || n.Kind == KindRule || n.Kind == KindAtRule
}

// Parent returns the node this node is attached to, nil for detached nodes.
func (n *Node) Parent() *Node {
	return n.parent
}

// Nodes returns direct children. The returned slice must not be modified.
func (n *Node) Nodes() []*Node {
	return n.nodes
}

// Root returns the topmost ancestor of the node (or node itself).
func (n *Node) Root() *Node {
	r := n
	for r.parent != nil {
		r = r.parent
	}
	return r
}

// Index returns position of child among n's children or -1.
func (n *Node) Index(child *Node) int {
	return slices.Index(n.nodes, child)
}

// Append adds nodes at the end of n's children. Root nodes passed in are
// unwrapped: their children are moved instead.
func (n *Node) Append(nodes ...*Node) {
	n.insertAt(len(n.nodes), nodes)
}

// Prepend adds nodes at the beginning of n's children.
func (n *Node) Prepend(nodes ...*Node) {
	n.insertAt(0, nodes)
}

// InsertBefore inserts nodes into n right before ref. If ref is not a child
// of n nodes are appended.
func (n *Node) InsertBefore(ref *Node, nodes ...*Node) {
	idx := n.Index(ref)
	if idx < 0 {
		idx = len(n.nodes)
	}
	n.insertAt(idx, nodes)
}

// InsertAfter inserts nodes into n right after ref. If ref is not a child of
// n nodes are appended.
func (n *Node) InsertAfter(ref *Node, nodes ...*Node) {
	idx := n.Index(ref)
	if idx < 0 {
		idx = len(n.nodes) - 1
	}
	n.insertAt(idx+1, nodes)
}

func (n *Node) insertAt(idx int, nodes []*Node) {
	flat := make([]*Node, 0, len(nodes))
	for _, c := range nodes {
		if c == nil {
			continue
		}
		if c.Kind == KindRoot {
			// take a snapshot, detaching modifies c.nodes
			flat = append(flat, slices.Clone(c.nodes)...)
			continue
		}
		flat = append(flat, c)
	}
	for _, c := range flat {
		if c.parent != nil {
			if c.parent == n {
				if i := n.Index(c); i >= 0 && i < idx {
					idx--
				}
			}
			c.detach()
		}
		c.parent = n
	}
	if n.Kind == KindAtRule && len(flat) > 0 {
		n.Block = true
	}
	n.nodes = slices.Insert(n.nodes, min(idx, len(n.nodes)), flat...)
}

// Remove detaches node from its parent. Removing detached node is a no-op.
func (n *Node) Remove() {
	n.detach()
}

func (n *Node) detach() {
	if n.parent == nil {
		return
	}
	p := n.parent
	if i := p.Index(n); i >= 0 {
		p.nodes = slices.Delete(p.nodes, i, i+1)
	}
	n.parent = nil
}

// ReplaceWith puts nodes in place of n and detaches n.
func (n *Node) ReplaceWith(nodes ...*Node) {
	if n.parent == nil {
		return
	}
	n.parent.InsertBefore(n, nodes...)
	n.Remove()
}

// RemoveAll detaches all children.
func (n *Node) RemoveAll() {
	for _, c := range n.nodes {
		c.parent = nil
	}
	n.nodes = nil
}

// Clone returns a detached deep copy of the node.
func (n *Node) Clone() *Node {
	c := *n
	c.parent = nil
	c.nodes = nil
	if len(n.nodes) > 0 {
		c.nodes = make([]*Node, 0, len(n.nodes))
		for _, child := range n.nodes {
			cc := child.Clone()
			cc.parent = &c
			c.nodes = append(c.nodes, cc)
		}
	}
	return &c
}

// CloneNodes returns detached deep copies of n's children.
func (n *Node) CloneNodes() []*Node {
	out := make([]*Node, 0, len(n.nodes))
	for _, c := range n.nodes {
		out = append(out, c.Clone())
	}
	return out
}

// ErrStopWalk may be returned by WalkFunc to stop walking without error.
var ErrStopWalk = errors.New("stop walk")

// WalkFunc is called for every node visited by Walk. Returning ErrStopWalk
// terminates walking, any other error terminates walking and is returned to
// the caller.
type WalkFunc func(node *Node) error

// Walk visits all descendants of n depth first in document order. Children
// are iterated over a snapshot, so fn may remove or replace the node it was
// called for; nodes detached before being reached are skipped and nodes
// inserted during the walk are not visited.
func (n *Node) Walk(fn WalkFunc) error {
	err := n.walk(fn)
	if errors.Is(err, ErrStopWalk) {
		return nil
	}
	return err
}

func (n *Node) walk(fn WalkFunc) error {
	for _, c := range slices.Clone(n.nodes) {
		if c.parent != n {
			continue
		}
		if err := fn(c); err != nil {
			return err
		}
		if c.parent == n && len(c.nodes) > 0 {
			if err := c.walk(fn); err != nil {
				return err
			}
		}
	}
	return nil
}

// WalkAtRules visits at-rule descendants. When names are given only at-rules
// with one of those names are visited.
func (n *Node) WalkAtRules(fn WalkFunc, names ...string) error {
	return n.Walk(func(c *Node) error {
		if c.Kind != KindAtRule {
			return nil
		}
		if len(names) > 0 && !slices.Contains(names, c.Name) {
			return nil
		}
		return fn(c)
	})
}

// WalkDecls visits declaration descendants.
func (n *Node) WalkDecls(fn WalkFunc) error {
	return n.Walk(func(c *Node) error {
		if c.Kind != KindDecl {
			return nil
		}
		return fn(c)
	})
}

// Error is an error attributed to a location in the source.
type Error struct {
	Source Source
	Reason string
	Err    error
}

func (e *Error) Error() string {
	return e.Source.String() + ": " + e.Reason
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Errorf returns error located at node's source. Cause is exposed through
// errors.Is/errors.As and may be nil.
func (n *Node) Errorf(cause error, format string, args ...any) error {
	return &Error{Source: n.Source, Reason: fmt.Sprintf(format, args...), Err: cause}
}
