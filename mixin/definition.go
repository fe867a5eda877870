// Package mixin implements definition, loading and expansion of stylesheet
// mixins: named fragments declared with @define-mixin (or supplied as data
// and Go functions) and used with @mixin or @add-mixin.
package mixin

import (
	"fmt"

	"pmix/css"
)

// At-rule names recognized by the engine.
const (
	DefineName  = "define-mixin"
	UseName     = "mixin"
	AddName     = "add-mixin"
	ContentName = "mixin-content"
)

// Param is a single positional mixin parameter.
type Param struct {
	Name    string
	Default string
}

// Body is what a mixin expands to. It is a closed set of variants:
// InlineTree, DataObject and Generator.
type Body interface {
	bodyKind() string
}

// InlineTree is a mixin body declared in a stylesheet with @define-mixin.
// Node is the definition at-rule, its children are the body.
type InlineTree struct {
	Node *css.Node
}

// DataObject is a mixin body described as data.
type DataObject struct {
	Object *css.Object
}

// Generator is a mixin body computed by Go code. It receives the invocation
// node (with nested invocations already expanded) and positional arguments
// and returns *css.Object, map[string]any, *css.Node, []*css.Node or nil.
type Generator func(node *css.Node, args ...string) (any, error)

func (InlineTree) bodyKind() string { return "inline" }
func (DataObject) bodyKind() string { return "object" }
func (Generator) bodyKind() string  { return "generator" }

// unknownBody keeps statically supplied values of unsupported types, using
// such mixin fails at expansion time.
type unknownBody struct {
	value any
}

func (u unknownBody) bodyKind() string { return fmt.Sprintf("%T", u.value) }

// Definition is a registered mixin.
type Definition struct {
	Name    string
	Params  []Param
	Content bool   // body has @mixin-content slot
	Body    Body
	File    string // origin, empty for same-document and static mixins
}

// BodyOf converts statically supplied mixin value into Body.
func BodyOf(v any) Body {
	switch val := v.(type) {
	case Body:
		return val
	case *css.Object:
		return DataObject{Object: val}
	case map[string]any:
		return DataObject{Object: css.ObjectFromMap(val)}
	case func(*css.Node, ...string) (any, error):
		return Generator(val)
	case *css.Node:
		if val != nil && val.Kind == css.KindAtRule && val.Name == DefineName {
			return InlineTree{Node: val}
		}
	}
	return unknownBody{value: v}
}

// Static builds definition for a statically supplied mixin.
func Static(name string, v any) *Definition {
	body := BodyOf(v)
	if tree, ok := body.(InlineTree); ok {
		def := describe(tree.Node, "")
		def.Name = name
		return def
	}
	return &Definition{Name: name, Body: body}
}
