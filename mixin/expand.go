package mixin

import (
	"slices"
	"strings"

	"go.uber.org/zap"

	"pmix/css"
)

// Expander replaces mixin invocations with their expansion.
type Expander struct {
	reg    *Registry
	silent bool
	used   []string
	log    *zap.Logger
}

// NewExpander creates expander resolving mixins against reg. With silent set
// invocations of unknown mixins are left in place instead of failing.
func NewExpander(reg *Registry, silent bool, log *zap.Logger) *Expander {
	if log == nil {
		log = zap.NewNop()
	}
	return &Expander{reg: reg, silent: silent, log: log}
}

// IsInvocation reports whether node is @mixin or @add-mixin.
func IsInvocation(node *css.Node) bool {
	return node.Kind == css.KindAtRule && (node.Name == UseName || node.Name == AddName)
}

// Expand replaces invocation node with mixin expansion. Expanded nodes are
// inserted right before the invocation, which is then removed. Nested
// invocations in the inserted nodes are left for the caller to visit, except
// for generator mixins which get their invocation children expanded first.
func (e *Expander) Expand(node *css.Node) error {
	name, rest := splitName(node.Params)

	if strings.Contains(name, "(") {
		return node.Errorf(ErrMalformedInvocation, "remove brackets from mixin, like: @mixin name(1px) → @mixin name 1px")
	}

	var args []string
	if rest != "" {
		args = css.SplitComma(rest)
	}

	def, ok := e.reg.Get(name)
	if !ok {
		if e.silent {
			e.log.Debug("Ignoring undefined mixin", zap.String("mixin", name), zap.Stringer("source", node.Source))
			return nil
		}
		return node.Errorf(ErrUndefinedMixin, "undefined mixin %s", name)
	}

	e.log.Debug("Expanding mixin", zap.String("mixin", name), zap.Strings("args", args), zap.Stringer("source", node.Source))
	if !slices.Contains(e.used, name) {
		e.used = append(e.used, name)
	}

	switch body := def.Body.(type) {
	case InlineTree:
		e.insertTree(node, def, body, args)
	case DataObject:
		if err := e.insertObject(node, body.Object); err != nil {
			return err
		}
	case Generator:
		if err := e.runGenerator(node, name, body, args); err != nil {
			return err
		}
	default:
		return node.Errorf(ErrInvalidMixinType, "wrong %s mixin type %s", name, def.Body.bodyKind())
	}

	if node.Parent() != nil {
		node.Remove()
	}
	return nil
}

// Used returns names of expanded mixins in order of first use.
func (e *Expander) Used() []string {
	return slices.Clone(e.used)
}

// Bind maps definition parameters to positional arguments. Missing or empty
// arguments get parameter defaults.
func Bind(params []Param, args []string) map[string]string {
	values := make(map[string]string, len(params))
	for i, p := range params {
		v := ""
		if i < len(args) {
			v = args[i]
		}
		if v == "" {
			v = p.Default
		}
		values[p.Name] = v
	}
	return values
}

func (e *Expander) insertTree(node *css.Node, def *Definition, body InlineTree, args []string) {
	proxy := css.NewRoot()
	for _, c := range body.Node.Nodes() {
		clone := c.Clone()
		clone.Raws.Before = ""
		proxy.Append(clone)
	}

	if len(def.Params) > 0 {
		css.SubstituteVars(proxy, Bind(def.Params, args))
	}
	if def.Content {
		substituteContent(proxy, node)
	}
	insert(node, proxy)
}

func (e *Expander) insertObject(node *css.Node, obj *css.Object) error {
	root, err := css.FromObject(obj)
	if err != nil {
		return node.Errorf(ErrInvalidMixinType, "unable to materialize mixin object: %v", err)
	}
	e.insertFragment(node, root)
	return nil
}

// insertFragment tags top level nodes of fragment with invocation location,
// fills content slots and inserts result before the invocation.
func (e *Expander) insertFragment(node *css.Node, fragment *css.Node) {
	for _, c := range fragment.Nodes() {
		c.Source = node.Source
	}
	substituteContent(fragment, node)
	insert(node, fragment)
}

func (e *Expander) runGenerator(node *css.Node, name string, gen Generator, args []string) error {
	err := node.WalkAtRules(func(nested *css.Node) error {
		return e.Expand(nested)
	}, UseName, AddName)
	if err != nil {
		return err
	}

	out, err := gen(node, args...)
	if err != nil {
		return node.Errorf(err, "mixin %s: %v", name, err)
	}

	switch val := out.(type) {
	case *css.Object:
		return e.insertObject(node, val)
	case map[string]any:
		return e.insertObject(node, css.ObjectFromMap(val))
	case *css.Node:
		if val == nil {
			return nil
		}
		fragment := val
		if val.Kind != css.KindRoot {
			fragment = css.NewRoot()
			fragment.Append(val)
		}
		e.insertFragment(node, fragment)
	case []*css.Node:
		fragment := css.NewRoot()
		fragment.Append(val...)
		e.insertFragment(node, fragment)
	default:
		// nothing to insert
	}
	return nil
}

// substituteContent replaces every @mixin-content in tree with clones of
// invocation children or drops it when invocation has no children.
func substituteContent(tree, from *css.Node) {
	tree.WalkAtRules(func(slot *css.Node) error { //nolint:errcheck
		if len(from.Nodes()) > 0 {
			slot.ReplaceWith(from.CloneNodes()...)
		} else {
			slot.Remove()
		}
		return nil
	}, ContentName)
}

func insert(node, fragment *css.Node) {
	if parent := node.Parent(); parent != nil {
		parent.InsertBefore(node, fragment)
	}
}
