package css

import (
	"fmt"
	"maps"
	"regexp"
	"slices"
	"strconv"
	"strings"
)

// Object is an ordered mapping used to describe stylesheet fragments as data.
// Values are strings, numbers, booleans, nil, []any, map[string]any or
// *Object. Key order is preserved and defines output order.
type Object struct {
	keys   []string
	values map[string]any
}

func NewObject() *Object {
	return &Object{values: make(map[string]any)}
}

// ObjectFromMap converts plain map into Object. Since maps are unordered keys
// are sorted, nested maps are converted recursively.
func ObjectFromMap(m map[string]any) *Object {
	o := NewObject()
	for _, k := range slices.Sorted(maps.Keys(m)) {
		o.Set(k, normalizeValue(m[k]))
	}
	return o
}

func normalizeValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return ObjectFromMap(val)
	case []any:
		out := make([]any, len(val))
		for i := range val {
			out[i] = normalizeValue(val[i])
		}
		return out
	default:
		return v
	}
}

// Set adds or replaces value for key. Replacing keeps original position.
func (o *Object) Set(key string, value any) {
	if _, exists := o.values[key]; !exists {
		o.keys = append(o.keys, key)
	}
	o.values[key] = value
}

// Get returns value for key.
func (o *Object) Get(key string) (any, bool) {
	v, ok := o.values[key]
	return v, ok
}

// Keys returns keys in insertion order.
func (o *Object) Keys() []string {
	return slices.Clone(o.keys)
}

func (o *Object) Len() int {
	return len(o.keys)
}

// unitless lists dashified properties which do not get "px" appended to
// numeric values.
var unitless = map[string]bool{
	"box-flex":          true,
	"box-flex-group":    true,
	"column-count":      true,
	"flex":              true,
	"flex-grow":         true,
	"flex-positive":     true,
	"flex-shrink":       true,
	"flex-negative":     true,
	"font-weight":       true,
	"line-clamp":        true,
	"line-height":       true,
	"opacity":           true,
	"order":             true,
	"orphans":           true,
	"tab-size":          true,
	"widows":            true,
	"z-index":           true,
	"zoom":              true,
	"fill-opacity":      true,
	"stroke-dashoffset": true,
	"stroke-opacity":    true,
	"stroke-width":      true,
}

var upperCase = regexp.MustCompile(`([A-Z])`)

// dashify turns camelCase property names into CSS form: "marginTop" becomes
// "margin-top", "msTransform" becomes "-ms-transform".
func dashify(name string) string {
	name = upperCase.ReplaceAllString(name, "-$1")
	name = strings.ToLower(name)
	if strings.HasPrefix(name, "ms-") {
		name = "-" + name
	}
	return name
}

// FromObject materializes a data object into a tree. Keys starting with "@"
// become at-rules ("@media print" gives name "media" and params "print"),
// other keys with object values become rules, the rest become declarations.
// Arrays repeat the construct once per element, nil and false values are
// skipped.
func FromObject(obj *Object) (*Node, error) {
	root := NewRoot()
	if obj == nil {
		return root, nil
	}
	if err := materialize(root, obj); err != nil {
		return nil, err
	}
	return root, nil
}

func materialize(parent *Node, obj *Object) error {
	for _, key := range obj.keys {
		value := obj.values[key]
		if value == nil {
			continue
		}
		items, isList := value.([]any)
		if !isList {
			items = []any{value}
		}
		for _, item := range items {
			var err error
			if strings.HasPrefix(key, "@") {
				err = materializeAtRule(parent, key, item)
			} else {
				err = materializeEntry(parent, key, item)
			}
			if err != nil {
				return err
			}
		}
	}
	return nil
}

func materializeAtRule(parent *Node, key string, value any) error {
	name, params, _ := strings.Cut(strings.TrimPrefix(key, "@"), " ")
	node := NewAtRule(name, strings.TrimSpace(params))
	switch val := value.(type) {
	case nil:
		return nil
	case bool:
		if !val {
			return nil
		}
	case *Object:
		node.Block = true
		if err := materialize(node, val); err != nil {
			return err
		}
	case map[string]any:
		node.Block = true
		if err := materialize(node, ObjectFromMap(val)); err != nil {
			return err
		}
	default:
		s, err := scalarString(val)
		if err != nil {
			return fmt.Errorf("at-rule %q: %w", key, err)
		}
		node.Params = strings.TrimSpace(node.Params + " " + s)
	}
	parent.Append(node)
	return nil
}

func materializeEntry(parent *Node, key string, value any) error {
	switch val := value.(type) {
	case nil:
		return nil
	case *Object:
		rule := NewRule(key)
		if err := materialize(rule, val); err != nil {
			return err
		}
		parent.Append(rule)
		return nil
	case map[string]any:
		rule := NewRule(key)
		if err := materialize(rule, ObjectFromMap(val)); err != nil {
			return err
		}
		parent.Append(rule)
		return nil
	case bool:
		if !val {
			return nil
		}
	}

	prop := key
	if !strings.HasPrefix(prop, "--") {
		prop = dashify(prop)
	}
	if prop == "css-float" {
		prop = "float"
	}

	var text string
	switch val := value.(type) {
	case int, int32, int64, float32, float64:
		text = numberString(val)
		if text != "0" && !unitless[prop] {
			text += "px"
		}
	default:
		s, err := scalarString(val)
		if err != nil {
			return fmt.Errorf("property %q: %w", key, err)
		}
		text = s
	}

	decl := NewDecl(prop, "")
	decl.Value, decl.Important = splitImportant(strings.TrimSpace(text))
	parent.Append(decl)
	return nil
}

func numberString(v any) string {
	switch n := v.(type) {
	case int:
		return strconv.Itoa(n)
	case int32:
		return strconv.FormatInt(int64(n), 10)
	case int64:
		return strconv.FormatInt(n, 10)
	case float32:
		return strconv.FormatFloat(float64(n), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(n, 'f', -1, 64)
	}
	return ""
}

func scalarString(v any) (string, error) {
	switch val := v.(type) {
	case string:
		return val, nil
	case bool:
		return strconv.FormatBool(val), nil
	case int, int32, int64, float32, float64:
		return numberString(val), nil
	case fmt.Stringer:
		return val.String(), nil
	default:
		return "", fmt.Errorf("unsupported value type %T", v)
	}
}
