package mixin

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/build"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"

	"pmix/css"
)

// LoadModule loads auxiliary mixin file, format is selected by extension.
// Data formats produce DataObject bodies, shell scripts produce Generator.
func LoadModule(path string) (*Module, error) {
	var (
		body Body
		deps = []string{path}
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".yaml", ".yml":
		body, err = loadYAML(path)
	case ".toml":
		body, err = loadTOML(path)
	case ".cue":
		body, deps, err = loadCUE(path)
	case ".sh":
		body, err = loadScript(path)
	default:
		err = fmt.Errorf("unsupported module format %q", filepath.Ext(path))
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrAuxiliaryMixinFileLoad, path, err)
	}
	return &Module{Path: path, Body: body, Deps: deps}, nil
}

// loadYAML handles both YAML and JSON, keeping key order of the file.
func loadYAML(path string) (Body, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, fmt.Errorf("empty document")
	}
	v, err := yamlValue(doc.Content[0])
	if err != nil {
		return nil, err
	}
	obj, ok := v.(*css.Object)
	if !ok {
		return nil, fmt.Errorf("top level value must be a mapping, got %T", v)
	}
	return DataObject{Object: obj}, nil
}

func yamlValue(n *yaml.Node) (any, error) {
	switch n.Kind {
	case yaml.AliasNode:
		return yamlValue(n.Alias)
	case yaml.MappingNode:
		obj := css.NewObject()
		for i := 0; i+1 < len(n.Content); i += 2 {
			v, err := yamlValue(n.Content[i+1])
			if err != nil {
				return nil, err
			}
			obj.Set(n.Content[i].Value, v)
		}
		return obj, nil
	case yaml.SequenceNode:
		out := make([]any, 0, len(n.Content))
		for _, c := range n.Content {
			v, err := yamlValue(c)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	case yaml.ScalarNode:
		switch n.ShortTag() {
		case "!!null":
			return nil, nil
		case "!!bool", "!!int", "!!float":
			var v any
			if err := n.Decode(&v); err != nil {
				return nil, fmt.Errorf("line %d: %w", n.Line, err)
			}
			return v, nil
		default:
			return n.Value, nil
		}
	}
	return nil, fmt.Errorf("line %d: unexpected yaml node kind %d", n.Line, n.Kind)
}

func loadTOML(path string) (Body, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return DataObject{Object: css.ObjectFromMap(m)}, nil
}

// loadCUE evaluates CUE file and returns its value together with every file
// of the instance and of imported instances.
func loadCUE(path string) (Body, []string, error) {
	insts := load.Instances([]string{filepath.Base(path)}, &load.Config{Dir: filepath.Dir(path)})
	if len(insts) == 0 {
		return nil, nil, fmt.Errorf("no cue instances")
	}
	inst := insts[0]
	if inst.Err != nil {
		return nil, nil, inst.Err
	}

	v := cuecontext.New().BuildInstance(inst)
	if err := v.Err(); err != nil {
		return nil, nil, err
	}
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, nil, err
	}

	res, err := cueValue(v)
	if err != nil {
		return nil, nil, err
	}
	obj, ok := res.(*css.Object)
	if !ok {
		return nil, nil, fmt.Errorf("top level value must be a struct, got %T", res)
	}
	return DataObject{Object: obj}, cueFiles(inst, path, map[*build.Instance]bool{}), nil
}

func cueFiles(inst *build.Instance, path string, seen map[*build.Instance]bool) []string {
	if seen[inst] {
		return nil
	}
	seen[inst] = true

	var files []string
	if path != "" {
		files = append(files, path)
	}
	for _, f := range inst.BuildFiles {
		name, err := filepath.Abs(f.Filename)
		if err != nil || name == path {
			continue
		}
		files = append(files, name)
	}
	for _, imp := range inst.Imports {
		files = append(files, cueFiles(imp, "", seen)...)
	}
	return files
}

func cueValue(v cue.Value) (any, error) {
	switch v.Kind() {
	case cue.StructKind:
		it, err := v.Fields()
		if err != nil {
			return nil, err
		}
		obj := css.NewObject()
		for it.Next() {
			fv, err := cueValue(it.Value())
			if err != nil {
				return nil, err
			}
			obj.Set(it.Selector().Unquoted(), fv)
		}
		return obj, nil
	case cue.ListKind:
		it, err := v.List()
		if err != nil {
			return nil, err
		}
		var out []any
		for it.Next() {
			ev, err := cueValue(it.Value())
			if err != nil {
				return nil, err
			}
			out = append(out, ev)
		}
		return out, nil
	case cue.StringKind:
		return v.String()
	case cue.IntKind:
		return v.Int64()
	case cue.FloatKind:
		return v.Float64()
	case cue.BoolKind:
		return v.Bool()
	case cue.NullKind:
		return nil, nil
	}
	return nil, fmt.Errorf("%s: unsupported value kind %s", v.Pos(), v.Kind())
}

// loadScript prepares generator running shell script with mixin arguments as
// positional parameters and invocation content as standard input. Script
// output is parsed as stylesheet.
func loadScript(path string) (Body, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	prog, err := syntax.NewParser().Parse(bytes.NewReader(data), path)
	if err != nil {
		return nil, err
	}

	gen := func(node *css.Node, args ...string) (any, error) {
		var content strings.Builder
		for i, c := range node.Nodes() {
			if i > 0 {
				content.WriteByte('\n')
			}
			content.WriteString(c.String())
		}

		var stdout, stderr bytes.Buffer
		opts := []interp.RunnerOption{
			interp.Dir(filepath.Dir(path)),
			interp.StdIO(strings.NewReader(content.String()), &stdout, &stderr),
		}
		if len(args) > 0 {
			opts = append(opts, interp.Params(append([]string{"--"}, args...)...))
		}
		runner, err := interp.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("unable to create interpreter: %w", err)
		}
		if err := runner.Run(context.Background(), prog); err != nil {
			if msg := strings.TrimSpace(stderr.String()); msg != "" {
				return nil, fmt.Errorf("%s: %w: %s", path, err, strconv.Quote(msg))
			}
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return css.Parse(stdout.Bytes(), path)
	}
	return Generator(gen), nil
}
