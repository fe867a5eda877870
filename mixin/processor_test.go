package mixin_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"pmix/css"
	"pmix/mixin"
)

func process(t *testing.T, opts mixin.Options, input string) (*mixin.Result, error) {
	t.Helper()

	root, err := css.Parse([]byte(input), "input.css")
	require.NoError(t, err)
	if opts.Log == nil {
		opts.Log = zaptest.NewLogger(t)
	}
	return mixin.New(opts).Process(context.Background(), root)
}

func processString(t *testing.T, opts mixin.Options, input string) string {
	t.Helper()

	res, err := process(t, opts, input)
	require.NoError(t, err)
	return res.Root.String()
}

func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()

	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

func TestProcess_Box(t *testing.T) {
	out := processString(t, mixin.Options{}, `
@define-mixin box $color: red {
  color: $color;
}
a { @mixin box; }
b { @mixin box blue; }
`)
	assert.Equal(t, "a {\n  color: red;\n}\n\nb {\n  color: blue;\n}\n", out)
}

func TestProcess_AddMixinAlias(t *testing.T) {
	out := processString(t, mixin.Options{}, `
@define-mixin hidden { display: none; }
a { @add-mixin hidden; }
`)
	assert.Equal(t, "a {\n  display: none;\n}\n", out)
}

func TestProcess_PlainCloneEquivalence(t *testing.T) {
	body := "color: red;\n.x { margin: 0 1px; }\n@media print { top: 0; }"

	out := processString(t, mixin.Options{}, "@define-mixin plain {\n"+body+"\n}\na { @mixin plain; }")

	expected, err := css.Parse([]byte("a {\n"+body+"\n}"), "expected.css")
	require.NoError(t, err)
	assert.Equal(t, expected.String(), out)
}

func TestProcess_ContentSlot(t *testing.T) {
	input := `
@define-mixin wrap {
  .inner { @mixin-content; }
}
a { @mixin wrap { color: red; top: 0; } }
b { @mixin wrap; }
`
	out := processString(t, mixin.Options{}, input)
	assert.Equal(t, "a {\n  .inner {\n    color: red;\n    top: 0;\n  }\n}\n\nb {\n  .inner {\n  }\n}\n", out)
}

func TestProcess_ContentSlotKeepsOrder(t *testing.T) {
	input := `
@define-mixin around {
  before: 1;
  @mixin-content;
  after: 2;
}
a { @mixin around { one: 1; two: 2; three: 3; } }
`
	out := processString(t, mixin.Options{}, input)
	assert.Equal(t, "a {\n  before: 1;\n  one: 1;\n  two: 2;\n  three: 3;\n  after: 2;\n}\n", out)
}

func TestProcess_NestedInvocations(t *testing.T) {
	input := `
@define-mixin inner $v { width: $v; }
@define-mixin outer $v: 5px {
  @mixin inner $v;
  height: $v;
}
a { @mixin outer; }
`
	out := processString(t, mixin.Options{}, input)
	assert.Equal(t, "a {\n  width: 5px;\n  height: 5px;\n}\n", out)
}

func TestProcess_DefinitionsAreRemoved(t *testing.T) {
	out := processString(t, mixin.Options{}, "@define-mixin unused { color: red; }\na { top: 0; }")
	assert.Equal(t, "a {\n  top: 0;\n}\n", out)
}

func TestProcess_Undefined(t *testing.T) {
	t.Run("fails", func(t *testing.T) {
		_, err := process(t, mixin.Options{}, "a {\n  @mixin nope;\n}")
		require.Error(t, err)
		assert.True(t, errors.Is(err, mixin.ErrUndefinedMixin))

		var nerr *css.Error
		require.True(t, errors.As(err, &nerr))
		assert.Equal(t, 2, nerr.Source.Line)
		assert.Contains(t, err.Error(), "input.css:2:3")
	})

	t.Run("silent", func(t *testing.T) {
		out := processString(t, mixin.Options{Silent: true}, "a { @mixin nope 1px; color: red; }")
		assert.Equal(t, "a {\n  @mixin nope 1px;\n  color: red;\n}\n", out)
	})
}

func TestProcess_Malformed(t *testing.T) {
	_, err := process(t, mixin.Options{}, "@define-mixin box $s { width: $s; }\na { @mixin box(1px); }")
	require.Error(t, err)
	assert.ErrorIs(t, err, mixin.ErrMalformedInvocation)

	_, err = process(t, mixin.Options{Silent: true}, "a { @mixin unknown(1px); }")
	assert.ErrorIs(t, err, mixin.ErrMalformedInvocation)
}

func TestProcess_StaticMixins(t *testing.T) {
	def, err := css.Parse([]byte("@define-mixin ignored $w: 1px { width: $w; }"), "static.css")
	require.NoError(t, err)

	opts := mixin.Options{
		Mixins: map[string]any{
			"tree": def.Nodes()[0],
			"obj": map[string]any{
				"marginTop":   10,
				"zIndex":      2,
				"@media print": map[string]any{"display": "none"},
			},
			"gen": func(node *css.Node, args ...string) (any, error) {
				return map[string]any{"width": args[0]}, nil
			},
			"bad": 42,
		},
	}

	out := processString(t, opts, "a { @mixin tree 3px; }\nb { @mixin obj; }\nc { @mixin gen 50%; }")
	assert.Equal(t,
		"a {\n  width: 3px;\n}\n\nb {\n  @media print {\n    display: none;\n  }\n  margin-top: 10px;\n  z-index: 2;\n}\n\nc {\n  width: 50%;\n}\n",
		out)

	_, err = process(t, opts, "a { @mixin bad; }")
	assert.ErrorIs(t, err, mixin.ErrInvalidMixinType)
}

func TestProcess_GeneratorSeesExpandedContent(t *testing.T) {
	var seen []string
	opts := mixin.Options{
		Mixins: map[string]any{
			"count": mixin.Generator(func(node *css.Node, args ...string) (any, error) {
				for _, c := range node.Nodes() {
					seen = append(seen, c.String())
				}
				return []*css.Node{css.NewDecl("count", "1")}, nil
			}),
			"red": map[string]any{"color": "red"},
		},
	}

	out := processString(t, opts, "a { @mixin count { @mixin red; } }")
	assert.Equal(t, "a {\n  count: 1;\n}\n", out)
	assert.Equal(t, []string{"color: red;\n"}, seen)
}

func TestProcess_GeneratorError(t *testing.T) {
	boom := errors.New("boom")
	opts := mixin.Options{
		Mixins: map[string]any{
			"fail": mixin.Generator(func(*css.Node, ...string) (any, error) { return nil, boom }),
		},
	}
	_, err := process(t, opts, "a { @mixin fail; }")
	assert.ErrorIs(t, err, boom)
}

func TestProcess_LocalOverridesGlobal(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"foo.css": "@define-mixin foo { color: global; }\n@define-mixin bar { color: bar; }",
	})

	opts := mixin.Options{MixinsDir: []string{dir}, Parent: "input.css"}
	res, err := process(t, opts, "@define-mixin foo { color: local; }\na { @mixin foo; @mixin bar; }")
	require.NoError(t, err)
	assert.Equal(t, "a {\n  color: local;\n  color: bar;\n}\n", res.Root.String())

	file := filepath.Join(dir, "foo.css")
	assert.Equal(t, []mixin.Notice{
		{Kind: mixin.FileDependency, File: file, Parent: "input.css"},
		{Kind: mixin.FileDependency, File: file, Parent: "input.css"},
		{Kind: mixin.DirectoryDependency, Dir: dir, Glob: mixin.MixinsGlob},
	}, res.Notices)
}

func TestProcess_GlobalOverridesStatic(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{"foo.css": "@define-mixin foo { color: global; }"})

	opts := mixin.Options{
		MixinsFiles: []string{filepath.Join(dir, "*.css")},
		Mixins:      map[string]any{"foo": map[string]any{"color": "static"}},
	}
	out := processString(t, opts, "a { @mixin foo; }")
	assert.Equal(t, "a {\n  color: global;\n}\n", out)
}

func TestProcess_DirNoticesAreUnique(t *testing.T) {
	dir := t.TempDir()
	res, err := process(t, mixin.Options{MixinsDir: []string{dir, dir}}, "a { top: 0; }")
	require.NoError(t, err)
	assert.Equal(t, []mixin.Notice{{Kind: mixin.DirectoryDependency, Dir: dir, Glob: mixin.MixinsGlob}}, res.Notices)
}

func TestProcess_MissingDirIsNotFatal(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing")
	res, err := process(t, mixin.Options{MixinsDir: []string{missing}, Silent: true}, "a { @mixin foo; }")
	require.NoError(t, err)
	assert.Equal(t, "a {\n  @mixin foo;\n}\n", res.Root.String())
	assert.Equal(t, []mixin.Notice{{Kind: mixin.DirectoryDependency, Dir: missing, Glob: mixin.MixinsGlob}}, res.Notices)
}

func TestProcess_BrokenStyleFileIsFatal(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{"bad.css": "@define-mixin bad { color: red;"})

	res, err := process(t, mixin.Options{MixinsDir: []string{dir}, Parent: "site.css"}, "a { top: 0; }")
	require.Error(t, err)
	assert.ErrorIs(t, err, mixin.ErrStyleMixinFileParse)
	assert.ErrorIs(t, err, css.ErrSyntax)

	// dependencies are known even though processing failed
	require.NotNil(t, res)
	assert.Equal(t, []mixin.Notice{
		{Kind: mixin.FileDependency, File: filepath.Join(dir, "bad.css"), Parent: "site.css"},
		{Kind: mixin.DirectoryDependency, Dir: dir, Glob: mixin.MixinsGlob},
	}, res.Notices)
}

func TestProcess_Cancelled(t *testing.T) {
	root, err := css.Parse([]byte("a { top: 0; }"), "input.css")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = mixin.New(mixin.Options{}).Process(ctx, root)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestProcessor_Patterns(t *testing.T) {
	p := mixin.New(mixin.Options{
		MixinsDir:   []string{"mixins", "shared"},
		MixinsFiles: []string{`extra\one.css`},
	})
	assert.Equal(t, []string{
		"mixins/" + mixin.MixinsGlob,
		"shared/" + mixin.MixinsGlob,
		"extra/one.css",
	}, p.Patterns())
}

func TestSession_Hooks(t *testing.T) {
	root, err := css.Parse([]byte("@define-mixin m $x { left: $x; }\na { @mixin m 1px; }"), "input.css")
	require.NoError(t, err)

	s := mixin.New(mixin.Options{Log: zaptest.NewLogger(t)}).Session()
	require.NoError(t, s.Once(root))

	def := root.Nodes()[0]
	require.NoError(t, s.AtRule(def))
	assert.Equal(t, []string{"m"}, s.Registry().Names())
	require.Len(t, root.Nodes(), 1)

	inv := root.Nodes()[0].Nodes()[0]
	require.NoError(t, s.AtRule(inv))
	require.NoError(t, s.OnceExit(root))

	assert.Equal(t, "a {\n  left: 1px;\n}\n", root.String())
	assert.Empty(t, s.Notices())
	assert.NotEmpty(t, s.ID())
	assert.NotEqual(t, s.ID(), mixin.New(mixin.Options{}).Session().ID())
}

func TestProcess_UsedMixins(t *testing.T) {
	res, err := process(t, mixin.Options{Silent: true}, `
@define-mixin a { color: red; }
@define-mixin b { color: blue; }
x { @mixin b; @mixin a; @mixin b; @mixin unknown; }
`)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, res.Used)
}
