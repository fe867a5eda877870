package process

import (
	"archive/zip"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"golang.org/x/text/encoding/charmap"

	"pmix/config"
	"pmix/mixin"
	"pmix/state"
)

// setupTestEnv creates a test environment with proper context and logger
func setupTestEnv(t *testing.T) (context.Context, *state.LocalEnv) {
	t.Helper()
	cfg, err := config.LoadConfiguration("")
	require.NoError(t, err, "load config")

	ctx := state.ContextWithEnv(context.Background())
	env := state.EnvFromContext(ctx)
	env.Log = zaptest.NewLogger(t, zaptest.WrapOptions(zap.AddCaller(), zap.AddCallerSkip(1)))
	env.Cfg = cfg
	return ctx, env
}

func testRunner(t *testing.T, env *state.LocalEnv, dst string) *runner {
	t.Helper()
	r, err := newRunner(env, dst, env.Log)
	require.NoError(t, err)
	return r
}

func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func makeArchive(t *testing.T, path string, files map[string]string, nonUTF8 bool) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	w := zip.NewWriter(f)
	for name, content := range files {
		fw, err := w.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate, NonUTF8: nonUTF8})
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
}

const buttonMixins = `@define-mixin button $bg: blue {
  background: $bg;
  padding: 4px;
}
`

func TestProcess_SingleFile(t *testing.T) {
	ctx, env := setupTestEnv(t)

	srcDir, mixDir, dstDir := t.TempDir(), t.TempDir(), t.TempDir()
	writeFiles(t, mixDir, map[string]string{"buttons.css": buttonMixins})
	writeFiles(t, srcDir, map[string]string{"site.css": ".ok { @mixin button green; }\n"})
	env.MixinsDirs = []string{mixDir}

	b, err := testRunner(t, env, dstDir).process(ctx, filepath.Join(srcDir, "site.css"), dstDir)
	require.NoError(t, err)

	assert.Equal(t, 1, b.count)
	assert.Equal(t, []string{filepath.Join(srcDir, "site.css")}, b.inputs)
	assert.Equal(t, ".ok {\n  background: green;\n  padding: 4px;\n}\n", readFile(t, filepath.Join(dstDir, "site.css")))

	require.Len(t, b.notices, 2)
	assert.Equal(t, mixin.FileDependency, b.notices[0].Kind)
	assert.Equal(t, filepath.Join(mixDir, "buttons.css"), b.notices[0].File)
	assert.Equal(t, mixin.DirectoryDependency, b.notices[1].Kind)
}

func TestProcess_SugarSource(t *testing.T) {
	ctx, env := setupTestEnv(t)

	srcDir, dstDir := t.TempDir(), t.TempDir()
	writeFiles(t, srcDir, map[string]string{
		"theme.sss": "@define-mixin hidden\n  display: none\n.a\n  @mixin hidden\n",
	})

	_, err := testRunner(t, env, dstDir).process(ctx, filepath.Join(srcDir, "theme.sss"), dstDir)
	require.NoError(t, err)
	assert.Equal(t, ".a {\n  display: none;\n}\n", readFile(t, filepath.Join(dstDir, "theme.css")))
}

func TestProcess_Directory(t *testing.T) {
	ctx, env := setupTestEnv(t)

	srcDir, dstDir := t.TempDir(), t.TempDir()
	writeFiles(t, srcDir, map[string]string{
		"mixins/buttons.css":      buttonMixins,
		"pages/home.pcss":         ".home { @mixin button; }\n",
		"pages/about/about.css":   ".about { @mixin button red; }\n",
		"pages/broken.css":        ".x { @mixin missing; }\n",
		"notes.txt":               "not a stylesheet",
		"components/spacing.json": `{"margin": 0}`,
	})
	env.MixinsDirs = []string{filepath.Join(srcDir, "mixins")}

	b, err := testRunner(t, env, dstDir).process(ctx, srcDir, dstDir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unable to process directory")
	assert.ErrorIs(t, err, mixin.ErrUndefinedMixin)
	assert.Len(t, multierr.Errors(errorsUnwrap(err)), 1)

	// mixin directory is not processed as source
	assert.Equal(t, 3, b.count)
	assert.NoFileExists(t, filepath.Join(dstDir, "mixins", "buttons.css"))

	assert.Equal(t, ".home {\n  background: blue;\n  padding: 4px;\n}\n", readFile(t, filepath.Join(dstDir, "pages", "home.css")))
	assert.Equal(t, ".about {\n  background: red;\n  padding: 4px;\n}\n", readFile(t, filepath.Join(dstDir, "pages", "about", "about.css")))
	assert.NoFileExists(t, filepath.Join(dstDir, "pages", "broken.css"))
}

// errorsUnwrap strips single level of fmt.Errorf wrapping.
func errorsUnwrap(err error) error {
	if u, ok := err.(interface{ Unwrap() error }); ok {
		return u.Unwrap()
	}
	return err
}

func TestProcess_DestinationInsideSource(t *testing.T) {
	ctx, env := setupTestEnv(t)

	srcDir := t.TempDir()
	dstDir := filepath.Join(srcDir, "out")
	writeFiles(t, srcDir, map[string]string{
		"a.css":       "a { color: red; }\n",
		"out/old.css": "stale { }\n",
	})

	b, err := testRunner(t, env, dstDir).process(ctx, srcDir, dstDir)
	require.NoError(t, err)
	assert.Equal(t, 1, b.count)
	assert.FileExists(t, filepath.Join(dstDir, "a.css"))
	assert.NoFileExists(t, filepath.Join(dstDir, "out", "old.css"))
}

func TestProcess_Silent(t *testing.T) {
	ctx, env := setupTestEnv(t)

	srcDir, dstDir := t.TempDir(), t.TempDir()
	writeFiles(t, srcDir, map[string]string{"a.css": "a { @mixin later; }\n"})

	env.Silent = true
	_, err := testRunner(t, env, dstDir).process(ctx, filepath.Join(srcDir, "a.css"), dstDir)
	require.NoError(t, err)
	assert.Equal(t, "a {\n  @mixin later;\n}\n", readFile(t, filepath.Join(dstDir, "a.css")))
}

func TestProcess_Archive(t *testing.T) {
	ctx, env := setupTestEnv(t)

	srcDir, dstDir := t.TempDir(), t.TempDir()
	zipPath := filepath.Join(srcDir, "theme.zip")
	makeArchive(t, zipPath, map[string]string{
		"theme/base.css":   "@define-mixin pad { padding: 1px; }\n.base { @mixin pad; }\n",
		"theme/readme.txt": "docs",
		"other/extra.css":  "x { y: z; }\n",
	}, false)

	t.Run("whole archive", func(t *testing.T) {
		out := filepath.Join(dstDir, "all")
		b, err := testRunner(t, env, out).process(ctx, zipPath, out)
		require.NoError(t, err)
		assert.Equal(t, 2, b.count)
		assert.Equal(t, []string{zipPath}, b.inputs)
		assert.Equal(t, ".base {\n  padding: 1px;\n}\n", readFile(t, filepath.Join(out, "theme", "base.css")))
		assert.FileExists(t, filepath.Join(out, "other", "extra.css"))
	})

	t.Run("path inside archive", func(t *testing.T) {
		out := filepath.Join(dstDir, "part")
		b, err := testRunner(t, env, out).process(ctx, filepath.Join(zipPath, "theme"), out)
		require.NoError(t, err)
		assert.Equal(t, 1, b.count)
		assert.NoFileExists(t, filepath.Join(out, "other", "extra.css"))
	})

	t.Run("missing path inside archive", func(t *testing.T) {
		out := filepath.Join(dstDir, "missing")
		_, err := testRunner(t, env, out).process(ctx, filepath.Join(zipPath, "nothing"), out)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not found in archive")
	})
}

func TestProcess_ArchiveCodePage(t *testing.T) {
	ctx, env := setupTestEnv(t)

	srcDir, dstDir := t.TempDir(), t.TempDir()
	name, err := charmap.CodePage866.NewEncoder().String("тема.css")
	require.NoError(t, err)
	zipPath := filepath.Join(srcDir, "old.zip")
	makeArchive(t, zipPath, map[string]string{name: "a { b: c; }\n"}, true)

	env.CodePage = charmap.CodePage866
	_, err = testRunner(t, env, dstDir).process(ctx, zipPath, dstDir)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dstDir, "тема.css"))
}

func TestProcess_Errors(t *testing.T) {
	ctx, env := setupTestEnv(t)
	srcDir, dstDir := t.TempDir(), t.TempDir()
	writeFiles(t, srcDir, map[string]string{
		"notes.txt": "not a stylesheet",
		"image.css": "\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR",
		"bad.css":   "a { color: red;\n",
		"sub/a.css": "a {}",
	})

	tests := []struct {
		name string
		src  string
		want string
	}{
		{name: "nonexistent", src: "/nonexistent/path/file.css", want: "input source was not found"},
		{name: "not a stylesheet", src: filepath.Join(srcDir, "notes.txt"), want: "input was not recognized as stylesheet"},
		{name: "directory with tail", src: filepath.Join(srcDir, "sub", "missing.css"), want: "input source was not found"},
		{name: "binary content", src: filepath.Join(srcDir, "image.css"), want: "looks like png"},
		{name: "syntax error", src: filepath.Join(srcDir, "bad.css"), want: "unable to parse source"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := testRunner(t, env, dstDir).process(ctx, tt.src, dstDir)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestProcess_CancelledContext(t *testing.T) {
	ctx, env := setupTestEnv(t)
	cancelCtx, cancel := context.WithCancel(ctx)
	cancel()

	tmpDir := t.TempDir()
	_, err := testRunner(t, env, tmpDir).process(cancelCtx, tmpDir, tmpDir)
	assert.Equal(t, context.Canceled, err)
}

func TestProcess_EmptyDirectory(t *testing.T) {
	ctx, env := setupTestEnv(t)
	srcDir, dstDir := t.TempDir(), t.TempDir()

	b, err := testRunner(t, env, dstDir).process(ctx, srcDir, dstDir)
	require.NoError(t, err)
	assert.Zero(t, b.count)
}

func TestProcessStylesheet_Overwrite(t *testing.T) {
	ctx, env := setupTestEnv(t)
	srcDir, dstDir := t.TempDir(), t.TempDir()
	writeFiles(t, srcDir, map[string]string{"a.css": "a { color: red; }\n"})
	writeFiles(t, dstDir, map[string]string{"a.css": "old"})
	src := filepath.Join(srcDir, "a.css")

	_, err := testRunner(t, env, dstDir).process(ctx, src, dstDir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "output file already exists")
	assert.Equal(t, "old", readFile(t, filepath.Join(dstDir, "a.css")))

	env.Overwrite = true
	_, err = testRunner(t, env, dstDir).process(ctx, src, dstDir)
	require.NoError(t, err)
	assert.Equal(t, "a {\n  color: red;\n}\n", readFile(t, filepath.Join(dstDir, "a.css")))
}

func TestProcessStylesheet_RefusesToReplaceSource(t *testing.T) {
	ctx, env := setupTestEnv(t)
	srcDir := t.TempDir()
	writeFiles(t, srcDir, map[string]string{"a.css": "a { color: red; }\n"})

	env.Overwrite = true
	_, err := testRunner(t, env, srcDir).process(ctx, filepath.Join(srcDir, "a.css"), srcDir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "would overwrite source")
	assert.Equal(t, "a { color: red; }\n", readFile(t, filepath.Join(srcDir, "a.css")))
}

func TestProcessStylesheet_Report(t *testing.T) {
	ctx, env := setupTestEnv(t)

	srcDir, mixDir, dstDir := t.TempDir(), t.TempDir(), t.TempDir()
	writeFiles(t, mixDir, map[string]string{"buttons.css": buttonMixins})
	writeFiles(t, srcDir, map[string]string{
		"a.css": ".a { @mixin button; }\n",
		"b.css": ".b { @mixin button; }\n",
	})
	env.MixinsDirs = []string{mixDir}

	rptCfg := config.ReporterConfig{Destination: filepath.Join(t.TempDir(), "report.zip")}
	rpt, err := rptCfg.Prepare()
	require.NoError(t, err)
	env.Rpt = rpt

	_, err = testRunner(t, env, dstDir).process(ctx, srcDir, dstDir)
	require.NoError(t, err)
	require.NoError(t, rpt.Close())

	zr, err := zip.OpenReader(rpt.Name())
	require.NoError(t, err)
	defer zr.Close()

	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	joined := strings.Join(names, "\n")
	assert.Contains(t, names, "sources/a.css")
	assert.Contains(t, names, "results/b.css")
	assert.Contains(t, names, "mixins/buttons.css")
	// mixin file is stored once per run
	assert.Equal(t, 1, strings.Count(joined, "mixins/buttons.css"))
	assert.Equal(t, 2, strings.Count(joined, "notices/"))
	assert.Equal(t, 2, strings.Count(joined, "trees/"))

	// expanded tree dump
	for _, f := range zr.File {
		if !strings.HasPrefix(f.Name, "trees/a.css-") {
			continue
		}
		rc, err := f.Open()
		require.NoError(t, err)
		data, err := io.ReadAll(rc)
		rc.Close()
		require.NoError(t, err)
		assert.Contains(t, string(data), "decl background")
		assert.Contains(t, string(data), "decl padding")
	}
}
