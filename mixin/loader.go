package mixin

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/maruel/natural"
	"go.uber.org/zap"

	"pmix/css"
)

// Loader reads mixin definitions from files matching glob patterns.
type Loader struct {
	dir   string
	cache *ModuleCache
	log   *zap.Logger
}

// NewLoader creates loader resolving relative patterns against dir (current
// directory when empty). Modules are loaded through cache, which may be nil.
func NewLoader(dir string, cache *ModuleCache, log *zap.Logger) *Loader {
	if cache == nil {
		cache = NewModuleCache()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Loader{dir: dir, cache: cache, log: log.Named("loader")}
}

// Files resolves patterns to naturally ordered list of unique absolute file
// names. Matching is case sensitive on every platform, doublestar does not
// fold case unless asked to.
func (l *Loader) Files(patterns []string) ([]string, error) {
	var files []string
	seen := make(map[string]bool)
	for _, pattern := range patterns {
		pattern = filepath.ToSlash(pattern)
		if !filepath.IsAbs(filepath.FromSlash(pattern)) && l.dir != "" {
			pattern = filepath.ToSlash(l.dir) + "/" + pattern
		}
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("%w: bad pattern %q", ErrGlobalLoadPhase, pattern)
		}
		base, _ := doublestar.SplitPattern(pattern)
		if _, err := os.Stat(filepath.FromSlash(base)); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrGlobalLoadPhase, err)
		}
		matches, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly(), doublestar.WithFailOnIOErrors())
		if err != nil {
			return nil, fmt.Errorf("%w: pattern %q: %w", ErrGlobalLoadPhase, pattern, err)
		}
		for _, m := range matches {
			abs, err := filepath.Abs(m)
			if err != nil {
				return nil, fmt.Errorf("%w: %w", ErrGlobalLoadPhase, err)
			}
			if !seen[abs] {
				seen[abs] = true
				files = append(files, abs)
			}
		}
	}
	sort.Sort(natural.StringSlice(files))
	return files, nil
}

// Load reads every file matching patterns and returns registry with their
// definitions together with dependency notices for module imports. Style
// file parse errors abort loading, notices collected so far and the broken
// file itself are returned with the error. Broken modules are skipped.
// Unchanged modules come from cache.
func (l *Loader) Load(patterns []string) (*Registry, []Notice, error) {
	files, err := l.Files(patterns)
	if err != nil {
		return nil, nil, err
	}

	reg := NewRegistry()
	var notices []Notice
	for _, file := range files {
		ext := strings.ToLower(filepath.Ext(file))
		switch ext {
		case ".css", ".pcss", ".sss":
			if err := l.loadStyle(reg, file, ext == ".sss"); err != nil {
				// broken file is still a dependency, fixing it must trigger rebuild
				return nil, append(notices, fileNotice(file, "")), err
			}
		default:
			mod, err := l.cache.Load(file, LoadModule)
			if err != nil {
				l.log.Debug("Skipping mixin module", zap.String("file", file), zap.Error(err))
				continue
			}
			name := strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
			reg.Set(&Definition{Name: name, Body: mod.Body, File: file})
			for _, dep := range mod.Deps {
				if dep != file {
					notices = append(notices, fileNotice(dep, file))
				}
			}
		}
	}
	l.log.Debug("Global mixins loaded", zap.Int("files", len(files)), zap.Strings("mixins", reg.Names()), zap.Int("cached modules", l.cache.Len()))
	return reg, notices, nil
}

func (l *Loader) loadStyle(reg *Registry, file string, sugar bool) error {
	data, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStyleMixinFileParse, err)
	}
	if data, err = css.Decode(data); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrStyleMixinFileParse, file, err)
	}

	parser := css.NewParser(l.log)
	var root *css.Node
	if sugar {
		root, err = parser.ParseSugar(data, file)
	} else {
		root, err = parser.Parse(data, file)
	}
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStyleMixinFileParse, err)
	}

	return root.WalkAtRules(func(node *css.Node) error {
		reg.Set(Capture(node, file))
		return nil
	}, DefineName)
}
