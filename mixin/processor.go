package mixin

import (
	"context"
	"errors"
	"maps"
	"path/filepath"
	"slices"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"pmix/css"
)

// Options configure Processor.
type Options struct {
	// Mixins are static mixins available to every document. Values may be
	// *css.Node (@define-mixin at-rule), *css.Object, map[string]any,
	// Generator or a function with Generator signature.
	Mixins map[string]any
	// MixinsDir lists directories to load global mixins from.
	MixinsDir []string
	// MixinsFiles lists additional glob patterns of global mixin files.
	MixinsFiles []string
	// Silent leaves invocations of undefined mixins untouched.
	Silent bool
	// Parent is reported as parent of global mixin file dependencies.
	Parent string
	// Dir is used to resolve relative patterns, current directory when empty.
	Dir string
	// Cache keeps loaded modules between sessions, private cache is used
	// when nil.
	Cache *ModuleCache
	Log   *zap.Logger
}

// Processor expands mixins in stylesheet trees. It is safe to use the same
// Processor for many documents, every document gets its own Session.
type Processor struct {
	opts     Options
	loadFrom []string
	log      *zap.Logger
}

// Result is the outcome of processing a single document.
type Result struct {
	Root    *css.Node
	Notices []Notice
	// Used lists expanded mixins in order of first use.
	Used []string
}

// New creates processor for opts.
func New(opts Options) *Processor {
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	if opts.Cache == nil {
		opts.Cache = NewModuleCache()
	}

	var loadFrom []string
	for _, dir := range opts.MixinsDir {
		loadFrom = append(loadFrom, filepath.Join(dir, MixinsGlob))
	}
	loadFrom = append(loadFrom, opts.MixinsFiles...)
	for i := range loadFrom {
		loadFrom[i] = strings.ReplaceAll(loadFrom[i], `\`, "/")
	}

	return &Processor{opts: opts, loadFrom: loadFrom, log: log.Named("mixins")}
}

// Patterns returns glob patterns global mixins are loaded from.
func (p *Processor) Patterns() []string {
	return slices.Clone(p.loadFrom)
}

// Session holds per document state: registry and collected notices. Hosts
// driving their own traversal call Once before visiting, AtRule for every
// visited at-rule and OnceExit at the end.
type Session struct {
	p       *Processor
	id      string
	reg     *Registry
	exp     *Expander
	notices []Notice
	log     *zap.Logger
}

// Session starts processing of a new document. Registry is seeded with
// static mixins.
func (p *Processor) Session() *Session {
	reg := NewRegistry()
	for _, name := range slices.Sorted(maps.Keys(p.opts.Mixins)) {
		reg.Set(Static(name, p.opts.Mixins[name]))
	}
	id := uuid.New().String()
	log := p.log.With(zap.String("session", id))
	return &Session{
		p:   p,
		id:  id,
		reg: reg,
		exp: NewExpander(reg, p.opts.Silent, log),
		log: log,
	}
}

// Once loads global mixins. Failure to resolve patterns is logged and
// ignored, global mixins are unavailable for the session then. Broken style
// mixin files fail the session.
func (s *Session) Once(root *css.Node) error {
	if len(s.p.loadFrom) == 0 {
		return nil
	}

	global, notices, err := NewLoader(s.p.opts.Dir, s.p.opts.Cache, s.log).Load(s.p.loadFrom)
	for _, n := range notices {
		if n.Parent == "" {
			n.Parent = s.p.opts.Parent
		}
		s.notices = append(s.notices, n)
	}
	if err != nil {
		if errors.Is(err, ErrGlobalLoadPhase) {
			s.log.Warn("Unable to load global mixins, continuing without them", zap.Strings("patterns", s.p.loadFrom), zap.Error(err))
			return nil
		}
		return err
	}

	for _, name := range global.Names() {
		def, _ := global.Get(name)
		s.notices = append(s.notices, fileNotice(def.File, s.p.opts.Parent))
		s.reg.Set(def)
	}
	return nil
}

// AtRule handles mixin related at-rules: definitions are captured into
// registry, invocations are expanded. Other at-rules are ignored.
func (s *Session) AtRule(node *css.Node) error {
	switch node.Name {
	case DefineName:
		s.reg.Set(Capture(node, ""))
	case UseName, AddName:
		return s.exp.Expand(node)
	}
	return nil
}

// OnceExit reports mixin directories as dependencies.
func (s *Session) OnceExit(root *css.Node) error {
	seen := make(map[string]bool)
	for _, dir := range s.p.opts.MixinsDir {
		if seen[dir] {
			continue
		}
		seen[dir] = true
		s.notices = append(s.notices, dirNotice(dir))
	}
	return nil
}

// ID identifies session in logs.
func (s *Session) ID() string {
	return s.id
}

// Registry returns session registry.
func (s *Session) Registry() *Registry {
	return s.reg
}

// Notices returns dependency notices collected so far.
func (s *Session) Notices() []Notice {
	return slices.Clone(s.notices)
}

// Process expands all mixins in root in place. On failure the result is
// returned too, tree is left half expanded but notices cover everything
// the document depends on, so the caller could rebuild once it is fixed.
func (p *Processor) Process(ctx context.Context, root *css.Node) (*Result, error) {
	s := p.Session()
	s.log.Debug("Processing started", zap.String("source", root.Source.File))

	err := s.Once(root)
	if err == nil {
		err = s.visit(ctx, root)
	}
	if exitErr := s.OnceExit(root); err == nil {
		err = exitErr
	}
	if err != nil {
		return &Result{Root: root, Notices: s.Notices(), Used: s.exp.Used()}, err
	}

	s.log.Debug("Processing completed", zap.String("source", root.Source.File), zap.Int("notices", len(s.notices)))
	return &Result{Root: root, Notices: s.Notices(), Used: s.exp.Used()}, nil
}

// visit walks children of container by index. Handlers may remove the
// visited node or insert nodes before it, in both cases the same index is
// visited again so inserted nodes get processed too.
func (s *Session) visit(ctx context.Context, container *css.Node) error {
	for i := 0; i < len(container.Nodes()); {
		if err := ctx.Err(); err != nil {
			return err
		}

		node := container.Nodes()[i]
		if node.Kind == css.KindAtRule {
			if err := s.AtRule(node); err != nil {
				return err
			}
		}

		nodes := container.Nodes()
		if i >= len(nodes) || nodes[i] != node {
			continue
		}
		if len(node.Nodes()) > 0 {
			if err := s.visit(ctx, node); err != nil {
				return err
			}
		}
		i++
	}
	return nil
}
