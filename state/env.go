// Package state defines shared program state.
package state

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/encoding"

	"pmix/config"
	"pmix/mixin"
)

type envKey struct{}

// LocalEnv keeps everything program needs in a single place.
type LocalEnv struct {
	Cfg *config.Config
	Rpt *config.Report
	Log *zap.Logger

	// Cache keeps loaded mixin modules for the whole run, every stylesheet of
	// a directory or archive and every watch iteration reuses unchanged ones.
	Cache *mixin.ModuleCache

	// used by process and watch subcommands
	NoDirs      bool
	Overwrite   bool
	Silent      bool
	MixinsDirs  []string
	MixinsFiles []string
	Parent      string
	CodePage    encoding.Encoding

	start         time.Time
	restoreStdLog func()
}

func EnvFromContext(ctx context.Context) *LocalEnv {
	if env, ok := ctx.Value(envKey{}).(*LocalEnv); ok {
		return env
	}
	// this should never happen
	panic("localenv not found in context")
}

func ContextWithEnv(ctx context.Context) context.Context {
	return context.WithValue(ctx, envKey{}, newLocalEnv())
}

// MixinOptions combines configuration with command line overrides. Command
// line lists are added to configured ones, flags win over configuration.
func (e *LocalEnv) MixinOptions(dir string) mixin.Options {
	opts := mixin.Options{
		MixinsDir:   append([]string{}, e.MixinsDirs...),
		MixinsFiles: append([]string{}, e.MixinsFiles...),
		Silent:      e.Silent,
		Parent:      e.Parent,
		Dir:         dir,
		Cache:       e.Cache,
		Log:         e.Log,
	}
	if e.Cfg != nil {
		opts.MixinsDir = append(append([]string{}, e.Cfg.Mixins.Dirs...), opts.MixinsDir...)
		opts.MixinsFiles = append(append([]string{}, e.Cfg.Mixins.Files...), opts.MixinsFiles...)
		opts.Silent = opts.Silent || e.Cfg.Mixins.Silent
		if opts.Parent == "" {
			opts.Parent = e.Cfg.Mixins.Parent
		}
	}
	return opts
}

func (e *LocalEnv) Uptime() time.Duration {
	return time.Since(e.start)
}

func (e *LocalEnv) RedirectStdLog() {
	if e.Log == nil {
		return
	}
	e.restoreStdLog = zap.RedirectStdLog(e.Log)
}

func (e *LocalEnv) RestoreStdLog() {
	if e.Log != nil {
		_ = e.Log.Sync()
	}
	if e.restoreStdLog != nil {
		e.restoreStdLog()
	}
}
