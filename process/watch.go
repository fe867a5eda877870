package process

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"pmix/mixin"
	"pmix/state"
	"pmix/watch"
)

// Watch processes source and then processes it again every time source or
// any mixin file it depends on changes, until interrupted.
func Watch(ctx context.Context, cmd *cli.Command) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	env := state.EnvFromContext(ctx)
	log := env.Log.Named("watch")

	src, dst, err := resolveArgs(cmd, log)
	if err != nil {
		return err
	}
	prepareEnv(cmd, env, log)

	if d := cmd.Duration("debounce"); d > 0 {
		env.Cfg.Watch.Debounce = d
	}
	return watchAndProcess(ctx, env, src, dst, log)
}

func watchAndProcess(ctx context.Context, env *state.LocalEnv, src, dst string, log *zap.Logger) error {
	// results of previous run are always replaced
	env.Overwrite = true

	w, err := watch.New(watch.Config{Debounce: env.Cfg.Watch.Debounce, Log: log})
	if err != nil {
		return err
	}
	defer w.Stop()
	changes := w.Start()

	log.Info("Watching for changes", zap.String("source", src), zap.String("destination", dst))
	for runs := 1; ; runs++ {
		r, err := newRunner(env, dst, log)
		if err != nil {
			return err
		}
		b, err := r.process(ctx, src, dst)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			log.Error("Processing failed, waiting for changes", zap.Int("run", runs), zap.Error(err))
		} else {
			log.Info("Processing completed, waiting for changes", zap.Int("run", runs), zap.Int("files", b.count))
		}

		if n := track(w, src, b, log); n == 0 {
			if err == nil {
				err = errors.New("no inputs")
			}
			return fmt.Errorf("nothing to watch: %w", err)
		}

		changed, ok := waitForChanges(ctx, changes, b.outputs)
		if !ok {
			log.Info("Watching stopped")
			return nil
		}
		log.Info("Changes detected", zap.Strings("files", changed))
		// modules and everything importing changed files are read again
		env.Cache.Evict(changed...)
	}
}

// waitForChanges skips notifications caused by our own output, which happens
// when destination is inside watched source directory.
func waitForChanges(ctx context.Context, changes <-chan []string, outputs []string) ([]string, bool) {
	for {
		select {
		case <-ctx.Done():
			return nil, false
		case changed := <-changes:
			changed = slices.DeleteFunc(changed, func(name string) bool {
				return slices.Contains(outputs, name)
			})
			if len(changed) > 0 {
				return changed, true
			}
		}
	}
}

// track replaces watched set with inputs and dependencies of the last run.
// It returns number of successfully tracked items.
func track(w *watch.Watcher, src string, b *batch, log *zap.Logger) int {
	w.Reset()

	tracked := 0
	add := func(what string, err error) {
		if err != nil {
			log.Warn("Unable to watch", zap.String("path", what), zap.Error(err))
			return
		}
		tracked++
	}

	if fi, err := os.Stat(src); err == nil && fi.IsDir() {
		add(src, w.AddTree(src))
	}
	for _, in := range b.inputs {
		add(in, w.AddFile(in))
	}
	for _, n := range b.notices {
		switch n.Kind {
		case mixin.FileDependency:
			add(n.File, w.AddFile(n.File))
		case mixin.DirectoryDependency:
			add(n.Dir, w.AddDir(n.Dir, n.Glob))
		}
	}
	return tracked
}
