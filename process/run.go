// Package process implements "process" and "watch" commands: expanding mixins
// in stylesheet files, directories and archives.
package process

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/ianaindex"

	"pmix/archive"
	"pmix/mixin"
	"pmix/state"
)

// batch collects what a single processing run did and depended on.
type batch struct {
	count   int
	inputs  []string // sources and archives read from disk
	outputs []string
	notices []mixin.Notice
}

// runner carries state of a single processing run.
type runner struct {
	env  *state.LocalEnv
	proc *mixin.Processor
	// directories never treated as sources: mixin directories and destination
	skip     map[string]bool
	reported map[string]bool
	log      *zap.Logger
}

func newRunner(env *state.LocalEnv, dst string, log *zap.Logger) (*runner, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("unable to get working directory: %w", err)
	}
	opts := env.MixinOptions(wd)

	skip := make(map[string]bool)
	for _, dir := range append([]string{dst}, opts.MixinsDir...) {
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(wd, dir)
		}
		skip[filepath.Clean(dir)] = true
	}

	return &runner{
		env:      env,
		proc:     mixin.New(opts),
		skip:     skip,
		reported: make(map[string]bool),
		log:      log,
	}, nil
}

func Run(ctx context.Context, cmd *cli.Command) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	env := state.EnvFromContext(ctx)
	log := env.Log.Named("process")

	src, dst, err := resolveArgs(cmd, log)
	if err != nil {
		return err
	}
	prepareEnv(cmd, env, log)

	log.Info("Processing starting", zap.String("source", src), zap.String("destination", dst))
	defer func(start time.Time) {
		log.Info("Processing completed", zap.Duration("elapsed", time.Since(start)))
	}(time.Now())

	r, err := newRunner(env, dst, log)
	if err != nil {
		return err
	}
	_, err = r.process(ctx, src, dst)
	return err
}

// resolveArgs returns absolute source and destination paths from command
// line. Destination defaults to working directory.
func resolveArgs(cmd *cli.Command, log *zap.Logger) (src, dst string, err error) {
	src = cmd.Args().Get(0)
	if len(src) == 0 {
		return "", "", errors.New("no input source has been specified")
	}
	if src, err = filepath.Abs(src); err != nil {
		return "", "", err
	}

	dst = cmd.Args().Get(1)
	if len(dst) == 0 {
		if dst, err = os.Getwd(); err != nil {
			return "", "", fmt.Errorf("unable to get working directory: %w", err)
		}
	}
	if dst, err = filepath.Abs(dst); err != nil {
		return "", "", err
	}
	if cmd.Args().Len() > 2 {
		log.Warn("Malformed command line, too many destinations", zap.Strings("ignoring", cmd.Args().Slice()[2:]))
	}
	return src, dst, nil
}

// prepareEnv moves command flags into program state.
func prepareEnv(cmd *cli.Command, env *state.LocalEnv, log *zap.Logger) {
	env.NoDirs = cmd.Bool("nodirs")
	env.Overwrite = cmd.Bool("overwrite") || env.Cfg.Output.Overwrite
	env.Silent = cmd.Bool("silent")
	env.MixinsDirs = cmd.StringSlice("mixins-dir")
	env.MixinsFiles = cmd.StringSlice("mixins-file")
	env.Parent = cmd.String("parent")

	// Since zip "standard" does not define file name encoding we may need to
	// force archaic code page for old archives
	cp := cmd.String("force-zip-cp")
	if len(cp) > 0 {
		var err error
		env.CodePage, err = ianaindex.IANA.Encoding(cp)
		if err != nil || env.CodePage == nil {
			log.Warn("Unknown character set name, ignoring", zap.String("charset", cp), zap.Error(err))
			env.CodePage = nil
		} else {
			n, _ := ianaindex.IANA.Name(env.CodePage)
			log.Debug("Forcefully converting all non UTF-8 file names in archives", zap.String("charset", n))
		}
	}
}

// process determines the input type (directory, archive, path inside archive
// or single file) and processes accordingly. Returned batch is never nil.
func (r *runner) process(ctx context.Context, src, dst string) (*batch, error) {
	b := &batch{}

	var head, tail string
	for head = src; len(head) != 0; head, tail = filepath.Split(head) {
		if err := ctx.Err(); err != nil {
			return b, err
		}

		head = strings.TrimSuffix(head, string(filepath.Separator))

		fi, err := os.Stat(head)
		if err != nil {
			// does not exists - probably path in archive
			continue
		}

		if fi.Mode().IsDir() {
			if len(tail) != 0 {
				// directory cannot have tail - it would be simple file
				return b, fmt.Errorf("input source was not found (%s) => (%s)", head, strings.TrimPrefix(src, head))
			}
			if err := r.processDir(ctx, head, dst, b); err != nil {
				return b, fmt.Errorf("unable to process directory: %w", err)
			}
			break
		}

		if !fi.Mode().IsRegular() {
			return b, fmt.Errorf("unexpected path mode for (%s) => (%s)", head, strings.TrimPrefix(src, head))
		}

		isArchive, err := isArchiveFile(head)
		if err != nil {
			// checking format - but cannot open target file
			return b, fmt.Errorf("unable to check archive type: %w", err)
		}
		if isArchive {
			// we need to look inside to see if path makes sense
			tail = strings.TrimPrefix(strings.TrimPrefix(src, head), string(filepath.Separator))
			if err := r.processArchive(ctx, head, tail, "", dst, b); err != nil {
				return b, fmt.Errorf("unable to process archive: %w", err)
			}
			if b.count == 0 && len(tail) != 0 {
				return b, fmt.Errorf("input source was not found in archive (%s) => (%s)", head, tail)
			}
			break
		}

		if isStylesheet(head) && len(tail) == 0 {
			b.inputs = append(b.inputs, head)
			data, err := os.ReadFile(head)
			if err != nil {
				return b, fmt.Errorf("unable to read source: %w", err)
			}
			if err := r.processStylesheet(ctx, data, filepath.Base(head), head, dst, b); err != nil {
				return b, fmt.Errorf("unable to process stylesheet (%s): %w", head, err)
			}
			break
		}
		return b, fmt.Errorf("input was not recognized as stylesheet (%s)", head)
	}
	if len(head) == 0 {
		return b, fmt.Errorf("input source was not found (%s)", src)
	}
	return b, nil
}

// processDir walks directory tree finding stylesheets and archives and
// processes them. Failures of individual files do not stop the walk, they
// are all returned together.
func (r *runner) processDir(ctx context.Context, dir, dst string, b *batch) (err error) {
	count := b.count
	defer func() {
		if err == nil && b.count == count {
			r.log.Debug("Nothing to process", zap.String("dir", dir))
		}
	}()

	var failed error
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err != nil {
			r.log.Warn("Skipping path", zap.String("path", path), zap.Error(err))
			return nil
		}
		if d.IsDir() {
			if path != dir && r.skip[path] {
				r.log.Debug("Skipping directory", zap.String("dir", path))
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		rel := strings.TrimPrefix(strings.TrimPrefix(path, dir), string(filepath.Separator))

		isArchive, err := isArchiveFile(path)
		if err != nil {
			// checking format - but cannot open target file
			r.log.Warn("Skipping file", zap.String("file", path), zap.Error(err))
			return nil
		}
		if isArchive {
			if err := r.processArchive(ctx, path, "", filepath.Dir(rel), dst, b); err != nil {
				r.log.Error("Unable to process archive", zap.String("file", path), zap.Error(err))
				failed = multierr.Append(failed, fmt.Errorf("%s: %w", rel, err))
			}
			return nil
		}

		if !isStylesheet(path) {
			r.log.Debug("Skipping file, not recognized as stylesheet or archive", zap.String("file", path))
			return nil
		}

		b.inputs = append(b.inputs, path)
		data, err := os.ReadFile(path)
		if err == nil {
			err = r.processStylesheet(ctx, data, rel, path, dst, b)
		}
		if err != nil {
			r.log.Error("Unable to process file", zap.String("file", path), zap.Error(err))
			failed = multierr.Append(failed, fmt.Errorf("%s: %w", rel, err))
		}
		return nil
	})
	return multierr.Append(err, failed)
}

// processArchive walks all stylesheets inside archive under "pathIn" and
// processes them. "pathOut" is prepended to paths inside archive when
// building output names.
func (r *runner) processArchive(ctx context.Context, path, pathIn, pathOut, dst string, b *batch) (err error) {
	count := b.count
	defer func() {
		if err == nil && b.count == count {
			r.log.Debug("Nothing to process", zap.String("archive", path))
		}
	}()

	b.inputs = append(b.inputs, path)
	if r.env.Rpt != nil && !r.reported[path] {
		r.reported[path] = true
		if err := r.env.Rpt.StoreCopy("sources/"+filepath.Base(path), path); err != nil {
			r.log.Debug("Unable to store archive in report", zap.String("file", path), zap.Error(err))
		}
	}

	var failed error
	err = archive.Walk(path, filepath.ToSlash(pathIn), isStylesheet, func(arc string, f *zip.File) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		pathInArchive, err := archive.Name(f, r.env.CodePage)
		if err != nil {
			r.log.Warn("Unable to convert archive name from specified encoding", zap.String("archive", arc), zap.Error(err))
		}

		data, err := archive.ReadFile(f)
		if err == nil {
			err = r.processStylesheet(ctx, data, filepath.Join(pathOut, filepath.FromSlash(pathInArchive)), "", dst, b)
		}
		if err != nil {
			r.log.Error("Unable to process file in archive",
				zap.String("archive", arc), zap.String("file", f.FileHeader.Name), zap.Error(err))
			failed = multierr.Append(failed, fmt.Errorf("%s: %w", pathInArchive, err))
		}
		return nil
	})
	return multierr.Append(err, failed)
}
