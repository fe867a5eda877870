package process

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"time"

	"go.uber.org/zap"

	"pmix/css"
	"pmix/mixin"
)

// processStylesheet expands mixins in a single stylesheet. "src" is the
// source path relative to the processed input (always including file name).
// When actual file was specified it will be just base file name. "origin" is
// the real path of the source on disk, empty for sources read from archives.
// "dst" is the destination directory.
func (r *runner) processStylesheet(ctx context.Context, data []byte, src, origin, dst string, b *batch) (rerr error) {
	var outputName string

	log := r.log.With(zap.String("from", src))
	log.Info("Processing starting")
	defer func(start time.Time) {
		// generator mixins run arbitrary scripts
		if rec := recover(); rec != nil {
			log.Error("Processing ended with panic",
				zap.Any("panic", rec), zap.Duration("elapsed", time.Since(start)), zap.ByteString("stack", debug.Stack()))
			rerr = fmt.Errorf("processing panic: %v", rec)
		} else if rerr == nil {
			log.Info("Processing completed", zap.Duration("elapsed", time.Since(start)), zap.String("to", outputName))
		}
	}(time.Now())

	b.count++

	if kind := binaryKind(data); kind != "" {
		return fmt.Errorf("source looks like %s, not a stylesheet", kind)
	}

	data, err := css.Decode(data)
	if err != nil {
		return fmt.Errorf("unable to decode source (%s): %w", src, err)
	}

	from := origin
	if from == "" {
		from = filepath.ToSlash(src)
	}
	parser := css.NewParser(r.log)
	var root *css.Node
	if isSugar(src) {
		root, err = parser.ParseSugar(data, from)
	} else {
		root, err = parser.Parse(data, from)
	}
	if err != nil {
		return fmt.Errorf("unable to parse source: %w", err)
	}

	res, err := r.proc.Process(ctx, root)
	if res != nil {
		// watch mode needs dependencies of failed runs too
		b.notices = append(b.notices, res.Notices...)
	}
	if err != nil {
		return fmt.Errorf("unable to expand mixins: %w", err)
	}
	if ce := log.Check(zap.DebugLevel, "Mixins expanded"); ce != nil {
		ce.Write(zap.Strings("used", res.Used), zap.String("tree", css.Dump(res.Root)))
	}

	outputName = buildOutputPath(src, dst, res.Used, r.env)
	if origin != "" && sameFile(origin, outputName) {
		return fmt.Errorf("output file would overwrite source: %s", outputName)
	}

	// Check if output file already exists
	if _, err := os.Stat(outputName); err == nil {
		if !r.env.Overwrite {
			return fmt.Errorf("output file already exists: %s", outputName)
		}
		log.Debug("Overwriting existing file", zap.String("file", outputName))
	} else if !os.IsNotExist(err) {
		return err
	} else if err := os.MkdirAll(filepath.Dir(outputName), 0755); err != nil {
		return fmt.Errorf("unable to create output directory: %w", err)
	}

	if err := writeResult(outputName, res.Root); err != nil {
		return fmt.Errorf("unable to write output: %w", err)
	}
	b.outputs = append(b.outputs, outputName)

	r.report(src, origin, outputName, res)
	return nil
}

func writeResult(name string, root *css.Node) (err error) {
	f, err := os.Create(name)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	_, err = root.WriteTo(f)
	return err
}

func sameFile(a, b string) bool {
	if a == b {
		return true
	}
	fa, err := os.Stat(a)
	if err != nil {
		return false
	}
	fb, err := os.Stat(b)
	if err != nil {
		return false
	}
	return os.SameFile(fa, fb)
}

// report stores everything stylesheet depended on in debug report.
func (r *runner) report(src, origin, outputName string, res *mixin.Result) {
	rpt := r.env.Rpt
	if rpt == nil {
		return
	}

	name := filepath.ToSlash(src)
	if origin != "" {
		if err := rpt.StoreCopy("sources/"+name, origin); err != nil {
			r.log.Debug("Unable to store source in report", zap.String("file", origin), zap.Error(err))
		}
	}
	if err := rpt.StoreCopy("results/"+name, outputName); err != nil {
		r.log.Debug("Unable to store result in report", zap.String("file", outputName), zap.Error(err))
	}

	var sb strings.Builder
	for _, n := range res.Notices {
		sb.WriteString(n.String())
		sb.WriteByte('\n')

		if n.Kind != mixin.FileDependency || r.reported[n.File] {
			continue
		}
		r.reported[n.File] = true
		if err := rpt.StoreCopy("mixins/"+filepath.Base(n.File), n.File); err != nil {
			r.log.Debug("Unable to store mixin file in report", zap.String("file", n.File), zap.Error(err))
		}
	}
	stamp := time.Now().UnixNano()
	rpt.StoreData(fmt.Sprintf("notices/%s-%d.txt", name, stamp), []byte(sb.String()))
	rpt.StoreData(fmt.Sprintf("trees/%s-%d.txt", name, stamp), []byte(css.Dump(res.Root)))
}
