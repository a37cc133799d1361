// Package substitute inlines forwarded environment values into JavaScript
// and TypeScript sources at compile time.
//
// Every reference to a forwarded key under one of the configured prefixes,
// for example import.meta.env.PUBLIC_DEPLOYED_URL, is replaced by a string
// literal holding the value, or by undefined when the variable was unset.
package substitute

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/sirupsen/logrus"

	"github.com/moolen/publicenv/pkg/injector"
	"github.com/moolen/publicenv/pkg/render"
)

type Options struct {
	// Prefixes are the expression namespaces to rewrite. Defaults to
	// render.DefaultPrefix.
	Prefixes []string
	// Loader is one of js, jsx, ts or tsx. Empty means infer from Sourcefile.
	Loader string
	Minify bool
	// Sourcefile names the input in diagnostics.
	Sourcefile string
}

var (
	ErrUnknownLoader = errors.New("unknown loader")
	// ErrOutputConflict is returned when two inputs would be written to the
	// same output file, or an output would overwrite an input.
	ErrOutputConflict = errors.New("output conflict")
)

var loaders = map[string]api.Loader{
	"js":  api.LoaderJS,
	"mjs": api.LoaderJS,
	"cjs": api.LoaderJS,
	"jsx": api.LoaderJSX,
	"ts":  api.LoaderTS,
	"mts": api.LoaderTS,
	"cts": api.LoaderTS,
	"tsx": api.LoaderTSX,
}

func (o Options) loader() (api.Loader, error) {
	name := o.Loader
	if name == "" {
		name = strings.TrimPrefix(filepath.Ext(o.Sourcefile), ".")
		if name == "" {
			return api.LoaderJS, nil
		}
	}
	l, ok := loaders[strings.ToLower(name)]
	if !ok {
		return api.LoaderNone, fmt.Errorf("%w %q", ErrUnknownLoader, name)
	}
	return l, nil
}

// Transform rewrites src with the values in rec.
func Transform(src string, rec *injector.Record, opts Options) (string, error) {
	loader, err := opts.loader()
	if err != nil {
		return "", err
	}
	if err := render.CheckUTF8(rec); err != nil {
		return "", err
	}

	result := api.Transform(src, api.TransformOptions{
		Loader:            loader,
		Define:            render.Defines(rec, opts.Prefixes...),
		Sourcefile:        opts.Sourcefile,
		Charset:           api.CharsetUTF8,
		LogLevel:          api.LogLevelSilent,
		MinifyWhitespace:  opts.Minify,
		MinifySyntax:      opts.Minify,
		MinifyIdentifiers: opts.Minify,
	})
	for _, w := range result.Warnings {
		logrus.Warnf("esbuild: %s", formatMessage(w))
	}
	if len(result.Errors) > 0 {
		errs := make([]error, 0, len(result.Errors))
		for _, m := range result.Errors {
			errs = append(errs, errors.New(formatMessage(m)))
		}
		return "", fmt.Errorf("failed to transform %s: %w", displayName(opts.Sourcefile), errors.Join(errs...))
	}
	return string(result.Code), nil
}

// Files transforms each path and writes the result to outDir under the same
// base name. Nothing is written if two paths share a base name or a target
// would replace one of the inputs. Cancelling ctx stops before the next file.
func Files(ctx context.Context, paths []string, outDir string, rec *injector.Record, opts Options) error {
	targets, err := outputTargets(paths, outDir)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}
	for i, p := range paths {
		if err := ctx.Err(); err != nil {
			return err
		}
		out, err := File(p, rec, opts)
		if err != nil {
			return err
		}
		target := targets[i]
		logrus.Debugf("Writing %s", target)
		if err := os.WriteFile(target, []byte(out), 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", target, err)
		}
	}
	return nil
}

func outputTargets(paths []string, outDir string) ([]string, error) {
	inputs := make(map[string]string, len(paths))
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %s: %w", p, err)
		}
		inputs[abs] = p
	}

	targets := make([]string, 0, len(paths))
	written := make(map[string]string, len(paths))
	for _, p := range paths {
		target := filepath.Join(outDir, filepath.Base(p))
		abs, err := filepath.Abs(target)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %s: %w", target, err)
		}
		if prev, ok := written[abs]; ok {
			return nil, fmt.Errorf("%w: %s and %s both write %s", ErrOutputConflict, prev, p, target)
		}
		if in, ok := inputs[abs]; ok {
			return nil, fmt.Errorf("%w: %s would overwrite input %s", ErrOutputConflict, target, in)
		}
		written[abs] = p
		targets = append(targets, target)
	}
	return targets, nil
}

// File reads and transforms a single source file.
func File(path string, rec *injector.Record, opts Options) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	opts.Sourcefile = path
	return Transform(string(data), rec, opts)
}

func formatMessage(m api.Message) string {
	if m.Location == nil {
		return m.Text
	}
	return fmt.Sprintf("%s:%d:%d: %s", displayName(m.Location.File), m.Location.Line, m.Location.Column, m.Text)
}

func displayName(file string) string {
	if file == "" {
		return "<stdin>"
	}
	return file
}
