package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/wudi/pdfedit/editor"
	"github.com/wudi/pdfedit/observability"
	"github.com/wudi/pdfedit/sessionfile"
)

type flattenOptions struct {
	doc    string
	output string
	keep   bool
}

func (o *flattenOptions) register(fs *flag.FlagSet) {
	fs.StringVar(&o.doc, "doc", "", "Document to edit (overrides the session's document)")
	fs.StringVar(&o.output, "o", "", "Output PDF (defaults to the session's output, then <document>-edited.pdf)")
	fs.BoolVar(&o.keep, "store", false, "Keep the document and the result as revisions in the configured storage")
}

func (a *app) flattenCmd(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("flatten", flag.ContinueOnError)
	fs.SetOutput(a.err)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: pdfedit flatten [flags] <session.yaml|session.json>\n")
		fs.PrintDefaults()
	}
	var opts flattenOptions
	opts.register(fs)
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return fmt.Errorf("%w: flatten needs one session file", errUsage)
	}
	res, err := a.flattenFile(ctx, fs.Arg(0), opts)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s: %d edits, %d bytes\n", res.output, res.edits, res.size)
	return nil
}

type flattenResult struct {
	output string
	edits  int
	size   int
}

// flattenFile applies the session at path to its document and writes the
// flattened PDF.
func (a *app) flattenFile(ctx context.Context, path string, opts flattenOptions) (flattenResult, error) {
	f, err := sessionfile.Load(path)
	if err != nil {
		return flattenResult{}, err
	}
	docPath := opts.doc
	if docPath == "" {
		docPath = f.Document
	}
	if docPath == "" {
		return flattenResult{}, fmt.Errorf("%s: no document to edit", path)
	}
	outPath := opts.output
	if outPath == "" {
		outPath = f.Output
	}
	if outPath == "" {
		outPath = strings.TrimSuffix(docPath, filepath.Ext(docPath)) + "-edited.pdf"
	}
	data, err := os.ReadFile(docPath)
	if err != nil {
		return flattenResult{}, fmt.Errorf("read document: %w", err)
	}

	var extra []editor.Option
	if opts.keep {
		st, err := a.openStore()
		if err != nil {
			return flattenResult{}, fmt.Errorf("open storage: %w", err)
		}
		defer st.Close()
		extra = append(extra, editor.WithStorage(st))
	}
	s, err := a.session(filepath.Dir(path), f.Licensed, extra...)
	if err != nil {
		return flattenResult{}, err
	}
	if err := s.Load(ctx, data, filepath.Base(docPath)); err != nil {
		return flattenResult{}, err
	}
	if err := s.ApplySession(f); err != nil {
		return flattenResult{}, fmt.Errorf("%s: %w", path, err)
	}
	out, err := s.Save(ctx)
	if err != nil {
		return flattenResult{}, err
	}
	if err := writeFile(outPath, out); err != nil {
		return flattenResult{}, err
	}
	a.log.Info("session flattened",
		observability.String("session", path),
		observability.String("output", outPath),
		observability.Int("edits", len(f.Edits)))
	return flattenResult{output: outPath, edits: len(f.Edits), size: len(out)}, nil
}

// writeFile replaces path through a temporary file in the same directory so
// readers never see a partial PDF.
func writeFile(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write output: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}
