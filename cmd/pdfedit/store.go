package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/wudi/pdfedit/editor"
	"github.com/wudi/pdfedit/sessionfile"
	"github.com/wudi/pdfedit/storage"
)

const storeUsage = `Usage: pdfedit store <put|get|log|apply> [flags] [args]

  put <pdf>            make pdf the working document (revision 1)
  get [-o file]        write the newest revision
  log                  list the kept revisions
  apply <session>      apply a session file to the newest revision and keep the result
`

func (a *app) storeCmd(ctx context.Context, args []string) error {
	if len(args) == 0 {
		fmt.Fprint(a.err, storeUsage)
		return fmt.Errorf("%w: store needs a subcommand", errUsage)
	}
	st, err := a.openStore()
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer st.Close()

	fs := flag.NewFlagSet("store "+args[0], flag.ContinueOnError)
	fs.SetOutput(a.err)
	output := fs.String("o", "", "Output file for get (defaults to the document name)")
	if err := fs.Parse(args[1:]); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	switch args[0] {
	case "put":
		if fs.NArg() != 1 {
			return fmt.Errorf("%w: store put needs one pdf", errUsage)
		}
		return a.storePut(ctx, st, fs.Arg(0))
	case "get":
		return a.storeGet(ctx, st, *output)
	case "log":
		return a.storeLog(ctx, st)
	case "apply":
		if fs.NArg() != 1 {
			return fmt.Errorf("%w: store apply needs one session file", errUsage)
		}
		return a.storeApply(ctx, st, fs.Arg(0))
	default:
		fmt.Fprint(a.err, storeUsage)
		return fmt.Errorf("%w: unknown store command %q", errUsage, args[0])
	}
}

func (a *app) storePut(ctx context.Context, st storage.Store, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read document: %w", err)
	}
	// Load checks the document before it replaces the stored one.
	s, err := a.session(filepath.Dir(path), false, editor.WithStorage(st))
	if err != nil {
		return err
	}
	if err := s.Load(ctx, data, filepath.Base(path)); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s: %d pages stored\n", filepath.Base(path), s.NumPages())
	return nil
}

func (a *app) storeGet(ctx context.Context, st storage.Store, output string) error {
	doc, err := st.Retrieve(ctx)
	if err != nil {
		return err
	}
	if output == "" {
		output = doc.Name
	}
	if err := writeFile(output, doc.Data); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s: revision %d, %d bytes\n", output, doc.Revision, len(doc.Data))
	return nil
}

func (a *app) storeLog(ctx context.Context, st storage.Store) error {
	revs, err := st.Revisions(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "REV\tSIZE\tCREATED\tHASH")
	for _, r := range revs {
		fmt.Fprintf(tw, "%d\t%d\t%s\t%.12s\n", r.Revision, r.Size, r.CreatedAt.Format(time.RFC3339), r.Hash)
	}
	return tw.Flush()
}

// storeApply resumes the newest revision, applies the session file and
// keeps the flattened result as the next revision.
func (a *app) storeApply(ctx context.Context, st storage.Store, path string) error {
	f, err := sessionfile.Load(path)
	if err != nil {
		return err
	}
	s, err := a.session(filepath.Dir(path), f.Licensed, editor.WithStorage(st))
	if err != nil {
		return err
	}
	if err := s.Resume(ctx); err != nil {
		return err
	}
	if err := s.ApplySession(f); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	out, err := s.Save(ctx)
	if err != nil {
		return err
	}
	doc, err := st.Retrieve(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s: revision %d, %d bytes\n", doc.Name, doc.Revision, len(out))
	return nil
}
