package main

import (
	"context"
	"flag"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/wudi/pdfedit/observability"
)

const defaultSettle = 250 * time.Millisecond

func (a *app) watchCmd(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	fs.SetOutput(a.err)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: pdfedit watch [flags] <session.yaml|session.json>\n")
		fs.PrintDefaults()
	}
	var opts flattenOptions
	opts.register(fs)
	settle := fs.Duration("settle", defaultSettle, "Quiet period after the last change before flattening")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return fmt.Errorf("%w: watch needs one session file", errUsage)
	}
	path, err := filepath.Abs(fs.Arg(0))
	if err != nil {
		return err
	}
	return a.watch(ctx, path, opts, *settle, nil)
}

// watch flattens path once, then again after every burst of writes to it.
// Editors often replace a file instead of writing it in place, so the
// directory is watched. done, when set, receives every flatten result.
func (a *app) watch(ctx context.Context, path string, opts flattenOptions, settle time.Duration, done chan<- error) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	defer w.Close()
	if err := w.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(path), err)
	}

	flatten := func() {
		res, err := a.flattenFile(ctx, path, opts)
		if err != nil {
			a.log.Error("flatten failed", observability.String("session", path), observability.Error("error", err))
		} else {
			fmt.Fprintf(a.out, "%s: %d edits, %d bytes\n", res.output, res.edits, res.size)
		}
		if done != nil {
			select {
			case done <- err:
			case <-ctx.Done():
			}
		}
	}
	flatten()

	timer := time.NewTimer(settle)
	timer.Stop()
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != path || ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			a.log.Debug("session changed", observability.String("session", path), observability.String("op", ev.Op.String()))
			timer.Reset(settle)
		case <-timer.C:
			flatten()
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			a.log.Warn("watch error", observability.Error("error", err))
		}
	}
}
