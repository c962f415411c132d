// Command pdfedit flattens annotation sessions into PDFs, keeps a working
// document with saved revisions and runs OCR on page images.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/wudi/pdfedit/config"
)

const usage = `Usage: pdfedit [-config file] <command> [flags] [args]

Commands:
  flatten   apply a session file to its document and write the result
  watch     flatten again whenever a session file changes
  store     keep a working document and its saved revisions
  ocr       recognize the text of an image

Flags:
`

// errUsage marks command line mistakes; they exit with status 2.
var errUsage = errors.New("usage")

func main() {
	global := flag.NewFlagSet("pdfedit", flag.ContinueOnError)
	cfgPath := global.String("config", os.Getenv(config.EnvPrefix+"CONFIG"), "Configuration file (TOML, YAML or JSON)")
	global.Usage = func() {
		fmt.Fprint(global.Output(), usage)
		global.PrintDefaults()
	}
	if err := global.Parse(os.Args[1:]); err != nil {
		os.Exit(2)
	}
	if global.NArg() == 0 {
		global.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "pdfedit: %v\n", err)
		os.Exit(1)
	}
	a, err := newApp(cfg, os.Stdin, os.Stdout, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "pdfedit: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := a.run(ctx, global.Arg(0), global.Args()[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "pdfedit: %v\n", err)
		if errors.Is(err, errUsage) {
			global.Usage()
			os.Exit(2)
		}
		os.Exit(1)
	}
}
