package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/wudi/pdfedit/annotation"
	"github.com/wudi/pdfedit/config"
	"github.com/wudi/pdfedit/editor"
	"github.com/wudi/pdfedit/flatten"
	"github.com/wudi/pdfedit/notify"
	"github.com/wudi/pdfedit/observability"
	"github.com/wudi/pdfedit/pdfdoc"
	"github.com/wudi/pdfedit/selection"
	"github.com/wudi/pdfedit/storage"
)

// app carries the configuration and the ambient collaborators shared by
// every command.
type app struct {
	cfg *config.Config
	log observability.Logger
	in  io.Reader
	out io.Writer
	err io.Writer
}

func newApp(cfg *config.Config, in io.Reader, out, errOut io.Writer) (*app, error) {
	log, err := observability.NewTextLogger(errOut, cfg.Logging.Format, cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("logging: %w", err)
	}
	return &app{cfg: cfg, log: log, in: in, out: out, err: errOut}, nil
}

func (a *app) run(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "flatten":
		return a.flattenCmd(ctx, args)
	case "watch":
		return a.watchCmd(ctx, args)
	case "store":
		return a.storeCmd(ctx, args)
	case "ocr":
		return a.ocrCmd(ctx, args)
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}
}

// exporter builds the flatten pipeline from the export and fonts sections.
// Relative font and signature sources resolve against dir. Signature files
// must stay inside dir, while configured font files may also live in their
// own directories.
func (a *app) exporter(dir string) (*flatten.Exporter, error) {
	wm, err := watermark(a.cfg.Export.Watermark)
	if err != nil {
		return nil, err
	}
	fetcher := flatten.NewSourceFetcher(dir)
	fontFetcher := flatten.NewSourceFetcher(dir)
	fontFetcher.Roots = fontDirs(a.cfg.Fonts)
	return flatten.NewExporter(
		flatten.WithLogger(a.log),
		flatten.WithProducer(a.cfg.Export.Producer),
		flatten.WithFetcher(fetcher),
		flatten.WithFontSource(&flatten.FontFiles{
			Families: a.cfg.Fonts.Families,
			Unicode:  a.cfg.Fonts.Unicode,
			Fetcher:  fontFetcher,
		}),
		flatten.WithWatermark(wm),
		flatten.WithDocumentOptions(
			pdfdoc.WithLogger(a.log),
			pdfdoc.WithCompressionLevel(a.cfg.Export.CompressionLevel),
			pdfdoc.WithMaxImageSize(a.cfg.Export.MaxImageSize),
		),
	), nil
}

func watermark(c config.WatermarkConfig) (flatten.Watermark, error) {
	wm := flatten.Watermark{
		Text:    c.Text,
		Brand:   c.Brand,
		Mark:    c.Mark,
		Opacity: c.Opacity,
		Spacing: c.Spacing,
		Size:    c.Size,
	}
	if c.Color != "" {
		col, err := annotation.ParseColor(c.Color)
		if err != nil {
			return wm, fmt.Errorf("watermark color: %w", err)
		}
		r, g, b := col.Floats()
		wm.Color = pdfdoc.RGB{R: r, G: g, B: b}
	}
	return wm, nil
}

// style maps the editor section onto the defaults of pointer-created records.
func style(c config.EditorConfig) (editor.Style, error) {
	st := editor.DefaultStyle
	if c.Color != "" {
		col, err := annotation.ParseColor(c.Color)
		if err != nil {
			return st, fmt.Errorf("editor color: %w", err)
		}
		st.Color = col
	}
	if c.FontFamily != "" {
		st.Font.Family = c.FontFamily
	}
	if c.FontSize > 0 {
		st.Font.Size = c.FontSize
	}
	if c.StrokeWidth > 0 {
		st.StrokeWidth = c.StrokeWidth
	}
	return st, nil
}

// openStore opens the configured storage driver.
func (a *app) openStore() (storage.Store, error) {
	opts := []storage.Option{storage.WithMaxRevisions(a.cfg.Storage.MaxRevisions)}
	if a.cfg.Storage.Driver != config.DriverSQLite {
		return storage.NewMemory(opts...), nil
	}
	st, err := storage.OpenSQLite(a.cfg.Storage.Path, opts...)
	if err != nil {
		return nil, err
	}
	return st, nil
}

// fontDirs lists the directories of configured font files given as
// absolute paths.
func fontDirs(fc config.FontsConfig) []string {
	seen := map[string]bool{}
	var dirs []string
	add := func(src string) {
		src = strings.TrimPrefix(strings.TrimSpace(src), "file://")
		if !filepath.IsAbs(src) {
			return
		}
		if dir := filepath.Dir(src); !seen[dir] {
			seen[dir] = true
			dirs = append(dirs, dir)
		}
	}
	add(fc.Unicode)
	for _, src := range fc.Families {
		add(src)
	}
	sort.Strings(dirs)
	return dirs
}

// session builds an editor session wired to the configuration. Extra
// options are applied last.
func (a *app) session(dir string, licensed bool, extra ...editor.Option) (*editor.Session, error) {
	exp, err := a.exporter(dir)
	if err != nil {
		return nil, err
	}
	st, err := style(a.cfg.Editor)
	if err != nil {
		return nil, err
	}
	tool, err := selection.ParseTool(a.cfg.Editor.DefaultTool)
	if err != nil {
		return nil, err
	}
	opts := []editor.Option{
		editor.WithLogger(a.log),
		editor.WithNotifier(notify.LogNotifier{Logger: a.log}),
		editor.WithConfirmer(notify.TerminalConfirmer{Fd: int(os.Stdin.Fd()), In: a.in, Out: a.err}),
		editor.WithExporter(exp),
		editor.WithStyle(st),
		editor.WithInitialTool(tool),
		editor.WithOneShotDelay(a.cfg.Editor.OneShotDelay.Std()),
		editor.WithHistoryLimit(a.cfg.Editor.HistoryLimit),
		editor.WithLicensed(licensed || a.cfg.Export.Licensed),
	}
	return editor.NewSession(append(opts, extra...)...), nil
}
