package flatten

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/wudi/pdfedit/annotation"
	"github.com/wudi/pdfedit/observability"
)

// DefaultFamily is the last tier of the font fallback chain.
const DefaultFamily = "Helvetica"

// ErrFontNotFound reports that a FontSource has nothing for a family. It is
// not logged as a degradation.
var ErrFontNotFound = errors.New("flatten: no custom font for family")

// FontSource supplies TrueType data for custom and Unicode fonts.
type FontSource interface {
	Font(ctx context.Context, family string, bold, italic bool) ([]byte, error)
}

// FontFiles maps family names to font sources loaded through a Fetcher.
// Unicode, when set, serves every family without its own entry so text
// outside WinAnsi still has glyphs.
type FontFiles struct {
	Families map[string]string
	Unicode  string
	Fetcher  Fetcher
}

func (f *FontFiles) Font(ctx context.Context, family string, bold, italic bool) ([]byte, error) {
	src := f.lookup(family, bold, italic)
	if src == "" {
		return nil, ErrFontNotFound
	}
	fetcher := f.Fetcher
	if fetcher == nil {
		fetcher = NewSourceFetcher("")
	}
	return fetcher.Fetch(ctx, src)
}

// lookup tries "family-bolditalic", "family-bold", "family-italic" before the
// plain family name, matching case-insensitively.
func (f *FontFiles) lookup(family string, bold, italic bool) string {
	fam := strings.ToLower(strings.TrimSpace(family))
	var keys []string
	switch {
	case bold && italic:
		keys = append(keys, fam+"-bolditalic")
	case bold:
		keys = append(keys, fam+"-bold")
	case italic:
		keys = append(keys, fam+"-italic")
	}
	keys = append(keys, fam)
	for _, k := range keys {
		for name, src := range f.Families {
			if strings.ToLower(name) == k && src != "" {
				return src
			}
		}
	}
	return f.Unicode
}

type fontKey struct {
	family       string
	bold, italic bool
}

// fontChain resolves fonts for one export. Results are cached per family and
// style, including misses of the custom tier.
type fontChain struct {
	ctx    context.Context
	doc    Document
	source FontSource
	log    observability.Logger

	custom   map[fontKey]Font
	standard map[fontKey]Font
}

func newFontChain(ctx context.Context, doc Document, source FontSource, log observability.Logger) *fontChain {
	return &fontChain{
		ctx:      ctx,
		doc:      doc,
		source:   source,
		log:      log,
		custom:   make(map[fontKey]Font),
		standard: make(map[fontKey]Font),
	}
}

// resolve picks the font used to draw text: a custom TrueType font when one
// is available and covers the text, otherwise the standard family, otherwise
// Helvetica. Only a failure of the last tier is an error.
func (c *fontChain) resolve(spec annotation.Font, text string) (Font, error) {
	key := fontKey{family: spec.Family, bold: spec.Bold, italic: spec.Italic}
	if f := c.customFont(key); f != nil {
		if f.CanEncode(text) {
			return f, nil
		}
		c.log.Warn("custom font lacks glyphs, falling back to standard font",
			observability.String("family", spec.Family),
			observability.String("font", f.Name()))
	}
	f, err := c.standardFont(key)
	if err != nil {
		return nil, err
	}
	if !f.CanEncode(text) {
		c.log.Warn("text has characters outside the standard font encoding",
			observability.String("font", f.Name()))
	}
	return f, nil
}

func (c *fontChain) customFont(key fontKey) Font {
	if c.source == nil {
		return nil
	}
	if f, ok := c.custom[key]; ok {
		return f
	}
	c.custom[key] = nil
	data, err := c.source.Font(c.ctx, key.family, key.bold, key.italic)
	if err != nil {
		if !errors.Is(err, ErrFontNotFound) {
			c.log.Warn("custom font unavailable, using standard font",
				observability.String("family", key.family),
				observability.Error("error", err))
		}
		return nil
	}
	f, err := c.doc.EmbedTrueType(data)
	if err != nil {
		c.log.Warn("custom font rejected, using standard font",
			observability.String("family", key.family),
			observability.Error("error", err))
		return nil
	}
	c.custom[key] = f
	return f
}

func (c *fontChain) standardFont(key fontKey) (Font, error) {
	if f, ok := c.standard[key]; ok {
		return f, nil
	}
	f, err := c.doc.StandardFont(key.family, key.bold, key.italic)
	if err != nil {
		c.log.Warn("font family unavailable, using default",
			observability.String("family", key.family),
			observability.String("default", DefaultFamily),
			observability.Error("error", err))
		f, err = c.doc.StandardFont(DefaultFamily, key.bold, key.italic)
	}
	if err != nil {
		f, err = c.doc.StandardFont(DefaultFamily, false, false)
	}
	if err != nil {
		return nil, fmt.Errorf("default font: %w", err)
	}
	c.standard[key] = f
	return f, nil
}
