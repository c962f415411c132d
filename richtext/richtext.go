// Package richtext splits overlay text into plain and link segments.
//
// Three link forms are recognized on each line: a label followed by a URL in
// parentheses ("Docs (https://example.com)"), markdown links
// ("[Docs](https://example.com)") and bare URLs. Link targets are normalized:
// "www." gains an https scheme and internationalized hosts are converted to
// their ASCII form.
package richtext

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
	"golang.org/x/net/idna"
)

// Segment is a run of text; URL is set for links.
type Segment struct {
	Text string
	URL  string
}

func (s Segment) IsLink() bool { return s.URL != "" }

const urlPattern = `(?:https?://[^\s()]+|www\.[^\s()]+|mailto:[^\s()]+)`

var (
	parenLink = regexp.MustCompile(`(\S.*?)\s*\((` + urlPattern + `)\)`)
	bareURL   = regexp.MustCompile(urlPattern)
	markdown  = goldmark.New(goldmark.WithExtensions(extension.Linkify))
)

// Parse splits text into lines of segments.
func Parse(s string) [][]Segment {
	lines := strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
	out := make([][]Segment, len(lines))
	for i, l := range lines {
		out[i] = ParseLine(l)
	}
	return out
}

// ParseLine splits a single line.
func ParseLine(line string) []Segment {
	if strings.Contains(line, "](") {
		if segs, ok := parseMarkdown(line); ok {
			return segs
		}
	}
	var out []Segment
	last := 0
	for _, m := range parenLink.FindAllStringSubmatchIndex(line, -1) {
		out = appendPlain(out, line[last:m[2]])
		out = append(out, Segment{Text: line[m[2]:m[3]], URL: NormalizeURL(line[m[4]:m[5]])})
		last = m[1]
	}
	out = appendPlain(out, line[last:])
	return merge(out)
}

// appendPlain adds s, splitting out bare URLs.
func appendPlain(out []Segment, s string) []Segment {
	last := 0
	for _, m := range bareURL.FindAllStringIndex(s, -1) {
		if m[0] > last {
			out = append(out, Segment{Text: s[last:m[0]]})
		}
		u := strings.TrimRight(s[m[0]:m[1]], ".,;:!?")
		out = append(out, Segment{Text: u, URL: NormalizeURL(u)})
		last = m[0] + len(u)
	}
	if last < len(s) {
		out = append(out, Segment{Text: s[last:]})
	}
	return out
}

func parseMarkdown(line string) ([]Segment, bool) {
	src := []byte(line)
	doc := markdown.Parser().Parse(text.NewReader(src))
	var out []Segment
	found := false
	err := ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch v := n.(type) {
		case *ast.Link:
			found = true
			out = append(out, Segment{Text: plainText(v, src), URL: NormalizeURL(string(v.Destination))})
			return ast.WalkSkipChildren, nil
		case *ast.AutoLink:
			found = true
			u := string(v.URL(src))
			out = append(out, Segment{Text: string(v.Label(src)), URL: NormalizeURL(u)})
			return ast.WalkSkipChildren, nil
		case *ast.Text:
			out = append(out, Segment{Text: string(v.Segment.Value(src))})
			if v.SoftLineBreak() || v.HardLineBreak() {
				out = append(out, Segment{Text: " "})
			}
		case *ast.String:
			out = append(out, Segment{Text: string(v.Value)})
		}
		return ast.WalkContinue, nil
	})
	if err != nil || !found {
		return nil, false
	}
	return merge(out), true
}

func plainText(n ast.Node, src []byte) string {
	var b strings.Builder
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch v := c.(type) {
		case *ast.Text:
			b.Write(v.Segment.Value(src))
		case *ast.String:
			b.Write(v.Value)
		}
		return ast.WalkContinue, nil
	})
	return b.String()
}

// merge joins neighbouring plain segments and drops empty ones.
func merge(in []Segment) []Segment {
	var out []Segment
	for _, s := range in {
		if s.Text == "" {
			continue
		}
		if n := len(out); n > 0 && !s.IsLink() && !out[n-1].IsLink() {
			out[n-1].Text += s.Text
			continue
		}
		out = append(out, s)
	}
	return out
}

// NormalizeURL adds a scheme to "www." links and converts the host to ASCII.
// Unparseable input is returned unchanged.
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(strings.ToLower(raw), "www.") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	host := u.Hostname()
	ascii, err := idna.Lookup.ToASCII(host)
	if err != nil || ascii == host {
		return u.String()
	}
	if port := u.Port(); port != "" {
		u.Host = ascii + ":" + port
	} else {
		u.Host = ascii
	}
	return u.String()
}

// PlainText returns the visible text of segs.
func PlainText(segs []Segment) string {
	var b strings.Builder
	for _, s := range segs {
		b.WriteString(s.Text)
	}
	return b.String()
}
