package richtext

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseLine(t *testing.T) {
	cases := []struct {
		in   string
		want []Segment
	}{
		{"plain text", []Segment{{Text: "plain text"}}},
		{"Docs (https://example.com/a) and more", []Segment{
			{Text: "Docs", URL: "https://example.com/a"},
			{Text: " and more"},
		}},
		{"See: site (www.example.com)", []Segment{
			{Text: "See: site", URL: "https://www.example.com"},
		}},
		{"Mail (mailto:a@example.com)", []Segment{
			{Text: "Mail", URL: "mailto:a@example.com"},
		}},
		{"Read [the guide](https://example.com/g) now", []Segment{
			{Text: "Read "},
			{Text: "the guide", URL: "https://example.com/g"},
			{Text: " now"},
		}},
		{"go to https://example.com/x.", []Segment{
			{Text: "go to "},
			{Text: "https://example.com/x", URL: "https://example.com/x"},
			{Text: "."},
		}},
		{"Shop (https://bücher.de/list)", []Segment{
			{Text: "Shop", URL: "https://xn--bcher-kva.de/list"},
		}},
	}
	for _, tc := range cases {
		if diff := cmp.Diff(tc.want, ParseLine(tc.in)); diff != "" {
			t.Fatalf("ParseLine(%q) (-want +got):\n%s", tc.in, diff)
		}
	}
}

func TestParseLines(t *testing.T) {
	got := Parse("first\r\nsecond (https://example.com)")
	if len(got) != 2 || PlainText(got[0]) != "first" || !got[1][0].IsLink() {
		t.Fatalf("Parse = %+v", got)
	}
	if PlainText(got[1]) != "second" {
		t.Fatalf("link text = %q", PlainText(got[1]))
	}
}

func TestNormalizeURL(t *testing.T) {
	cases := map[string]string{
		"www.example.com":            "https://www.example.com",
		"https://例え.jp:8080/パス":      "https://xn--r8jz45g.jp:8080/%E3%83%91%E3%82%B9",
		"not a url":                  "not a url",
		"mailto:someone@example.com": "mailto:someone@example.com",
	}
	for in, want := range cases {
		if got := NormalizeURL(in); got != want {
			t.Fatalf("NormalizeURL(%q) = %q, want %q", in, got, want)
		}
	}
}
