package flatten

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestSourceFetcher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/sig.png" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte("png-bytes"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "font.ttf"), []byte("ttf"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	f := NewSourceFetcher(dir)
	f.Client = srv.Client()

	tests := []struct {
		src     string
		want    string
		wantErr bool
	}{
		{src: "data:image/png;base64,aGVsbG8=", want: "hello"},
		{src: "data:image/png;base64,aGVsbG8", want: "hello"},
		{src: "data:text/plain,hi%20there", want: "hi there"},
		{src: srv.URL + "/sig.png", want: "png-bytes"},
		{src: srv.URL + "/missing.png", wantErr: true},
		{src: "font.ttf", want: "ttf"},
		{src: "file://" + filepath.Join(dir, "font.ttf"), want: "ttf"},
		{src: "nope.ttf", wantErr: true},
		{src: "data:broken", wantErr: true},
		{src: "", wantErr: true},
	}
	for _, tt := range tests {
		got, err := f.Fetch(context.Background(), tt.src)
		if tt.wantErr {
			if !errors.Is(err, ErrFetch) {
				t.Fatalf("Fetch(%q) error = %v, want ErrFetch", tt.src, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("Fetch(%q): %v", tt.src, err)
		}
		if string(got) != tt.want {
			t.Fatalf("Fetch(%q) = %q, want %q", tt.src, got, tt.want)
		}
	}
}

func TestSourceFetcherConfinesLocalReads(t *testing.T) {
	base := t.TempDir()
	fonts := t.TempDir()
	outside := t.TempDir()
	write := func(dir, name string) string {
		t.Helper()
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(name), 0o644); err != nil {
			t.Fatalf("write fixture: %v", err)
		}
		return path
	}
	write(base, "sig.png")
	font := write(fonts, "brand.ttf")
	secret := write(outside, "secret.txt")
	if err := os.Symlink(secret, filepath.Join(base, "link.txt")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	f := NewSourceFetcher(base)
	f.Roots = []string{fonts}
	tests := []struct {
		src  string
		want string
	}{
		{src: "sig.png", want: "sig.png"},
		{src: filepath.Join(base, "sig.png"), want: "sig.png"},
		{src: font, want: "brand.ttf"},
		{src: "file://" + font, want: "brand.ttf"},
		{src: secret},
		{src: "file://" + secret},
		{src: filepath.Join("..", filepath.Base(outside), "secret.txt")},
		{src: "link.txt"},
	}
	for _, tt := range tests {
		got, err := f.Fetch(context.Background(), tt.src)
		if tt.want == "" {
			if !errors.Is(err, ErrFetch) {
				t.Fatalf("Fetch(%q) = %q, %v; want ErrFetch", tt.src, got, err)
			}
			continue
		}
		if err != nil || string(got) != tt.want {
			t.Fatalf("Fetch(%q) = %q, %v; want %q", tt.src, got, err, tt.want)
		}
	}

	if _, err := NewSourceFetcher("").Fetch(context.Background(), font); !errors.Is(err, ErrFetch) {
		t.Fatalf("fetcher without directories read %s: %v", font, err)
	}
}

func TestSourceFetcherLimit(t *testing.T) {
	f := NewSourceFetcher("")
	f.MaxSize = 4
	if _, err := f.Fetch(context.Background(), "data:,12345"); !errors.Is(err, ErrFetch) {
		t.Fatalf("oversized data URI error = %v", err)
	}
}

func TestFontFilesLookup(t *testing.T) {
	ff := &FontFiles{
		Families: map[string]string{"Brand": "data:,regular", "brand-bold": "data:,bold"},
		Unicode:  "data:,unicode",
		Fetcher:  NewSourceFetcher(""),
	}
	tests := []struct {
		family string
		bold   bool
		want   string
	}{
		{"brand", false, "regular"},
		{"Brand", true, "bold"},
		{"Other", false, "unicode"},
	}
	for _, tt := range tests {
		got, err := ff.Font(context.Background(), tt.family, tt.bold, false)
		if err != nil || string(got) != tt.want {
			t.Fatalf("Font(%q, %v) = %q, %v; want %q", tt.family, tt.bold, got, err, tt.want)
		}
	}
	ff.Unicode = ""
	if _, err := ff.Font(context.Background(), "Other", false, false); !errors.Is(err, ErrFontNotFound) {
		t.Fatalf("missing family error = %v", err)
	}
}
