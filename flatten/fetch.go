package flatten

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ErrFetch wraps every failure to load an external resource.
var ErrFetch = errors.New("flatten: fetch resource")

// DefaultMaxFetchSize caps the bytes read for a single resource.
const DefaultMaxFetchSize = 32 << 20

// Fetcher loads signature images and font files referenced by source
// strings.
type Fetcher interface {
	Fetch(ctx context.Context, src string) ([]byte, error)
}

// SourceFetcher resolves data: URIs, http(s) URLs, file: URLs and plain
// paths. Relative paths are resolved against Dir. Local files are read only
// when they lie inside Dir or one of Roots, so a fetcher with neither reads
// no files at all.
type SourceFetcher struct {
	Client  *http.Client
	Dir     string
	Roots   []string
	MaxSize int64
}

// NewSourceFetcher returns a fetcher with a bounded HTTP client.
func NewSourceFetcher(dir string) *SourceFetcher {
	return &SourceFetcher{
		Client:  &http.Client{Timeout: 30 * time.Second},
		Dir:     dir,
		MaxSize: DefaultMaxFetchSize,
	}
}

func (f *SourceFetcher) limit() int64 {
	if f.MaxSize > 0 {
		return f.MaxSize
	}
	return DefaultMaxFetchSize
}

func (f *SourceFetcher) Fetch(ctx context.Context, src string) ([]byte, error) {
	src = strings.TrimSpace(src)
	if src == "" {
		return nil, fmt.Errorf("%w: empty source", ErrFetch)
	}
	lower := strings.ToLower(src)
	switch {
	case strings.HasPrefix(lower, "data:"):
		data, err := decodeDataURI(src)
		if err == nil && int64(len(data)) > f.limit() {
			return nil, fmt.Errorf("%w: resource exceeds %d bytes", ErrFetch, f.limit())
		}
		return data, err
	case strings.HasPrefix(lower, "http://"), strings.HasPrefix(lower, "https://"):
		return f.fetchHTTP(ctx, src)
	case strings.HasPrefix(lower, "file://"):
		u, err := url.Parse(src)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrFetch, err)
		}
		return f.readFile(u.Path)
	default:
		return f.readFile(src)
	}
}

func (f *SourceFetcher) fetchHTTP(ctx context.Context, src string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrFetch, src, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s: status %d", ErrFetch, src, resp.StatusCode)
	}
	return readLimited(resp.Body, f.limit())
}

func (f *SourceFetcher) readFile(path string) ([]byte, error) {
	resolved, err := f.confine(path)
	if err != nil {
		return nil, err
	}
	fh, err := os.Open(resolved)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	defer fh.Close()
	return readLimited(fh, f.limit())
}

// confine resolves path, following symlinks, and checks that the result is
// inside an allowed directory.
func (f *SourceFetcher) confine(path string) (string, error) {
	if !filepath.IsAbs(path) {
		if f.Dir == "" {
			return "", fmt.Errorf("%w: %s: relative path without a base directory", ErrFetch, path)
		}
		path = filepath.Join(f.Dir, path)
	}
	resolved, err := realPath(path)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrFetch, err)
	}
	dirs := f.Roots
	if f.Dir != "" {
		dirs = append([]string{f.Dir}, dirs...)
	}
	for _, dir := range dirs {
		root, err := realPath(dir)
		if err != nil {
			continue
		}
		rel, err := filepath.Rel(root, resolved)
		if err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return resolved, nil
		}
	}
	return "", fmt.Errorf("%w: %s is outside the allowed directories", ErrFetch, path)
}

func realPath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return filepath.EvalSymlinks(abs)
}

func readLimited(r io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: resource exceeds %d bytes", ErrFetch, limit)
	}
	return data, nil
}

// decodeDataURI decodes "data:[<mediatype>][;base64],<data>".
func decodeDataURI(src string) ([]byte, error) {
	comma := strings.IndexByte(src, ',')
	if comma < 0 {
		return nil, fmt.Errorf("%w: malformed data URI", ErrFetch)
	}
	meta, payload := src[len("data:"):comma], src[comma+1:]
	if strings.HasSuffix(strings.ToLower(meta), ";base64") {
		payload = strings.Map(func(r rune) rune {
			if r == ' ' || r == '\n' || r == '\r' || r == '\t' {
				return -1
			}
			return r
		}, payload)
		data, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "="))
		}
		if err != nil {
			return nil, fmt.Errorf("%w: data URI: %v", ErrFetch, err)
		}
		return data, nil
	}
	s, err := url.PathUnescape(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: data URI: %v", ErrFetch, err)
	}
	return []byte(s), nil
}
