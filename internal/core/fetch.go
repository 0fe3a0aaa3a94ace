package core

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/seckatie/opinionwatch/internal/core/db"
)

// Document is a downloaded opinion PDF.
type Document struct {
	Opinion  db.Opinion
	Filename string
	Path     string
	Content  []byte
}

// FetchResult is the outcome of downloading one opinion. Exactly one of
// Document and Err is set.
type FetchResult struct {
	Opinion  db.Opinion
	Document *Document
	Err      error
}

// OK reports whether the download succeeded.
func (r FetchResult) OK() bool {
	return r.Err == nil && r.Document != nil
}

// Fetcher downloads opinion documents.
type Fetcher interface {
	FetchAll(ctx context.Context, opinions []db.Opinion) []FetchResult
}

// HTTPFetcher downloads opinion PDFs over HTTP into Dir.
type HTTPFetcher struct {
	Client *http.Client
	// Dir receives one file per document, created if absent.
	Dir string
	// MaxSize bounds a single document in bytes. 0 means no limit.
	MaxSize int64
}

// NewHTTPFetcher returns a fetcher writing into dir with a per-request timeout.
func NewHTTPFetcher(dir string, timeout time.Duration) *HTTPFetcher {
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	return &HTTPFetcher{
		Client:  &http.Client{Timeout: timeout},
		Dir:     dir,
		MaxSize: MaxDocumentSize,
	}
}

// FetchAll downloads each opinion in turn. A failed download is logged and
// reported in its result; it never stops the rest of the batch.
func (f *HTTPFetcher) FetchAll(ctx context.Context, opinions []db.Opinion) []FetchResult {
	results := make([]FetchResult, 0, len(opinions))
	taken := make(map[string]struct{}, len(opinions))
	for _, o := range opinions {
		filename := uniqueFilename(FilenameFromURL(o.URL), taken)
		doc, err := f.fetchTo(ctx, o, filename)
		if err != nil {
			log.Printf("Error downloading %s: %v", o.URL, err)
			results = append(results, FetchResult{Opinion: o, Err: err})
			continue
		}
		log.Printf("Downloaded: %s", doc.Filename)
		results = append(results, FetchResult{Opinion: o, Document: &doc})
	}
	return results
}

// Fetch downloads a single opinion and writes it to disk.
func (f *HTTPFetcher) Fetch(ctx context.Context, o db.Opinion) (Document, error) {
	return f.fetchTo(ctx, o, FilenameFromURL(o.URL))
}

func (f *HTTPFetcher) fetchTo(ctx context.Context, o db.Opinion, filename string) (Document, error) {
	data, err := fetchDocument(ctx, f.Client, o.URL, f.MaxSize)
	if err != nil {
		return Document{}, err
	}

	if err := os.MkdirAll(f.Dir, 0o755); err != nil {
		return Document{}, fmt.Errorf("failed to create download directory: %w", err)
	}
	p := filepath.Join(f.Dir, filename)
	if err := os.WriteFile(p, data, 0o644); err != nil {
		return Document{}, fmt.Errorf("failed to write %s: %w", p, err)
	}

	return Document{
		Opinion:  o,
		Filename: filename,
		Path:     p,
		Content:  data,
	}, nil
}

// FilenameFromURL returns the file name to store rawURL's document under.
//
// This is the last path segment when it already ends in ".pdf". Download
// handlers such as "Download.aspx?id=1&name=a.pdf" take the base name of a
// ".pdf" query value instead, or get ".pdf" appended to the segment. URLs
// with no usable segment map to "opinion.pdf".
func FilenameFromURL(rawURL string) string {
	const fallback = "opinion.pdf"

	u, err := url.Parse(rawURL)
	if err != nil {
		return fallback
	}
	name := path.Base(u.Path)
	if name == "." || name == "/" || name == ".." || name == "" {
		return fallback
	}
	if hasPDFExt(name) {
		return name
	}

	query := u.Query()
	keys := make([]string, 0, len(query))
	for k := range query {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		for _, v := range query[k] {
			if base := path.Base(strings.ReplaceAll(v, "\\", "/")); hasPDFExt(base) && base != pdfMarker {
				return base
			}
		}
	}
	return name + pdfMarker
}

func hasPDFExt(name string) bool {
	return strings.EqualFold(path.Ext(name), pdfMarker)
}

// uniqueFilename returns name, or name with a "-2", "-3"... suffix before the
// extension when an earlier document in the batch already took it.
func uniqueFilename(name string, taken map[string]struct{}) string {
	ext := path.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	candidate := name
	for i := 2; ; i++ {
		if _, dup := taken[strings.ToLower(candidate)]; !dup {
			break
		}
		candidate = fmt.Sprintf("%s-%d%s", stem, i, ext)
	}
	taken[strings.ToLower(candidate)] = struct{}{}
	return candidate
}

// fetchDocument fetches a URL and returns its body.
func fetchDocument(ctx context.Context, client *http.Client, urlStr string, maxSize int64) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, err
	}

	req.Header.Set("User-Agent", UserAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	var reader io.Reader = resp.Body
	if maxSize > 0 {
		reader = io.LimitReader(resp.Body, maxSize+1)
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}
	if maxSize > 0 && int64(len(data)) > maxSize {
		return nil, fmt.Errorf("document exceeds %d bytes", maxSize)
	}

	return data, nil
}
