package ingestion_engine

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"
	"unicode/utf8"

	"code.sajari.com/docconv"
	"github.com/markdave123-py/CodeInsight/internal/core"
)

var _ core.Extractor = (*DocconvExtractor)(nil)

// Formats that need docconv; everything else is read as plain text or source code.
var convertedExt = map[string]bool{
	".pdf": true, ".doc": true, ".docx": true, ".odt": true, ".rtf": true, ".pages": true,
}

// NewDocconvExtractor builds an extractor that reads objects of obj directly
// and falls back to HTTP for any other URL. obj may be nil.
func NewDocconvExtractor(obj core.ObjectClient, useReadability bool) *DocconvExtractor {
	return &DocconvExtractor{
		obj:            obj,
		http:           &http.Client{Timeout: 2 * time.Minute},
		useReadability: useReadability,
		maxBytes:       64 << 20,
	}
}

// ExtractFromURL fetches the stored file and returns its textual content.
// Source and text files come back in Text; converted documents come back
// as trimmed non-empty lines in Segments.
func (e *DocconvExtractor) ExtractFromURL(ctx context.Context, fileURL string) (core.Extraction, error) {
	data, name, err := e.fetch(ctx, fileURL)
	if err != nil {
		return core.Extraction{}, err
	}

	ext := strings.ToLower(path.Ext(name))
	if !convertedExt[ext] {
		if !utf8.Valid(data) {
			return core.Extraction{}, fmt.Errorf("extract %s: unsupported binary content", path.Base(name))
		}
		return core.Extraction{Text: string(data)}, nil
	}

	mime := docconv.MimeTypeByExtension(ext)
	res, err := docconv.Convert(bytes.NewReader(data), mime, e.useReadability)
	if err != nil {
		return core.Extraction{}, fmt.Errorf("docconv %s: %w", mime, err)
	}
	if err := ctx.Err(); err != nil {
		return core.Extraction{}, err
	}

	var segs []string
	for _, line := range strings.Split(res.Body, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			segs = append(segs, line)
		}
	}
	return core.Extraction{Segments: segs}, nil
}

// fetch returns the file bytes and the name used to pick a format: the
// object key for stored files, the decoded URL path otherwise.
func (e *DocconvExtractor) fetch(ctx context.Context, fileURL string) ([]byte, string, error) {
	if e.obj != nil {
		if key, ok := e.obj.KeyFromURL(fileURL); ok {
			data, err := e.obj.GetFile(ctx, key)
			return data, key, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("build request: %w", err)
	}
	resp, err := e.http.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("fetch %s: %w", fileURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("fetch %s: status %d", fileURL, resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, e.maxBytes))
	if err != nil {
		return nil, "", fmt.Errorf("read %s: %w", fileURL, err)
	}
	return data, urlPath(fileURL), nil
}

func urlPath(raw string) string {
	if u, err := url.Parse(raw); err == nil {
		return u.Path
	}
	return raw
}
