package core

import (
	"context"
	"strings"
)

// Extraction is the text recovered from a stored file. Extractors fill
// either Text (whole body) or Segments (ordered pieces such as lines or pages).
type Extraction struct {
	Text     string
	Segments []string
}

// Normalize returns Text when present, otherwise Segments joined by newlines.
func (e Extraction) Normalize() string {
	if e.Text != "" {
		return e.Text
	}
	if len(e.Segments) > 0 {
		return strings.Join(e.Segments, "\n")
	}
	return ""
}

// Extractor turns a stored file, addressed by its public URL, into text.
type Extractor interface {
	ExtractFromURL(ctx context.Context, url string) (Extraction, error)
}
