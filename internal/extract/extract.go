// Package extract pulls absolute http(s) links out of local HTML documents.
package extract

import (
	"bytes"
	"fmt"
	"iter"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/spf13/afero"
)

// Extractor reads documents from a filesystem and yields their links.
type Extractor struct {
	fs afero.Fs
}

// New returns an Extractor reading from fs.
func New(fs afero.Fs) *Extractor {
	return &Extractor{fs: fs}
}

// Links parses the document at path and returns its anchor hrefs that start
// with http:// or https://, in document order. Relative links are dropped and
// duplicates are kept. Invalid UTF-8 is replaced rather than rejected.
func (e *Extractor) Links(path string) (iter.Seq[string], error) {
	data, err := afero.ReadFile(e.fs, path)
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}
	if !utf8.Valid(data) {
		data = bytes.ToValidUTF8(data, []byte(string(utf8.RuneError)))
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	anchors := doc.Find("a[href]")
	return func(yield func(string) bool) {
		for i := range anchors.Length() {
			href, _ := anchors.Eq(i).Attr("href")
			href = strings.TrimSpace(href)
			if !IsAbsoluteHTTP(href) {
				continue
			}
			if !yield(href) {
				return
			}
		}
	}, nil
}

// IsAbsoluteHTTP reports whether href is an absolute http or https URL.
func IsAbsoluteHTTP(href string) bool {
	return strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://")
}
