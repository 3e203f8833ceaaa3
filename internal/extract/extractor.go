// Package extract pulls structured fields out of one rendered article page.
package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/newswire/internal/model"
)

const (
	contentBlockSelector = `[data-component="text-block"], [data-component="image-block"]`
	bylineTimeSelector   = `[data-component="byline-block"] time`
)

// Extractor reads body text, lead image, and publish time from an article
// document. It never fails on missing content: a page with zero matching
// blocks yields an empty body. Failure to render the page at all is the
// renderer's to report, before the document reaches this package.
type Extractor struct{}

// New creates an Extractor.
func New() *Extractor {
	return &Extractor{}
}

// Extract walks the document's content blocks in order of appearance. Text
// blocks are joined with blank lines; the first image block wins, later ones
// are ignored. The byline timestamp is read independently and is optional.
func (e *Extractor) Extract(doc *goquery.Document) model.ExtractedContent {
	var parts []string
	var imageURL string

	doc.Find(contentBlockSelector).Each(func(_ int, block *goquery.Selection) {
		component, _ := block.Attr("data-component")
		switch component {
		case "text-block":
			if text := strings.TrimSpace(block.Text()); text != "" {
				parts = append(parts, text)
			}
		case "image-block":
			if imageURL != "" {
				return
			}
			if src, ok := block.Find("img").First().Attr("src"); ok {
				imageURL = src
			}
		}
	})

	publishedAt := ""
	if dt, ok := doc.Find(bylineTimeSelector).First().Attr("datetime"); ok {
		publishedAt = dt
	}

	return model.ExtractedContent{
		Body:        norm.NFC.String(strings.Join(parts, "\n\n")),
		ImageURL:    imageURL,
		PublishedAt: publishedAt,
	}
}
