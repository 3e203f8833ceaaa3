// Package scan extracts the currently-featured article list from the source's
// landing page. The source markup shifts between deployments, so section
// discovery runs through an ordered list of selector strategies instead of a
// single hard-coded selector.
package scan

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/sells-group/newswire/internal/model"
)

// Strategy is one attempt at locating the featured section. Strategies are
// evaluated in order; the first selector that matches wins.
type Strategy struct {
	Name     string `yaml:"name"`
	Selector string `yaml:"selector"`
}

// DefaultStrategies matches the markup variants the source has shipped so
// far, most specific first.
func DefaultStrategies() []Strategy {
	return []Strategy{
		{Name: "section-testid", Selector: `section[data-testid="illinois-section-outer-10"]`},
		{Name: "section-analytics", Selector: `section[data-analytics_group_name="Most read"]`},
		{Name: "any-analytics", Selector: `[data-analytics_group_name="Most read"]`},
	}
}

// Scanner finds featured-article candidates on a rendered landing page.
type Scanner struct {
	strategies  []Strategy
	baseURL     string
	articlePath string
}

// New creates a Scanner. Relative hrefs are resolved against baseURL; links
// whose path does not contain articlePath are skipped.
func New(strategies []Strategy, baseURL, articlePath string) *Scanner {
	if len(strategies) == 0 {
		strategies = DefaultStrategies()
	}
	return &Scanner{
		strategies:  strategies,
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		articlePath: articlePath,
	}
}

// Scan returns the candidates found in the featured section. A landing page
// without a recognizable section yields an empty slice, not an error: the
// section's absence is a degraded but valid outcome.
func (s *Scanner) Scan(doc *goquery.Document) []model.Candidate {
	section := s.findSection(doc)
	if section == nil {
		zap.L().Warn("scan: no featured section matched",
			zap.Int("strategies_tried", len(s.strategies)),
		)
		return nil
	}

	var candidates []model.Candidate
	section.Find("a").Each(func(_ int, link *goquery.Selection) {
		href, ok := link.Attr("href")
		if !ok || !strings.Contains(href, s.articlePath) {
			return
		}

		fullURL := href
		if strings.HasPrefix(href, "/") {
			fullURL = s.baseURL + href
		}

		title := strings.TrimSpace(link.Find("h2").First().Text())
		if title == "" || fullURL == "" {
			return
		}

		candidates = append(candidates, model.Candidate{
			Title: title,
			URL:   fullURL,
		})
	})

	return candidates
}

// findSection tries each strategy in order and returns the first match.
func (s *Scanner) findSection(doc *goquery.Document) *goquery.Selection {
	for _, st := range s.strategies {
		sel := doc.Find(st.Selector).First()
		if sel.Length() > 0 {
			zap.L().Debug("scan: featured section found",
				zap.String("strategy", st.Name),
			)
			return sel
		}
	}
	return nil
}
