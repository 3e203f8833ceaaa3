package model

import "time"

// Status tracks how far an article has progressed through the pipeline.
// It only ever moves forward: crawled → translated → polished.
type Status string

const (
	StatusCrawled    Status = "crawled"
	StatusTranslated Status = "translated"
	StatusPolished   Status = "polished"
)

// statusRank orders statuses for monotonicity checks.
var statusRank = map[Status]int{
	StatusCrawled:    1,
	StatusTranslated: 2,
	StatusPolished:   3,
}

// Valid reports whether s is a known pipeline status.
func (s Status) Valid() bool {
	_, ok := statusRank[s]
	return ok
}

// Before reports whether s precedes other in the pipeline ordering.
// Unknown statuses rank below every known one.
func (s Status) Before(other Status) bool {
	return statusRank[s] < statusRank[other]
}

// Article is the sole persistent entity. The URL is the deduplication key
// and is immutable after creation.
type Article struct {
	ID                string     `json:"id"`
	URL               string     `json:"url"`
	TitleSource       string     `json:"title_source"`
	TitleTranslated   string     `json:"title_translated,omitempty"`
	SummarySource     string     `json:"summary_source,omitempty"`
	SummaryTranslated string     `json:"summary_translated,omitempty"`
	BodySource        string     `json:"body_source,omitempty"`
	BodyTranslated    string     `json:"body_translated,omitempty"`
	BodyPolished      string     `json:"body_polished,omitempty"`
	ImageURL          string     `json:"image_url,omitempty"`
	PublishedAt       string     `json:"published_at,omitempty"`
	CrawledAt         time.Time  `json:"crawled_at"`
	TranslatedAt      *time.Time `json:"translated_at,omitempty"`
	PolishedAt        *time.Time `json:"polished_at,omitempty"`
	Status            Status     `json:"status"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// Candidate is a listing-scan result: a headline and its article link.
// Candidates whose URL is already stored are dropped at the store boundary.
type Candidate struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// ExtractedContent holds the fields pulled from one rendered article page.
// An empty Body is a valid outcome for pages with no extractable text.
type ExtractedContent struct {
	Body        string `json:"body"`
	ImageURL    string `json:"image_url,omitempty"`
	PublishedAt string `json:"published_at,omitempty"`
}

// ArticleUpdate carries a partial-field merge for an existing record.
// Nil pointers leave the column untouched; the store refreshes updated_at
// on every applied update.
type ArticleUpdate struct {
	TitleTranslated *string
	BodySource      *string
	BodyTranslated  *string
	BodyPolished    *string
	ImageURL        *string
	PublishedAt     *string
	TranslatedAt    *time.Time
	PolishedAt      *time.Time
	Status          *Status
}

// ArticleFilter narrows List/Count queries.
type ArticleFilter struct {
	Status Status `json:"status,omitempty"`
	Limit  int    `json:"limit,omitempty"`
	Offset int    `json:"offset,omitempty"`
}

// StrPtr returns a pointer to s, for building ArticleUpdate values.
func StrPtr(s string) *string { return &s }

// StatusPtr returns a pointer to st.
func StatusPtr(st Status) *Status { return &st }

// TimePtr returns a pointer to t.
func TimePtr(t time.Time) *time.Time { return &t }
