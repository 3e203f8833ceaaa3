package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/newswire/internal/model"
)

// ErrNotFound is returned when an article ID does not exist. Callers must
// distinguish it from operational failures.
var ErrNotFound = eris.New("store: article not found")

// Store defines the persistence contract for article records. The URL unique
// constraint at the storage layer is the final backstop for deduplication:
// two concurrent inserts of the same URL can never both succeed.
type Store interface {
	// Exists reports whether an article with the given URL is stored.
	Exists(ctx context.Context, url string) (bool, error)

	// Insert stores a single candidate and returns the record ID. A URL
	// already stored is a graceful no-op that returns the existing record's
	// ID; a candidate missing a title or URL is rejected.
	Insert(ctx context.Context, c model.Candidate) (string, error)

	// InsertBatch inserts candidates whose URLs are not yet stored and
	// returns the count actually inserted. Duplicate URLs, whether against
	// stored records or within the batch itself, are silently skipped.
	InsertBatch(ctx context.Context, candidates []model.Candidate) (int, error)

	// Update merges the non-nil fields of upd into the record and refreshes
	// updated_at. A status that would regress the record is dropped while
	// the remaining fields still apply. Returns ErrNotFound for unknown IDs.
	Update(ctx context.Context, id string, upd model.ArticleUpdate) error

	GetByID(ctx context.Context, id string) (*model.Article, error)
	List(ctx context.Context, filter model.ArticleFilter) ([]model.Article, error)
	Search(ctx context.Context, keyword string) ([]model.Article, error)
	Count(ctx context.Context, status model.Status) (int, error)

	// Delete removes a record. Administrative only; pipeline logic never
	// deletes.
	Delete(ctx context.Context, id string) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
