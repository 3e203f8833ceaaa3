package store

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/newswire/internal/model"
)

// Pool abstracts the pgx pool operations the store needs, so tests can
// substitute pgxmock.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 10
	pgxCfg.MinConns = 2
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresFromPool wraps an existing pool. Used by tests.
func NewPostgresFromPool(pool Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS articles (
	id                 TEXT PRIMARY KEY,
	url                TEXT NOT NULL UNIQUE,
	title_source       TEXT NOT NULL,
	title_translated   TEXT NOT NULL DEFAULT '',
	summary_source     TEXT NOT NULL DEFAULT '',
	summary_translated TEXT NOT NULL DEFAULT '',
	body_source        TEXT NOT NULL DEFAULT '',
	body_translated    TEXT NOT NULL DEFAULT '',
	body_polished      TEXT NOT NULL DEFAULT '',
	image_url          TEXT NOT NULL DEFAULT '',
	published_at       TEXT NOT NULL DEFAULT '',
	crawled_at         TIMESTAMPTZ NOT NULL,
	translated_at      TIMESTAMPTZ,
	polished_at        TIMESTAMPTZ,
	status             TEXT NOT NULL DEFAULT 'crawled',
	created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_articles_status ON articles(status);
CREATE INDEX IF NOT EXISTS idx_articles_crawled_at ON articles(crawled_at DESC);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) Exists(ctx context.Context, url string) (bool, error) {
	var one int
	err := s.pool.QueryRow(ctx, `SELECT 1 FROM articles WHERE url = $1`, url).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, eris.Wrap(err, "postgres: exists")
	}
	return true, nil
}

func (s *PostgresStore) Insert(ctx context.Context, c model.Candidate) (string, error) {
	if c.URL == "" || c.Title == "" {
		return "", eris.New("postgres: insert needs a title and a url")
	}

	id := uuid.New().String()
	now := time.Now().UTC()
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO articles (id, url, title_source, crawled_at, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (url) DO NOTHING`,
		id, c.URL, c.Title, now, string(model.StatusCrawled), now, now,
	)
	if err != nil {
		return "", eris.Wrapf(err, "postgres: insert article %s", c.URL)
	}
	if tag.RowsAffected() > 0 {
		return id, nil
	}

	var existing string
	if err := s.pool.QueryRow(ctx, `SELECT id FROM articles WHERE url = $1`, c.URL).Scan(&existing); err != nil {
		return "", eris.Wrapf(err, "postgres: lookup existing %s", c.URL)
	}
	return existing, nil
}

func (s *PostgresStore) InsertBatch(ctx context.Context, candidates []model.Candidate) (int, error) {
	inserted := 0
	for _, c := range candidates {
		if c.URL == "" || c.Title == "" {
			continue
		}
		now := time.Now().UTC()
		tag, err := s.pool.Exec(ctx,
			`INSERT INTO articles (id, url, title_source, crawled_at, status, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)
			 ON CONFLICT (url) DO NOTHING`,
			uuid.New().String(), c.URL, c.Title, now, string(model.StatusCrawled), now, now,
		)
		if err != nil {
			return inserted, eris.Wrapf(err, "postgres: insert article %s", c.URL)
		}
		inserted += int(tag.RowsAffected())
	}
	return inserted, nil
}

func (s *PostgresStore) Update(ctx context.Context, id string, upd model.ArticleUpdate) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin update")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var current model.Status
	err = tx.QueryRow(ctx, `SELECT status FROM articles WHERE id = $1`, id).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return eris.Wrapf(err, "postgres: read status %s", id)
	}

	sets, args := buildUpdate(upd, current)
	// Rewrite ? placeholders to $n for postgres.
	for i := range sets {
		sets[i] = strings.Replace(sets[i], "?", "$"+strconv.Itoa(i+1), 1)
	}
	args = append(args, id)
	query := `UPDATE articles SET ` + strings.Join(sets, ", ") +
		` WHERE id = $` + strconv.Itoa(len(args))

	if _, err := tx.Exec(ctx, query, args...); err != nil {
		return eris.Wrapf(err, "postgres: update article %s", id)
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: commit update")
}

const pgArticleColumns = `id, url, title_source, title_translated, summary_source, summary_translated,
	body_source, body_translated, body_polished, image_url, published_at,
	crawled_at, translated_at, polished_at, status, created_at, updated_at`

func (s *PostgresStore) GetByID(ctx context.Context, id string) (*model.Article, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+pgArticleColumns+` FROM articles WHERE id = $1`, id)
	return scanPgArticle(row)
}

func (s *PostgresStore) List(ctx context.Context, filter model.ArticleFilter) ([]model.Article, error) {
	query := `SELECT ` + pgArticleColumns + ` FROM articles`
	var args []any

	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += ` WHERE status = $1`
	}
	query += ` ORDER BY crawled_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	query += ` LIMIT $` + strconv.Itoa(len(args))

	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += ` OFFSET $` + strconv.Itoa(len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list articles")
	}
	defer rows.Close()

	return collectPgArticles(rows)
}

func (s *PostgresStore) Search(ctx context.Context, keyword string) ([]model.Article, error) {
	pattern := "%" + keyword + "%"
	rows, err := s.pool.Query(ctx,
		`SELECT `+pgArticleColumns+` FROM articles
		 WHERE title_source ILIKE $1 OR title_translated ILIKE $1
		 ORDER BY crawled_at DESC`,
		pattern,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: search articles")
	}
	defer rows.Close()

	return collectPgArticles(rows)
}

func (s *PostgresStore) Count(ctx context.Context, status model.Status) (int, error) {
	query := `SELECT COUNT(*) FROM articles`
	var args []any
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, string(status))
	}

	var n int
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, eris.Wrap(err, "postgres: count articles")
	}
	return n, nil
}

func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM articles WHERE id = $1`, id)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete article %s", id)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanPgArticle(row pgx.Row) (*model.Article, error) {
	var a model.Article
	err := row.Scan(
		&a.ID, &a.URL, &a.TitleSource, &a.TitleTranslated, &a.SummarySource, &a.SummaryTranslated,
		&a.BodySource, &a.BodyTranslated, &a.BodyPolished, &a.ImageURL, &a.PublishedAt,
		&a.CrawledAt, &a.TranslatedAt, &a.PolishedAt, &a.Status, &a.CreatedAt, &a.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan article")
	}
	return &a, nil
}

func collectPgArticles(rows pgx.Rows) ([]model.Article, error) {
	var articles []model.Article
	for rows.Next() {
		a, err := scanPgArticle(rows)
		if err != nil {
			return nil, err
		}
		articles = append(articles, *a)
	}
	return articles, eris.Wrap(rows.Err(), "postgres: iterate articles")
}
