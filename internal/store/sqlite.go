package store

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/newswire/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
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
	crawled_at         DATETIME NOT NULL,
	translated_at      DATETIME,
	polished_at        DATETIME,
	status             TEXT NOT NULL DEFAULT 'crawled',
	created_at         DATETIME NOT NULL,
	updated_at         DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_articles_status ON articles(status);
CREATE INDEX IF NOT EXISTS idx_articles_crawled_at ON articles(crawled_at DESC);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Exists(ctx context.Context, url string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM articles WHERE url = ?`, url).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, eris.Wrap(err, "sqlite: exists")
	}
	return true, nil
}

func (s *SQLiteStore) Insert(ctx context.Context, c model.Candidate) (string, error) {
	if c.URL == "" || c.Title == "" {
		return "", eris.New("sqlite: insert needs a title and a url")
	}

	id := uuid.New().String()
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO articles (id, url, title_source, crawled_at, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, c.URL, c.Title, now, string(model.StatusCrawled), now, now,
	)
	if err != nil {
		return "", eris.Wrapf(err, "sqlite: insert article %s", c.URL)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return "", eris.Wrap(err, "sqlite: rows affected")
	}
	if n > 0 {
		return id, nil
	}

	// Duplicate URL: hand back the record that already owns it.
	var existing string
	if err := s.db.QueryRowContext(ctx, `SELECT id FROM articles WHERE url = ?`, c.URL).Scan(&existing); err != nil {
		return "", eris.Wrapf(err, "sqlite: lookup existing %s", c.URL)
	}
	return existing, nil
}

func (s *SQLiteStore) InsertBatch(ctx context.Context, candidates []model.Candidate) (int, error) {
	inserted := 0
	for _, c := range candidates {
		if c.URL == "" || c.Title == "" {
			continue
		}
		now := time.Now().UTC()
		// INSERT OR IGNORE makes the duplicate case a no-op at the
		// uniqueness constraint, so concurrent ingests never double-insert.
		res, err := s.db.ExecContext(ctx,
			`INSERT OR IGNORE INTO articles (id, url, title_source, crawled_at, status, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			uuid.New().String(), c.URL, c.Title, now, string(model.StatusCrawled), now, now,
		)
		if err != nil {
			return inserted, eris.Wrapf(err, "sqlite: insert article %s", c.URL)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return inserted, eris.Wrap(err, "sqlite: rows affected")
		}
		inserted += int(n)
	}
	return inserted, nil
}

func (s *SQLiteStore) Update(ctx context.Context, id string, upd model.ArticleUpdate) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin update")
	}
	defer tx.Rollback() //nolint:errcheck

	var current model.Status
	err = tx.QueryRowContext(ctx, `SELECT status FROM articles WHERE id = ?`, id).Scan(&current)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return eris.Wrapf(err, "sqlite: read status %s", id)
	}

	sets, args := buildUpdate(upd, current)
	args = append(args, id)
	if _, err := tx.ExecContext(ctx,
		`UPDATE articles SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...,
	); err != nil {
		return eris.Wrapf(err, "sqlite: update article %s", id)
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit update")
}

// buildUpdate turns the non-nil fields of upd into SET clauses. A status that
// would regress relative to current is dropped; the content merge still
// applies.
func buildUpdate(upd model.ArticleUpdate, current model.Status) ([]string, []any) {
	sets := []string{"updated_at = ?"}
	args := []any{time.Now().UTC()}

	add := func(col string, val any) {
		sets = append(sets, col+" = ?")
		args = append(args, val)
	}

	if upd.TitleTranslated != nil {
		add("title_translated", *upd.TitleTranslated)
	}
	if upd.BodySource != nil {
		add("body_source", *upd.BodySource)
	}
	if upd.BodyTranslated != nil {
		add("body_translated", *upd.BodyTranslated)
	}
	if upd.BodyPolished != nil {
		add("body_polished", *upd.BodyPolished)
	}
	if upd.ImageURL != nil {
		add("image_url", *upd.ImageURL)
	}
	if upd.PublishedAt != nil {
		add("published_at", *upd.PublishedAt)
	}
	if upd.TranslatedAt != nil {
		add("translated_at", upd.TranslatedAt.UTC())
	}
	if upd.PolishedAt != nil {
		add("polished_at", upd.PolishedAt.UTC())
	}
	if upd.Status != nil && !upd.Status.Before(current) {
		add("status", string(*upd.Status))
	}

	return sets, args
}

const sqliteArticleColumns = `id, url, title_source, title_translated, summary_source, summary_translated,
	body_source, body_translated, body_polished, image_url, published_at,
	crawled_at, translated_at, polished_at, status, created_at, updated_at`

func (s *SQLiteStore) GetByID(ctx context.Context, id string) (*model.Article, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sqliteArticleColumns+` FROM articles WHERE id = ?`, id)
	return scanArticle(row)
}

func (s *SQLiteStore) List(ctx context.Context, filter model.ArticleFilter) ([]model.Article, error) {
	query := `SELECT ` + sqliteArticleColumns + ` FROM articles WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY crawled_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list articles")
	}
	defer rows.Close()

	return collectArticles(rows)
}

func (s *SQLiteStore) Search(ctx context.Context, keyword string) ([]model.Article, error) {
	pattern := "%" + keyword + "%"
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sqliteArticleColumns+` FROM articles
		 WHERE title_source LIKE ? COLLATE NOCASE OR title_translated LIKE ? COLLATE NOCASE
		 ORDER BY crawled_at DESC`,
		pattern, pattern,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: search articles")
	}
	defer rows.Close()

	return collectArticles(rows)
}

func (s *SQLiteStore) Count(ctx context.Context, status model.Status) (int, error) {
	query := `SELECT COUNT(*) FROM articles`
	var args []any
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(status))
	}

	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, eris.Wrap(err, "sqlite: count articles")
	}
	return n, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM articles WHERE id = ?`, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete article %s", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// helpers

type scannable interface {
	Scan(dest ...any) error
}

func scanArticle(row scannable) (*model.Article, error) {
	var a model.Article
	var translatedAt, polishedAt sql.NullTime

	err := row.Scan(
		&a.ID, &a.URL, &a.TitleSource, &a.TitleTranslated, &a.SummarySource, &a.SummaryTranslated,
		&a.BodySource, &a.BodyTranslated, &a.BodyPolished, &a.ImageURL, &a.PublishedAt,
		&a.CrawledAt, &translatedAt, &polishedAt, &a.Status, &a.CreatedAt, &a.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "store: scan article")
	}

	if translatedAt.Valid {
		t := translatedAt.Time
		a.TranslatedAt = &t
	}
	if polishedAt.Valid {
		t := polishedAt.Time
		a.PolishedAt = &t
	}
	return &a, nil
}

func collectArticles(rows *sql.Rows) ([]model.Article, error) {
	var articles []model.Article
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, err
		}
		articles = append(articles, *a)
	}
	return articles, eris.Wrap(rows.Err(), "store: iterate articles")
}
