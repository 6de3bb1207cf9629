package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"depth_spider/internal/models"
)

// Static and compile-time check to ensure SQLite implements PageStore.
var _ PageStore = (*SQLite)(nil)

const memoryDSN = ":memory:"

// SQLite stores pages in a single SQLite file. Outgoing links live in their own
// table so that appending stays idempotent through the primary key.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens or creates the database at path. ":memory:" gives a private
// in-memory database.
func NewSQLite(path string) (*SQLite, error) {
	dsn := memoryDSN
	if path != memoryDSN {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
		dsn = path + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer. A single connection also keeps an
	// in-memory database alive for the lifetime of the store.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &SQLite{db: db}

	if path != memoryDSN {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := s.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return s, nil
}

func (s *SQLite) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS pages (
		id TEXT PRIMARY KEY,
		url TEXT NOT NULL,
		normalized_url TEXT NOT NULL UNIQUE,
		origin_depth INTEGER NOT NULL,
		crawled INTEGER NOT NULL DEFAULT 0,
		first_scraped INTEGER NOT NULL,
		last_scraped INTEGER NOT NULL
	);

	-- rowid order is insertion order, which is the order links were recorded in
	CREATE TABLE IF NOT EXISTS page_links (
		page_id TEXT NOT NULL REFERENCES pages(id),
		child_id TEXT NOT NULL,
		PRIMARY KEY (page_id, child_id)
	);
	`

	_, err := s.db.ExecContext(context.Background(), schema)
	return err
}

func (s *SQLite) CreateIfAbsent(ctx context.Context, page *models.Page) (*models.Page, error) {
	now := time.Now().Unix()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pages (id, url, normalized_url, origin_depth, crawled, first_scraped, last_scraped)
		VALUES (?, ?, ?, ?, 0, ?, ?)
		ON CONFLICT(normalized_url) DO NOTHING`,
		uuid.New().String(), page.URL, page.NormalizedURL, page.OriginDepth, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("create page %q: %w", page.NormalizedURL, err)
	}

	return s.FindByURL(ctx, page.NormalizedURL)
}

func (s *SQLite) FindByURL(ctx context.Context, normalizedURL string) (*models.Page, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, url, normalized_url, origin_depth, crawled, first_scraped, last_scraped
		FROM pages WHERE normalized_url = ?`, normalizedURL)

	page, err := scanPage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("find %q: %w", normalizedURL, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find %q: %w", normalizedURL, err)
	}

	links, err := s.links(ctx, []string{page.ID})
	if err != nil {
		return nil, err
	}
	page.OutgoingLinks = links[page.ID]

	return page, nil
}

func (s *SQLite) FindByIDs(ctx context.Context, ids []string) ([]*models.Page, error) {
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return nil, nil
	}

	query := `
		SELECT id, url, normalized_url, origin_depth, crawled, first_scraped, last_scraped
		FROM pages WHERE id IN (` + placeholders(len(ids)) + `)`

	rows, err := s.db.QueryContext(ctx, query, toArgs(ids)...)
	if err != nil {
		return nil, fmt.Errorf("find pages by id: %w", err)
	}
	defer rows.Close()

	var pages []*models.Page
	for rows.Next() {
		page, err := scanPage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan page: %w", err)
		}
		pages = append(pages, page)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	links, err := s.links(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, p := range pages {
		p.OutgoingLinks = links[p.ID]
	}

	return orderPages(ids, pages), nil
}

func (s *SQLite) AppendLinks(ctx context.Context, id string, childIDs []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`UPDATE pages SET crawled = 1, last_scraped = ? WHERE id = ?`, time.Now().Unix(), id)
	if err != nil {
		return fmt.Errorf("append links to %q: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("append links to %q: %w", id, ErrNotFound)
	}

	for _, child := range uniqueIDs(childIDs) {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO page_links (page_id, child_id) VALUES (?, ?)`, id, child); err != nil {
			return fmt.Errorf("append link %q to %q: %w", child, id, err)
		}
	}

	return tx.Commit()
}

func (s *SQLite) ClearLinks(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `UPDATE pages SET crawled = 0 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("clear links of %q: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("clear links of %q: %w", id, ErrNotFound)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM page_links WHERE page_id = ?`, id); err != nil {
		return fmt.Errorf("clear links of %q: %w", id, err)
	}

	return tx.Commit()
}

func (s *SQLite) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

// links loads the outgoing links of the given pages. Crawled pages without
// links get no entry; callers treat a missing entry as an empty set.
func (s *SQLite) links(ctx context.Context, ids []string) (map[string][]string, error) {
	query := `SELECT page_id, child_id FROM page_links WHERE page_id IN (` +
		placeholders(len(ids)) + `) ORDER BY rowid`

	rows, err := s.db.QueryContext(ctx, query, toArgs(ids)...)
	if err != nil {
		return nil, fmt.Errorf("load links: %w", err)
	}
	defer rows.Close()

	links := make(map[string][]string)
	for rows.Next() {
		var pageID, childID string
		if err := rows.Scan(&pageID, &childID); err != nil {
			return nil, fmt.Errorf("scan link: %w", err)
		}
		links[pageID] = append(links[pageID], childID)
	}

	return links, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPage(row rowScanner) (*models.Page, error) {
	var (
		p       models.Page
		crawled int
	)
	if err := row.Scan(&p.ID, &p.URL, &p.NormalizedURL, &p.OriginDepth, &crawled,
		&p.FirstScraped, &p.LastScraped); err != nil {
		return nil, err
	}
	p.Crawled = crawled == 1
	return &p, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func toArgs(ids []string) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}
