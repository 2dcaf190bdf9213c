package corpus

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrWong99/kirtan/pkg/lang"
)

const ddlCorpusLines = `
CREATE TABLE IF NOT EXISTS corpus_lines (
    corpus    TEXT     NOT NULL,
    language  TEXT     NOT NULL,
    position  INTEGER  NOT NULL,
    text      TEXT     NOT NULL,
    PRIMARY KEY (corpus, position)
);

CREATE INDEX IF NOT EXISTS idx_corpus_lines_language
    ON corpus_lines (language);
`

// Compile-time interface check.
var _ Source = (*PostgresSource)(nil)

// PostgresSource stores corpora in the corpus_lines table, one row per line.
// All methods are safe for concurrent use.
type PostgresSource struct {
	pool *pgxpool.Pool
}

// NewPostgresSource connects to the database at dsn and runs [Migrate].
func NewPostgresSource(ctx context.Context, dsn string) (*PostgresSource, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("corpus postgres: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("corpus postgres: ping: %w", err)
	}
	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("corpus postgres: migrate: %w", err)
	}
	return &PostgresSource{pool: pool}, nil
}

// Migrate creates the corpus_lines table if it does not exist.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, ddlCorpusLines)
	return err
}

// Close releases the connection pool.
func (s *PostgresSource) Close() {
	s.pool.Close()
}

// Ping checks database connectivity.
func (s *PostgresSource) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Load reads the named corpus in line order. Returns [ErrNotFound] when the
// corpus has no rows.
func (s *PostgresSource) Load(ctx context.Context, name string) (*Corpus, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT language, text FROM corpus_lines WHERE corpus = $1 ORDER BY position`, name)
	if err != nil {
		return nil, fmt.Errorf("corpus postgres: load %q: %w", name, err)
	}
	defer rows.Close()

	c := &Corpus{Name: name}
	for rows.Next() {
		var language, text string
		if err := rows.Scan(&language, &text); err != nil {
			return nil, fmt.Errorf("corpus postgres: scan %q: %w", name, err)
		}
		if c.Language == "" {
			c.Language = lang.Tag(language)
		} else if c.Language != lang.Tag(language) {
			return nil, fmt.Errorf("corpus postgres: %q mixes languages %q and %q", name, c.Language, language)
		}
		c.Lines = append(c.Lines, text)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("corpus postgres: load %q: %w", name, err)
	}
	if len(c.Lines) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Save replaces the stored lines of c.Name with c.Lines in one transaction.
func (s *PostgresSource) Save(ctx context.Context, c *Corpus) error {
	if err := c.Validate(); err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("corpus postgres: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM corpus_lines WHERE corpus = $1`, c.Name); err != nil {
		return fmt.Errorf("corpus postgres: clear %q: %w", c.Name, err)
	}

	rows := make([][]any, len(c.Lines))
	for i, l := range c.Lines {
		rows[i] = []any{c.Name, string(c.Language), i, l}
	}
	if _, err := tx.CopyFrom(ctx,
		pgx.Identifier{"corpus_lines"},
		[]string{"corpus", "language", "position", "text"},
		pgx.CopyFromRows(rows),
	); err != nil {
		return fmt.Errorf("corpus postgres: copy %q: %w", c.Name, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("corpus postgres: commit: %w", err)
	}
	return nil
}

// Names lists the stored corpus names, sorted.
func (s *PostgresSource) Names(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT DISTINCT corpus FROM corpus_lines ORDER BY corpus`)
	if err != nil {
		return nil, fmt.Errorf("corpus postgres: names: %w", err)
	}
	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("corpus postgres: names: %w", err)
	}
	return names, nil
}

// Delete removes the named corpus. Returns [ErrNotFound] when nothing was
// stored under name.
func (s *PostgresSource) Delete(ctx context.Context, name string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM corpus_lines WHERE corpus = $1`, name)
	if err != nil {
		return fmt.Errorf("corpus postgres: delete %q: %w", name, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return nil
}
