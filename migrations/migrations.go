// Package migrations embeds the database schema and applies it with goose.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
)

//go:embed *.sql
var FS embed.FS

func newProvider(db *sql.DB) (*goose.Provider, error) {
	p, err := goose.NewProvider(goose.DialectPostgres, db, FS)
	if err != nil {
		return nil, fmt.Errorf("migrations: new provider: %w", err)
	}
	return p, nil
}

// Up applies all pending migrations and returns the resulting version.
func Up(ctx context.Context, db *sql.DB) (int64, error) {
	p, err := newProvider(db)
	if err != nil {
		return 0, err
	}
	if _, err := p.Up(ctx); err != nil {
		return 0, fmt.Errorf("migrations.Up: %w", err)
	}
	return p.GetDBVersion(ctx)
}

// Down rolls back the given number of migrations.
func Down(ctx context.Context, db *sql.DB, steps int) (int64, error) {
	p, err := newProvider(db)
	if err != nil {
		return 0, err
	}
	for range steps {
		if _, err := p.Down(ctx); err != nil {
			return 0, fmt.Errorf("migrations.Down: %w", err)
		}
	}
	return p.GetDBVersion(ctx)
}

type Status struct {
	Version int64
	Name    string
	Applied bool
}

func List(ctx context.Context, db *sql.DB) ([]Status, error) {
	p, err := newProvider(db)
	if err != nil {
		return nil, err
	}
	results, err := p.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("migrations.List: %w", err)
	}

	out := make([]Status, 0, len(results))
	for _, r := range results {
		out = append(out, Status{
			Version: r.Source.Version,
			Name:    r.Source.Path,
			Applied: r.State == goose.StateApplied,
		})
	}
	return out, nil
}
