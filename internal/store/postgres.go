package store

import (
	"context"
	"embed"
	"errors"
	"fmt"

	sferrors "github.com/abgdnv/verdant/internal/errors"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed migrations/*.sql
var migrations embed.FS

// PgStore implements cart.Store using PostgreSQL as the data store.
type PgStore struct {
	db *pgxpool.Pool
}

// NewPgStore creates a cart store on an existing connection pool.
func NewPgStore(dbp *pgxpool.Pool) *PgStore {
	return &PgStore{db: dbp}
}

// Migrate applies the embedded schema migrations to the database at url.
func Migrate(url string) error {
	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("failed to read embedded migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, url)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	defer func() { _, _ = m.Close() }()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}

// Load retrieves the blob saved under key.
// Returns ErrCartNotFound if nothing was saved under the key.
func (p *PgStore) Load(ctx context.Context, key string) ([]byte, error) {
	var blob []byte
	err := p.db.QueryRow(ctx, `SELECT value FROM cart_blobs WHERE key = $1`, key).Scan(&blob)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sferrors.ErrCartNotFound
		}
		return nil, fmt.Errorf("failed to load cart %s: %w", key, err)
	}
	return blob, nil
}

// Save inserts or replaces the blob under key.
func (p *PgStore) Save(ctx context.Context, key string, blob []byte) error {
	_, err := p.db.Exec(ctx, `INSERT INTO cart_blobs (key, value, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`, key, blob)
	if err != nil {
		return fmt.Errorf("failed to save cart %s: %w", key, err)
	}
	return nil
}
