package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"

	"routeplan/internal/model"
)

const schema = `CREATE TABLE IF NOT EXISTS pincode_positions (
    pincode TEXT PRIMARY KEY,
    lat     DOUBLE PRECISION NOT NULL,
    lng     DOUBLE PRECISION NOT NULL
)`

// Postgres reads pincode positions from the pincode_positions table.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(dsn string) (*Postgres, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return NewPostgresDB(db), nil
}

// NewPostgresDB wraps an existing handle.
func NewPostgresDB(db *sql.DB) *Postgres { return &Postgres{db: db} }

// Migrate creates the pincode table when missing.
func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func (p *Postgres) Pincode(ctx context.Context, pincode string) (model.Position, bool, error) {
	var pos model.Position
	err := p.db.QueryRowContext(ctx, `SELECT lat, lng FROM pincode_positions WHERE pincode=$1`, strings.TrimSpace(pincode)).Scan(&pos.Lat, &pos.Lon)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Position{}, false, nil
	}
	if err != nil {
		return model.Position{}, false, fmt.Errorf("query pincode: %w", err)
	}
	return pos, true, nil
}

// PutPincodes upserts entries in one transaction.
func (p *Postgres) PutPincodes(ctx context.Context, entries map[string]model.Position) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("put pincodes: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	for pin, pos := range entries {
		_, err = tx.ExecContext(ctx, `INSERT INTO pincode_positions (pincode, lat, lng) VALUES ($1,$2,$3)
            ON CONFLICT (pincode) DO UPDATE SET lat=EXCLUDED.lat, lng=EXCLUDED.lng`, strings.TrimSpace(pin), pos.Lat, pos.Lon)
		if err != nil {
			return fmt.Errorf("put pincode %s: %w", pin, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("put pincodes: commit: %w", err)
	}
	return nil
}

func (p *Postgres) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

func (p *Postgres) Close() error { return p.db.Close() }
