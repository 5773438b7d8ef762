package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"mintrunner/internal/model"
)

// ErrInvalidTableName is returned for table names that are not plain SQL identifiers.
var ErrInvalidTableName = errors.New("invalid table name")

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Store provides Postgres persistence for mint rows.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// InsertMintRow inserts row into table using the column layout of variant.
func (s *Store) InsertMintRow(ctx context.Context, table string, variant model.Variant, row model.MintRow) error {
	query, args, err := buildInsert(table, variant, row)
	if err != nil {
		return err
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert into %s: %w", table, err)
	}
	return nil
}

// MintSink adapts a Store to storage.Storage for one table.
type MintSink struct {
	Store   *Store
	Table   string
	Variant model.Variant
}

func (m *MintSink) PutMintRow(ctx context.Context, row model.MintRow) error {
	if m == nil || m.Store == nil {
		return fmt.Errorf("postgres store is nil")
	}
	return m.Store.InsertMintRow(ctx, m.Table, m.Variant, row)
}

// QuoteTable validates an optionally schema-qualified table name and quotes
// it. Names are folded to lower case, as Postgres does for unquoted names.
func QuoteTable(name string) (string, error) {
	parts := strings.Split(strings.TrimSpace(name), ".")
	if len(parts) > 2 {
		return "", fmt.Errorf("%w: %q", ErrInvalidTableName, name)
	}
	ident := make(pgx.Identifier, 0, len(parts))
	for _, part := range parts {
		if !identPattern.MatchString(part) {
			return "", fmt.Errorf("%w: %q", ErrInvalidTableName, name)
		}
		ident = append(ident, strings.ToLower(part))
	}
	return ident.Sanitize(), nil
}

func buildInsert(table string, variant model.Variant, row model.MintRow) (string, []any, error) {
	quoted, err := QuoteTable(table)
	if err != nil {
		return "", nil, err
	}

	switch variant {
	case model.VariantDaily:
		query := `INSERT INTO ` + quoted + ` (
			date, freeMints, usedMints, gkInCirculation, gkUnclaimed, treasuryUnclaimed, insiderUnclaimed
		) VALUES ($1, $2, $3, $4, $5, $6, $7)`
		args := []any{
			pgtype.Date{Time: dateOf(row), Valid: true},
			row.FreeMints,
			int64(row.UsedMints),
			int64(row.GKInCirculation),
			int64(row.GKUnclaimed),
			int64(row.TreasuryUnclaimed),
			int64(row.InsiderUnclaimed),
		}
		return query, args, nil
	case model.VariantExternalSupply:
		query := `INSERT INTO ` + quoted + ` (
			freeMints, usedMints, gkInCirculation, gkUnclaimed, treasuryUnclaimed, insiderUnclaimed, publicmints
		) VALUES ($1, $2, $3, $4, $5, $6, $7)`
		args := []any{
			row.FreeMints,
			int64(row.UsedMints),
			int64(row.GKInCirculation),
			int64(row.GKUnclaimed),
			int64(row.TreasuryUnclaimed),
			int64(row.InsiderUnclaimed),
			row.PublicMints,
		}
		return query, args, nil
	default:
		return "", nil, fmt.Errorf("unknown table variant %d", variant)
	}
}

func dateOf(row model.MintRow) time.Time {
	y, m, d := row.RunDate.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
