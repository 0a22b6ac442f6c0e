// Package repository provides data access for tenants, principals, profiles,
// login attempts and feedback events.
package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// queryer is the executor subset shared by *pgxpool.Pool and pgx.Tx. Methods
// that must participate in a caller-owned transaction take it explicitly.
type queryer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}
