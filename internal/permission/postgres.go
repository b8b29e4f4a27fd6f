package permission

import (
	"context"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/go-playground/errors/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel"

	"github.com/gemeente-forms/management/internal/access"
)

const name = "github.com/gemeente-forms/management/internal/permission"

// Queryer is the subset of a pgx connection pool the driver needs.
type Queryer interface {
	Query(ctx context.Context, query string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, query string, args ...any) pgx.Row
	Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error)
}

var _ AdminStore = (*PostgresStore)(nil)

// PostgresStore reads permission records from PostgreSQL.
type PostgresStore struct {
	conn Queryer
}

// NewPostgresStore creates a PostgresStore.
func NewPostgresStore(conn Queryer) *PostgresStore {
	return &PostgresStore{conn: conn}
}

type pgUserPermission struct {
	UserEmail   string   `db:"UserEmail"`
	Permissions []string `db:"Permissions"`
}

// UserPermissions returns the permission record for email, or ErrNotFound.
func (s *PostgresStore) UserPermissions(ctx context.Context, email string) (*Record, error) {
	ctx, span := otel.Tracer(name).Start(ctx, "PostgresStore.UserPermissions()")
	defer span.End()

	query := `
		SELECT
			"UserEmail", "Permissions"
		FROM "UserPermissions"
		WHERE "UserEmail" = $1
	`

	row := &pgUserPermission{}
	if err := pgxscan.Get(ctx, s.conn, row, query, email); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}

		return nil, errors.Wrapf(err, "failed to scan permission row for user")
	}

	return &Record{
		UserEmail:   row.UserEmail,
		Permissions: toPermissions(row.Permissions),
	}, nil
}

// SetUserPermissions creates or replaces the record for email.
func (s *PostgresStore) SetUserPermissions(ctx context.Context, email string, permissions []access.Permission) error {
	ctx, span := otel.Tracer(name).Start(ctx, "PostgresStore.SetUserPermissions()")
	defer span.End()

	query := `
		INSERT INTO "UserPermissions" ("UserEmail", "Permissions")
		VALUES ($1, $2)
		ON CONFLICT ("UserEmail") DO UPDATE SET "Permissions" = EXCLUDED."Permissions"
	`

	if _, err := s.conn.Exec(ctx, query, email, toTags(permissions)); err != nil {
		return errors.Wrap(err, "failed to upsert into table UserPermissions")
	}

	return nil
}
