package permission

import (
	"context"

	"cloud.google.com/go/spanner"
	"github.com/cccteam/spxscan"
	"github.com/go-playground/errors/v5"
	"go.opentelemetry.io/otel"
	"google.golang.org/grpc/codes"

	"github.com/gemeente-forms/management/internal/access"
)

var _ AdminStore = (*SpannerStore)(nil)

// SpannerStore reads permission records from Spanner.
type SpannerStore struct {
	spanner   *spanner.Client
	tableName string
}

// NewSpannerStore creates a SpannerStore.
func NewSpannerStore(client *spanner.Client) *SpannerStore {
	return &SpannerStore{
		spanner:   client,
		tableName: "UserPermissions",
	}
}

// SetTableName sets the name of the permission table.
func (s *SpannerStore) SetTableName(tableName string) {
	s.tableName = tableName
}

type spannerUserPermission struct {
	UserEmail   string   `spanner:"UserEmail"`
	Permissions []string `spanner:"Permissions"`
}

// UserPermissions returns the permission record for email, or ErrNotFound.
func (s *SpannerStore) UserPermissions(ctx context.Context, email string) (*Record, error) {
	ctx, span := otel.Tracer(name).Start(ctx, "SpannerStore.UserPermissions()")
	defer span.End()

	stmt := spanner.NewStatement(`
		SELECT
			UserEmail,
			Permissions
		FROM ` + s.tableName + `
		WHERE UserEmail = @useremail
	`)
	stmt.Params["useremail"] = email

	row := &spannerUserPermission{}
	if err := spxscan.Get(ctx, s.spanner.Single(), row, stmt); err != nil {
		if errors.Is(err, spxscan.ErrNotFound) {
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
func (s *SpannerStore) SetUserPermissions(ctx context.Context, email string, permissions []access.Permission) error {
	ctx, span := otel.Tracer(name).Start(ctx, "SpannerStore.SetUserPermissions()")
	defer span.End()

	row := &spannerUserPermission{
		UserEmail:   email,
		Permissions: toTags(permissions),
	}

	mutation, err := spanner.InsertOrUpdateStruct(s.tableName, row)
	if err != nil {
		return errors.Wrap(err, "spanner.InsertOrUpdateStruct()")
	}

	if _, err := s.spanner.Apply(ctx, []*spanner.Mutation{mutation}); err != nil {
		if spanner.ErrCode(err) == codes.NotFound {
			return errors.Newf("permission table %q not found", s.tableName)
		}

		return errors.Wrap(err, "spanner.Client.Apply()")
	}

	return nil
}
