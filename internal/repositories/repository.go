package repositories

import (
	"context"

	sq "github.com/Masterminds/squirrel"

	apperrors "business-api/pkg/errors"
)

func psql() sq.StatementBuilderType {
	return sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
}

// execAffectingOne: ноль затронутых строк означает, что запись исчезла.
func execAffectingOne(ctx context.Context, db Querier, query string, args ...interface{}) error {
	result, err := db.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}
