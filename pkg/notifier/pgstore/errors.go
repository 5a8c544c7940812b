package pgstore

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrFailedToOpenDBConnection = errors.New("pgstore.errors.failed_to_open_db_connection")
	ErrFailedToParseDBConfig    = errors.New("pgstore.errors.failed_to_parse_db_config")
	ErrFailedToApplyMigrations  = errors.New("pgstore.errors.failed_to_apply_migrations")
	ErrHealthcheckFailed        = errors.New("pgstore.errors.healthcheck_failed")
)

// isNotFound detects pgx.ErrNoRows.
func isNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// isDuplicateKey detects unique constraint violations (SQLSTATE 23505). The
// delivery record uniqueness guarantee rests on this check: the database
// constraint is the arbiter, application code only translates the error.
func isDuplicateKey(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
