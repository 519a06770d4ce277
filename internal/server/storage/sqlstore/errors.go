package sqlstore

import (
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/iudanet/commentauth/internal/server/storage"
)

const pgUniqueViolation = "23505"

// pgConstraintFields maps named PostgreSQL constraints to model fields.
var pgConstraintFields = map[string]string{
	"users_email_key":                  "email",
	"users_username_key":               "username",
	"sessions_token_key":               "token",
	"oauth_accounts_provider_user_key": "provider_user_id",
	"users_pkey":                       "id",
	"sessions_pkey":                    "id",
	"comments_pkey":                    "id",
	"oauth_accounts_pkey":              "id",
	"two_factor_tokens_pkey":           "id",
}

// classify turns driver-level unique violations into
// *storage.UniqueViolationError and passes other errors through.
func classify(err error) error {
	if err == nil {
		return nil
	}

	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		code := sqliteErr.Code()
		if code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY {
			return &storage.UniqueViolationError{Field: sqliteUniqueField(sqliteErr.Error()), Err: err}
		}
		if code&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(sqliteErr.Error(), "UNIQUE constraint failed") {
			return &storage.UniqueViolationError{Field: sqliteUniqueField(sqliteErr.Error()), Err: err}
		}
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		field, ok := pgConstraintFields[pgErr.ConstraintName]
		if !ok {
			field = pgErr.ConstraintName
		}
		return &storage.UniqueViolationError{Field: field, Err: err}
	}

	return err
}

// sqliteUniqueField extracts the column from
// "UNIQUE constraint failed: users.email (2067)". For composite keys the
// last column is returned.
func sqliteUniqueField(msg string) string {
	const marker = "constraint failed: "
	idx := strings.LastIndex(msg, marker)
	if idx < 0 {
		return ""
	}
	cols := msg[idx+len(marker):]
	if paren := strings.Index(cols, " ("); paren >= 0 {
		cols = cols[:paren]
	}
	parts := strings.Split(cols, ",")
	last := strings.TrimSpace(parts[len(parts)-1])
	if dot := strings.LastIndex(last, "."); dot >= 0 {
		last = last[dot+1:]
	}
	return last
}

func nullString(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

func nullUnix(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.Unix(), Valid: true}
}

func timePtr(ni sql.NullInt64) *time.Time {
	if !ni.Valid {
		return nil
	}
	v := time.Unix(ni.Int64, 0)
	return &v
}

func rowsAffected(res sql.Result) (int, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}
