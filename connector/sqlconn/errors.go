package sqlconn

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"modernc.org/sqlite"

	"github.com/syssam/querygraph"
)

// PostgreSQL SQLSTATE codes for constraint violations (class 23).
const (
	pgNotNullViolation    = "23502"
	pgForeignKeyViolation = "23503"
	pgUniqueViolation     = "23505"
	pgCheckViolation      = "23514"
)

// MySQL error numbers for constraint violations.
const (
	mysqlNotNull          = 1048
	mysqlDuplicateEntry   = 1062
	mysqlForeignKeyParent = 1451 // cannot delete or update a parent row
	mysqlForeignKeyChild  = 1452 // cannot add or update a child row
	mysqlCheckViolation   = 3819
)

// SQLite extended result codes for constraint violations.
const (
	sqliteConstraint           = 19
	sqliteConstraintCheck      = 275
	sqliteConstraintForeignKey = 787
	sqliteConstraintNotNull    = 1299
	sqliteConstraintPrimaryKey = 1555
	sqliteConstraintUnique     = 2067
)

// classify converts driver-specific constraint violations into a
// ConstraintError and leaves every other error untouched.
func classify(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case isUniqueViolation(err):
		return querygraph.NewConstraintError("unique constraint violation", err)
	case isForeignKeyViolation(err):
		return querygraph.NewConstraintError("foreign key constraint violation", err)
	case isCheckViolation(err):
		return querygraph.NewConstraintError("check constraint violation", err)
	case isNotNullViolation(err):
		return querygraph.NewConstraintError("not null constraint violation", err)
	default:
		return err
	}
}

func isUniqueViolation(err error) bool {
	if code, ok := pgCode(err); ok {
		return code == pgUniqueViolation
	}
	if num, ok := mysqlNumber(err); ok {
		return num == mysqlDuplicateEntry
	}
	if code, ok := sqliteCode(err); ok {
		return code == sqliteConstraintUnique || code == sqliteConstraintPrimaryKey
	}
	return containsAny(err.Error(),
		"violates unique constraint", // postgres fallback
		"Error 1062",                 // mysql fallback
		"UNIQUE constraint failed",   // sqlite fallback
	)
}

func isForeignKeyViolation(err error) bool {
	if code, ok := pgCode(err); ok {
		return code == pgForeignKeyViolation
	}
	if num, ok := mysqlNumber(err); ok {
		return num == mysqlForeignKeyParent || num == mysqlForeignKeyChild
	}
	if code, ok := sqliteCode(err); ok {
		return code == sqliteConstraintForeignKey
	}
	return containsAny(err.Error(),
		"violates foreign key constraint",
		"Error 1451",
		"Error 1452",
		"FOREIGN KEY constraint failed",
	)
}

func isCheckViolation(err error) bool {
	if code, ok := pgCode(err); ok {
		return code == pgCheckViolation
	}
	if num, ok := mysqlNumber(err); ok {
		return num == mysqlCheckViolation
	}
	if code, ok := sqliteCode(err); ok {
		return code == sqliteConstraintCheck
	}
	return containsAny(err.Error(),
		"violates check constraint",
		"Error 3819",
		"CHECK constraint failed",
	)
}

func isNotNullViolation(err error) bool {
	if code, ok := pgCode(err); ok {
		return code == pgNotNullViolation
	}
	if num, ok := mysqlNumber(err); ok {
		return num == mysqlNotNull
	}
	if code, ok := sqliteCode(err); ok {
		return code == sqliteConstraintNotNull
	}
	return containsAny(err.Error(),
		"violates not-null constraint",
		"Error 1048",
		"NOT NULL constraint failed",
	)
}

// sqlStateError is implemented by drivers exposing SQLSTATE codes, e.g.
// pgx.
type sqlStateError interface {
	SQLState() string
}

func pgCode(err error) (string, bool) {
	var pqe *pq.Error
	if errors.As(err, &pqe) {
		return string(pqe.Code), true
	}
	var se sqlStateError
	if errors.As(err, &se) {
		return se.SQLState(), true
	}
	return "", false
}

func mysqlNumber(err error) (uint16, bool) {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number, true
	}
	return 0, false
}

func sqliteCode(err error) (int, bool) {
	var se *sqlite.Error
	if errors.As(err, &se) {
		return se.Code(), true
	}
	return 0, false
}

func containsAny(s string, substrings ...string) bool {
	for _, sub := range substrings {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
