package database

import (
	"errors"
	"strconv"

	"github.com/go-sql-driver/mysql"
	"github.com/uptrace/bun/driver/pgdriver"
	"go.uber.org/zap"

	"github.com/Additional-Code/hatch/pkg/errorbank"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	mysqlDuplicateEntry   = 1062
	mysqlNoReferencedRow  = 1452
)

// ErrorCode extracts the store-specific error code (SQLSTATE for postgres,
// error number for mysql) from err, or "" when none is present.
func ErrorCode(err error) string {
	var pgErr pgdriver.Error
	if errors.As(err, &pgErr) {
		return pgErr.Field('C')
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return strconv.Itoa(int(myErr.Number))
	}
	return ""
}

// IsUniqueViolation reports whether err was raised by a unique constraint.
func IsUniqueViolation(err error) bool {
	var pgErr pgdriver.Error
	if errors.As(err, &pgErr) {
		return pgErr.Field('C') == pgUniqueViolation
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == mysqlDuplicateEntry
	}
	return false
}

// IsForeignKeyViolation reports whether err was raised by a foreign key constraint.
func IsForeignKeyViolation(err error) bool {
	var pgErr pgdriver.Error
	if errors.As(err, &pgErr) {
		return pgErr.Field('C') == pgForeignKeyViolation
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == mysqlNoReferencedRow
	}
	return false
}

// Internal logs a datastore failure with its store-specific code under
// db_code and returns the generic error shown to callers.
func Internal(logger *zap.Logger, msg string, err error, fields ...zap.Field) error {
	code := ErrorCode(err)
	fields = append(fields, zap.Error(err))
	opts := []errorbank.Option{errorbank.WithCause(err)}
	if code != "" {
		fields = append(fields, zap.String("db_code", code))
		opts = append(opts, errorbank.WithDetail("code", code))
	}
	logger.Error(msg, fields...)
	return errorbank.Internal(msg, opts...)
}
