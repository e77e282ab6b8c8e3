package database

import (
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Additional-Code/hatch/pkg/errorbank"
)

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		code   string
		unique bool
		fk     bool
	}{
		{"duplicate entry", &mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'ST-001'"}, "1062", true, false},
		{"wrapped duplicate", fmt.Errorf("insert order: %w", &mysql.MySQLError{Number: 1062}), "1062", true, false},
		{"missing parent", &mysql.MySQLError{Number: 1452}, "1452", false, true},
		{"lock wait", &mysql.MySQLError{Number: 1205}, "1205", false, false},
		{"plain", errors.New("boom"), "", false, false},
		{"nil", nil, "", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, ErrorCode(tt.err))
			assert.Equal(t, tt.unique, IsUniqueViolation(tt.err))
			assert.Equal(t, tt.fk, IsForeignKeyViolation(tt.err))
		})
	}
}

func TestInternal_LogsStoreCode(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	err := Internal(zap.New(core), "failed to record payment", &mysql.MySQLError{Number: 1205, Message: "Lock wait timeout exceeded"}, zap.Int64("order_id", 11))

	var appErr *errorbank.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, errorbank.KindInternal, appErr.Kind())
	assert.Equal(t, "1205", appErr.Details()["code"])

	entries := logs.FilterMessage("failed to record payment").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "1205", fields["db_code"])
	assert.EqualValues(t, 11, fields["order_id"])
}

func TestInternal_WithoutStoreCode(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	err := Internal(zap.New(core), "failed to load order", errors.New("connection reset"))

	var appErr *errorbank.AppError
	require.True(t, errors.As(err, &appErr))
	assert.NotContains(t, appErr.Details(), "code")
	assert.NotContains(t, logs.All()[0].ContextMap(), "db_code")
}
