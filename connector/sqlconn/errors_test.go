package sqlconn

import (
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/querygraph"
)

func TestClassify(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		err  error
		msg  string
	}{
		{
			"postgres unique",
			&pq.Error{Code: "23505", Message: "duplicate key value"},
			"unique",
		},
		{
			"postgres foreign key",
			&pq.Error{Code: "23503"},
			"foreign key",
		},
		{
			"postgres not null",
			&pq.Error{Code: "23502"},
			"not null",
		},
		{
			"mysql duplicate entry",
			&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"},
			"unique",
		},
		{
			"mysql child row",
			&mysql.MySQLError{Number: 1452},
			"foreign key",
		},
		{
			"mysql check",
			&mysql.MySQLError{Number: 3819},
			"check",
		},
		{
			"sqlite unique by message",
			errors.New("constraint failed: UNIQUE constraint failed: users.email (2067)"),
			"unique",
		},
		{
			"sqlite foreign key by message",
			errors.New("constraint failed: FOREIGN KEY constraint failed (787)"),
			"foreign key",
		},
		{
			"wrapped driver error",
			fmt.Errorf("exec: %w", &pq.Error{Code: "23505"}),
			"unique",
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := classify(tt.err)
			require.Error(t, err)
			assert.True(t, querygraph.IsConstraintError(err), "got %v", err)
			assert.Contains(t, err.Error(), tt.msg)
			// The driver error stays reachable for callers that need it.
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestClassifyPassesThroughOtherErrors(t *testing.T) {
	t.Parallel()
	boom := errors.New("connection reset")
	assert.Same(t, boom, classify(boom))
	assert.NoError(t, classify(nil))
}
