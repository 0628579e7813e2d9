package sqlconn

import (
	"context"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/querygraph/connector"
)

func mockTx(t *testing.T, dialect string) (connector.Tx, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	mock.ExpectBegin()
	tx, err := NewConn(dialect, db).BeginTx(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
	})
	return tx, mock
}

func TestFindPostgres(t *testing.T) {
	t.Parallel()
	tx, mock := mockTx(t, Postgres)
	mock.ExpectQuery(`SELECT "users"."id", "users"."name" FROM "users" WHERE "users"."name" = $1 ORDER BY "users"."id" DESC LIMIT 10 OFFSET 5`).
		WithArgs("Ann").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(int64(1), "Ann"))

	res, err := tx.Execute(context.Background(), &connector.Find{
		Table:   "users",
		Where:   &connector.Cmp{Column: "name", Op: connector.CmpEQ, Value: "Ann"},
		Columns: []string{"id", "name"},
		OrderBy: []connector.OrderBy{{Column: "id", Desc: true}},
		Skip:    5,
		Take:    10,
	})
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, int64(1), res.Rows[0]["id"])
	assert.Equal(t, "Ann", res.Rows[0]["name"])
}

func TestFindMySQLOffsetWithoutLimit(t *testing.T) {
	t.Parallel()
	tx, mock := mockTx(t, MySQL)
	mock.ExpectQuery("SELECT `users`.`id` FROM `users` LIMIT 18446744073709551615 OFFSET 5").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := tx.Execute(context.Background(), &connector.Find{
		Table:   "users",
		Columns: []string{"id"},
		Skip:    5,
	})
	require.NoError(t, err)
}

func TestFindSQLiteOffsetWithoutLimit(t *testing.T) {
	t.Parallel()
	tx, mock := mockTx(t, SQLite)
	// sqlite rejects a bare OFFSET; LIMIT -1 means no limit.
	mock.ExpectQuery(`SELECT "users"."id" FROM "users" LIMIT -1 OFFSET 1`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(2)).AddRow(int64(3)))

	res, err := tx.Execute(context.Background(), &connector.Find{
		Table:   "users",
		Columns: []string{"id"},
		Skip:    1,
	})
	require.NoError(t, err)
	require.Len(t, res.Rows, 2)
}

func TestInsertPostgresReturning(t *testing.T) {
	t.Parallel()
	tx, mock := mockTx(t, Postgres)
	// Values are written in sorted column order for deterministic SQL.
	mock.ExpectQuery(`INSERT INTO "users" ("email", "name") VALUES ($1, $2) RETURNING "id", "name"`).
		WithArgs("a@b.c", "Ann").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(int64(7), "Ann"))

	res, err := tx.Execute(context.Background(), &connector.Insert{
		Table:     "users",
		Values:    connector.Row{"name": "Ann", "email": "a@b.c"},
		Returning: []string{"id", "name"},
	})
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, int64(7), res.Rows[0]["id"])
}

func TestInsertMySQLGeneratedID(t *testing.T) {
	t.Parallel()
	tx, mock := mockTx(t, MySQL)
	// mysql has no RETURNING: the generated key fills the id column.
	mock.ExpectExec("INSERT INTO `users` (`name`) VALUES (?)").
		WithArgs("Ann").
		WillReturnResult(sqlmock.NewResult(7, 1))

	res, err := tx.Execute(context.Background(), &connector.Insert{
		Table:     "users",
		Values:    connector.Row{"name": "Ann"},
		Returning: []string{"id", "name"},
	})
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, int64(7), res.Rows[0]["id"])
	assert.Equal(t, "Ann", res.Rows[0]["name"])
}

func TestUpdatePostgresReturning(t *testing.T) {
	t.Parallel()
	tx, mock := mockTx(t, Postgres)
	mock.ExpectQuery(`UPDATE "users" SET "name" = $1 WHERE "users"."id" = $2 RETURNING "id", "name"`).
		WithArgs("Bo", int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(int64(1), "Bo"))

	res, err := tx.Execute(context.Background(), &connector.Update{
		Table:     "users",
		Where:     &connector.Cmp{Column: "id", Op: connector.CmpEQ, Value: int64(1)},
		Values:    connector.Row{"name": "Bo"},
		Returning: []string{"id", "name"},
	})
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "Bo", res.Rows[0]["name"])
}

func TestUpdateMySQLReturning(t *testing.T) {
	t.Parallel()
	tx, mock := mockTx(t, MySQL)
	// No RETURNING on mysql updates: the rows are read first, then the
	// written values overlaid.
	mock.ExpectQuery("SELECT `users`.`id`, `users`.`name` FROM `users` WHERE `users`.`id` = ?").
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(int64(1), "Ann"))
	mock.ExpectExec("UPDATE `users` SET `name` = ? WHERE `users`.`id` = ?").
		WithArgs("Bo", int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	res, err := tx.Execute(context.Background(), &connector.Update{
		Table:     "users",
		Where:     &connector.Cmp{Column: "id", Op: connector.CmpEQ, Value: int64(1)},
		Values:    connector.Row{"name": "Bo"},
		Returning: []string{"id", "name"},
	})
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, int64(1), res.Rows[0]["id"])
	assert.Equal(t, "Bo", res.Rows[0]["name"])
}

func TestDelete(t *testing.T) {
	t.Parallel()
	tx, mock := mockTx(t, Postgres)
	mock.ExpectExec(`DELETE FROM "users" WHERE "users"."id" IN ($1, $2)`).
		WithArgs(int64(1), int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 2))

	res, err := tx.Execute(context.Background(), &connector.Delete{
		Table: "users",
		Where: &connector.InList{Column: "id", Values: []any{int64(1), int64(2)}},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Affected)
}

func TestConnectDialects(t *testing.T) {
	t.Parallel()
	op := &connector.Connect{
		Table:       "post_tags",
		LeftColumn:  "post_id",
		RightColumn: "tag_id",
		LeftIDs:     []any{int64(1), int64(2)},
		RightIDs:    []any{int64(5)},
	}
	tests := []struct {
		dialect string
		sql     string
	}{
		{Postgres, `INSERT INTO "post_tags" ("post_id", "tag_id") VALUES ($1, $2), ($3, $4) ON CONFLICT DO NOTHING`},
		{MySQL, "INSERT IGNORE INTO `post_tags` (`post_id`, `tag_id`) VALUES (?, ?), (?, ?)"},
		{SQLite, `INSERT OR IGNORE INTO "post_tags" ("post_id", "tag_id") VALUES (?, ?), (?, ?)`},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.dialect, func(t *testing.T) {
			t.Parallel()
			tx, mock := mockTx(t, tt.dialect)
			mock.ExpectExec(tt.sql).
				WithArgs(int64(1), int64(5), int64(2), int64(5)).
				WillReturnResult(sqlmock.NewResult(0, 2))
			res, err := tx.Execute(context.Background(), op)
			require.NoError(t, err)
			assert.Equal(t, int64(2), res.Affected)
		})
	}
}

func TestDisconnect(t *testing.T) {
	t.Parallel()
	tx, mock := mockTx(t, Postgres)
	mock.ExpectExec(`DELETE FROM "post_tags" WHERE "post_tags"."post_id" IN ($1) AND "post_tags"."tag_id" IN ($2)`).
		WithArgs(int64(1), int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	res, err := tx.Execute(context.Background(), &connector.Disconnect{
		Table:       "post_tags",
		LeftColumn:  "post_id",
		RightColumn: "tag_id",
		LeftIDs:     []any{int64(1)},
		RightIDs:    []any{int64(5)},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Affected)
}

func TestJoinWriteWithoutPairsIsNoop(t *testing.T) {
	t.Parallel()
	tx, _ := mockTx(t, Postgres)
	res, err := tx.Execute(context.Background(), &connector.Connect{
		Table:       "post_tags",
		LeftColumn:  "post_id",
		RightColumn: "tag_id",
		LeftIDs:     []any{int64(1)},
	})
	require.NoError(t, err)
	assert.Zero(t, res.Affected)
}

func TestCount(t *testing.T) {
	t.Parallel()
	tx, mock := mockTx(t, Postgres)
	mock.ExpectQuery(`SELECT COUNT(*) FROM "users" WHERE "users"."active" = $1`).
		WithArgs(true).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(3)))

	res, err := tx.Execute(context.Background(), &connector.Count{
		Table: "users",
		Where: &connector.Cmp{Column: "active", Op: connector.CmpEQ, Value: true},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3), res.Count)
}
