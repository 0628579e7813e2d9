// Package sqlconn implements the connector contract on top of
// database/sql for the postgres, mysql and sqlite dialects. Statements are
// built per dialect (placeholders, identifier quoting, RETURNING support)
// and driver errors are classified into constraint errors.
package sqlconn

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strconv"

	"github.com/syssam/querygraph/connector"
)

// Supported dialects.
const (
	MySQL    = "mysql"
	Postgres = "postgres"
	SQLite   = "sqlite"
)

// Conn is a SQL database connector.
type Conn struct {
	db      *sql.DB
	dialect string
}

// Open opens a database handle for the given dialect and DSN.
func Open(dialect, dsn string) (*Conn, error) {
	switch dialect {
	case MySQL, Postgres, SQLite:
	default:
		return nil, fmt.Errorf("sqlconn: unsupported dialect %q", dialect)
	}
	db, err := sql.Open(dialect, dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlconn: opening %s: %w", dialect, err)
	}
	return &Conn{db: db, dialect: dialect}, nil
}

// NewConn wraps an existing database handle.
func NewConn(dialect string, db *sql.DB) *Conn {
	return &Conn{db: db, dialect: dialect}
}

// DB returns the underlying database handle.
func (c *Conn) DB() *sql.DB { return c.db }

// Close closes the underlying database handle.
func (c *Conn) Close() error { return c.db.Close() }

// BeginTx opens a transaction.
func (c *Conn) BeginTx(ctx context.Context) (connector.Tx, error) {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("sqlconn: starting transaction: %w", err)
	}
	return &sqlTx{tx: tx, dialect: c.dialect}, nil
}

type sqlTx struct {
	tx      *sql.Tx
	dialect string
}

func (t *sqlTx) Commit() error   { return t.tx.Commit() }
func (t *sqlTx) Rollback() error { return t.tx.Rollback() }

func (t *sqlTx) Execute(ctx context.Context, op connector.Op) (*connector.Result, error) {
	switch op := op.(type) {
	case *connector.Find:
		return t.find(ctx, op)
	case *connector.Insert:
		return t.insert(ctx, op)
	case *connector.Update:
		return t.update(ctx, op)
	case *connector.Delete:
		return t.delete(ctx, op)
	case *connector.Connect:
		return t.connect(ctx, op)
	case *connector.Disconnect:
		return t.disconnect(ctx, op)
	case *connector.Count:
		return t.count(ctx, op)
	default:
		return nil, fmt.Errorf("sqlconn: unknown operation %T", op)
	}
}

func (t *sqlTx) find(ctx context.Context, op *connector.Find) (*connector.Result, error) {
	b := newBuilder(t.dialect)
	b.write("SELECT ")
	if len(op.Columns) == 0 {
		b.write("*")
	}
	for i, col := range op.Columns {
		if i > 0 {
			b.write(", ")
		}
		b.column(op.Table, col)
	}
	b.write(" FROM ")
	b.ident(op.Table)
	if err := b.where(op.Table, op.Where); err != nil {
		return nil, err
	}
	for i, o := range op.OrderBy {
		if i == 0 {
			b.write(" ORDER BY ")
		} else {
			b.write(", ")
		}
		b.column(op.Table, o.Column)
		if o.Desc {
			b.write(" DESC")
		}
	}
	if op.Take > 0 {
		b.write(" LIMIT " + strconv.Itoa(op.Take))
	} else if op.Skip > 0 {
		// mysql and sqlite require a limit before an offset.
		switch t.dialect {
		case MySQL:
			b.write(" LIMIT 18446744073709551615")
		case SQLite:
			b.write(" LIMIT -1")
		}
	}
	if op.Skip > 0 {
		b.write(" OFFSET " + strconv.Itoa(op.Skip))
	}
	rows, err := t.tx.QueryContext(ctx, b.String(), b.args...)
	if err != nil {
		return nil, classify(err)
	}
	out, err := scanRows(rows)
	if err != nil {
		return nil, err
	}
	return &connector.Result{Rows: out}, nil
}

func (t *sqlTx) insert(ctx context.Context, op *connector.Insert) (*connector.Result, error) {
	cols := sortedKeys(op.Values)
	b := newBuilder(t.dialect)
	b.write("INSERT INTO ")
	b.ident(op.Table)
	b.write(" (")
	for i, col := range cols {
		if i > 0 {
			b.write(", ")
		}
		b.ident(col)
	}
	b.write(") VALUES ")
	vals := make([]any, len(cols))
	for i, col := range cols {
		vals[i] = op.Values[col]
	}
	b.argList(vals)

	if len(op.Returning) > 0 && t.dialect != MySQL {
		b.write(" RETURNING ")
		for i, col := range op.Returning {
			if i > 0 {
				b.write(", ")
			}
			b.ident(col)
		}
		rows, err := t.tx.QueryContext(ctx, b.String(), b.args...)
		if err != nil {
			return nil, classify(err)
		}
		out, err := scanRows(rows)
		if err != nil {
			return nil, err
		}
		return &connector.Result{Rows: out, Affected: int64(len(out))}, nil
	}

	res, err := t.tx.ExecContext(ctx, b.String(), b.args...)
	if err != nil {
		return nil, classify(err)
	}
	affected, _ := res.RowsAffected()
	result := &connector.Result{Affected: affected}
	if len(op.Returning) > 0 {
		// mysql has no RETURNING; echo the written values and fill the
		// id column from the generated key when it was absent.
		row := make(connector.Row, len(op.Values)+1)
		for k, v := range op.Values {
			row[k] = v
		}
		idCol := op.Returning[0]
		if _, ok := row[idCol]; !ok {
			id, err := res.LastInsertId()
			if err != nil {
				return nil, fmt.Errorf("sqlconn: reading generated id: %w", err)
			}
			row[idCol] = id
		}
		result.Rows = []connector.Row{row}
	}
	return result, nil
}

func (t *sqlTx) update(ctx context.Context, op *connector.Update) (*connector.Result, error) {
	var before []connector.Row
	if len(op.Returning) > 0 && t.dialect == MySQL {
		// mysql has no RETURNING on updates: read the rows first and
		// overlay the written values.
		res, err := t.find(ctx, &connector.Find{
			Table:   op.Table,
			Where:   op.Where,
			Columns: op.Returning,
		})
		if err != nil {
			return nil, err
		}
		before = res.Rows
	}

	cols := sortedKeys(op.Values)
	b := newBuilder(t.dialect)
	b.write("UPDATE ")
	b.ident(op.Table)
	b.write(" SET ")
	for i, col := range cols {
		if i > 0 {
			b.write(", ")
		}
		b.ident(col)
		b.write(" = ")
		b.arg(op.Values[col])
	}
	if err := b.where(op.Table, op.Where); err != nil {
		return nil, err
	}

	if len(op.Returning) > 0 && t.dialect != MySQL {
		b.write(" RETURNING ")
		for i, col := range op.Returning {
			if i > 0 {
				b.write(", ")
			}
			b.ident(col)
		}
		rows, err := t.tx.QueryContext(ctx, b.String(), b.args...)
		if err != nil {
			return nil, classify(err)
		}
		out, err := scanRows(rows)
		if err != nil {
			return nil, err
		}
		return &connector.Result{Rows: out, Affected: int64(len(out))}, nil
	}

	res, err := t.tx.ExecContext(ctx, b.String(), b.args...)
	if err != nil {
		return nil, classify(err)
	}
	affected, _ := res.RowsAffected()
	result := &connector.Result{Affected: affected}
	if before != nil {
		for _, row := range before {
			for k, v := range op.Values {
				if _, ok := row[k]; ok {
					row[k] = v
				}
			}
		}
		result.Rows = before
	}
	return result, nil
}

func (t *sqlTx) delete(ctx context.Context, op *connector.Delete) (*connector.Result, error) {
	b := newBuilder(t.dialect)
	b.write("DELETE FROM ")
	b.ident(op.Table)
	if err := b.where(op.Table, op.Where); err != nil {
		return nil, err
	}
	res, err := t.tx.ExecContext(ctx, b.String(), b.args...)
	if err != nil {
		return nil, classify(err)
	}
	affected, _ := res.RowsAffected()
	return &connector.Result{Affected: affected}, nil
}

func (t *sqlTx) connect(ctx context.Context, op *connector.Connect) (*connector.Result, error) {
	if len(op.LeftIDs) == 0 || len(op.RightIDs) == 0 {
		return &connector.Result{}, nil
	}
	b := newBuilder(t.dialect)
	switch t.dialect {
	case MySQL:
		b.write("INSERT IGNORE INTO ")
	case SQLite:
		b.write("INSERT OR IGNORE INTO ")
	default:
		b.write("INSERT INTO ")
	}
	b.ident(op.Table)
	b.write(" (")
	b.ident(op.LeftColumn)
	b.write(", ")
	b.ident(op.RightColumn)
	b.write(") VALUES ")
	first := true
	for _, l := range op.LeftIDs {
		for _, r := range op.RightIDs {
			if !first {
				b.write(", ")
			}
			first = false
			b.argList([]any{l, r})
		}
	}
	if t.dialect == Postgres {
		b.write(" ON CONFLICT DO NOTHING")
	}
	res, err := t.tx.ExecContext(ctx, b.String(), b.args...)
	if err != nil {
		return nil, classify(err)
	}
	affected, _ := res.RowsAffected()
	return &connector.Result{Affected: affected}, nil
}

func (t *sqlTx) disconnect(ctx context.Context, op *connector.Disconnect) (*connector.Result, error) {
	if len(op.LeftIDs) == 0 || len(op.RightIDs) == 0 {
		return &connector.Result{}, nil
	}
	b := newBuilder(t.dialect)
	b.write("DELETE FROM ")
	b.ident(op.Table)
	b.write(" WHERE ")
	b.column(op.Table, op.LeftColumn)
	b.write(" IN ")
	b.argList(op.LeftIDs)
	b.write(" AND ")
	b.column(op.Table, op.RightColumn)
	b.write(" IN ")
	b.argList(op.RightIDs)
	res, err := t.tx.ExecContext(ctx, b.String(), b.args...)
	if err != nil {
		return nil, classify(err)
	}
	affected, _ := res.RowsAffected()
	return &connector.Result{Affected: affected}, nil
}

func (t *sqlTx) count(ctx context.Context, op *connector.Count) (*connector.Result, error) {
	b := newBuilder(t.dialect)
	b.write("SELECT COUNT(*) FROM ")
	b.ident(op.Table)
	if err := b.where(op.Table, op.Where); err != nil {
		return nil, err
	}
	var n int64
	if err := t.tx.QueryRowContext(ctx, b.String(), b.args...).Scan(&n); err != nil {
		return nil, classify(err)
	}
	return &connector.Result{Count: n}, nil
}

func scanRows(rows *sql.Rows) ([]connector.Row, error) {
	defer rows.Close()
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("sqlconn: reading columns: %w", err)
	}
	var out []connector.Row
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("sqlconn: scanning row: %w", err)
		}
		row := make(connector.Row, len(cols))
		for i, col := range cols {
			if bs, ok := vals[i].([]byte); ok {
				row[col] = string(bs)
			} else {
				row[col] = vals[i]
			}
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlconn: iterating rows: %w", err)
	}
	return out, nil
}

func sortedKeys(values connector.Row) []string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
