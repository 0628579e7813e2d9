// Package conntest provides a scriptable in-memory connector for tests.
// Results are queued per operation kind and table, every executed
// operation is recorded in order, and transaction boundaries are counted
// so tests can assert commit and rollback behavior.
package conntest

import (
	"context"
	"sync"

	"github.com/syssam/querygraph/connector"
)

type queueKey struct {
	kind  string
	table string
}

// Conn is an in-memory connector. The zero value is not usable; use New.
type Conn struct {
	mu     sync.Mutex
	queues map[queueKey][]*connector.Result
	nextID int64
	failOn func(connector.Op) error

	ops       []connector.Op
	begins    int
	commits   int
	rollbacks int
}

// New returns an empty scriptable connector.
func New() *Conn {
	return &Conn{
		queues: make(map[queueKey][]*connector.Result),
	}
}

// QueueFind queues the rows returned by the next find on the table.
func (c *Conn) QueueFind(table string, rows ...connector.Row) {
	c.queue("find", table, &connector.Result{Rows: rows})
}

// QueueInsert queues the row returned by the next insert on the table,
// overriding the default echo of the inserted values.
func (c *Conn) QueueInsert(table string, row connector.Row) {
	c.queue("insert", table, &connector.Result{Rows: []connector.Row{row}})
}

// QueueUpdateRows queues the returned rows and affected count of the next
// update on the table.
func (c *Conn) QueueUpdateRows(table string, rows ...connector.Row) {
	c.queue("update", table, &connector.Result{Rows: rows, Affected: int64(len(rows))})
}

// QueueAffected queues the affected-rows count of the next update or
// delete on the table.
func (c *Conn) QueueAffected(kind, table string, n int64) {
	c.queue(kind, table, &connector.Result{Affected: n})
}

// QueueCount queues the result of the next count on the table.
func (c *Conn) QueueCount(table string, n int64) {
	c.queue("count", table, &connector.Result{Count: n})
}

func (c *Conn) queue(kind, table string, res *connector.Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	k := queueKey{kind: kind, table: table}
	c.queues[k] = append(c.queues[k], res)
}

func (c *Conn) pop(kind, table string) (*connector.Result, bool) {
	k := queueKey{kind: kind, table: table}
	q := c.queues[k]
	if len(q) == 0 {
		return nil, false
	}
	c.queues[k] = q[1:]
	return q[0], true
}

// SetNextID sets the id assigned to the next inserted row lacking an
// explicit id value. Ids count up from there.
func (c *Conn) SetNextID(id int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID = id - 1
}

// FailOn installs a hook inspecting every operation before execution; a
// non-nil return fails that operation.
func (c *Conn) FailOn(fn func(connector.Op) error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failOn = fn
}

// Ops returns all executed operations in execution order.
func (c *Conn) Ops() []connector.Op {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]connector.Op, len(c.ops))
	copy(out, c.ops)
	return out
}

// OpsOn returns the executed operations touching the given table.
func (c *Conn) OpsOn(table string) []connector.Op {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []connector.Op
	for _, op := range c.ops {
		if op.TableName() == table {
			out = append(out, op)
		}
	}
	return out
}

// Begins returns the number of opened transactions.
func (c *Conn) Begins() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.begins
}

// Commits returns the number of committed transactions.
func (c *Conn) Commits() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.commits
}

// Rollbacks returns the number of rolled back transactions.
func (c *Conn) Rollbacks() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rollbacks
}

// BeginTx opens a transaction.
func (c *Conn) BeginTx(ctx context.Context) (connector.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.begins++
	return &tx{conn: c}, nil
}

type tx struct {
	conn *Conn
}

func (t *tx) Execute(ctx context.Context, op connector.Op) (*connector.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c := t.conn
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failOn != nil {
		if err := c.failOn(op); err != nil {
			return nil, err
		}
	}
	c.ops = append(c.ops, op)
	switch op := op.(type) {
	case *connector.Find:
		if res, ok := c.pop("find", op.Table); ok {
			return res, nil
		}
		return &connector.Result{}, nil
	case *connector.Insert:
		if res, ok := c.pop("insert", op.Table); ok {
			return res, nil
		}
		row := make(connector.Row, len(op.Values)+1)
		for k, v := range op.Values {
			row[k] = v
		}
		if len(op.Returning) > 0 {
			idCol := op.Returning[0]
			if _, ok := row[idCol]; !ok {
				c.nextID++
				row[idCol] = c.nextID
			}
		}
		return &connector.Result{Rows: []connector.Row{row}}, nil
	case *connector.Update:
		if res, ok := c.pop("update", op.Table); ok {
			return res, nil
		}
		if len(op.Returning) > 0 {
			row := make(connector.Row, len(op.Values))
			for k, v := range op.Values {
				row[k] = v
			}
			return &connector.Result{Rows: []connector.Row{row}, Affected: 1}, nil
		}
		return &connector.Result{Affected: 1}, nil
	case *connector.Delete:
		if res, ok := c.pop("delete", op.Table); ok {
			return res, nil
		}
		return &connector.Result{Affected: 1}, nil
	case *connector.Connect:
		return &connector.Result{Affected: int64(len(op.LeftIDs) * len(op.RightIDs))}, nil
	case *connector.Disconnect:
		return &connector.Result{Affected: int64(len(op.LeftIDs) * len(op.RightIDs))}, nil
	case *connector.Count:
		if res, ok := c.pop("count", op.Table); ok {
			return res, nil
		}
		return &connector.Result{}, nil
	default:
		return &connector.Result{}, nil
	}
}

func (t *tx) Commit() error {
	t.conn.mu.Lock()
	defer t.conn.mu.Unlock()
	t.conn.commits++
	return nil
}

func (t *tx) Rollback() error {
	t.conn.mu.Lock()
	defer t.conn.mu.Unlock()
	t.conn.rollbacks++
	return nil
}
