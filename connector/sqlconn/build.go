package sqlconn

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/syssam/querygraph/connector"
)

// builder assembles one SQL statement with dialect-specific placeholders
// and identifier quoting.
type builder struct {
	sb      strings.Builder
	args    []any
	dialect string
	n       int
}

func newBuilder(dialect string) *builder {
	return &builder{dialect: dialect}
}

func (b *builder) String() string { return b.sb.String() }

func (b *builder) write(s string) { b.sb.WriteString(s) }

// ident writes a quoted identifier.
func (b *builder) ident(name string) {
	switch b.dialect {
	case MySQL:
		b.sb.WriteByte('`')
		b.write(name)
		b.sb.WriteByte('`')
	default:
		b.sb.WriteByte('"')
		b.write(name)
		b.sb.WriteByte('"')
	}
}

// column writes a table-qualified column reference.
func (b *builder) column(table, col string) {
	b.ident(table)
	b.sb.WriteByte('.')
	b.ident(col)
}

// arg writes a placeholder and binds the value to it.
func (b *builder) arg(v any) {
	b.n++
	switch b.dialect {
	case Postgres:
		b.write("$" + strconv.Itoa(b.n))
	default:
		b.sb.WriteByte('?')
	}
	b.args = append(b.args, v)
}

func (b *builder) argList(vs []any) {
	b.sb.WriteByte('(')
	for i, v := range vs {
		if i > 0 {
			b.write(", ")
		}
		b.arg(v)
	}
	b.sb.WriteByte(')')
}

// pred writes a predicate scoped to the given table. Columns are always
// table-qualified so correlated subqueries resolve against the right
// scope.
func (b *builder) pred(table string, p connector.Pred) error {
	switch p := p.(type) {
	case *connector.Cmp:
		return b.cmp(table, p)
	case *connector.InList:
		if len(p.Values) == 0 {
			// An empty list matches nothing; negated, everything.
			if p.Negate {
				b.write("1 = 1")
			} else {
				b.write("1 = 0")
			}
			return nil
		}
		b.column(table, p.Column)
		if p.Negate {
			b.write(" NOT IN ")
		} else {
			b.write(" IN ")
		}
		b.argList(p.Values)
		return nil
	case *connector.Null:
		b.column(table, p.Column)
		if p.Negate {
			b.write(" IS NOT NULL")
		} else {
			b.write(" IS NULL")
		}
		return nil
	case *connector.Exists:
		if p.Negate {
			b.write("NOT ")
		}
		b.write("EXISTS (SELECT 1 FROM ")
		b.ident(p.Table)
		b.write(" WHERE ")
		b.column(p.Table, p.ForeignColumn)
		b.write(" = ")
		b.column(table, p.LocalColumn)
		if p.Where != nil {
			b.write(" AND ")
			if err := b.pred(p.Table, p.Where); err != nil {
				return err
			}
		}
		b.sb.WriteByte(')')
		return nil
	case *connector.AndPred:
		return b.junction(table, p.Operands, " AND ")
	case *connector.OrPred:
		return b.junction(table, p.Operands, " OR ")
	case *connector.NotPred:
		b.write("NOT (")
		if err := b.pred(table, p.Operand); err != nil {
			return err
		}
		b.sb.WriteByte(')')
		return nil
	default:
		return fmt.Errorf("sqlconn: unknown predicate %T", p)
	}
}

func (b *builder) junction(table string, ps []connector.Pred, sep string) error {
	if len(ps) == 0 {
		b.write("1 = 1")
		return nil
	}
	b.sb.WriteByte('(')
	for i, p := range ps {
		if i > 0 {
			b.write(sep)
		}
		if err := b.pred(table, p); err != nil {
			return err
		}
	}
	b.sb.WriteByte(')')
	return nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func (b *builder) cmp(table string, p *connector.Cmp) error {
	b.column(table, p.Column)
	switch p.Op {
	case connector.CmpEQ, connector.CmpNEQ, connector.CmpGT, connector.CmpGTE, connector.CmpLT, connector.CmpLTE:
		b.write(" " + string(p.Op) + " ")
		b.arg(p.Value)
		return nil
	case connector.CmpContains:
		return b.like("%" + likeEscaper.Replace(fmt.Sprint(p.Value)) + "%")
	case connector.CmpHasPrefix:
		return b.like(likeEscaper.Replace(fmt.Sprint(p.Value)) + "%")
	case connector.CmpHasSuffix:
		return b.like("%" + likeEscaper.Replace(fmt.Sprint(p.Value)))
	default:
		return fmt.Errorf("sqlconn: unknown comparison %q", p.Op)
	}
}

func (b *builder) like(pattern string) error {
	b.write(" LIKE ")
	b.arg(pattern)
	b.write(` ESCAPE '\'`)
	return nil
}

// where writes the WHERE clause for a possibly nil predicate.
func (b *builder) where(table string, p connector.Pred) error {
	if p == nil {
		return nil
	}
	b.write(" WHERE ")
	return b.pred(table, p)
}
