package schema

import (
	"github.com/go-openapi/inflect"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var rules = ruleset()

func ruleset() *inflect.Ruleset {
	rs := inflect.NewDefaultRuleset()
	// Common acronyms that should survive underscoring intact.
	for _, w := range []string{"ID", "UUID", "URL", "API", "JSON", "SQL"} {
		rs.AddAcronym(w)
	}
	return rs
}

var titler = cases.Title(language.Und, cases.NoLower)

// TableName derives the table name of a model: pluralized snake case,
// e.g. "OrderItem" -> "order_items".
func TableName(model string) string {
	return rules.Pluralize(rules.Underscore(model))
}

// ColumnName derives the column name of a field, e.g. "createdAt" ->
// "created_at".
func ColumnName(field string) string {
	return rules.Underscore(field)
}

// Label returns the human-readable label of a model name used in error
// messages, e.g. "order_item" -> "Order Item".
func Label(model string) string {
	return titler.String(rules.Humanize(rules.Underscore(model)))
}
