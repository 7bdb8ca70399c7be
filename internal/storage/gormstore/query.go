package gormstore

import (
	"encoding/json"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mmynk/homequest/internal/filter"
)

// foldFunc is the Unicode-aware lower-casing function registered on SQLite
// connections.
const foldFunc = "unicode_lower"

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern builds a LIKE pattern matching s anywhere, with wildcards
// in s taken literally.
func containsPattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}

// applySpec adds one WHERE condition per predicate.
func applySpec(q *gorm.DB, spec filter.Spec) *gorm.DB {
	lower := "LOWER"
	if q.Dialector.Name() == DriverSQLite {
		lower = foldFunc
	}
	for _, p := range spec.Predicates {
		switch p.Kind {
		case filter.KindEquals:
			q = q.Where(clause.Eq{Column: clause.Column{Name: string(p.Column)}, Value: p.Value})
		case filter.KindBudgetAtLeast:
			q = q.Where("budget_min >= ?", p.Amount)
		case filter.KindBudgetAtMost:
			q = q.Where("budget_max <= ?", p.Amount)
		case filter.KindSearch:
			pattern := containsPattern(p.Value)
			q = q.Where(
				fmt.Sprintf(`(%[1]s(full_name) LIKE %[1]s(?) ESCAPE '\' OR %[1]s(email) LIKE %[1]s(?) ESCAPE '\' OR %[1]s(notes) LIKE %[1]s(?) ESCAPE '\' OR phone LIKE ? ESCAPE '\')`, lower),
				pattern, pattern, pattern, pattern,
			)
		case filter.KindAnyTag:
			q = q.Where(anyTag(lower, p.Tags))
		case filter.KindCreatedFrom:
			q = q.Where("created_at >= ?", p.Time.UTC())
		case filter.KindCreatedTo:
			q = q.Where("created_at <= ?", p.Time.UTC())
		}
	}
	return q
}

// anyTag matches the JSON-encoded tags column against each tag as a quoted
// array element, case-insensitively.
func anyTag(lower string, tags []string) clause.Expression {
	exprs := make([]clause.Expression, 0, len(tags))
	for _, tag := range tags {
		encoded, err := json.Marshal(tag)
		if err != nil {
			continue
		}
		exprs = append(exprs, clause.Expr{
			SQL:  lower + `(tags) LIKE ` + lower + `(?) ESCAPE '\'`,
			Vars: []any{containsPattern(string(encoded))},
		})
	}
	// A one-element OrConditions is joined to the preceding condition with
	// OR, which would escape the owner scope.
	if len(exprs) == 1 {
		return exprs[0]
	}
	return clause.Or(exprs...)
}
