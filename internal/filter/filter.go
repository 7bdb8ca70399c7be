// Package filter turns list/export query parameters into a typed predicate
// specification.
//
// Build is pure: it never touches storage. Each accepted parameter becomes
// one Predicate of a specific Kind; malformed values are rejected with an
// *Error instead of being silently ignored. The storage layer translates a
// Spec into SQL.
package filter

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mmynk/homequest/internal/leads"
	"github.com/mmynk/homequest/internal/models"
)

// Kind tags the variant of a Predicate.
type Kind int

const (
	// KindEquals matches Field exactly against Value.
	KindEquals Kind = iota
	// KindBudgetAtLeast keeps buyers whose stored budgetMin >= Amount.
	KindBudgetAtLeast
	// KindBudgetAtMost keeps buyers whose stored budgetMax <= Amount.
	KindBudgetAtMost
	// KindSearch matches Value as a substring of name, email, phone or notes.
	KindSearch
	// KindAnyTag keeps buyers carrying at least one of Tags.
	KindAnyTag
	// KindCreatedFrom keeps buyers created at or after Time.
	KindCreatedFrom
	// KindCreatedTo keeps buyers created at or before Time.
	KindCreatedTo
)

func (k Kind) String() string {
	switch k {
	case KindEquals:
		return "equals"
	case KindBudgetAtLeast:
		return "budget_at_least"
	case KindBudgetAtMost:
		return "budget_at_most"
	case KindSearch:
		return "search"
	case KindAnyTag:
		return "any_tag"
	case KindCreatedFrom:
		return "created_from"
	case KindCreatedTo:
		return "created_to"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Column names a categorical buyer column usable with KindEquals.
type Column string

const (
	ColumnCity         Column = "city"
	ColumnPropertyType Column = "property_type"
	ColumnBHK          Column = "bhk"
	ColumnPurpose      Column = "purpose"
	ColumnTimeline     Column = "timeline"
	ColumnSource       Column = "source"
	ColumnStatus       Column = "status"
)

// Predicate is one filter clause. Only the members relevant to Kind are set.
type Predicate struct {
	Kind   Kind
	Column Column
	Value  string
	Amount int
	Tags   []string
	Time   time.Time
}

// Spec is the conjunction of its predicates. The zero Spec matches everything.
type Spec struct {
	Predicates []Predicate
}

// Empty reports whether the spec applies no filtering.
func (s Spec) Empty() bool {
	return len(s.Predicates) == 0
}

// Error reports a malformed query parameter.
type Error struct {
	Param  string
	Value  string
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Param, e.Value, e.Reason)
}

// All is the sentinel value that disables a categorical filter.
const All = "all"

// EndOfDay is the offset from midnight used for inclusive dateTo bounds.
const EndOfDay = 24*time.Hour - time.Millisecond

type categorical struct {
	param  string
	column Column
	parse  func(string) (string, bool)
}

func enumParser[T ~string](e models.Enum[T]) func(string) (string, bool) {
	return func(s string) (string, bool) {
		v, ok := e.Parse(s)
		return string(v), ok
	}
}

var categoricals = []categorical{
	{"city", ColumnCity, enumParser(models.Cities)},
	{"propertyType", ColumnPropertyType, enumParser(models.PropertyTypes)},
	{"bhk", ColumnBHK, enumParser(models.BHKs)},
	{"purpose", ColumnPurpose, enumParser(models.Purposes)},
	{"timeline", ColumnTimeline, enumParser(models.Timelines)},
	{"source", ColumnSource, enumParser(models.Sources)},
	{"status", ColumnStatus, enumParser(models.Statuses)},
}

// Build converts query parameters into a Spec. Date-only values are
// interpreted in loc (time.Local when nil).
func Build(q url.Values, loc *time.Location) (Spec, error) {
	if loc == nil {
		loc = time.Local
	}
	var spec Spec

	for _, c := range categoricals {
		raw := strings.TrimSpace(q.Get(c.param))
		if raw == "" || strings.EqualFold(raw, All) {
			continue
		}
		v, ok := c.parse(raw)
		if !ok {
			return Spec{}, &Error{Param: c.param, Value: raw, Reason: "unknown value"}
		}
		spec.Predicates = append(spec.Predicates, Predicate{Kind: KindEquals, Column: c.column, Value: v})
	}

	if raw := strings.TrimSpace(q.Get("budgetMin")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return Spec{}, &Error{Param: "budgetMin", Value: raw, Reason: "must be a whole number"}
		}
		spec.Predicates = append(spec.Predicates, Predicate{Kind: KindBudgetAtLeast, Amount: n})
	}
	if raw := strings.TrimSpace(q.Get("budgetMax")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return Spec{}, &Error{Param: "budgetMax", Value: raw, Reason: "must be a whole number"}
		}
		spec.Predicates = append(spec.Predicates, Predicate{Kind: KindBudgetAtMost, Amount: n})
	}

	if search := strings.TrimSpace(q.Get("search")); search != "" {
		spec.Predicates = append(spec.Predicates, Predicate{Kind: KindSearch, Value: search})
	}

	if raw := q.Get("tags"); strings.TrimSpace(raw) != "" {
		if tags := leads.SplitTags(raw); len(tags) > 0 {
			spec.Predicates = append(spec.Predicates, Predicate{Kind: KindAnyTag, Tags: tags})
		}
	}

	if raw := strings.TrimSpace(q.Get("dateFrom")); raw != "" {
		t, _, err := parseDate(raw, loc)
		if err != nil {
			return Spec{}, &Error{Param: "dateFrom", Value: raw, Reason: "expected YYYY-MM-DD or RFC 3339"}
		}
		spec.Predicates = append(spec.Predicates, Predicate{Kind: KindCreatedFrom, Time: t})
	}
	if raw := strings.TrimSpace(q.Get("dateTo")); raw != "" {
		t, dateOnly, err := parseDate(raw, loc)
		if err != nil {
			return Spec{}, &Error{Param: "dateTo", Value: raw, Reason: "expected YYYY-MM-DD or RFC 3339"}
		}
		if dateOnly {
			t = t.Add(EndOfDay)
		}
		spec.Predicates = append(spec.Predicates, Predicate{Kind: KindCreatedTo, Time: t})
	}

	return spec, nil
}

// parseDate accepts a calendar date (midnight in loc) or an RFC 3339 instant.
func parseDate(s string, loc *time.Location) (time.Time, bool, error) {
	if t, err := time.ParseInLocation(time.DateOnly, s, loc); err == nil {
		return t, true, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, false, err
	}
	return t, false, nil
}
