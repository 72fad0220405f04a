package spacetrack

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/signalsfoundry/satdecay/model"
)

// Class is a Space-Track request class.
type Class string

const (
	ClassGPHistory Class = "gp_history"
	ClassSatCat    Class = "satcat"
)

// Field is a predicate column of a request class.
type Field string

const (
	FieldCatalogNumber  Field = "NORAD_CAT_ID"
	FieldEpoch          Field = "EPOCH"
	FieldPeriapsis      Field = "PERIAPSIS"
	FieldObjectID       Field = "OBJECT_ID"
	FieldIntlDesignator Field = "INTLDES"
	FieldObjectName     Field = "OBJECT_NAME"
	FieldCountryCode    Field = "COUNTRY_CODE"
	FieldRCSSize        Field = "RCS_SIZE"
)

// Operator is the comparison prefix rendered in front of a predicate value.
type Operator string

const (
	OpEqual      Operator = ""
	OpGreater    Operator = ">"
	OpLess       Operator = "<"
	OpStartsWith Operator = "^"
)

// epochLayout is the timestamp format accepted by Space-Track predicates.
const epochLayout = "2006-01-02T15:04:05"

// Predicate filters one field.
type Predicate struct {
	Field Field
	Op    Operator
	Value string
}

// Equal matches rows whose field equals v.
func Equal(f Field, v any) Predicate { return Predicate{Field: f, Op: OpEqual, Value: formatValue(v)} }

// GreaterThan matches rows whose field is strictly greater than v.
func GreaterThan(f Field, v any) Predicate {
	return Predicate{Field: f, Op: OpGreater, Value: formatValue(v)}
}

// LessThan matches rows whose field is strictly less than v.
func LessThan(f Field, v any) Predicate {
	return Predicate{Field: f, Op: OpLess, Value: formatValue(v)}
}

// StartsWith matches rows whose field starts with v.
func StartsWith(f Field, v any) Predicate {
	return Predicate{Field: f, Op: OpStartsWith, Value: formatValue(v)}
}

func (p Predicate) String() string { return string(p.Field) + " " + string(p.Op) + p.Value }

func formatValue(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case time.Time:
		return x.UTC().Format(epochLayout)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case model.CatalogNumber:
		return x.String()
	case model.RecordID:
		return strconv.FormatInt(int64(x), 10)
	default:
		return fmt.Sprint(v)
	}
}

// Query is an immutable request description. Where returns a copy.
type Query struct {
	Class      Class
	Predicates []Predicate
	OrderBy    string
	Limit      int
}

// NewQuery starts a query against class.
func NewQuery(class Class) Query { return Query{Class: class} }

// Where appends predicates.
func (q Query) Where(preds ...Predicate) Query {
	next := make([]Predicate, 0, len(q.Predicates)+len(preds))
	next = append(next, q.Predicates...)
	next = append(next, preds...)
	q.Predicates = next
	return q
}

// Ordered sets the orderby clause, e.g. "EPOCH asc".
func (q Query) Ordered(orderBy string) Query {
	q.OrderBy = orderBy
	return q
}

// Limited caps the number of rows returned.
func (q Query) Limited(n int) Query {
	q.Limit = n
	return q
}

// Predicate returns the first predicate on field f.
func (q Query) Predicate(f Field) (Predicate, bool) {
	for _, p := range q.Predicates {
		if p.Field == f {
			return p, true
		}
	}
	return Predicate{}, false
}

// Path renders the query below /basicspacedata/query, one path segment
// pair per predicate in the order they were added.
func (q Query) Path() string {
	var b strings.Builder
	b.WriteString("/class/")
	b.WriteString(url.PathEscape(string(q.Class)))
	for _, p := range q.Predicates {
		b.WriteString("/")
		b.WriteString(url.PathEscape(string(p.Field)))
		b.WriteString("/")
		b.WriteString(url.PathEscape(string(p.Op) + p.Value))
	}
	if q.OrderBy != "" {
		b.WriteString("/orderby/")
		b.WriteString(url.PathEscape(q.OrderBy))
	}
	if q.Limit > 0 {
		b.WriteString("/limit/")
		b.WriteString(strconv.Itoa(q.Limit))
	}
	b.WriteString("/format/json")
	return b.String()
}

// String is used as a memo key and in logs.
func (q Query) String() string { return q.Path() }
