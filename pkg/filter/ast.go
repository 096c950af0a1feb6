package filter

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Expression is a node of a parsed filter.
type Expression interface {
	String() string
	Sql() string
}

// binaryExpression is a comparison such as "status = 'failed'" or a logical
// "and"/"or" of two expressions.
type binaryExpression struct {
	Left  Expression
	Op    Token
	Right Expression
}

func (e *binaryExpression) String() string {
	return fmt.Sprintf("(%s %s %s)", e.Left, e.Op, e.Right)
}

func (e *binaryExpression) Sql() string {
	switch e.Op {
	case like:
		return fmt.Sprintf("regexp_matches(%s, %s)", e.Left.Sql(), e.Right.Sql())
	case notLike:
		return fmt.Sprintf("NOT regexp_matches(%s, %s)", e.Left.Sql(), e.Right.Sql())
	default:
		return fmt.Sprintf("(%s %s %s)", e.Left.Sql(), comparisonSql[e.Op], e.Right.Sql())
	}
}

type notExpression struct {
	Inner Expression
}

func (e *notExpression) String() string {
	return fmt.Sprintf("(not %s)", e.Inner)
}

func (e *notExpression) Sql() string {
	return fmt.Sprintf("(NOT %s)", e.Inner.Sql())
}

// inExpression is "field in (a, b)" or its negation.
type inExpression struct {
	Field   *varExpression
	Negated bool
	Values  []Expression
}

func (e *inExpression) String() string {
	op := "in"
	if e.Negated {
		op = "notIn"
	}
	values := make([]string, 0, len(e.Values))
	for _, v := range e.Values {
		values = append(values, v.String())
	}
	return fmt.Sprintf("(%s %s [%s])", e.Field, op, strings.Join(values, ", "))
}

func (e *inExpression) Sql() string {
	op := "IN"
	if e.Negated {
		op = "NOT IN"
	}
	values := make([]string, 0, len(e.Values))
	for _, v := range e.Values {
		values = append(values, v.Sql())
	}
	return fmt.Sprintf("(%s %s (%s))", e.Field.Sql(), op, strings.Join(values, ", "))
}

// nullExpression tests for a missing value, typically a timestamp the job
// has not reached yet.
type nullExpression struct {
	Field   *varExpression
	Negated bool
}

func (e *nullExpression) String() string {
	if e.Negated {
		return fmt.Sprintf("(%s is not null)", e.Field)
	}
	return fmt.Sprintf("(%s is null)", e.Field)
}

func (e *nullExpression) Sql() string {
	if e.Negated {
		return fmt.Sprintf("(%s IS NOT NULL)", e.Field.Sql())
	}
	return fmt.Sprintf("(%s IS NULL)", e.Field.Sql())
}

type stringExpression struct {
	Value string
}

func (e *stringExpression) String() string {
	return strconv.Quote(e.Value)
}

func (e *stringExpression) Sql() string {
	return quote(e.Value)
}

// varExpression is a field name like "status" or "elapsed".
type varExpression struct {
	Name string
}

func (v *varExpression) String() string {
	return v.Name
}

// Sql resolves the field to its column. Unmapped names are quoted as they
// are; Identifiers lets callers reject them first.
func (v *varExpression) Sql() string {
	if col, ok := columnMap[strings.ToLower(v.Name)]; ok {
		return col
	}
	return strconv.Quote(v.Name)
}

type booleanExpression struct {
	Value bool
}

func (b *booleanExpression) String() string {
	return strconv.FormatBool(b.Value)
}

func (b *booleanExpression) Sql() string {
	return strings.ToUpper(strconv.FormatBool(b.Value))
}

type regexExpression struct {
	Pattern string
}

func newRegexExpression(pos int, pattern string) (*regexExpression, error) {
	if _, err := regexp.Compile(pattern); err != nil {
		return nil, ParseError{Position: pos, Message: fmt.Sprintf("invalid regex: %s", err)}
	}
	return &regexExpression{Pattern: pattern}, nil
}

func (r *regexExpression) String() string {
	return fmt.Sprintf("/%s/", r.Pattern)
}

func (r *regexExpression) Sql() string {
	return quote(r.Pattern)
}

// quantityExpression is a number, read as seconds unless it carries an m
// or h unit.
type quantityExpression struct {
	Value float64
	Unit  string
}

func newQuantityExpression(val string) *quantityExpression {
	q := &quantityExpression{}
	if last := val[len(val)-1]; isUnit(last) {
		q.Unit = strings.ToLower(string(last))
		val = val[:len(val)-1]
	}
	q.Value, _ = strconv.ParseFloat(val, 64)
	return q
}

func (q *quantityExpression) Seconds() float64 {
	switch q.Unit {
	case "m":
		return q.Value * 60
	case "h":
		return q.Value * 3600
	default:
		return q.Value
	}
}

func (q *quantityExpression) String() string {
	return fmt.Sprintf("%.2f%s", q.Value, q.Unit)
}

func (q *quantityExpression) Sql() string {
	return fmt.Sprintf("%.2f", q.Seconds())
}

func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
