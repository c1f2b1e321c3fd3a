package sealdb

import (
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"
)

// Operator enumerates the supported comparison operators. Filters built
// through ParseFilter reject unknown operator names at construction time
// instead of silently ignoring them.
type Operator uint8

const (
	OpEq Operator = iota
	OpNe
	OpGt
	OpGte
	OpLt
	OpLte
	OpIn
	OpNin
	OpRegex
	OpExists
)

// String returns the query-syntax name of the operator
func (op Operator) String() string {
	switch op {
	case OpEq:
		return "$eq"
	case OpNe:
		return "$ne"
	case OpGt:
		return "$gt"
	case OpGte:
		return "$gte"
	case OpLt:
		return "$lt"
	case OpLte:
		return "$lte"
	case OpIn:
		return "$in"
	case OpNin:
		return "$nin"
	case OpRegex:
		return "$regex"
	case OpExists:
		return "$exists"
	default:
		return "unknown"
	}
}

func parseOperator(name string) (Operator, error) {
	switch name {
	case "$eq":
		return OpEq, nil
	case "$ne":
		return OpNe, nil
	case "$gt":
		return OpGt, nil
	case "$gte":
		return OpGte, nil
	case "$lt":
		return OpLt, nil
	case "$lte":
		return OpLte, nil
	case "$in":
		return OpIn, nil
	case "$nin":
		return OpNin, nil
	case "$regex":
		return OpRegex, nil
	case "$exists":
		return OpExists, nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnknownOperator, name)
	}
}

// OpClause is one operator applied to a field's resolved value
type OpClause struct {
	Op      Operator
	Operand any

	// compiled pattern for OpRegex, built at construction
	pattern *regexp.Regexp
}

// Condition is the value side of a field predicate: either a literal
// (equality match) or a conjunction of operator clauses.
type Condition struct {
	Literal any
	Clauses []OpClause // nil means literal equality
}

// Eq builds a literal equality condition
func Eq(value any) Condition {
	return Condition{Literal: value}
}

// Where builds an operator condition from clauses
func Where(clauses ...OpClause) Condition {
	return Condition{Clauses: clauses}
}

// Clause builds a single operator clause, compiling regex operands
func Clause(op Operator, operand any) (OpClause, error) {
	clause := OpClause{Op: op, Operand: operand}
	if op == OpRegex {
		src, ok := operand.(string)
		if !ok {
			return OpClause{}, NewValidationError("$regex", operand, "regex operand must be a string")
		}
		pattern, err := regexp.Compile(src)
		if err != nil {
			return OpClause{}, NewValidationError("$regex", operand, err.Error())
		}
		clause.pattern = pattern
	}
	return clause, nil
}

// FieldCondition binds a dot-path to a condition
type FieldCondition struct {
	Path string
	Cond Condition
}

// Filter is a predicate tree over a document's data. A document matches iff
// every logical branch and every field condition matches (conjunction of all
// top-level keys). Not negates the conjunction of all its sub-filters, not a
// single predicate.
type Filter struct {
	And    []*Filter
	Or     []*Filter
	Not    []*Filter
	Fields []FieldCondition
}

// ParseFilter builds a filter from the map syntax, e.g.
//
//	{"age": {"$gte": 21}, "$or": [{"role": "admin"}, {"role": "owner"}]}
//
// Unknown operators and invalid regex patterns are rejected here rather than
// silently ignored during matching.
func ParseFilter(raw map[string]any) (*Filter, error) {
	if raw == nil {
		return nil, nil
	}
	f := &Filter{}
	for key, value := range raw {
		switch key {
		case "$and", "$or", "$not":
			subs, err := parseSubFilters(key, value)
			if err != nil {
				return nil, err
			}
			switch key {
			case "$and":
				f.And = subs
			case "$or":
				f.Or = subs
			case "$not":
				f.Not = subs
			}
		default:
			if strings.HasPrefix(key, "$") {
				return nil, fmt.Errorf("%w: %s", ErrUnknownOperator, key)
			}
			cond, err := parseCondition(value)
			if err != nil {
				return nil, fmt.Errorf("field %s: %w", key, err)
			}
			f.Fields = append(f.Fields, FieldCondition{Path: key, Cond: cond})
		}
	}
	return f, nil
}

func parseSubFilters(key string, value any) ([]*Filter, error) {
	items, ok := value.([]any)
	if !ok {
		return nil, NewValidationError(key, value, "logical operator expects an array of predicates")
	}
	subs := make([]*Filter, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, NewValidationError(key, item, "predicate must be an object")
		}
		sub, err := ParseFilter(m)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, nil
}

func parseCondition(value any) (Condition, error) {
	m, ok := value.(map[string]any)
	if !ok || !allOperatorKeys(m) {
		return Eq(value), nil
	}
	clauses := make([]OpClause, 0, len(m))
	for name, operand := range m {
		op, err := parseOperator(name)
		if err != nil {
			return Condition{}, err
		}
		clause, err := Clause(op, operand)
		if err != nil {
			return Condition{}, err
		}
		clauses = append(clauses, clause)
	}
	return Condition{Clauses: clauses}, nil
}

func allOperatorKeys(m map[string]any) bool {
	if len(m) == 0 {
		return false
	}
	for key := range m {
		if !strings.HasPrefix(key, "$") {
			return false
		}
	}
	return true
}

// Match evaluates the filter against a document's data. A nil filter matches
// everything.
func (f *Filter) Match(data map[string]any) bool {
	if f == nil {
		return true
	}
	for _, sub := range f.And {
		if !sub.Match(data) {
			return false
		}
	}
	if len(f.Or) > 0 {
		matched := false
		for _, sub := range f.Or {
			if sub.Match(data) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	if len(f.Not) > 0 {
		all := true
		for _, sub := range f.Not {
			if !sub.Match(data) {
				all = false
				break
			}
		}
		if all {
			return false
		}
	}
	for _, fc := range f.Fields {
		value, present := resolvePath(data, fc.Path)
		if !matchCondition(value, present, fc.Cond) {
			return false
		}
	}
	return true
}

// resolvePath walks a dot-path ("a.b.c") into nested data. Missing
// intermediate objects resolve to absent rather than erroring.
func resolvePath(data map[string]any, path string) (any, bool) {
	parts := strings.Split(path, ".")
	var current any = data
	for _, part := range parts {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

func matchCondition(value any, present bool, cond Condition) bool {
	if cond.Clauses == nil {
		return present && looseEqual(value, cond.Literal)
	}
	for _, clause := range cond.Clauses {
		if !matchClause(value, present, clause) {
			return false
		}
	}
	return true
}

func matchClause(value any, present bool, clause OpClause) bool {
	switch clause.Op {
	case OpEq:
		return present && looseEqual(value, clause.Operand)
	case OpNe:
		return !present || !looseEqual(value, clause.Operand)
	case OpGt:
		c, ok := compareValues(value, clause.Operand)
		return present && ok && c > 0
	case OpGte:
		c, ok := compareValues(value, clause.Operand)
		return present && ok && c >= 0
	case OpLt:
		c, ok := compareValues(value, clause.Operand)
		return present && ok && c < 0
	case OpLte:
		c, ok := compareValues(value, clause.Operand)
		return present && ok && c <= 0
	case OpIn:
		return present && containsValue(clause.Operand, value)
	case OpNin:
		return !present || !containsValue(clause.Operand, value)
	case OpRegex:
		if !present {
			return false
		}
		pattern := clause.pattern
		if pattern == nil {
			src, ok := clause.Operand.(string)
			if !ok {
				return false
			}
			var err error
			pattern, err = regexp.Compile(src)
			if err != nil {
				return false
			}
		}
		return pattern.MatchString(fmt.Sprint(value))
	case OpExists:
		want, ok := clause.Operand.(bool)
		if !ok {
			return false
		}
		return present == want
	default:
		return false
	}
}

func containsValue(operand, value any) bool {
	items, ok := operand.([]any)
	if !ok {
		return false
	}
	for _, item := range items {
		if looseEqual(value, item) {
			return true
		}
	}
	return false
}

// looseEqual compares values with numeric coercion across integer and float
// types, falling back to deep equality for composites
func looseEqual(a, b any) bool {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		return af == bf
	}
	return reflect.DeepEqual(a, b)
}

// compareValues orders two values of the same kind: numbers numerically,
// strings lexicographically, bools false-before-true. Mixed or non-ordered
// kinds are not comparable.
func compareValues(a, b any) (int, bool) {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		switch {
		case af < bf:
			return -1, true
		case af > bf:
			return 1, true
		default:
			return 0, true
		}
	}

	as, aok := a.(string)
	bs, bok := b.(string)
	if aok && bok {
		return strings.Compare(as, bs), true
	}

	ab, aok := a.(bool)
	bb, bok := b.(bool)
	if aok && bok {
		switch {
		case ab == bb:
			return 0, true
		case bb:
			return -1, true
		default:
			return 1, true
		}
	}

	return 0, false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}

// SortKey orders results by one field, ascending (1) or descending (-1)
type SortKey struct {
	Field     string
	Direction int
}

// FindOptions controls the find pipeline
type FindOptions struct {
	Filter         *Filter
	Sort           []SortKey
	Skip           int
	Limit          int // <= 0 means no limit
	Projection     []string
	IncludeDeleted bool
}

// FindResult is the outcome of a find. TotalCount is computed before
// skip/limit are applied.
type FindResult struct {
	Documents  []*Document
	TotalCount int
	HasMore    bool
}

// FindDocuments runs the query pipeline over documents in their given order:
// implicit deleted filter, predicate, count, stable multi-key sort,
// skip/limit, projection. Returned documents are clones; mutating them does
// not touch the store.
func FindDocuments(docs []*Document, opts FindOptions) *FindResult {
	matched := make([]*Document, 0, len(docs))
	for _, doc := range docs {
		if doc.Meta.Deleted && !opts.IncludeDeleted {
			continue
		}
		if !opts.Filter.Match(doc.Data) {
			continue
		}
		matched = append(matched, doc)
	}

	totalCount := len(matched)

	if len(opts.Sort) > 0 {
		sortDocuments(matched, opts.Sort)
	}

	skip := opts.Skip
	if skip < 0 {
		skip = 0
	}
	if skip > 0 {
		if skip >= len(matched) {
			matched = matched[:0]
		} else {
			matched = matched[skip:]
		}
	}
	if opts.Limit > 0 && len(matched) > opts.Limit {
		matched = matched[:opts.Limit]
	}

	out := make([]*Document, 0, len(matched))
	for _, doc := range matched {
		clone := doc.Clone()
		if len(opts.Projection) > 0 {
			clone.Data = projectData(clone.Data, opts.Projection)
		}
		out = append(out, clone)
	}

	return &FindResult{
		Documents:  out,
		TotalCount: totalCount,
		HasMore:    skip+len(out) < totalCount,
	}
}

// sortDocuments stably sorts by each key in turn; missing or equal values
// fall through to the next key. Final tie order beyond the given keys is the
// input order.
func sortDocuments(docs []*Document, keys []SortKey) {
	sort.SliceStable(docs, func(i, j int) bool {
		for _, key := range keys {
			av, aok := resolvePath(docs[i].Data, key.Field)
			bv, bok := resolvePath(docs[j].Data, key.Field)
			if !aok || !bok {
				continue
			}
			c, ordered := compareValues(av, bv)
			if !ordered || c == 0 {
				continue
			}
			if key.Direction < 0 {
				return c > 0
			}
			return c < 0
		}
		return false
	})
}

// ProjectionFromMap converts a boolean projection map into an inclusion list
func ProjectionFromMap(m map[string]bool) []string {
	fields := make([]string, 0, len(m))
	for field, include := range m {
		if include {
			fields = append(fields, field)
		}
	}
	sort.Strings(fields)
	return fields
}

// projectData keeps only the named fields. Dot-paths project nested values
// while preserving their position in the tree.
func projectData(data map[string]any, fields []string) map[string]any {
	out := make(map[string]any, len(fields))
	for _, field := range fields {
		value, present := resolvePath(data, field)
		if !present {
			continue
		}
		parts := strings.Split(field, ".")
		target := out
		for _, part := range parts[:len(parts)-1] {
			next, ok := target[part].(map[string]any)
			if !ok {
				next = make(map[string]any)
				target[part] = next
			}
			target = next
		}
		target[parts[len(parts)-1]] = value
	}
	return out
}
