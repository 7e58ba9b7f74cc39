package repository

import (
	"strings"
)

// CarQuery accumulates parameterised WHERE conditions for the cars table.
// Column names come from the constants in this package, never from request
// input; values always travel as arguments. Unset filters add nothing, so
// an empty query renders no WHERE clause at all.
type CarQuery struct {
	where []string
	args  []any
}

// Eq adds "col = ?" when v is non-empty.
func (q *CarQuery) Eq(col, v string) *CarQuery {
	if v = strings.TrimSpace(v); v != "" {
		q.where = append(q.where, col+" = ?")
		q.args = append(q.args, v)
	}
	return q
}

// Range adds inclusive bounds over a numeric expression. Nil bounds are
// skipped independently.
func (q *CarQuery) Range(expr string, from, to *float64) *CarQuery {
	if from != nil {
		q.where = append(q.where, expr+" >= ?")
		q.args = append(q.args, *from)
	}
	if to != nil {
		q.where = append(q.where, expr+" <= ?")
		q.args = append(q.args, *to)
	}
	return q
}

// Like adds "(c1 LIKE ? OR c2 LIKE ? ...)" for a non-empty keyword.
func (q *CarQuery) Like(keyword string, cols ...string) *CarQuery {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" || len(cols) == 0 {
		return q
	}
	parts := make([]string, len(cols))
	pattern := "%" + escapeLike(keyword) + "%"
	for i, c := range cols {
		parts[i] = c + " LIKE ?"
		q.args = append(q.args, pattern)
	}
	q.where = append(q.where, "("+strings.Join(parts, " OR ")+")")
	return q
}

// Cond adds a fixed condition with its arguments.
func (q *CarQuery) Cond(cond string, args ...any) *CarQuery {
	q.where = append(q.where, cond)
	q.args = append(q.args, args...)
	return q
}

// NotBlockedFor hides listings whose owner blocked the viewer or was blocked
// by them. Anonymous viewers (0) see everything.
func (q *CarQuery) NotBlockedFor(viewerID uint64) *CarQuery {
	if viewerID == 0 {
		return q
	}
	return q.Cond(`c.user_id NOT IN (SELECT blocked_id FROM user_blocks WHERE blocker_id = ?)
		AND c.user_id NOT IN (SELECT blocker_id FROM user_blocks WHERE blocked_id = ?)`, viewerID, viewerID)
}

// Where renders "WHERE a AND b" (or "" when empty) and a copy of the args.
func (q *CarQuery) Where() (string, []any) {
	args := append([]any{}, q.args...)
	if len(q.where) == 0 {
		return "", args
	}
	return "WHERE " + strings.Join(q.where, " AND "), args
}

// Len reports the number of conditions.
func (q *CarQuery) Len() int { return len(q.where) }

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// Numeric views over the text columns that store numbers.
const (
	exprPrice   = "CAST(c.price AS DECIMAL(14,2))"
	exprYear    = "CAST(c.year AS UNSIGNED)"
	exprMileage = "CAST(c.kilometers AS UNSIGNED)"
)

var sortColumns = map[string]string{
	"created_at": "c.created_at",
	"price":      exprPrice,
	"year":       exprYear,
}

// SortClause validates sortBy/order against the allow-list. Anything else
// falls back to created_at desc; bad sort input is never an error.
func SortClause(sortBy, order string) (string, string) {
	key := strings.ToLower(strings.TrimSpace(sortBy))
	if _, ok := sortColumns[key]; !ok {
		key = "created_at"
	}
	dir := strings.ToLower(strings.TrimSpace(order))
	if dir != "asc" && dir != "desc" {
		dir = "desc"
	}
	return key, dir
}

func orderBy(sortBy, order string) string {
	key, dir := SortClause(sortBy, order)
	return "ORDER BY " + sortColumns[key] + " " + strings.ToUpper(dir) + ", c.id DESC"
}
