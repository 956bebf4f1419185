package store

import "strings"

// Scope narrows a query to a channel and/or user. Empty fields are wildcards:
// an absent dimension is unconstrained, not restricted to NULL rows.
type Scope struct {
	ChannelID string
	UserID    string
}

// queryBuilder accumulates predicate+argument pairs in order and joins them
// with AND. Replaces ad-hoc conditional string concatenation so the additive
// scoping rule is testable on its own.
type queryBuilder struct {
	conds []string
	args  []any
}

func (q *queryBuilder) where(cond string, args ...any) {
	q.conds = append(q.conds, cond)
	q.args = append(q.args, args...)
}

// scope appends channel/user equality predicates for the non-empty dimensions.
func (q *queryBuilder) scope(sc Scope) {
	if sc.ChannelID != "" {
		q.where("channel_id = ?", sc.ChannelID)
	}
	if sc.UserID != "" {
		q.where("user_id = ?", sc.UserID)
	}
}

// clause renders the accumulated predicates as a " WHERE ..." suffix,
// or "" when no predicate was added.
func (q *queryBuilder) clause() (string, []any) {
	if len(q.conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(q.conds, " AND "), q.args
}

// isAllDigits reports whether s is a non-empty run of ASCII digits. Operands
// that pass are resolved strictly by id; everything else is a title substring.
func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
