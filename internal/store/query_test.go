package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQueryBuilder_EmptyScopeIsUnconstrained(t *testing.T) {
	qb := &queryBuilder{}
	qb.scope(Scope{})
	clause, args := qb.clause()
	assert.Empty(t, clause)
	assert.Nil(t, args)
}

func TestQueryBuilder_ScopeIsAdditive(t *testing.T) {
	qb := &queryBuilder{}
	qb.where("status = ?", "done")
	qb.scope(Scope{ChannelID: "ch-1", UserID: "u-1"})

	clause, args := qb.clause()
	assert.Equal(t, " WHERE status = ? AND channel_id = ? AND user_id = ?", clause)
	assert.Equal(t, []any{"done", "ch-1", "u-1"}, args)
}

func TestQueryBuilder_ChannelOnly(t *testing.T) {
	qb := &queryBuilder{}
	qb.scope(Scope{ChannelID: "ch-1"})

	clause, args := qb.clause()
	assert.Equal(t, " WHERE channel_id = ?", clause)
	assert.Equal(t, []any{"ch-1"}, args)
}

func TestIsAllDigits(t *testing.T) {
	assert.True(t, isAllDigits("42"))
	assert.False(t, isAllDigits(""))
	assert.False(t, isAllDigits("4a"))
	assert.False(t, isAllDigits("fix bug 3"))
	assert.False(t, isAllDigits("-3"))
}
