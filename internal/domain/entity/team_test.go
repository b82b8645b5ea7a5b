package entity

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestTeam_SelectableBy(t *testing.T) {
	team := &Team{Active: true, LeaderID: 1, OnlyMembers: true, MemberIDs: []int64{2, 3}}

	assert.True(t, team.SelectableBy(1), "leader")
	assert.True(t, team.SelectableBy(3), "member")
	assert.False(t, team.SelectableBy(4), "outsider")

	team.OnlyMembers = false
	assert.True(t, team.SelectableBy(4))

	team.Active = false
	assert.False(t, team.SelectableBy(1))
}

func TestApproverRule_Normalize(t *testing.T) {
	rule := &ApproverRule{MaxAmount: decimal.NewNullDecimal(decimal.Zero)}
	rule.Normalize()

	assert.Equal(t, 0, rule.Sequence)
	assert.Equal(t, DefaultRuleRole, rule.Role)
	assert.False(t, rule.MaxAmount.Valid)

	kept := &ApproverRule{Sequence: 5, Role: "CFO", MaxAmount: decimal.NewNullDecimal(decimal.NewFromInt(10))}
	kept.Normalize()
	assert.Equal(t, 5, kept.Sequence)
	assert.Equal(t, "CFO", kept.Role)
	assert.True(t, kept.MaxAmount.Valid)
}

func TestSortRules(t *testing.T) {
	rules := []*ApproverRule{{ID: 5, Sequence: 10}, {ID: 2, Sequence: 10}, {ID: 1, Sequence: 30}, {ID: 7, Sequence: 1}}
	SortRules(rules)

	ids := make([]int64, 0, len(rules))
	for _, r := range rules {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []int64{7, 2, 5, 1}, ids)
}
