package entity

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Team is a named approval team owning an ordered list of approver rules
type Team struct {
	ID              int64           `json:"id"`
	Name            string          `json:"name"`
	Active          bool            `json:"active"`
	LeaderID        int64           `json:"leader_id"`
	CompanyID       int64           `json:"company_id"`
	LockAmountTotal bool            `json:"lock_amount_total"`
	OnlyMembers     bool            `json:"only_members"`
	MemberIDs       []int64         `json:"member_ids"`
	Rules           []*ApproverRule `json:"rules,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// HasMember reports whether userID is a member of the team
func (t *Team) HasMember(userID int64) bool {
	for _, id := range t.MemberIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// SelectableBy reports whether userID may assign this team to an order.
// Teams restricted to members are selectable by members and the leader only.
func (t *Team) SelectableBy(userID int64) bool {
	if !t.Active {
		return false
	}
	if !t.OnlyMembers {
		return true
	}
	return t.LeaderID == userID || t.HasMember(userID)
}

// ApproverRule is a team-level template for one approval step
type ApproverRule struct {
	ID              int64               `json:"id"`
	TeamID          int64               `json:"team_id"`
	Sequence        int                 `json:"sequence"`
	UserID          int64               `json:"user_id"`
	Role            string              `json:"role"`
	MinAmount       decimal.Decimal     `json:"min_amount"`
	MaxAmount       decimal.NullDecimal `json:"max_amount"`
	LockAmountTotal bool                `json:"lock_amount_total"`
	CustomCondition string              `json:"custom_condition,omitempty"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
}

// Normalize applies defaults: role "Approver" and an unset maximum when the
// maximum is zero. Zero is a valid sequence.
func (r *ApproverRule) Normalize() {
	if r.Role == "" {
		r.Role = DefaultRuleRole
	}
	if r.MaxAmount.Valid && r.MaxAmount.Decimal.IsZero() {
		r.MaxAmount = decimal.NullDecimal{}
	}
}

// HasCondition reports whether the rule carries a custom condition
func (r *ApproverRule) HasCondition() bool {
	return r.CustomCondition != ""
}

// SortRules orders rules by sequence; ties keep id order
func SortRules(rules []*ApproverRule) {
	sort.SliceStable(rules, func(i, j int) bool {
		if rules[i].Sequence != rules[j].Sequence {
			return rules[i].Sequence < rules[j].Sequence
		}
		return rules[i].ID < rules[j].ID
	})
}
