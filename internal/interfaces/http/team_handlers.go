package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/garyjia/po-approval-route/internal/domain/entity"
)

// TeamRequest is the body of POST /api/teams and PUT /api/teams/:id
type TeamRequest struct {
	Name            string        `json:"name" binding:"required"`
	LeaderID        int64         `json:"leader_id"`
	CompanyID       int64         `json:"company_id" binding:"required"`
	Active          *bool         `json:"active"`
	LockAmountTotal bool          `json:"lock_amount_total"`
	OnlyMembers     bool          `json:"only_members"`
	MemberIDs       []int64       `json:"member_ids"`
	Rules           []RuleRequest `json:"rules"`
}

// RuleRequest describes one approver rule. An omitted sequence defaults to
// entity.DefaultRuleSequence; an explicit zero is kept.
type RuleRequest struct {
	Sequence        *int                `json:"sequence"`
	UserID          int64               `json:"user_id" binding:"required"`
	Role            string              `json:"role"`
	MinAmount       decimal.Decimal     `json:"min_amount"`
	MaxAmount       decimal.NullDecimal `json:"max_amount"`
	LockAmountTotal bool                `json:"lock_amount_total"`
	CustomCondition string              `json:"custom_condition"`
}

// MembersRequest is the body of PUT /api/teams/:id/members
type MembersRequest struct {
	UserIDs []int64 `json:"user_ids"`
}

func (r RuleRequest) toEntity() *entity.ApproverRule {
	sequence := entity.DefaultRuleSequence
	if r.Sequence != nil {
		sequence = *r.Sequence
	}
	return &entity.ApproverRule{
		Sequence:        sequence,
		UserID:          r.UserID,
		Role:            r.Role,
		MinAmount:       r.MinAmount,
		MaxAmount:       r.MaxAmount,
		LockAmountTotal: r.LockAmountTotal,
		CustomCondition: r.CustomCondition,
	}
}

// ListTeams handles GET /api/teams?company_id=. Only teams the acting user
// may select are returned.
func (h *Handlers) ListTeams(c *gin.Context) {
	companyID, err := strconv.ParseInt(c.Query("company_id"), 10, 64)
	if err != nil || companyID <= 0 {
		h.abort(c, http.StatusBadRequest, "company_id query parameter is required")
		return
	}

	teams, err := h.services.Team.SelectableTeams(c.Request.Context(), companyID, actorFrom(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, http.StatusOK, teams)
}

// CreateTeam handles POST /api/teams. The leader defaults to the acting user.
func (h *Handlers) CreateTeam(c *gin.Context) {
	var req TeamRequest
	if !h.bind(c, &req) {
		return
	}

	team := &entity.Team{
		Name:            req.Name,
		LeaderID:        req.LeaderID,
		CompanyID:       req.CompanyID,
		LockAmountTotal: req.LockAmountTotal,
		OnlyMembers:     req.OnlyMembers,
		MemberIDs:       req.MemberIDs,
	}
	if team.LeaderID == 0 {
		team.LeaderID = actorFrom(c).UserID
	}
	for _, r := range req.Rules {
		team.Rules = append(team.Rules, r.toEntity())
	}

	if err := h.services.Team.CreateTeam(c.Request.Context(), team); err != nil {
		h.fail(c, err)
		return
	}
	if req.Active != nil && !*req.Active {
		team.Active = false
		if err := h.services.Team.UpdateTeam(c.Request.Context(), team); err != nil {
			h.fail(c, err)
			return
		}
	}
	h.ok(c, http.StatusCreated, team)
}

// GetTeam handles GET /api/teams/:id
func (h *Handlers) GetTeam(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	team, err := h.services.Team.GetTeam(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, http.StatusOK, team)
}

// UpdateTeam handles PUT /api/teams/:id. Members and rules have their own
// endpoints and are left untouched.
func (h *Handlers) UpdateTeam(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	var req TeamRequest
	if !h.bind(c, &req) {
		return
	}

	team, err := h.services.Team.GetTeam(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}

	team.Name = req.Name
	team.CompanyID = req.CompanyID
	team.LockAmountTotal = req.LockAmountTotal
	team.OnlyMembers = req.OnlyMembers
	if req.LeaderID != 0 {
		team.LeaderID = req.LeaderID
	}
	if req.Active != nil {
		team.Active = *req.Active
	}

	if err := h.services.Team.UpdateTeam(c.Request.Context(), team); err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, http.StatusOK, team)
}

// DeleteTeam handles DELETE /api/teams/:id
func (h *Handlers) DeleteTeam(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	if err := h.services.Team.DeleteTeam(c.Request.Context(), id); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// SetMembers handles PUT /api/teams/:id/members
func (h *Handlers) SetMembers(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	var req MembersRequest
	if !h.bind(c, &req) {
		return
	}

	team, err := h.services.Team.SetMembers(c.Request.Context(), id, req.UserIDs)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, http.StatusOK, team)
}

// AddRule handles POST /api/teams/:id/rules
func (h *Handlers) AddRule(c *gin.Context) {
	teamID, ok := h.pathID(c)
	if !ok {
		return
	}
	var req RuleRequest
	if !h.bind(c, &req) {
		return
	}

	rule := req.toEntity()
	if err := h.services.Team.AddRule(c.Request.Context(), teamID, rule); err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, http.StatusCreated, rule)
}

// UpdateRule handles PUT /api/rules/:id
func (h *Handlers) UpdateRule(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	var req RuleRequest
	if !h.bind(c, &req) {
		return
	}

	rule := req.toEntity()
	rule.ID = id
	if err := h.services.Team.UpdateRule(c.Request.Context(), rule); err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, http.StatusOK, rule)
}

// DeleteRule handles DELETE /api/rules/:id
func (h *Handlers) DeleteRule(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	if err := h.services.Team.DeleteRule(c.Request.Context(), id); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
