package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/garyjia/po-approval-route/internal/domain/entity"
)

// CreateCompanyRequest is the body of POST /api/companies
type CreateCompanyRequest struct {
	Name          string `json:"name" binding:"required"`
	CurrencyCode  string `json:"currency_code"`
	ApprovalRoute string `json:"approval_route"`
}

// SetApprovalRouteRequest is the body of PUT /api/companies/:id/approval-route
type SetApprovalRouteRequest struct {
	Mode string `json:"mode" binding:"required"`
}

// CreatePartnerRequest is the body of POST /api/partners
type CreatePartnerRequest struct {
	Name       string `json:"name" binding:"required"`
	Email      string `json:"email"`
	Function   string `json:"function"`
	LarkOpenID string `json:"lark_open_id"`
}

// CreateUserRequest is the body of POST /api/users
type CreateUserRequest struct {
	Login     string `json:"login" binding:"required"`
	Name      string `json:"name"`
	PartnerID int64  `json:"partner_id"`
	CompanyID int64  `json:"company_id" binding:"required"`
	Superuser bool   `json:"superuser"`
}

// CreateEmployeeRequest is the body of POST /api/employees
type CreateEmployeeRequest struct {
	UserID   int64  `json:"user_id" binding:"required"`
	JobTitle string `json:"job_title"`
}

// CurrencyRateRequest is the body of POST /api/currencies/:code/rates
type CurrencyRateRequest struct {
	Rate          decimal.Decimal `json:"rate"`
	EffectiveDate string          `json:"effective_date"`
	CompanyID     *int64          `json:"company_id"`
	DecimalPlaces *int32          `json:"decimal_places"`
}

// RoleResponse is the result of role detection for a user
type RoleResponse struct {
	UserID   int64  `json:"user_id"`
	Role     string `json:"role,omitempty"`
	Detected bool   `json:"detected"`
}

const dateLayout = "2006-01-02"

// CreateCompany handles POST /api/companies
func (h *Handlers) CreateCompany(c *gin.Context) {
	var req CreateCompanyRequest
	if !h.bind(c, &req) {
		return
	}

	company := &entity.Company{
		Name:          req.Name,
		CurrencyCode:  req.CurrencyCode,
		ApprovalRoute: entity.ApprovalRouteMode(req.ApprovalRoute),
	}
	if strings.TrimSpace(company.CurrencyCode) == "" {
		company.CurrencyCode = h.defaultCurrency
	}

	if err := h.services.Directory.CreateCompany(c.Request.Context(), company); err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, http.StatusCreated, company)
}

// SetApprovalRoute handles PUT /api/companies/:id/approval-route
func (h *Handlers) SetApprovalRoute(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	var req SetApprovalRouteRequest
	if !h.bind(c, &req) {
		return
	}

	company, err := h.services.Directory.SetApprovalRoute(c.Request.Context(), id, entity.ApprovalRouteMode(req.Mode))
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, http.StatusOK, company)
}

// CreatePartner handles POST /api/partners
func (h *Handlers) CreatePartner(c *gin.Context) {
	var req CreatePartnerRequest
	if !h.bind(c, &req) {
		return
	}

	partner := &entity.Partner{
		Name:       req.Name,
		Email:      req.Email,
		Function:   req.Function,
		LarkOpenID: req.LarkOpenID,
	}
	if err := h.services.Directory.CreatePartner(c.Request.Context(), partner); err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, http.StatusCreated, partner)
}

// CreateUser handles POST /api/users
func (h *Handlers) CreateUser(c *gin.Context) {
	var req CreateUserRequest
	if !h.bind(c, &req) {
		return
	}

	user := &entity.User{
		Login:     req.Login,
		Name:      req.Name,
		PartnerID: req.PartnerID,
		CompanyID: req.CompanyID,
		Superuser: req.Superuser,
	}
	if err := h.services.Directory.CreateUser(c.Request.Context(), user); err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, http.StatusCreated, user)
}

// CreateEmployee handles POST /api/employees
func (h *Handlers) CreateEmployee(c *gin.Context) {
	var req CreateEmployeeRequest
	if !h.bind(c, &req) {
		return
	}

	employee := &entity.Employee{UserID: req.UserID, JobTitle: req.JobTitle}
	if err := h.services.Directory.CreateEmployee(c.Request.Context(), employee); err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, http.StatusCreated, employee)
}

// DetectRole handles GET /api/users/:id/role
func (h *Handlers) DetectRole(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	if _, err := h.services.Directory.GetUser(c.Request.Context(), id); err != nil {
		h.fail(c, err)
		return
	}

	role, detected := h.services.Team.DetectRole(c.Request.Context(), id)
	h.ok(c, http.StatusOK, RoleResponse{UserID: id, Role: role, Detected: detected})
}

// AddCurrencyRate handles POST /api/currencies/:code/rates
func (h *Handlers) AddCurrencyRate(c *gin.Context) {
	var req CurrencyRateRequest
	if !h.bind(c, &req) {
		return
	}

	effective := time.Now().UTC().Truncate(24 * time.Hour)
	if req.EffectiveDate != "" {
		parsed, err := time.Parse(dateLayout, req.EffectiveDate)
		if err != nil {
			h.abort(c, http.StatusBadRequest, "effective_date must be formatted as YYYY-MM-DD")
			return
		}
		effective = parsed
	}

	rate := &entity.CurrencyRate{
		CompanyID:     req.CompanyID,
		Rate:          req.Rate,
		EffectiveDate: effective,
	}
	if err := h.services.Directory.AddCurrencyRate(c.Request.Context(), c.Param("code"), req.DecimalPlaces, rate); err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, http.StatusCreated, rate)
}
