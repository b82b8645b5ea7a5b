package entity

import "time"

// Company is a tenant owning teams, orders and a base currency
type Company struct {
	ID            int64             `json:"id"`
	Name          string            `json:"name"`
	CurrencyCode  string            `json:"currency_code"`
	ApprovalRoute ApprovalRouteMode `json:"approval_route"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// ApprovalRouteEnabled reports whether teams may be defined for the company
func (c *Company) ApprovalRouteEnabled() bool {
	return c.ApprovalRoute == ApprovalRouteOptional || c.ApprovalRoute == ApprovalRouteRequired
}

// Partner is a contact record; notifications are addressed to partners
type Partner struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	Email      string    `json:"email,omitempty"`
	Function   string    `json:"function,omitempty"`
	LarkOpenID string    `json:"lark_open_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// User is an authenticated account acting on orders
type User struct {
	ID        int64     `json:"id"`
	Login     string    `json:"login"`
	Name      string    `json:"name"`
	PartnerID int64     `json:"partner_id"`
	CompanyID int64     `json:"company_id"`
	Superuser bool      `json:"superuser"`
	CreatedAt time.Time `json:"created_at"`
}

// Employee is the optional HR profile linked to a user
type Employee struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	JobTitle  string    `json:"job_title"`
	CreatedAt time.Time `json:"created_at"`
}
