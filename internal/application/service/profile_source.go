package service

import (
	"context"
	"fmt"

	"github.com/garyjia/po-approval-route/internal/application/port"
)

// EmployeeProfileSource reads the job title of the user's employee record
type EmployeeProfileSource struct {
	employees port.EmployeeRepository
}

// NewEmployeeProfileSource creates a profile source backed by employees
func NewEmployeeProfileSource(employees port.EmployeeRepository) *EmployeeProfileSource {
	return &EmployeeProfileSource{employees: employees}
}

func (s *EmployeeProfileSource) Name() string { return "employee" }

func (s *EmployeeProfileSource) JobTitle(ctx context.Context, userID int64) (string, error) {
	employee, err := s.employees.GetByUserID(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("get employee: %w", err)
	}
	if employee == nil {
		return "", nil
	}
	return employee.JobTitle, nil
}

// PartnerProfileSource reads the function of the user's contact record
type PartnerProfileSource struct {
	users    port.UserRepository
	partners port.PartnerRepository
}

// NewPartnerProfileSource creates a profile source backed by partners
func NewPartnerProfileSource(users port.UserRepository, partners port.PartnerRepository) *PartnerProfileSource {
	return &PartnerProfileSource{users: users, partners: partners}
}

func (s *PartnerProfileSource) Name() string { return "partner" }

func (s *PartnerProfileSource) JobTitle(ctx context.Context, userID int64) (string, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("get user: %w", err)
	}
	if user == nil || user.PartnerID == 0 {
		return "", nil
	}

	partner, err := s.partners.GetByID(ctx, user.PartnerID)
	if err != nil {
		return "", fmt.Errorf("get partner: %w", err)
	}
	if partner == nil {
		return "", nil
	}
	return partner.Function, nil
}
