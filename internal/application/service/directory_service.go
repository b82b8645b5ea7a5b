package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/garyjia/po-approval-route/internal/application/port"
	"github.com/garyjia/po-approval-route/internal/domain/access"
	"github.com/garyjia/po-approval-route/internal/domain/apperr"
	"github.com/garyjia/po-approval-route/internal/domain/entity"
	"github.com/garyjia/po-approval-route/pkg/utils"
)

// DirectoryService manages the identity records the approval route refers to:
// companies, partners, users, employees and currency rates
type DirectoryService interface {
	CreateCompany(ctx context.Context, company *entity.Company) error
	SetApprovalRoute(ctx context.Context, companyID int64, mode entity.ApprovalRouteMode) (*entity.Company, error)
	CreatePartner(ctx context.Context, partner *entity.Partner) error
	CreateUser(ctx context.Context, user *entity.User) error
	GetUser(ctx context.Context, id int64) (*entity.User, error)
	CreateEmployee(ctx context.Context, employee *entity.Employee) error
	AddCurrencyRate(ctx context.Context, code string, decimalPlaces *int32, rate *entity.CurrencyRate) error

	// ResolveActor loads the acting user of a request
	ResolveActor(ctx context.Context, userID int64) (access.Actor, error)
}

type directoryServiceImpl struct {
	companyRepo  port.CompanyRepository
	partnerRepo  port.PartnerRepository
	userRepo     port.UserRepository
	employeeRepo port.EmployeeRepository
	currencyRepo port.CurrencyRepository
	txManager    port.TransactionManager
	logger       Logger
}

// NewDirectoryService creates a new DirectoryService
func NewDirectoryService(
	companyRepo port.CompanyRepository,
	partnerRepo port.PartnerRepository,
	userRepo port.UserRepository,
	employeeRepo port.EmployeeRepository,
	currencyRepo port.CurrencyRepository,
	txManager port.TransactionManager,
	logger Logger,
) DirectoryService {
	return &directoryServiceImpl{
		companyRepo:  companyRepo,
		partnerRepo:  partnerRepo,
		userRepo:     userRepo,
		employeeRepo: employeeRepo,
		currencyRepo: currencyRepo,
		txManager:    txManager,
		logger:       logger,
	}
}

// CreateCompany creates a company. The approval route defaults to disabled.
func (s *directoryServiceImpl) CreateCompany(ctx context.Context, company *entity.Company) error {
	company.Name = strings.TrimSpace(company.Name)
	if company.Name == "" {
		return apperr.Validation("Company name is required")
	}
	company.CurrencyCode = strings.ToUpper(strings.TrimSpace(company.CurrencyCode))
	if company.CurrencyCode == "" {
		return apperr.Validation("Company currency is required")
	}
	if err := utils.ValidateCurrencyCode(company.CurrencyCode); err != nil {
		return apperr.Wrap(apperr.KindValidation, err, "Invalid company currency")
	}
	if company.ApprovalRoute == "" {
		company.ApprovalRoute = entity.ApprovalRouteNo
	}
	if !company.ApprovalRoute.IsValid() {
		return apperr.Validation("Unknown approval route mode %q", company.ApprovalRoute)
	}

	if err := s.companyRepo.Create(ctx, company); err != nil {
		s.logger.Error("Failed to create company", "error", err, "name", company.Name)
		return err
	}

	s.logger.Info("Company created", "id", company.ID, "approval_route", company.ApprovalRoute)
	return nil
}

// SetApprovalRoute switches the approval route feature of a company
func (s *directoryServiceImpl) SetApprovalRoute(ctx context.Context, companyID int64, mode entity.ApprovalRouteMode) (*entity.Company, error) {
	if !mode.IsValid() {
		return nil, apperr.Validation("Unknown approval route mode %q", mode)
	}

	var company *entity.Company
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		company, err = s.companyRepo.GetByID(txCtx, companyID)
		if err != nil {
			return fmt.Errorf("get company: %w", err)
		}
		if company == nil {
			return apperr.NotFound("company", companyID)
		}

		if err := s.companyRepo.UpdateApprovalRoute(txCtx, companyID, mode); err != nil {
			return fmt.Errorf("update approval route: %w", err)
		}
		company.ApprovalRoute = mode
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to set approval route", "error", err, "company_id", companyID)
		return nil, err
	}

	s.logger.Info("Approval route updated", "company_id", companyID, "mode", mode)
	return company, nil
}

// CreatePartner creates a contact
func (s *directoryServiceImpl) CreatePartner(ctx context.Context, partner *entity.Partner) error {
	partner.Name = strings.TrimSpace(partner.Name)
	if partner.Name == "" {
		return apperr.Validation("Partner name is required")
	}
	partner.Email = strings.TrimSpace(partner.Email)
	if partner.Email != "" {
		if err := utils.ValidateEmail(partner.Email); err != nil {
			return apperr.Wrap(apperr.KindValidation, err, "Invalid partner email")
		}
	}

	if err := s.partnerRepo.Create(ctx, partner); err != nil {
		s.logger.Error("Failed to create partner", "error", err, "name", partner.Name)
		return err
	}
	return nil
}

// CreateUser creates a user. A user without a partner gets one named after it.
func (s *directoryServiceImpl) CreateUser(ctx context.Context, user *entity.User) error {
	user.Login = strings.TrimSpace(user.Login)
	if user.Login == "" {
		return apperr.Validation("User login is required")
	}
	if user.Name == "" {
		user.Name = user.Login
	}

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		company, err := s.companyRepo.GetByID(txCtx, user.CompanyID)
		if err != nil {
			return fmt.Errorf("get company: %w", err)
		}
		if company == nil {
			return apperr.NotFound("company", user.CompanyID)
		}

		if user.PartnerID == 0 {
			partner := &entity.Partner{Name: user.Name}
			if err := s.partnerRepo.Create(txCtx, partner); err != nil {
				return fmt.Errorf("create partner: %w", err)
			}
			user.PartnerID = partner.ID
		} else {
			partner, err := s.partnerRepo.GetByID(txCtx, user.PartnerID)
			if err != nil {
				return fmt.Errorf("get partner: %w", err)
			}
			if partner == nil {
				return apperr.NotFound("partner", user.PartnerID)
			}
		}

		if err := s.userRepo.Create(txCtx, user); err != nil {
			return fmt.Errorf("create user: %w", err)
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to create user", "error", err, "login", user.Login)
		return err
	}

	s.logger.Info("User created", "id", user.ID, "login", user.Login)
	return nil
}

// GetUser retrieves a user by ID
func (s *directoryServiceImpl) GetUser(ctx context.Context, id int64) (*entity.User, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		s.logger.Error("Failed to get user", "error", err, "id", id)
		return nil, err
	}
	if user == nil {
		return nil, apperr.NotFound("user", id)
	}
	return user, nil
}

// CreateEmployee links an HR profile to an existing user
func (s *directoryServiceImpl) CreateEmployee(ctx context.Context, employee *entity.Employee) error {
	if _, err := s.GetUser(ctx, employee.UserID); err != nil {
		return err
	}

	if err := s.employeeRepo.Create(ctx, employee); err != nil {
		s.logger.Error("Failed to create employee", "error", err, "user_id", employee.UserID)
		return err
	}
	return nil
}

// AddCurrencyRate records a rate for code. The currency is defined on first
// use with the given decimal places (default 2); later calls change its
// precision only when decimalPlaces is given.
func (s *directoryServiceImpl) AddCurrencyRate(ctx context.Context, code string, decimalPlaces *int32, rate *entity.CurrencyRate) error {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return apperr.Validation("Currency code is required")
	}
	if err := utils.ValidateCurrencyCode(code); err != nil {
		return apperr.Wrap(apperr.KindValidation, err, "Invalid currency code")
	}
	if decimalPlaces != nil && *decimalPlaces < 0 {
		return apperr.Validation("Decimal places must not be negative")
	}
	if !rate.Rate.IsPositive() {
		return apperr.Validation("Currency rate must be positive")
	}
	if rate.EffectiveDate.IsZero() {
		rate.EffectiveDate = now()
	}
	rate.CurrencyCode = code

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		existing, err := s.currencyRepo.GetCurrency(txCtx, code)
		if err != nil {
			return fmt.Errorf("get currency: %w", err)
		}
		if existing == nil || decimalPlaces != nil {
			currency := &entity.Currency{Code: code, DecimalPlaces: 2}
			if decimalPlaces != nil {
				currency.DecimalPlaces = *decimalPlaces
			}
			if err := s.currencyRepo.SaveCurrency(txCtx, currency); err != nil {
				return fmt.Errorf("save currency: %w", err)
			}
		}

		if rate.CompanyID != nil {
			company, err := s.companyRepo.GetByID(txCtx, *rate.CompanyID)
			if err != nil {
				return fmt.Errorf("get company: %w", err)
			}
			if company == nil {
				return apperr.NotFound("company", *rate.CompanyID)
			}
		}

		if err := s.currencyRepo.CreateRate(txCtx, rate); err != nil {
			return fmt.Errorf("create rate: %w", err)
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to add currency rate", "error", err, "currency", code)
		return err
	}

	s.logger.Info("Currency rate added", "currency", code, "rate", rate.Rate.String())
	return nil
}

// ResolveActor loads the acting user of a request
func (s *directoryServiceImpl) ResolveActor(ctx context.Context, userID int64) (access.Actor, error) {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return access.Actor{}, err
	}
	return access.FromUser(user), nil
}
