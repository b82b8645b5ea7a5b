package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/po-approval-route/internal/application/port"
	"github.com/garyjia/po-approval-route/internal/domain/entity"
	"github.com/garyjia/po-approval-route/internal/infrastructure/persistence/sqlite"
)

// CompanyRepository implements port.CompanyRepository
type CompanyRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewCompanyRepository creates a new company repository
func NewCompanyRepository(db *sql.DB, logger *zap.Logger) port.CompanyRepository {
	return &CompanyRepository{
		db:     db,
		logger: logger,
	}
}

// Create creates a new company
func (r *CompanyRepository) Create(ctx context.Context, company *entity.Company) error {
	if company.ApprovalRoute == "" {
		company.ApprovalRoute = entity.ApprovalRouteNo
	}

	query := `INSERT INTO companies (name, currency_code, approval_route) VALUES (?, ?, ?)`

	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		company.Name,
		company.CurrencyCode,
		company.ApprovalRoute,
	)
	if err != nil {
		r.logger.Error("Failed to create company", zap.Error(err))
		return fmt.Errorf("failed to create company: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	company.ID = id
	return nil
}

// GetByID retrieves a company by ID
func (r *CompanyRepository) GetByID(ctx context.Context, id int64) (*entity.Company, error) {
	query := `
		SELECT id, name, currency_code, approval_route, created_at, updated_at
		FROM companies
		WHERE id = ?
	`

	var company entity.Company
	err := r.getExecutor(ctx).QueryRowContext(ctx, query, id).Scan(
		&company.ID,
		&company.Name,
		&company.CurrencyCode,
		&company.ApprovalRoute,
		&company.CreatedAt,
		&company.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get company by ID", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get company: %w", err)
	}

	return &company, nil
}

// UpdateApprovalRoute switches the company's approval route mode
func (r *CompanyRepository) UpdateApprovalRoute(ctx context.Context, id int64, mode entity.ApprovalRouteMode) error {
	query := `UPDATE companies SET approval_route = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`

	if _, err := r.getExecutor(ctx).ExecContext(ctx, query, mode, id); err != nil {
		r.logger.Error("Failed to update approval route",
			zap.Int64("id", id),
			zap.String("mode", string(mode)),
			zap.Error(err))
		return fmt.Errorf("failed to update approval route: %w", err)
	}

	return nil
}

func (r *CompanyRepository) getExecutor(ctx context.Context) sqlite.Executor {
	return sqlite.Conn(ctx, r.db)
}

var _ port.CompanyRepository = (*CompanyRepository)(nil)
