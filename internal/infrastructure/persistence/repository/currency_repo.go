package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/po-approval-route/internal/application/port"
	"github.com/garyjia/po-approval-route/internal/domain/entity"
	"github.com/garyjia/po-approval-route/internal/infrastructure/persistence/sqlite"
)

// CurrencyRepository implements port.CurrencyRepository
type CurrencyRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewCurrencyRepository creates a new currency repository
func NewCurrencyRepository(db *sql.DB, logger *zap.Logger) port.CurrencyRepository {
	return &CurrencyRepository{
		db:     db,
		logger: logger,
	}
}

// SaveCurrency inserts or replaces a currency definition
func (r *CurrencyRepository) SaveCurrency(ctx context.Context, currency *entity.Currency) error {
	query := `
		INSERT INTO currencies (code, decimal_places) VALUES (?, ?)
		ON CONFLICT(code) DO UPDATE SET decimal_places = excluded.decimal_places
	`

	if _, err := r.getExecutor(ctx).ExecContext(ctx, query, currency.Code, currency.DecimalPlaces); err != nil {
		r.logger.Error("Failed to save currency", zap.String("code", currency.Code), zap.Error(err))
		return fmt.Errorf("failed to save currency: %w", err)
	}
	return nil
}

// GetCurrency retrieves a currency by code
func (r *CurrencyRepository) GetCurrency(ctx context.Context, code string) (*entity.Currency, error) {
	var currency entity.Currency
	err := r.getExecutor(ctx).QueryRowContext(ctx,
		`SELECT code, decimal_places FROM currencies WHERE code = ?`, code).
		Scan(&currency.Code, &currency.DecimalPlaces)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get currency", zap.String("code", code), zap.Error(err))
		return nil, fmt.Errorf("failed to get currency: %w", err)
	}
	return &currency, nil
}

// CreateRate records a rate; effective dates are stored in UTC so that
// they compare lexically
func (r *CurrencyRepository) CreateRate(ctx context.Context, rate *entity.CurrencyRate) error {
	rate.EffectiveDate = rate.EffectiveDate.UTC()

	query := `
		INSERT INTO currency_rates (currency_code, company_id, rate, effective_date)
		VALUES (?, ?, ?, ?)
	`

	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		rate.CurrencyCode,
		rate.CompanyID,
		rate.Rate,
		rate.EffectiveDate,
	)
	if err != nil {
		r.logger.Error("Failed to create currency rate", zap.String("code", rate.CurrencyCode), zap.Error(err))
		return fmt.Errorf("failed to create currency rate: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	rate.ID = id
	return nil
}

// FindRate returns the latest rate effective at or before at.
// Company-specific rates take precedence over global ones.
func (r *CurrencyRepository) FindRate(ctx context.Context, code string, companyID int64, at time.Time) (*entity.CurrencyRate, error) {
	query := `
		SELECT id, currency_code, company_id, rate, effective_date
		FROM currency_rates
		WHERE currency_code = ?
			AND (company_id = ? OR company_id IS NULL)
			AND effective_date <= ?
		ORDER BY company_id IS NULL, effective_date DESC, id DESC
		LIMIT 1
	`

	var rate entity.CurrencyRate
	var company sql.NullInt64
	err := r.getExecutor(ctx).QueryRowContext(ctx, query, code, companyID, at.UTC()).Scan(
		&rate.ID,
		&rate.CurrencyCode,
		&company,
		&rate.Rate,
		&rate.EffectiveDate,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to find currency rate",
			zap.String("code", code),
			zap.Int64("company_id", companyID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to find currency rate: %w", err)
	}

	if company.Valid {
		rate.CompanyID = &company.Int64
	}
	return &rate, nil
}

func (r *CurrencyRepository) getExecutor(ctx context.Context) sqlite.Executor {
	return sqlite.Conn(ctx, r.db)
}

var _ port.CurrencyRepository = (*CurrencyRepository)(nil)
