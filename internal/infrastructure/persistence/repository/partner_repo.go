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

// PartnerRepository implements port.PartnerRepository
type PartnerRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPartnerRepository creates a new partner repository
func NewPartnerRepository(db *sql.DB, logger *zap.Logger) port.PartnerRepository {
	return &PartnerRepository{
		db:     db,
		logger: logger,
	}
}

// Create creates a new partner
func (r *PartnerRepository) Create(ctx context.Context, partner *entity.Partner) error {
	query := `INSERT INTO partners (name, email, function, lark_open_id) VALUES (?, ?, ?, ?)`

	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		partner.Name,
		partner.Email,
		partner.Function,
		partner.LarkOpenID,
	)
	if err != nil {
		r.logger.Error("Failed to create partner", zap.Error(err))
		return fmt.Errorf("failed to create partner: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	partner.ID = id
	return nil
}

// GetByID retrieves a partner by ID
func (r *PartnerRepository) GetByID(ctx context.Context, id int64) (*entity.Partner, error) {
	query := `
		SELECT id, name, email, function, lark_open_id, created_at
		FROM partners
		WHERE id = ?
	`

	var partner entity.Partner
	err := r.getExecutor(ctx).QueryRowContext(ctx, query, id).Scan(
		&partner.ID,
		&partner.Name,
		&partner.Email,
		&partner.Function,
		&partner.LarkOpenID,
		&partner.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get partner by ID", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get partner: %w", err)
	}

	return &partner, nil
}

func (r *PartnerRepository) getExecutor(ctx context.Context) sqlite.Executor {
	return sqlite.Conn(ctx, r.db)
}

var _ port.PartnerRepository = (*PartnerRepository)(nil)
