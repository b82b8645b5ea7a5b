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

// OrderRepository implements port.OrderRepository
type OrderRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewOrderRepository creates a new purchase order repository
func NewOrderRepository(db *sql.DB, logger *zap.Logger) port.OrderRepository {
	return &OrderRepository{
		db:     db,
		logger: logger,
	}
}

// Create creates a new purchase order
func (r *OrderRepository) Create(ctx context.Context, order *entity.PurchaseOrder) error {
	if order.State == "" {
		order.State = entity.OrderStateDraft
	}

	query := `
		INSERT INTO purchase_orders (
			name, company_id, partner_id, user_id, created_by, team_id,
			currency_code, amount_total, date_order, date_approve, state
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		order.Name,
		order.CompanyID,
		order.PartnerID,
		order.UserID,
		order.CreatedBy,
		order.TeamID,
		order.CurrencyCode,
		order.AmountTotal,
		order.DateOrder,
		order.DateApprove,
		order.State,
	)
	if err != nil {
		r.logger.Error("Failed to create purchase order", zap.String("name", order.Name), zap.Error(err))
		return fmt.Errorf("failed to create purchase order: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	order.ID = id
	return nil
}

// GetByID retrieves a purchase order and its followers
func (r *OrderRepository) GetByID(ctx context.Context, id int64) (*entity.PurchaseOrder, error) {
	query := `
		SELECT id, name, company_id, partner_id, user_id, created_by, team_id,
			currency_code, amount_total, date_order, date_approve, state,
			created_at, updated_at
		FROM purchase_orders
		WHERE id = ?
	`

	var order entity.PurchaseOrder
	var userID, teamID sql.NullInt64
	var dateOrder, dateApprove sql.NullTime

	err := r.getExecutor(ctx).QueryRowContext(ctx, query, id).Scan(
		&order.ID,
		&order.Name,
		&order.CompanyID,
		&order.PartnerID,
		&userID,
		&order.CreatedBy,
		&teamID,
		&order.CurrencyCode,
		&order.AmountTotal,
		&dateOrder,
		&dateApprove,
		&order.State,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get purchase order by ID", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get purchase order: %w", err)
	}

	if userID.Valid {
		order.UserID = &userID.Int64
	}
	if teamID.Valid {
		order.TeamID = &teamID.Int64
	}
	if dateOrder.Valid {
		order.DateOrder = &dateOrder.Time
	}
	if dateApprove.Valid {
		order.DateApprove = &dateApprove.Time
	}

	if order.FollowerIDs, err = r.followerIDs(ctx, id); err != nil {
		return nil, err
	}

	return &order, nil
}

// Update persists the mutable fields of an order
func (r *OrderRepository) Update(ctx context.Context, order *entity.PurchaseOrder) error {
	query := `
		UPDATE purchase_orders
		SET name = ?, partner_id = ?, user_id = ?, team_id = ?, currency_code = ?,
			amount_total = ?, date_order = ?, date_approve = ?, state = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`

	_, err := r.getExecutor(ctx).ExecContext(ctx, query,
		order.Name,
		order.PartnerID,
		order.UserID,
		order.TeamID,
		order.CurrencyCode,
		order.AmountTotal,
		order.DateOrder,
		order.DateApprove,
		order.State,
		order.ID,
	)
	if err != nil {
		r.logger.Error("Failed to update purchase order", zap.Int64("id", order.ID), zap.Error(err))
		return fmt.Errorf("failed to update purchase order: %w", err)
	}

	return nil
}

// AddFollower subscribes a partner to the order; repeated calls are no-ops
func (r *OrderRepository) AddFollower(ctx context.Context, orderID, partnerID int64) error {
	query := `INSERT OR IGNORE INTO order_followers (order_id, partner_id) VALUES (?, ?)`

	if _, err := r.getExecutor(ctx).ExecContext(ctx, query, orderID, partnerID); err != nil {
		r.logger.Error("Failed to add follower",
			zap.Int64("order_id", orderID),
			zap.Int64("partner_id", partnerID),
			zap.Error(err))
		return fmt.Errorf("failed to add follower: %w", err)
	}

	return nil
}

// CountByTeam returns how many orders reference the team
func (r *OrderRepository) CountByTeam(ctx context.Context, teamID int64) (int, error) {
	var count int
	err := r.getExecutor(ctx).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM purchase_orders WHERE team_id = ?`, teamID).Scan(&count)
	if err != nil {
		r.logger.Error("Failed to count orders by team", zap.Int64("team_id", teamID), zap.Error(err))
		return 0, fmt.Errorf("failed to count orders: %w", err)
	}
	return count, nil
}

func (r *OrderRepository) followerIDs(ctx context.Context, orderID int64) ([]int64, error) {
	rows, err := r.getExecutor(ctx).QueryContext(ctx,
		`SELECT partner_id FROM order_followers WHERE order_id = ? ORDER BY partner_id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to get followers: %w", err)
	}
	defer rows.Close()

	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan follower: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *OrderRepository) getExecutor(ctx context.Context) sqlite.Executor {
	return sqlite.Conn(ctx, r.db)
}

var _ port.OrderRepository = (*OrderRepository)(nil)
