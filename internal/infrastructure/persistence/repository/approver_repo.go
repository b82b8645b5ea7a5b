package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/po-approval-route/internal/application/port"
	"github.com/garyjia/po-approval-route/internal/domain/access"
	"github.com/garyjia/po-approval-route/internal/domain/entity"
	"github.com/garyjia/po-approval-route/internal/infrastructure/persistence/sqlite"
)

// OrderApproverRepository implements port.OrderApproverRepository
type OrderApproverRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewOrderApproverRepository creates a new order approver repository
func NewOrderApproverRepository(db *sql.DB, logger *zap.Logger) port.OrderApproverRepository {
	return &OrderApproverRepository{
		db:     db,
		logger: logger,
	}
}

// Create materializes one approver of an order's route
func (r *OrderApproverRepository) Create(ctx context.Context, approver *entity.OrderApprover) error {
	query := `
		INSERT INTO order_approvers (
			order_id, team_id, source_rule_id, sequence, user_id, role,
			min_amount, max_amount, lock_amount_total, state
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		approver.OrderID,
		approver.TeamID,
		approver.SourceRuleID,
		approver.Sequence,
		approver.UserID,
		approver.Role,
		approver.MinAmount,
		approver.MaxAmount,
		approver.LockAmountTotal,
		approver.State,
	)
	if err != nil {
		r.logger.Error("Failed to create order approver", zap.Int64("order_id", approver.OrderID), zap.Error(err))
		return fmt.Errorf("failed to create order approver: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	approver.ID = id
	return nil
}

// ListByOrder returns the route ordered by (sequence, id)
func (r *OrderApproverRepository) ListByOrder(ctx context.Context, orderID int64) ([]*entity.OrderApprover, error) {
	query := `
		SELECT id, order_id, team_id, source_rule_id, sequence, user_id, role,
			min_amount, max_amount, lock_amount_total, state, created_at, updated_at
		FROM order_approvers
		WHERE order_id = ?
		ORDER BY sequence, id
	`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, orderID)
	if err != nil {
		r.logger.Error("Failed to list order approvers", zap.Int64("order_id", orderID), zap.Error(err))
		return nil, fmt.Errorf("failed to list order approvers: %w", err)
	}
	defer rows.Close()

	var approvers []*entity.OrderApprover
	for rows.Next() {
		var a entity.OrderApprover
		var sourceRuleID sql.NullInt64
		err := rows.Scan(
			&a.ID,
			&a.OrderID,
			&a.TeamID,
			&sourceRuleID,
			&a.Sequence,
			&a.UserID,
			&a.Role,
			&a.MinAmount,
			&a.MaxAmount,
			&a.LockAmountTotal,
			&a.State,
			&a.CreatedAt,
			&a.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order approver: %w", err)
		}
		if sourceRuleID.Valid {
			a.SourceRuleID = &sourceRuleID.Int64
		}
		approvers = append(approvers, &a)
	}

	return approvers, rows.Err()
}

// DeleteByOrder destroys the whole route of an order
func (r *OrderApproverRepository) DeleteByOrder(ctx context.Context, orderID int64) error {
	if _, err := r.getExecutor(ctx).ExecContext(ctx, `DELETE FROM order_approvers WHERE order_id = ?`, orderID); err != nil {
		r.logger.Error("Failed to delete order approvers", zap.Int64("order_id", orderID), zap.Error(err))
		return fmt.Errorf("failed to delete order approvers: %w", err)
	}
	return nil
}

// UpdateState writes an approver's state under an elevation grant
func (r *OrderApproverRepository) UpdateState(ctx context.Context, grant access.Grant, id int64, state entity.ApproverState) error {
	if !grant.Allows(access.ScopeApproverState) {
		return port.ErrNotElevated
	}

	query := `UPDATE order_approvers SET state = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`

	result, err := r.getExecutor(ctx).ExecContext(ctx, query, state, id)
	if err != nil {
		r.logger.Error("Failed to update approver state",
			zap.Int64("id", id),
			zap.String("state", string(state)),
			zap.Error(err))
		return fmt.Errorf("failed to update approver state: %w", err)
	}

	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("order approver %d not found", id)
	}

	r.logger.Debug("Approver state written",
		zap.Int64("id", id),
		zap.String("state", string(state)),
		zap.Int64("on_behalf_of", grant.Actor().UserID))

	return nil
}

func (r *OrderApproverRepository) getExecutor(ctx context.Context) sqlite.Executor {
	return sqlite.Conn(ctx, r.db)
}

var _ port.OrderApproverRepository = (*OrderApproverRepository)(nil)
