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

// HistoryRepository implements port.HistoryRepository
type HistoryRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewHistoryRepository creates a new history repository
func NewHistoryRepository(db *sql.DB, logger *zap.Logger) port.HistoryRepository {
	return &HistoryRepository{
		db:     db,
		logger: logger,
	}
}

// Create creates a new history record
func (r *HistoryRepository) Create(ctx context.Context, history *entity.OrderHistory) error {
	query := `
		INSERT INTO order_history (
			order_id, actor_user_id, previous_state, new_state,
			action_type, action_data
		) VALUES (?, ?, ?, ?, ?, ?)
	`

	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		history.OrderID,
		history.ActorUserID,
		history.PreviousState,
		history.NewState,
		history.ActionType,
		history.ActionData,
	)
	if err != nil {
		r.logger.Error("Failed to create history record", zap.Error(err))
		return fmt.Errorf("failed to create history: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	history.ID = id
	return nil
}

// ListByOrder retrieves all history records for an order
func (r *HistoryRepository) ListByOrder(ctx context.Context, orderID int64) ([]*entity.OrderHistory, error) {
	query := `
		SELECT id, order_id, actor_user_id, previous_state, new_state,
			action_type, action_data, timestamp
		FROM order_history
		WHERE order_id = ?
		ORDER BY id ASC
	`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, orderID)
	if err != nil {
		r.logger.Error("Failed to get history by order ID", zap.Int64("order_id", orderID), zap.Error(err))
		return nil, fmt.Errorf("failed to get history: %w", err)
	}
	defer rows.Close()

	var records []*entity.OrderHistory
	for rows.Next() {
		var record entity.OrderHistory
		err := rows.Scan(
			&record.ID,
			&record.OrderID,
			&record.ActorUserID,
			&record.PreviousState,
			&record.NewState,
			&record.ActionType,
			&record.ActionData,
			&record.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan history record: %w", err)
		}
		records = append(records, &record)
	}

	return records, rows.Err()
}

func (r *HistoryRepository) getExecutor(ctx context.Context) sqlite.Executor {
	return sqlite.Conn(ctx, r.db)
}

var _ port.HistoryRepository = (*HistoryRepository)(nil)
