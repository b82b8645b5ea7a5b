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

// MessageRepository implements port.MessageRepository
type MessageRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewMessageRepository creates a new message repository
func NewMessageRepository(db *sql.DB, logger *zap.Logger) port.MessageRepository {
	return &MessageRepository{
		db:     db,
		logger: logger,
	}
}

// Create posts a message on an order together with its recipients
func (r *MessageRepository) Create(ctx context.Context, msg *entity.Message) error {
	exec := r.getExecutor(ctx)

	query := `
		INSERT INTO messages (order_id, author_id, kind, template, subject, body)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	result, err := exec.ExecContext(ctx, query,
		msg.OrderID,
		msg.AuthorID,
		msg.Kind,
		msg.Template,
		msg.Subject,
		msg.Body,
	)
	if err != nil {
		r.logger.Error("Failed to create message", zap.Int64("order_id", msg.OrderID), zap.Error(err))
		return fmt.Errorf("failed to create message: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	msg.ID = id

	for _, partnerID := range msg.RecipientIDs {
		_, err := exec.ExecContext(ctx,
			`INSERT OR IGNORE INTO message_recipients (message_id, partner_id) VALUES (?, ?)`, id, partnerID)
		if err != nil {
			r.logger.Error("Failed to add message recipient",
				zap.Int64("message_id", id),
				zap.Int64("partner_id", partnerID),
				zap.Error(err))
			return fmt.Errorf("failed to add message recipient: %w", err)
		}
	}

	return nil
}

// GetByID retrieves a message and its recipients
func (r *MessageRepository) GetByID(ctx context.Context, id int64) (*entity.Message, error) {
	query := `
		SELECT id, order_id, author_id, kind, template, subject, body, created_at
		FROM messages
		WHERE id = ?
	`

	var msg entity.Message
	err := r.getExecutor(ctx).QueryRowContext(ctx, query, id).Scan(
		&msg.ID,
		&msg.OrderID,
		&msg.AuthorID,
		&msg.Kind,
		&msg.Template,
		&msg.Subject,
		&msg.Body,
		&msg.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get message by ID", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get message: %w", err)
	}

	if msg.RecipientIDs, err = r.recipientIDs(ctx, id); err != nil {
		return nil, err
	}

	return &msg, nil
}

// ListByOrder returns an order's activity log, oldest first
func (r *MessageRepository) ListByOrder(ctx context.Context, orderID int64) ([]*entity.Message, error) {
	query := `
		SELECT id, order_id, author_id, kind, template, subject, body, created_at
		FROM messages
		WHERE order_id = ?
		ORDER BY id ASC
	`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, orderID)
	if err != nil {
		r.logger.Error("Failed to list messages", zap.Int64("order_id", orderID), zap.Error(err))
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	var messages []*entity.Message
	for rows.Next() {
		var msg entity.Message
		err := rows.Scan(
			&msg.ID,
			&msg.OrderID,
			&msg.AuthorID,
			&msg.Kind,
			&msg.Template,
			&msg.Subject,
			&msg.Body,
			&msg.CreatedAt,
		)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, &msg)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	for _, msg := range messages {
		if msg.RecipientIDs, err = r.recipientIDs(ctx, msg.ID); err != nil {
			return nil, err
		}
	}

	return messages, nil
}

func (r *MessageRepository) recipientIDs(ctx context.Context, messageID int64) ([]int64, error) {
	rows, err := r.getExecutor(ctx).QueryContext(ctx,
		`SELECT partner_id FROM message_recipients WHERE message_id = ? ORDER BY partner_id`, messageID)
	if err != nil {
		return nil, fmt.Errorf("failed to get message recipients: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan message recipient: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *MessageRepository) getExecutor(ctx context.Context) sqlite.Executor {
	return sqlite.Conn(ctx, r.db)
}

var _ port.MessageRepository = (*MessageRepository)(nil)
