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

const ruleColumns = `id, team_id, sequence, user_id, role, min_amount, max_amount,
	lock_amount_total, custom_condition, created_at, updated_at`

// ApproverRuleRepository implements port.ApproverRuleRepository
type ApproverRuleRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewApproverRuleRepository creates a new approver rule repository
func NewApproverRuleRepository(db *sql.DB, logger *zap.Logger) port.ApproverRuleRepository {
	return &ApproverRuleRepository{
		db:     db,
		logger: logger,
	}
}

// Create creates a new approver rule
func (r *ApproverRuleRepository) Create(ctx context.Context, rule *entity.ApproverRule) error {
	query := `
		INSERT INTO approver_rules (
			team_id, sequence, user_id, role, min_amount, max_amount,
			lock_amount_total, custom_condition
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		rule.TeamID,
		rule.Sequence,
		rule.UserID,
		rule.Role,
		rule.MinAmount,
		rule.MaxAmount,
		rule.LockAmountTotal,
		rule.CustomCondition,
	)
	if err != nil {
		r.logger.Error("Failed to create approver rule", zap.Int64("team_id", rule.TeamID), zap.Error(err))
		return fmt.Errorf("failed to create approver rule: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	rule.ID = id
	return nil
}

// GetByID retrieves an approver rule by ID
func (r *ApproverRuleRepository) GetByID(ctx context.Context, id int64) (*entity.ApproverRule, error) {
	query := `SELECT ` + ruleColumns + ` FROM approver_rules WHERE id = ?`

	rule, err := scanRule(r.getExecutor(ctx).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get approver rule by ID", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get approver rule: %w", err)
	}

	return rule, nil
}

// Update updates an existing approver rule
func (r *ApproverRuleRepository) Update(ctx context.Context, rule *entity.ApproverRule) error {
	query := `
		UPDATE approver_rules
		SET sequence = ?, user_id = ?, role = ?, min_amount = ?, max_amount = ?,
			lock_amount_total = ?, custom_condition = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`

	_, err := r.getExecutor(ctx).ExecContext(ctx, query,
		rule.Sequence,
		rule.UserID,
		rule.Role,
		rule.MinAmount,
		rule.MaxAmount,
		rule.LockAmountTotal,
		rule.CustomCondition,
		rule.ID,
	)
	if err != nil {
		r.logger.Error("Failed to update approver rule", zap.Int64("id", rule.ID), zap.Error(err))
		return fmt.Errorf("failed to update approver rule: %w", err)
	}

	return nil
}

// Delete removes a rule; materialized approvers keep their snapshot and
// lose the back-reference
func (r *ApproverRuleRepository) Delete(ctx context.Context, id int64) error {
	if _, err := r.getExecutor(ctx).ExecContext(ctx, `DELETE FROM approver_rules WHERE id = ?`, id); err != nil {
		r.logger.Error("Failed to delete approver rule", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to delete approver rule: %w", err)
	}
	return nil
}

// ListByTeam returns the team's rules ordered by (sequence, id)
func (r *ApproverRuleRepository) ListByTeam(ctx context.Context, teamID int64) ([]*entity.ApproverRule, error) {
	query := `SELECT ` + ruleColumns + ` FROM approver_rules WHERE team_id = ? ORDER BY sequence, id`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, teamID)
	if err != nil {
		r.logger.Error("Failed to list approver rules", zap.Int64("team_id", teamID), zap.Error(err))
		return nil, fmt.Errorf("failed to list approver rules: %w", err)
	}
	defer rows.Close()

	var rules []*entity.ApproverRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan approver rule: %w", err)
		}
		rules = append(rules, rule)
	}

	return rules, rows.Err()
}

func scanRule(row rowScanner) (*entity.ApproverRule, error) {
	var rule entity.ApproverRule
	err := row.Scan(
		&rule.ID,
		&rule.TeamID,
		&rule.Sequence,
		&rule.UserID,
		&rule.Role,
		&rule.MinAmount,
		&rule.MaxAmount,
		&rule.LockAmountTotal,
		&rule.CustomCondition,
		&rule.CreatedAt,
		&rule.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &rule, nil
}

func (r *ApproverRuleRepository) getExecutor(ctx context.Context) sqlite.Executor {
	return sqlite.Conn(ctx, r.db)
}

var _ port.ApproverRuleRepository = (*ApproverRuleRepository)(nil)
