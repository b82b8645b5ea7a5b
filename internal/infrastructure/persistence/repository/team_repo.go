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

const teamColumns = `id, name, active, leader_id, company_id, lock_amount_total, only_members, created_at, updated_at`

// TeamRepository implements port.TeamRepository
type TeamRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewTeamRepository creates a new team repository
func NewTeamRepository(db *sql.DB, logger *zap.Logger) port.TeamRepository {
	return &TeamRepository{
		db:     db,
		logger: logger,
	}
}

// Create creates a team together with its members
func (r *TeamRepository) Create(ctx context.Context, team *entity.Team) error {
	query := `
		INSERT INTO teams (name, active, leader_id, company_id, lock_amount_total, only_members)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		team.Name,
		team.Active,
		team.LeaderID,
		team.CompanyID,
		team.LockAmountTotal,
		team.OnlyMembers,
	)
	if err != nil {
		r.logger.Error("Failed to create team", zap.String("name", team.Name), zap.Error(err))
		return fmt.Errorf("failed to create team: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	team.ID = id

	return r.SetMembers(ctx, team.ID, team.MemberIDs)
}

// GetByID retrieves a team and its member ids
func (r *TeamRepository) GetByID(ctx context.Context, id int64) (*entity.Team, error) {
	query := `SELECT ` + teamColumns + ` FROM teams WHERE id = ?`

	team, err := scanTeam(r.getExecutor(ctx).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get team by ID", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get team: %w", err)
	}

	if team.MemberIDs, err = r.memberIDs(ctx, id); err != nil {
		return nil, err
	}

	return team, nil
}

// Update persists the team's own fields; members are managed by SetMembers
func (r *TeamRepository) Update(ctx context.Context, team *entity.Team) error {
	query := `
		UPDATE teams
		SET name = ?, active = ?, leader_id = ?, company_id = ?,
			lock_amount_total = ?, only_members = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`

	_, err := r.getExecutor(ctx).ExecContext(ctx, query,
		team.Name,
		team.Active,
		team.LeaderID,
		team.CompanyID,
		team.LockAmountTotal,
		team.OnlyMembers,
		team.ID,
	)
	if err != nil {
		r.logger.Error("Failed to update team", zap.Int64("id", team.ID), zap.Error(err))
		return fmt.Errorf("failed to update team: %w", err)
	}

	return nil
}

// Delete removes a team. Rules and memberships cascade; orders referencing
// the team make the delete fail.
func (r *TeamRepository) Delete(ctx context.Context, id int64) error {
	if _, err := r.getExecutor(ctx).ExecContext(ctx, `DELETE FROM teams WHERE id = ?`, id); err != nil {
		r.logger.Error("Failed to delete team", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to delete team: %w", err)
	}
	return nil
}

// ListByCompany returns all teams of a company, archived ones included
func (r *TeamRepository) ListByCompany(ctx context.Context, companyID int64) ([]*entity.Team, error) {
	query := `SELECT ` + teamColumns + ` FROM teams WHERE company_id = ? ORDER BY name, id`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, companyID)
	if err != nil {
		r.logger.Error("Failed to list teams", zap.Int64("company_id", companyID), zap.Error(err))
		return nil, fmt.Errorf("failed to list teams: %w", err)
	}

	var teams []*entity.Team
	for rows.Next() {
		team, err := scanTeam(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan team: %w", err)
		}
		teams = append(teams, team)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	// members are loaded after the cursor is closed; in-memory databases
	// run on a single connection
	for _, team := range teams {
		if team.MemberIDs, err = r.memberIDs(ctx, team.ID); err != nil {
			return nil, err
		}
	}

	return teams, nil
}

// SetMembers replaces the member set of a team
func (r *TeamRepository) SetMembers(ctx context.Context, teamID int64, userIDs []int64) error {
	exec := r.getExecutor(ctx)

	if _, err := exec.ExecContext(ctx, `DELETE FROM team_members WHERE team_id = ?`, teamID); err != nil {
		r.logger.Error("Failed to clear team members", zap.Int64("team_id", teamID), zap.Error(err))
		return fmt.Errorf("failed to clear team members: %w", err)
	}

	for _, userID := range userIDs {
		_, err := exec.ExecContext(ctx,
			`INSERT OR IGNORE INTO team_members (team_id, user_id) VALUES (?, ?)`, teamID, userID)
		if err != nil {
			r.logger.Error("Failed to add team member",
				zap.Int64("team_id", teamID),
				zap.Int64("user_id", userID),
				zap.Error(err))
			return fmt.Errorf("failed to add team member: %w", err)
		}
	}

	return nil
}

func (r *TeamRepository) memberIDs(ctx context.Context, teamID int64) ([]int64, error) {
	rows, err := r.getExecutor(ctx).QueryContext(ctx,
		`SELECT user_id FROM team_members WHERE team_id = ? ORDER BY user_id`, teamID)
	if err != nil {
		return nil, fmt.Errorf("failed to get team members: %w", err)
	}
	defer rows.Close()

	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan team member: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTeam(row rowScanner) (*entity.Team, error) {
	var team entity.Team
	err := row.Scan(
		&team.ID,
		&team.Name,
		&team.Active,
		&team.LeaderID,
		&team.CompanyID,
		&team.LockAmountTotal,
		&team.OnlyMembers,
		&team.CreatedAt,
		&team.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &team, nil
}

func (r *TeamRepository) getExecutor(ctx context.Context) sqlite.Executor {
	return sqlite.Conn(ctx, r.db)
}

var _ port.TeamRepository = (*TeamRepository)(nil)
