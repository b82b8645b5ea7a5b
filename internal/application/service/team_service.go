package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/garyjia/po-approval-route/internal/application/port"
	"github.com/garyjia/po-approval-route/internal/domain/access"
	"github.com/garyjia/po-approval-route/internal/domain/apperr"
	"github.com/garyjia/po-approval-route/internal/domain/entity"
)

// TeamService manages approval teams and their approver rules
type TeamService interface {
	CreateTeam(ctx context.Context, team *entity.Team) error
	UpdateTeam(ctx context.Context, team *entity.Team) error
	GetTeam(ctx context.Context, id int64) (*entity.Team, error)
	ListTeams(ctx context.Context, companyID int64) ([]*entity.Team, error)
	DeleteTeam(ctx context.Context, id int64) error
	SetMembers(ctx context.Context, teamID int64, userIDs []int64) (*entity.Team, error)

	AddRule(ctx context.Context, teamID int64, rule *entity.ApproverRule) error
	UpdateRule(ctx context.Context, rule *entity.ApproverRule) error
	DeleteRule(ctx context.Context, id int64) error

	// DetectRole returns the first job title found for the user
	DetectRole(ctx context.Context, userID int64) (string, bool)

	// SelectableTeams returns the active teams of a company the actor may
	// assign to an order
	SelectableTeams(ctx context.Context, companyID int64, actor access.Actor) ([]*entity.Team, error)
}

type teamServiceImpl struct {
	teamRepo    port.TeamRepository
	ruleRepo    port.ApproverRuleRepository
	companyRepo port.CompanyRepository
	userRepo    port.UserRepository
	orderRepo   port.OrderRepository
	evaluator   port.ConditionEvaluator
	profiles    []port.ProfileSource
	txManager   port.TransactionManager
	logger      Logger
}

// NewTeamService creates a new TeamService. Profile sources are consulted in
// order by DetectRole.
func NewTeamService(
	teamRepo port.TeamRepository,
	ruleRepo port.ApproverRuleRepository,
	companyRepo port.CompanyRepository,
	userRepo port.UserRepository,
	orderRepo port.OrderRepository,
	evaluator port.ConditionEvaluator,
	profiles []port.ProfileSource,
	txManager port.TransactionManager,
	logger Logger,
) TeamService {
	return &teamServiceImpl{
		teamRepo:    teamRepo,
		ruleRepo:    ruleRepo,
		companyRepo: companyRepo,
		userRepo:    userRepo,
		orderRepo:   orderRepo,
		evaluator:   evaluator,
		profiles:    profiles,
		txManager:   txManager,
		logger:      logger,
	}
}

// CreateTeam creates an active team, its members and any rules it carries
func (s *teamServiceImpl) CreateTeam(ctx context.Context, team *entity.Team) error {
	team.Name = strings.TrimSpace(team.Name)
	if team.Name == "" {
		return apperr.Validation("Team name is required")
	}
	team.Active = true

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.checkCompany(txCtx, team.CompanyID); err != nil {
			return err
		}
		if err := s.checkUser(txCtx, team.LeaderID, "Team leader"); err != nil {
			return err
		}

		if err := s.teamRepo.Create(txCtx, team); err != nil {
			return fmt.Errorf("create team: %w", err)
		}

		for _, rule := range team.Rules {
			rule.TeamID = team.ID
			if err := s.prepareRule(txCtx, rule, nil); err != nil {
				return err
			}
			if err := s.ruleRepo.Create(txCtx, rule); err != nil {
				return fmt.Errorf("create rule: %w", err)
			}
		}
		entity.SortRules(team.Rules)
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to create team", "error", err, "name", team.Name)
		return err
	}

	s.logger.Info("Team created", "id", team.ID, "company_id", team.CompanyID, "rules", len(team.Rules))
	return nil
}

// UpdateTeam updates the team's own fields. Members and rules are left
// untouched.
func (s *teamServiceImpl) UpdateTeam(ctx context.Context, team *entity.Team) error {
	team.Name = strings.TrimSpace(team.Name)
	if team.Name == "" {
		return apperr.Validation("Team name is required")
	}

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		existing, err := s.teamRepo.GetByID(txCtx, team.ID)
		if err != nil {
			return fmt.Errorf("get team: %w", err)
		}
		if existing == nil {
			return apperr.NotFound("team", team.ID)
		}

		if team.CompanyID != existing.CompanyID {
			if err := s.checkCompany(txCtx, team.CompanyID); err != nil {
				return err
			}
		}
		if team.LeaderID != existing.LeaderID {
			if err := s.checkUser(txCtx, team.LeaderID, "Team leader"); err != nil {
				return err
			}
		}

		if err := s.teamRepo.Update(txCtx, team); err != nil {
			return fmt.Errorf("update team: %w", err)
		}
		team.MemberIDs = existing.MemberIDs
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to update team", "error", err, "id", team.ID)
		return err
	}

	s.logger.Info("Team updated", "id", team.ID, "active", team.Active)
	return nil
}

// GetTeam retrieves a team with its members and ordered rules
func (s *teamServiceImpl) GetTeam(ctx context.Context, id int64) (*entity.Team, error) {
	team, err := s.teamRepo.GetByID(ctx, id)
	if err != nil {
		s.logger.Error("Failed to get team", "error", err, "id", id)
		return nil, err
	}
	if team == nil {
		return nil, apperr.NotFound("team", id)
	}

	if team.Rules, err = s.ruleRepo.ListByTeam(ctx, id); err != nil {
		s.logger.Error("Failed to list rules", "error", err, "team_id", id)
		return nil, err
	}
	return team, nil
}

// ListTeams returns all teams of a company, archived ones included
func (s *teamServiceImpl) ListTeams(ctx context.Context, companyID int64) ([]*entity.Team, error) {
	teams, err := s.teamRepo.ListByCompany(ctx, companyID)
	if err != nil {
		s.logger.Error("Failed to list teams", "error", err, "company_id", companyID)
		return nil, err
	}
	return teams, nil
}

// DeleteTeam removes a team that no purchase order refers to
func (s *teamServiceImpl) DeleteTeam(ctx context.Context, id int64) error {
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		team, err := s.teamRepo.GetByID(txCtx, id)
		if err != nil {
			return fmt.Errorf("get team: %w", err)
		}
		if team == nil {
			return apperr.NotFound("team", id)
		}

		count, err := s.orderRepo.CountByTeam(txCtx, id)
		if err != nil {
			return fmt.Errorf("count orders: %w", err)
		}
		if count > 0 {
			return apperr.PolicyViolation(
				"Team %s is used by %d purchase orders and cannot be deleted. Archive it instead.",
				team.Name, count)
		}

		if err := s.teamRepo.Delete(txCtx, id); err != nil {
			return fmt.Errorf("delete team: %w", err)
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to delete team", "error", err, "id", id)
		return err
	}

	s.logger.Info("Team deleted", "id", id)
	return nil
}

// SetMembers replaces the team's members
func (s *teamServiceImpl) SetMembers(ctx context.Context, teamID int64, userIDs []int64) (*entity.Team, error) {
	var team *entity.Team
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		team, err = s.teamRepo.GetByID(txCtx, teamID)
		if err != nil {
			return fmt.Errorf("get team: %w", err)
		}
		if team == nil {
			return apperr.NotFound("team", teamID)
		}

		for _, userID := range userIDs {
			if err := s.checkUser(txCtx, userID, "Team member"); err != nil {
				return err
			}
		}

		if err := s.teamRepo.SetMembers(txCtx, teamID, userIDs); err != nil {
			return fmt.Errorf("set members: %w", err)
		}
		team.MemberIDs = userIDs
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to set team members", "error", err, "team_id", teamID)
		return nil, err
	}

	s.logger.Info("Team members updated", "team_id", teamID, "members", len(userIDs))
	return team, nil
}

// AddRule appends an approver rule to a team
func (s *teamServiceImpl) AddRule(ctx context.Context, teamID int64, rule *entity.ApproverRule) error {
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		team, err := s.teamRepo.GetByID(txCtx, teamID)
		if err != nil {
			return fmt.Errorf("get team: %w", err)
		}
		if team == nil {
			return apperr.NotFound("team", teamID)
		}

		rule.TeamID = teamID
		if err := s.prepareRule(txCtx, rule, nil); err != nil {
			return err
		}
		if err := s.ruleRepo.Create(txCtx, rule); err != nil {
			return fmt.Errorf("create rule: %w", err)
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to add rule", "error", err, "team_id", teamID)
		return err
	}

	s.logger.Info("Approver rule added", "id", rule.ID, "team_id", teamID, "user_id", rule.UserID)
	return nil
}

// UpdateRule updates an approver rule. Routes already generated keep their
// snapshot of the previous values.
func (s *teamServiceImpl) UpdateRule(ctx context.Context, rule *entity.ApproverRule) error {
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		existing, err := s.ruleRepo.GetByID(txCtx, rule.ID)
		if err != nil {
			return fmt.Errorf("get rule: %w", err)
		}
		if existing == nil {
			return apperr.NotFound("approver rule", rule.ID)
		}

		rule.TeamID = existing.TeamID
		if err := s.prepareRule(txCtx, rule, existing); err != nil {
			return err
		}
		if err := s.ruleRepo.Update(txCtx, rule); err != nil {
			return fmt.Errorf("update rule: %w", err)
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to update rule", "error", err, "id", rule.ID)
		return err
	}

	s.logger.Info("Approver rule updated", "id", rule.ID)
	return nil
}

// DeleteRule removes an approver rule. Order approvers created from it lose
// their source link but stay on their orders.
func (s *teamServiceImpl) DeleteRule(ctx context.Context, id int64) error {
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		existing, err := s.ruleRepo.GetByID(txCtx, id)
		if err != nil {
			return fmt.Errorf("get rule: %w", err)
		}
		if existing == nil {
			return apperr.NotFound("approver rule", id)
		}
		return s.ruleRepo.Delete(txCtx, id)
	})
	if err != nil {
		s.logger.Error("Failed to delete rule", "error", err, "id", id)
		return err
	}

	s.logger.Info("Approver rule deleted", "id", id)
	return nil
}

// DetectRole walks the profile sources in order and returns the first
// non-empty job title. Lookup failures count as no data.
func (s *teamServiceImpl) DetectRole(ctx context.Context, userID int64) (string, bool) {
	for _, source := range s.profiles {
		title, err := source.JobTitle(ctx, userID)
		if err != nil {
			s.logger.Error("Profile lookup failed", "error", err, "source", source.Name(), "user_id", userID)
			continue
		}
		if title = strings.TrimSpace(title); title != "" {
			return title, true
		}
	}
	return "", false
}

// SelectableTeams returns the active teams of a company the actor may assign
func (s *teamServiceImpl) SelectableTeams(ctx context.Context, companyID int64, actor access.Actor) ([]*entity.Team, error) {
	teams, err := s.ListTeams(ctx, companyID)
	if err != nil {
		return nil, err
	}

	selectable := make([]*entity.Team, 0, len(teams))
	for _, team := range teams {
		if team.SelectableBy(actor.UserID) {
			selectable = append(selectable, team)
		}
	}
	return selectable, nil
}

// prepareRule fills defaults and validates a rule before it is saved.
// existing is the stored version when the rule is being updated.
func (s *teamServiceImpl) prepareRule(ctx context.Context, rule *entity.ApproverRule, existing *entity.ApproverRule) error {
	if err := s.checkUser(ctx, rule.UserID, "Approver"); err != nil {
		return err
	}

	rule.Role = strings.TrimSpace(rule.Role)
	if rule.Role == "" {
		if existing != nil && existing.UserID == rule.UserID {
			rule.Role = existing.Role
		} else if role, ok := s.DetectRole(ctx, rule.UserID); ok {
			rule.Role = role
		} else if existing != nil {
			rule.Role = existing.Role
		}
	}
	rule.Normalize()

	if rule.MinAmount.IsNegative() {
		return apperr.Validation("Minimum amount must not be negative")
	}
	if rule.MaxAmount.Valid && rule.MaxAmount.Decimal.LessThan(rule.MinAmount) {
		return apperr.Validation("Minimum amount %s exceeds maximum amount %s",
			rule.MinAmount.String(), rule.MaxAmount.Decimal.String())
	}

	rule.CustomCondition = strings.TrimSpace(rule.CustomCondition)
	if rule.HasCondition() {
		if err := s.evaluator.Compile(rule.CustomCondition); err != nil {
			return apperr.Wrap(apperr.KindValidation, err, "Invalid custom condition")
		}
	}
	return nil
}

func (s *teamServiceImpl) checkCompany(ctx context.Context, companyID int64) error {
	company, err := s.companyRepo.GetByID(ctx, companyID)
	if err != nil {
		return fmt.Errorf("get company: %w", err)
	}
	if company == nil {
		return apperr.NotFound("company", companyID)
	}
	if !company.ApprovalRouteEnabled() {
		return apperr.Configuration("Approval Route functionality is disabled for the company %s", company.Name)
	}
	return nil
}

func (s *teamServiceImpl) checkUser(ctx context.Context, userID int64, what string) error {
	if userID == 0 {
		return apperr.Validation("%s is required", what)
	}
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return apperr.NotFound("user", userID)
	}
	return nil
}
