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

// UserRepository implements port.UserRepository
type UserRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *sql.DB, logger *zap.Logger) port.UserRepository {
	return &UserRepository{
		db:     db,
		logger: logger,
	}
}

// Create creates a new user
func (r *UserRepository) Create(ctx context.Context, user *entity.User) error {
	query := `
		INSERT INTO users (login, name, partner_id, company_id, superuser)
		VALUES (?, ?, ?, ?, ?)
	`

	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		user.Login,
		user.Name,
		user.PartnerID,
		user.CompanyID,
		user.Superuser,
	)
	if err != nil {
		r.logger.Error("Failed to create user", zap.String("login", user.Login), zap.Error(err))
		return fmt.Errorf("failed to create user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	user.ID = id
	return nil
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*entity.User, error) {
	query := `
		SELECT id, login, name, partner_id, company_id, superuser, created_at
		FROM users
		WHERE id = ?
	`

	var user entity.User
	err := r.getExecutor(ctx).QueryRowContext(ctx, query, id).Scan(
		&user.ID,
		&user.Login,
		&user.Name,
		&user.PartnerID,
		&user.CompanyID,
		&user.Superuser,
		&user.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get user by ID", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return &user, nil
}

func (r *UserRepository) getExecutor(ctx context.Context) sqlite.Executor {
	return sqlite.Conn(ctx, r.db)
}

// EmployeeRepository implements port.EmployeeRepository
type EmployeeRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewEmployeeRepository creates a new employee repository
func NewEmployeeRepository(db *sql.DB, logger *zap.Logger) port.EmployeeRepository {
	return &EmployeeRepository{
		db:     db,
		logger: logger,
	}
}

// Create creates the HR profile of a user
func (r *EmployeeRepository) Create(ctx context.Context, employee *entity.Employee) error {
	query := `INSERT INTO employees (user_id, job_title) VALUES (?, ?)`

	result, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, query, employee.UserID, employee.JobTitle)
	if err != nil {
		r.logger.Error("Failed to create employee", zap.Int64("user_id", employee.UserID), zap.Error(err))
		return fmt.Errorf("failed to create employee: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	employee.ID = id
	return nil
}

// GetByUserID retrieves the employee linked to a user
func (r *EmployeeRepository) GetByUserID(ctx context.Context, userID int64) (*entity.Employee, error) {
	query := `SELECT id, user_id, job_title, created_at FROM employees WHERE user_id = ?`

	var employee entity.Employee
	err := sqlite.Conn(ctx, r.db).QueryRowContext(ctx, query, userID).Scan(
		&employee.ID,
		&employee.UserID,
		&employee.JobTitle,
		&employee.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get employee by user ID", zap.Int64("user_id", userID), zap.Error(err))
		return nil, fmt.Errorf("failed to get employee: %w", err)
	}

	return &employee, nil
}

var (
	_ port.UserRepository     = (*UserRepository)(nil)
	_ port.EmployeeRepository = (*EmployeeRepository)(nil)
)
