package container

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/po-approval-route/internal/application/dispatcher"
	"github.com/garyjia/po-approval-route/internal/application/port"
	"github.com/garyjia/po-approval-route/internal/application/service"
	"github.com/garyjia/po-approval-route/internal/domain/event"
	"github.com/garyjia/po-approval-route/internal/infrastructure/export"
	"github.com/garyjia/po-approval-route/internal/infrastructure/external/condition"
	"github.com/garyjia/po-approval-route/internal/infrastructure/external/currency"
	infraLark "github.com/garyjia/po-approval-route/internal/infrastructure/external/lark"
	"github.com/garyjia/po-approval-route/internal/infrastructure/persistence/repository"
	"github.com/garyjia/po-approval-route/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/po-approval-route/pkg/database"
)

// DatabaseBundle holds database-related components.
type DatabaseBundle struct {
	DB             *database.DB
	TransactionMgr *sqlite.DB
}

// AdapterBundle holds the outbound adapters behind the application ports.
type AdapterBundle struct {
	Sender    port.MessageSender
	Converter port.CurrencyConverter
	Evaluator port.ConditionEvaluator
	Exporter  port.RouteExporter
}

// ProvideDatabase opens the database and applies the embedded migrations.
func ProvideDatabase(cfg *DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	db, err := database.New(database.Config{
		Path:            cfg.Path,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	}, logger)
	if err != nil {
		return nil, err
	}

	applied, err := database.NewMigrator(db, logger).Run(database.Migrations())
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	logger.Info("Migrations applied", zap.Int("count", applied))

	return &DatabaseBundle{
		DB:             db,
		TransactionMgr: sqlite.NewDB(db.DB, logger),
	}, nil
}

// ProvideRepositories creates all repositories from a database connection.
func ProvideRepositories(db *database.DB, logger *zap.Logger) (*RepositoryBundle, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	return &RepositoryBundle{
		Company:  repository.NewCompanyRepository(db.DB, logger),
		Partner:  repository.NewPartnerRepository(db.DB, logger),
		User:     repository.NewUserRepository(db.DB, logger),
		Employee: repository.NewEmployeeRepository(db.DB, logger),
		Currency: repository.NewCurrencyRepository(db.DB, logger),
		Team:     repository.NewTeamRepository(db.DB, logger),
		Rule:     repository.NewApproverRuleRepository(db.DB, logger),
		Order:    repository.NewOrderRepository(db.DB, logger),
		Approver: repository.NewOrderApproverRepository(db.DB, logger),
		Message:  repository.NewMessageRepository(db.DB, logger),
		History:  repository.NewHistoryRepository(db.DB, logger),
	}, nil
}

// ProvideMessageSender returns the Lark messenger when Lark is enabled and a
// log-only sender otherwise.
func ProvideMessageSender(cfg *LarkConfig, logger *zap.Logger) (port.MessageSender, error) {
	if cfg == nil {
		return nil, fmt.Errorf("lark config is required")
	}

	if !cfg.Enabled {
		logger.Info("Lark disabled, notifications are written to the log")
		return infraLark.NewLogSender(logger), nil
	}

	client := infraLark.NewSDKClient(infraLark.Config{
		AppID:     cfg.AppID,
		AppSecret: cfg.AppSecret,
		BaseURL:   cfg.BaseURL,
	}, logger)
	return infraLark.NewMessenger(client, logger), nil
}

// ProvideAdapters creates the outbound adapters.
func ProvideAdapters(cfg *LarkConfig, repos *RepositoryBundle, logger *zap.Logger) (*AdapterBundle, error) {
	if repos == nil {
		return nil, fmt.Errorf("repositories are required")
	}

	sender, err := ProvideMessageSender(cfg, logger)
	if err != nil {
		return nil, err
	}

	return &AdapterBundle{
		Sender:    sender,
		Converter: currency.NewConverter(repos.Currency, logger),
		Evaluator: condition.NewEvaluator(),
		Exporter:  export.NewRouteExporter(logger),
	}, nil
}

// ProvideDispatcher creates the event dispatcher.
func ProvideDispatcher(logger *zap.Logger) (dispatcher.Dispatcher, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	return dispatcher.NewDispatcher(
		dispatcher.WithLogger(&zapLoggerAdapter{logger: logger}),
	), nil
}

// ServiceDeps holds dependencies required for creating services.
type ServiceDeps struct {
	Repos      *RepositoryBundle
	Adapters   *AdapterBundle
	TxManager  port.TransactionManager
	Dispatcher dispatcher.Dispatcher
	Logger     *zap.Logger
}

// ProvideServices creates all application services and subscribes
// notification delivery to the dispatcher.
func ProvideServices(deps *ServiceDeps) (*ServiceBundle, error) {
	if deps == nil {
		return nil, fmt.Errorf("service dependencies are required")
	}
	if deps.Repos == nil {
		return nil, fmt.Errorf("repositories are required")
	}
	if deps.Adapters == nil {
		return nil, fmt.Errorf("adapters are required")
	}
	if deps.TxManager == nil {
		return nil, fmt.Errorf("transaction manager is required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	serviceLogger := &zapLoggerAdapter{logger: deps.Logger}
	repos := deps.Repos

	profiles := []port.ProfileSource{
		service.NewEmployeeProfileSource(repos.Employee),
		service.NewPartnerProfileSource(repos.User, repos.Partner),
	}

	notifications := service.NewNotificationService(
		repos.Message,
		repos.Partner,
		deps.Adapters.Sender,
		serviceLogger,
	)
	if deps.Dispatcher != nil {
		notifications.Register(deps.Dispatcher)
	}

	generator := service.NewRouteGenerator(
		repos.Rule,
		repos.Approver,
		repos.Company,
		repos.User,
		deps.Adapters.Converter,
		deps.Adapters.Evaluator,
		serviceLogger,
	)

	return &ServiceBundle{
		Directory: service.NewDirectoryService(
			repos.Company,
			repos.Partner,
			repos.User,
			repos.Employee,
			repos.Currency,
			deps.TxManager,
			serviceLogger,
		),
		Team: service.NewTeamService(
			repos.Team,
			repos.Rule,
			repos.Company,
			repos.User,
			repos.Order,
			deps.Adapters.Evaluator,
			profiles,
			deps.TxManager,
			serviceLogger,
		),
		Approval: service.NewApprovalService(
			repos.Order,
			repos.Approver,
			repos.Team,
			repos.Company,
			repos.Partner,
			repos.User,
			repos.History,
			generator,
			notifications,
			deps.TxManager,
			deps.Dispatcher,
			serviceLogger,
		),
		Notification: notifications,
		Export: service.NewExportService(
			repos.Order,
			repos.Approver,
			repos.User,
			deps.Adapters.Exporter,
			serviceLogger,
		),
	}, nil
}

// loggedEventTypes are the lifecycle events written to the event log
var loggedEventTypes = []event.Type{
	event.TypeOrderConfirmed,
	event.TypeRouteGenerated,
	event.TypeApprovalRequested,
	event.TypeApproverApproved,
	event.TypeApproverRejected,
	event.TypeOrderApproved,
	event.TypeOrderCancelled,
}

// RegisterEventLog subscribes a handler that logs each committed lifecycle event.
func RegisterEventLog(d dispatcher.Dispatcher, logger *zap.Logger) {
	for _, eventType := range loggedEventTypes {
		d.Subscribe(eventType, "event-log", newEventLogHandler(logger))
	}
}

func newEventLogHandler(logger *zap.Logger) dispatcher.Handler {
	return func(ctx context.Context, evt *event.Event) error {
		if evt == nil {
			return fmt.Errorf("event cannot be nil")
		}

		logger.Info("Order event",
			zap.String("event_id", evt.ID),
			zap.String("type", evt.Type.String()),
			zap.Int64("order_id", evt.OrderID),
			zap.Any("payload", evt.Payload),
			zap.Time("timestamp", evt.Timestamp))
		return nil
	}
}
