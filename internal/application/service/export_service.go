package service

import (
	"context"
	"fmt"

	"github.com/garyjia/po-approval-route/internal/application/port"
	"github.com/garyjia/po-approval-route/internal/domain/apperr"
	"github.com/garyjia/po-approval-route/internal/domain/entity"
)

// ExportService renders an order's approval route for download
type ExportService interface {
	ExportRoute(ctx context.Context, orderID int64) (*entity.PurchaseOrder, []byte, error)
}

type exportServiceImpl struct {
	orderRepo    port.OrderRepository
	approverRepo port.OrderApproverRepository
	userRepo     port.UserRepository
	exporter     port.RouteExporter
	logger       Logger
}

// NewExportService creates a new ExportService
func NewExportService(
	orderRepo port.OrderRepository,
	approverRepo port.OrderApproverRepository,
	userRepo port.UserRepository,
	exporter port.RouteExporter,
	logger Logger,
) ExportService {
	return &exportServiceImpl{
		orderRepo:    orderRepo,
		approverRepo: approverRepo,
		userRepo:     userRepo,
		exporter:     exporter,
		logger:       logger,
	}
}

// ExportRoute returns the order and its route rendered by the exporter
func (s *exportServiceImpl) ExportRoute(ctx context.Context, orderID int64) (*entity.PurchaseOrder, []byte, error) {
	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, nil, fmt.Errorf("get order: %w", err)
	}
	if order == nil {
		return nil, nil, apperr.NotFound("purchase order", orderID)
	}

	if order.Approvers, err = s.approverRepo.ListByOrder(ctx, orderID); err != nil {
		return nil, nil, fmt.Errorf("list approvers: %w", err)
	}
	entity.SortApprovers(order.Approvers)

	names := make(map[int64]string)
	rows := make([]port.RouteRow, 0, len(order.Approvers))
	for _, a := range order.Approvers {
		name, ok := names[a.UserID]
		if !ok {
			user, err := s.userRepo.GetByID(ctx, a.UserID)
			if err != nil {
				return nil, nil, fmt.Errorf("get user: %w", err)
			}
			name = fmt.Sprintf("user %d", a.UserID)
			if user != nil {
				name = user.Name
			}
			names[a.UserID] = name
		}

		rows = append(rows, port.RouteRow{
			Sequence:        a.Sequence,
			Approver:        name,
			Role:            a.Role,
			MinAmount:       a.MinAmount,
			MaxAmount:       a.MaxAmount,
			LockAmountTotal: a.LockAmountTotal,
			State:           a.State,
		})
	}

	data, err := s.exporter.Export(order, rows)
	if err != nil {
		s.logger.Error("Failed to export route", "error", err, "order_id", orderID)
		return nil, nil, err
	}

	s.logger.Info("Route exported", "order_id", orderID, "rows", len(rows), "bytes", len(data))
	return order, data, nil
}
