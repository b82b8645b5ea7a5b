package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/garyjia/po-approval-route/internal/application/dispatcher"
	"github.com/garyjia/po-approval-route/internal/application/port"
	"github.com/garyjia/po-approval-route/internal/domain/entity"
	"github.com/garyjia/po-approval-route/internal/domain/event"
)

// NotificationService writes an order's activity log and delivers
// notifications once the transaction that created them has committed
type NotificationService interface {
	// PostNote adds a note to the order's activity log
	PostNote(ctx context.Context, orderID, authorID int64, body string) (*entity.Message, error)

	// Notify records a notification addressed to partners and queues its
	// delivery
	Notify(ctx context.Context, msg *entity.Message) error

	ListMessages(ctx context.Context, orderID int64) ([]*entity.Message, error)

	// Deliver sends the notification named by a NotificationCreated event
	Deliver(ctx context.Context, evt *event.Event) error

	// Register subscribes delivery to the dispatcher
	Register(d dispatcher.Dispatcher)
}

type notificationServiceImpl struct {
	messageRepo port.MessageRepository
	partnerRepo port.PartnerRepository
	sender      port.MessageSender
	logger      Logger
}

// NewNotificationService creates a new NotificationService
func NewNotificationService(
	messageRepo port.MessageRepository,
	partnerRepo port.PartnerRepository,
	sender port.MessageSender,
	logger Logger,
) NotificationService {
	return &notificationServiceImpl{
		messageRepo: messageRepo,
		partnerRepo: partnerRepo,
		sender:      sender,
		logger:      logger,
	}
}

// PostNote adds a note to the order's activity log
func (s *notificationServiceImpl) PostNote(ctx context.Context, orderID, authorID int64, body string) (*entity.Message, error) {
	msg := &entity.Message{
		OrderID:  orderID,
		AuthorID: authorID,
		Kind:     entity.MessageKindNote,
		Body:     body,
	}
	if err := s.messageRepo.Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("create note: %w", err)
	}
	return msg, nil
}

// Notify records a notification. Delivery is published as an event and only
// happens if the surrounding transaction commits.
func (s *notificationServiceImpl) Notify(ctx context.Context, msg *entity.Message) error {
	msg.Kind = entity.MessageKindNotification
	if err := s.messageRepo.Create(ctx, msg); err != nil {
		return fmt.Errorf("create notification: %w", err)
	}

	publish(ctx, event.NewEvent(event.TypeNotificationCreated, msg.OrderID, map[string]interface{}{
		event.KeyMessageID: msg.ID,
		event.KeyCount:     len(msg.RecipientIDs),
	}))

	s.logger.Info("Notification queued",
		"message_id", msg.ID,
		"order_id", msg.OrderID,
		"template", msg.Template,
		"recipients", len(msg.RecipientIDs),
	)
	return nil
}

// ListMessages returns the order's activity log, oldest first
func (s *notificationServiceImpl) ListMessages(ctx context.Context, orderID int64) ([]*entity.Message, error) {
	messages, err := s.messageRepo.ListByOrder(ctx, orderID)
	if err != nil {
		s.logger.Error("Failed to list messages", "error", err, "order_id", orderID)
		return nil, err
	}
	return messages, nil
}

// Deliver sends a notification to each of its recipients. A failing
// recipient does not stop delivery to the others.
func (s *notificationServiceImpl) Deliver(ctx context.Context, evt *event.Event) error {
	messageID := evt.GetPayloadInt(event.KeyMessageID)

	msg, err := s.messageRepo.GetByID(ctx, messageID)
	if err != nil {
		return fmt.Errorf("get message: %w", err)
	}
	if msg == nil {
		return fmt.Errorf("message %d not found", messageID)
	}

	var errs []error
	for _, partnerID := range msg.RecipientIDs {
		partner, err := s.partnerRepo.GetByID(ctx, partnerID)
		if err != nil {
			errs = append(errs, fmt.Errorf("get partner %d: %w", partnerID, err))
			continue
		}
		if partner == nil {
			continue
		}

		if err := s.sender.Send(ctx, partner, msg.Subject, msg.Body); err != nil {
			s.logger.Error("Failed to deliver notification",
				"error", err,
				"message_id", msg.ID,
				"partner_id", partnerID,
			)
			errs = append(errs, fmt.Errorf("send to partner %d: %w", partnerID, err))
			continue
		}

		s.logger.Info("Notification delivered", "message_id", msg.ID, "partner_id", partnerID)
	}

	return errors.Join(errs...)
}

// Register subscribes delivery to NotificationCreated events
func (s *notificationServiceImpl) Register(d dispatcher.Dispatcher) {
	d.Subscribe(event.TypeNotificationCreated, "notification-delivery", s.Deliver)
}
