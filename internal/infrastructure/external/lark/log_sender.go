package lark

import (
	"context"

	"go.uber.org/zap"

	"github.com/garyjia/po-approval-route/internal/application/port"
	"github.com/garyjia/po-approval-route/internal/domain/entity"
)

// LogSender stands in for the messenger when Lark is disabled: it only
// records what would have been delivered.
type LogSender struct {
	logger *zap.Logger
}

// NewLogSender creates a sender that writes notifications to the log
func NewLogSender(logger *zap.Logger) *LogSender {
	return &LogSender{logger: logger}
}

// Send logs the notification
func (s *LogSender) Send(ctx context.Context, recipient *entity.Partner, subject, body string) error {
	s.logger.Info("Notification (lark disabled)",
		zap.Int64("partner_id", recipient.ID),
		zap.String("partner", recipient.Name),
		zap.String("subject", subject),
		zap.String("body", body))
	return nil
}

var _ port.MessageSender = (*LogSender)(nil)
