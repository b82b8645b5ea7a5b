package lark

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	"go.uber.org/zap"

	"github.com/garyjia/po-approval-route/internal/application/port"
	"github.com/garyjia/po-approval-route/internal/domain/entity"
)

// Lark receive id types
const (
	ReceiveIDOpenID = "open_id"
	ReceiveIDEmail  = "email"
)

// ErrNoAddress is returned for partners with neither an open id nor an email
var ErrNoAddress = errors.New("partner has no Lark address")

// Messenger implements port.MessageSender over Lark IM text messages
type Messenger struct {
	api    messageCreator
	logger *zap.Logger
}

// NewMessenger creates a new Lark message sender adapter
func NewMessenger(client *SDKClient, logger *zap.Logger) *Messenger {
	return &Messenger{
		api:    client.messages(),
		logger: logger,
	}
}

// Send delivers subject and body to the partner, addressed by open id when
// known and by email otherwise
func (m *Messenger) Send(ctx context.Context, recipient *entity.Partner, subject, body string) error {
	receiveIDType, receiveID, err := address(recipient)
	if err != nil {
		return err
	}

	content, err := textContent(subject, body)
	if err != nil {
		return err
	}

	req := larkim.NewCreateMessageReqBuilder().
		ReceiveIdType(receiveIDType).
		Body(larkim.NewCreateMessageReqBodyBuilder().
			ReceiveId(receiveID).
			MsgType(larkim.MsgTypeText).
			Content(content).
			Build()).
		Build()

	resp, err := m.api.Create(ctx, req)
	if err != nil {
		m.logger.Error("Failed to send message",
			zap.String("receive_id", receiveID),
			zap.Error(err))
		return fmt.Errorf("failed to send message: %w", err)
	}

	if !resp.Success() {
		m.logger.Error("API returned failure",
			zap.String("receive_id", receiveID),
			zap.Int("code", resp.Code),
			zap.String("msg", resp.Msg))
		return fmt.Errorf("API error: code=%d, msg=%s", resp.Code, resp.Msg)
	}

	messageID := ""
	if resp.Data != nil && resp.Data.MessageId != nil {
		messageID = *resp.Data.MessageId
	}

	m.logger.Info("Message sent successfully",
		zap.String("message_id", messageID),
		zap.Int64("partner_id", recipient.ID))

	return nil
}

func address(p *entity.Partner) (string, string, error) {
	switch {
	case p == nil:
		return "", "", ErrNoAddress
	case p.LarkOpenID != "":
		return ReceiveIDOpenID, p.LarkOpenID, nil
	case p.Email != "":
		return ReceiveIDEmail, p.Email, nil
	default:
		return "", "", fmt.Errorf("%w: %s", ErrNoAddress, p.Name)
	}
}

func textContent(subject, body string) (string, error) {
	text := body
	if subject != "" {
		text = subject + "\n" + body
	}

	raw, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return "", fmt.Errorf("failed to encode message content: %w", err)
	}
	return string(raw), nil
}

var _ port.MessageSender = (*Messenger)(nil)
