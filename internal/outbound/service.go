// Package outbound is the send path: it persists the message locally, rolls
// the conversation cache forward, and pushes the message to the gateway over
// the visitor's channel.
package outbound

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-playground/validator/v10"

	"github.com/wincLei/customer-service-sub000/internal/gateway"
	"github.com/wincLei/customer-service-sub000/internal/identity"
	"github.com/wincLei/customer-service-sub000/internal/payload"
	"github.com/wincLei/customer-service-sub000/internal/store"
)

// systemSenderFlag fences gateway registration of the system identity to a
// single process across the deployment.
const systemSenderFlag = "system_sender_registered"

// Store is the persistence surface the pipeline needs.
type Store interface {
	GetConversation(ctx context.Context, id int64) (store.Conversation, error)
	RecordMessage(ctx context.Context, msg store.Message) (store.Message, error)
	ClaimFlag(ctx context.Context, name string) (bool, error)
}

// Gateway is the slice of the gateway client the pipeline uses.
type Gateway interface {
	SendMessage(ctx context.Context, fromUID, channelID string, channelType int, encodedPayload string) bool
	IssueToken(ctx context.Context, uid, displayName string, deviceFlag int) (string, bool)
}

type Service struct {
	store    Store
	gateway  Gateway
	logger   *slog.Logger
	validate *validator.Validate
}

func NewService(log *slog.Logger, st Store, gw Gateway) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		store:    st,
		gateway:  gw,
		logger:   log.With(slog.String("service", "outbound")),
		validate: validator.New(),
	}
}

// Send runs the outbound pipeline. Gateway push failure does not roll the
// local write back: the record is authoritative for the UI timeline and the
// recipient can still recover the message via history sync.
func (s *Service) Send(ctx context.Context, req SendRequest) (SendResult, error) {
	if err := s.validate.Struct(req); err != nil {
		return SendResult{}, fmt.Errorf("invalid send request: %w", err)
	}

	encoded, err := payload.Build(req.MsgType, req.Content)
	if err != nil {
		return SendResult{}, fmt.Errorf("build payload: %w", err)
	}

	conv, err := s.store.GetConversation(ctx, req.ConversationID)
	if err != nil {
		return SendResult{}, fmt.Errorf("resolve conversation %d: %w", req.ConversationID, err)
	}

	msg, err := s.store.RecordMessage(ctx, store.Message{
		ProjectID:      conv.ProjectID,
		ConversationID: conv.ID,
		ExternalMsgID:  req.ExternalMsgID,
		SenderType:     req.SenderType,
		SenderID:       req.SenderID,
		MsgType:        req.MsgType,
		Content:        req.Content,
	})
	if err != nil {
		return SendResult{}, fmt.Errorf("persist message: %w", err)
	}

	fromUID, err := s.resolveSender(ctx, req, conv)
	if err != nil {
		// The record is already in; only the push is lost.
		s.logger.Error("resolve sender failed, message recorded without push",
			slog.Int64("conversation_id", conv.ID),
			slog.Any("error", err))
		return SendResult{MessageID: msg.ID, Delivered: false}, nil
	}

	channelID := identity.VisitorUID(conv.ProjectID, conv.UserID)
	delivered := s.gateway.SendMessage(ctx, fromUID, channelID, gateway.ChannelTypeVisitor, encoded)
	if !delivered {
		s.logger.Error("gateway push failed, message recorded locally",
			slog.String("from_uid", fromUID),
			slog.String("channel_id", channelID),
			slog.String("message_id", msg.ID.String()))
	}
	return SendResult{MessageID: msg.ID, Delivered: delivered}, nil
}

func (s *Service) resolveSender(ctx context.Context, req SendRequest, conv store.Conversation) (string, error) {
	switch req.SenderType {
	case store.SenderTypeUser:
		return identity.VisitorUID(conv.ProjectID, conv.UserID), nil
	case store.SenderTypeAgent:
		return identity.AgentUID(req.SenderID), nil
	case store.SenderTypeSystem:
		s.ensureSystemSender(ctx)
		return identity.SystemUID, nil
	default:
		return "", fmt.Errorf("unknown sender type %q", req.SenderType)
	}
}

// ensureSystemSender registers the platform identity on the gateway the
// first time a system message is sent. The claim row makes the registration
// a one-shot across all service instances.
func (s *Service) ensureSystemSender(ctx context.Context) {
	claimed, err := s.store.ClaimFlag(ctx, systemSenderFlag)
	if err != nil {
		s.logger.Error("claim system sender flag failed", slog.Any("error", err))
		return
	}
	if !claimed {
		return
	}
	if _, ok := s.gateway.IssueToken(ctx, identity.SystemUID, "System", 1); !ok {
		s.logger.Error("register system sender on gateway failed")
	}
}
