// Package history loads channel message history on demand from the gateway.
// Nothing here mutates local state; it is a read-through into the gateway's
// own message store.
package history

import (
	"context"
	"log/slog"

	"github.com/wincLei/customer-service-sub000/internal/gateway"
	"github.com/wincLei/customer-service-sub000/internal/identity"
	"github.com/wincLei/customer-service-sub000/internal/payload"
)

// Gateway is the slice of the gateway client the history loader uses.
type Gateway interface {
	SyncMessages(ctx context.Context, req gateway.SyncRequest) []gateway.Message
}

// Query selects a slice of a channel's message log.
type Query struct {
	LoginUID    string `json:"login_uid" validate:"required"`
	ChannelID   string `json:"channel_id" validate:"required"`
	ChannelType int    `json:"channel_type"`
	StartSeq    int64  `json:"start_seq"`
	EndSeq      int64  `json:"end_seq"`
	Limit       int    `json:"limit"`
	PullMode    int    `json:"pull_mode"`
}

// Item is one history entry with the payload already decoded for display.
type Item struct {
	MessageID  int64  `json:"message_id"`
	MessageSeq int64  `json:"message_seq"`
	FromUID    string `json:"from_uid"`
	SenderKind string `json:"sender_kind"`
	Timestamp  int64  `json:"timestamp"`
	Content    string `json:"content"`
}

type Service struct {
	gateway Gateway
	logger  *slog.Logger
}

func NewService(log *slog.Logger, gw Gateway) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		gateway: gw,
		logger:  log.With(slog.String("service", "history")),
	}
}

// Load fetches and decodes one page of history. Payloads that fail to decode
// keep the item with an empty content field.
func (s *Service) Load(ctx context.Context, q Query) []Item {
	if q.ChannelType == 0 {
		q.ChannelType = gateway.ChannelTypeVisitor
	}
	if q.Limit <= 0 {
		q.Limit = 50
	}
	messages := s.gateway.SyncMessages(ctx, gateway.SyncRequest{
		LoginUID:    q.LoginUID,
		ChannelID:   q.ChannelID,
		ChannelType: q.ChannelType,
		StartSeq:    q.StartSeq,
		EndSeq:      q.EndSeq,
		Limit:       q.Limit,
		PullMode:    q.PullMode,
	})
	items := make([]Item, 0, len(messages))
	for _, msg := range messages {
		content, err := payload.ExtractContent(msg.Payload)
		if err != nil {
			s.logger.Warn("history payload undecodable",
				slog.Int64("message_id", msg.MessageID),
				slog.Any("error", err))
			content = ""
		}
		items = append(items, Item{
			MessageID:  msg.MessageID,
			MessageSeq: msg.MessageSeq,
			FromUID:    msg.FromUID,
			SenderKind: senderKind(msg.FromUID),
			Timestamp:  msg.Timestamp,
			Content:    content,
		})
	}
	return items
}

func senderKind(uid string) string {
	if uid == identity.SystemUID {
		return "system"
	}
	parsed, err := identity.Parse(uid)
	if err != nil {
		return "unknown"
	}
	return string(parsed.Kind)
}
