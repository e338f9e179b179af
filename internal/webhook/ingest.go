// Package webhook ingests event batches pushed by the gateway and reconciles
// the locally cached conversation summaries.
package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/wincLei/customer-service-sub000/internal/events"
	"github.com/wincLei/customer-service-sub000/internal/gateway"
	"github.com/wincLei/customer-service-sub000/internal/identity"
	"github.com/wincLei/customer-service-sub000/internal/payload"
	"github.com/wincLei/customer-service-sub000/internal/store"
)

// Store is the persistence surface the ingestor needs.
type Store interface {
	GetUser(ctx context.Context, id int64) (store.User, error)
	ApplySummaryEvent(ctx context.Context, userID int64, content string, at time.Time, seq int64) (store.Summary, error)
	TouchLastActive(ctx context.Context, userID int64) error
}

// Broadcaster pushes updates to connected dashboard clients.
type Broadcaster interface {
	Broadcast(eventType string, data any)
}

type Ingestor struct {
	store  Store
	hub    Broadcaster
	logger *slog.Logger
}

func NewIngestor(log *slog.Logger, st Store, hub Broadcaster) *Ingestor {
	if log == nil {
		log = slog.Default()
	}
	return &Ingestor{
		store:  st,
		hub:    hub,
		logger: log.With(slog.String("service", "webhook")),
	}
}

// IngestNotify processes one message-notify batch. A batch that cannot be
// decoded at all is an error; a bad item inside a decodable batch is skipped
// and the rest of the batch still lands.
func (i *Ingestor) IngestNotify(ctx context.Context, body []byte) error {
	var batch []NotifyEvent
	if err := json.Unmarshal(body, &batch); err != nil {
		return fmt.Errorf("decode notify batch: %w", err)
	}
	for _, ev := range batch {
		i.reconcileNotify(ctx, ev)
	}
	return nil
}

// reconcileNotify folds a single event into the owning visitor's summary.
// Every skip path logs and returns; nothing here may abort the batch.
func (i *Ingestor) reconcileNotify(ctx context.Context, ev NotifyEvent) {
	if ev.ChannelType != gateway.ChannelTypeVisitor {
		return
	}

	uid, err := identity.Parse(ev.FromUID)
	if err != nil {
		i.logger.Warn("skip notify item with unparseable sender",
			slog.String("from_uid", ev.FromUID))
		return
	}
	if uid.Kind != identity.KindVisitor {
		// Agent traffic through the visitor channel never marks it unread.
		return
	}

	user, err := i.store.GetUser(ctx, uid.UserID)
	if err != nil {
		i.logger.Warn("skip notify item for unknown user",
			slog.Int64("user_id", uid.UserID),
			slog.Any("error", err))
		return
	}
	if user.ProjectID != uid.ProjectID {
		i.logger.Warn("skip notify item with project mismatch",
			slog.Int64("user_id", uid.UserID),
			slog.Int64("uid_project", uid.ProjectID),
			slog.Int64("user_project", user.ProjectID))
		return
	}

	content, err := payload.ExtractContent(ev.Payload)
	if err != nil {
		i.logger.Warn("notify payload undecodable, recording empty preview",
			slog.Int64("user_id", uid.UserID),
			slog.Any("error", err))
		content = ""
	}

	summary, err := i.store.ApplySummaryEvent(ctx, uid.UserID, content, time.Unix(ev.Timestamp, 0), ev.MessageSeq)
	if err != nil {
		i.logger.Error("apply summary failed",
			slog.Int64("user_id", uid.UserID),
			slog.Int64("seq", ev.MessageSeq),
			slog.Any("error", err))
		return
	}

	if i.hub != nil {
		i.hub.Broadcast(events.TypeSummary, SummaryUpdate{
			UserID:             summary.UserID,
			ProjectID:          uid.ProjectID,
			LastMessageContent: summary.LastMessageContent,
			LastMessageSeq:     summary.LastMessageSeq,
			UnreadCount:        summary.UnreadCount,
		})
	}
}
