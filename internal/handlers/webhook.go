package handlers

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/wincLei/customer-service-sub000/internal/webhook"
)

// Ingestor is the webhook processing surface.
type Ingestor interface {
	IngestNotify(ctx context.Context, body []byte) error
	IngestOnlineStatus(ctx context.Context, body []byte) error
}

// WebhookHandler receives event batches pushed by the gateway. The contract
// with the gateway is a 200 response no matter what happened internally;
// failures are reported in the body as "ERROR: <reason>" so the gateway
// never retry-storms a poison batch.
type WebhookHandler struct {
	ingestor Ingestor
	logger   *slog.Logger
}

func NewWebhookHandler(log *slog.Logger, ingestor Ingestor) *WebhookHandler {
	return &WebhookHandler{
		ingestor: ingestor,
		logger:   log.With(slog.String("handler", "webhook")),
	}
}

func (h *WebhookHandler) Register(e *echo.Echo) {
	e.POST("/internal/webhook", h.Receive)
}

func (h *WebhookHandler) Receive(c echo.Context) error {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("webhook processing panicked", slog.Any("panic", r))
			_ = c.String(http.StatusOK, fmt.Sprintf("ERROR: %v", r))
		}
	}()

	event := c.QueryParam("event")
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		h.logger.Error("read webhook body failed", slog.Any("error", err))
		return c.String(http.StatusOK, "ERROR: read body")
	}

	ctx := c.Request().Context()
	switch event {
	case webhook.EventMsgNotify, webhook.EventMsgOffline:
		err = h.ingestor.IngestNotify(ctx, body)
	case webhook.EventOnlineStatus:
		err = h.ingestor.IngestOnlineStatus(ctx, body)
	default:
		h.logger.Warn("drop webhook with unknown event type", slog.String("event", event))
		return c.String(http.StatusOK, "OK")
	}
	if err != nil {
		h.logger.Error("webhook batch failed",
			slog.String("event", event),
			slog.Any("error", err))
		return c.String(http.StatusOK, "ERROR: "+err.Error())
	}
	return c.String(http.StatusOK, "OK")
}
