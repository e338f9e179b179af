package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/wincLei/customer-service-sub000/internal/outbound"
	"github.com/wincLei/customer-service-sub000/internal/store"
)

// Sender runs the outbound pipeline.
type Sender interface {
	Send(ctx context.Context, req outbound.SendRequest) (outbound.SendResult, error)
}

// SummaryStore is the summary/history slice of the store used by the console.
type SummaryStore interface {
	GetSummary(ctx context.Context, userID int64) (store.Summary, error)
	ResetUnread(ctx context.Context, userID int64) error
	ListMessages(ctx context.Context, conversationID int64, limit int) ([]store.Message, error)
}

// MessagesHandler serves the console-facing messaging endpoints.
type MessagesHandler struct {
	sender Sender
	store  SummaryStore
	logger *slog.Logger
}

func NewMessagesHandler(log *slog.Logger, sender Sender, st SummaryStore) *MessagesHandler {
	return &MessagesHandler{
		sender: sender,
		store:  st,
		logger: log.With(slog.String("handler", "messages")),
	}
}

func (h *MessagesHandler) Register(e *echo.Echo) {
	e.POST("/api/messages", h.Send)
	e.GET("/api/conversations/:conversation_id/messages", h.ListMessages)
	e.GET("/api/summaries/:user_id", h.GetSummary)
	e.POST("/api/summaries/:user_id/read", h.MarkRead)
}

// Send accepts an application-level send request. Delivery failure is not an
// HTTP error: the local record succeeded and the response carries the
// delivered flag.
func (h *MessagesHandler) Send(c echo.Context) error {
	var req outbound.SendRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	result, err := h.sender.Send(c.Request().Context(), req)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "conversation not found")
		}
		h.logger.Error("send failed", slog.Any("error", err))
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, result)
}

func (h *MessagesHandler) ListMessages(c echo.Context) error {
	conversationID, err := pathID(c, "conversation_id")
	if err != nil {
		return err
	}
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	messages, err := h.store.ListMessages(c.Request().Context(), conversationID, limit)
	if err != nil {
		h.logger.Error("list messages failed", slog.Any("error", err))
		return echo.NewHTTPError(http.StatusInternalServerError, "list messages failed")
	}
	return c.JSON(http.StatusOK, map[string]any{"messages": messages})
}

func (h *MessagesHandler) GetSummary(c echo.Context) error {
	userID, err := pathID(c, "user_id")
	if err != nil {
		return err
	}
	summary, err := h.store.GetSummary(c.Request().Context(), userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "summary not found")
		}
		h.logger.Error("get summary failed", slog.Any("error", err))
		return echo.NewHTTPError(http.StatusInternalServerError, "get summary failed")
	}
	return c.JSON(http.StatusOK, summary)
}

// MarkRead zeroes the unread counter after the agent opens the conversation.
func (h *MessagesHandler) MarkRead(c echo.Context) error {
	userID, err := pathID(c, "user_id")
	if err != nil {
		return err
	}
	if err := h.store.ResetUnread(c.Request().Context(), userID); err != nil {
		h.logger.Error("reset unread failed", slog.Any("error", err))
		return echo.NewHTTPError(http.StatusInternalServerError, "reset unread failed")
	}
	return c.NoContent(http.StatusNoContent)
}

func pathID(c echo.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, name+" must be a positive integer")
	}
	return id, nil
}
