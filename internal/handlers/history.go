package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/wincLei/customer-service-sub000/internal/history"
)

// HistoryLoader fetches message history from the gateway.
type HistoryLoader interface {
	Load(ctx context.Context, q history.Query) []history.Item
}

// HistoryHandler serves on-demand history loading ("load more" in the UI).
type HistoryHandler struct {
	loader HistoryLoader
	logger *slog.Logger
}

func NewHistoryHandler(log *slog.Logger, loader HistoryLoader) *HistoryHandler {
	return &HistoryHandler{
		loader: loader,
		logger: log.With(slog.String("handler", "history")),
	}
}

func (h *HistoryHandler) Register(e *echo.Echo) {
	e.POST("/api/history/sync", h.Sync)
}

func (h *HistoryHandler) Sync(c echo.Context) error {
	var q history.Query
	if err := c.Bind(&q); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if q.LoginUID == "" || q.ChannelID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "login_uid and channel_id are required")
	}
	items := h.loader.Load(c.Request().Context(), q)
	return c.JSON(http.StatusOK, map[string]any{"messages": items})
}
