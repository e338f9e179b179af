package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/wincLei/customer-service-sub000/internal/identity"
	"github.com/wincLei/customer-service-sub000/internal/store"
)

// TokenGateway issues gateway connection tokens.
type TokenGateway interface {
	IssueToken(ctx context.Context, uid, displayName string, deviceFlag int) (string, bool)
}

// UserStore creates visitor rows as a side effect of token issuance.
type UserStore interface {
	EnsureUser(ctx context.Context, id, projectID int64, name string) (store.User, error)
}

// TokenHandler issues the connection token a client needs before opening a
// socket to the gateway.
type TokenHandler struct {
	gateway TokenGateway
	users   UserStore
	logger  *slog.Logger
}

func NewTokenHandler(log *slog.Logger, gw TokenGateway, users UserStore) *TokenHandler {
	return &TokenHandler{
		gateway: gw,
		users:   users,
		logger:  log.With(slog.String("handler", "token")),
	}
}

func (h *TokenHandler) Register(e *echo.Echo) {
	e.POST("/api/im/token", h.Issue)
}

type tokenRequest struct {
	ProjectID  int64  `json:"project_id"`
	UserID     int64  `json:"user_id"`
	AgentID    int64  `json:"agent_id"`
	Name       string `json:"name"`
	DeviceFlag int    `json:"device_flag"`
}

type tokenResponse struct {
	UID   string `json:"uid"`
	Token string `json:"token"`
}

func (h *TokenHandler) Issue(c echo.Context) error {
	var req tokenRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	var uid string
	switch {
	case req.AgentID > 0:
		uid = identity.AgentUID(req.AgentID)
	case req.ProjectID > 0 && req.UserID > 0:
		uid = identity.VisitorUID(req.ProjectID, req.UserID)
		if _, err := h.users.EnsureUser(c.Request().Context(), req.UserID, req.ProjectID, req.Name); err != nil {
			h.logger.Error("ensure visitor failed",
				slog.Int64("user_id", req.UserID),
				slog.Any("error", err))
			return echo.NewHTTPError(http.StatusInternalServerError, "create visitor failed")
		}
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "either agent_id or project_id and user_id are required")
	}

	deviceFlag := req.DeviceFlag
	if deviceFlag <= 0 {
		deviceFlag = 1
	}
	token, ok := h.gateway.IssueToken(c.Request().Context(), uid, req.Name, deviceFlag)
	if !ok {
		return echo.NewHTTPError(http.StatusBadGateway, "gateway token issuance failed")
	}
	return c.JSON(http.StatusOK, tokenResponse{UID: uid, Token: token})
}
