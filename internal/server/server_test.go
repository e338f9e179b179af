package server

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

type registeredHandler struct{ hits int }

func (h *registeredHandler) Register(e *echo.Echo) {
	e.GET("/probe", func(c echo.Context) error {
		h.hits++
		return c.NoContent(http.StatusOK)
	})
}

func TestServerRegistersHandlers(t *testing.T) {
	t.Parallel()

	h := &registeredHandler{}
	srv := New(slog.New(slog.DiscardHandler), ":0", []Handler{h, nil})

	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK || h.hits != 1 {
		t.Fatalf("code=%d hits=%d", rec.Code, h.hits)
	}
}
