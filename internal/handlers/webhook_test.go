package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

type fakeIngestor struct {
	notifyErr error
	statusErr error
	notified  [][]byte
	statuses  [][]byte
	panicOn   bool
}

func (f *fakeIngestor) IngestNotify(ctx context.Context, body []byte) error {
	if f.panicOn {
		panic("boom")
	}
	f.notified = append(f.notified, body)
	return f.notifyErr
}

func (f *fakeIngestor) IngestOnlineStatus(ctx context.Context, body []byte) error {
	f.statuses = append(f.statuses, body)
	return f.statusErr
}

func postWebhook(t *testing.T, ing Ingestor, event, body string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	NewWebhookHandler(slog.New(slog.DiscardHandler), ing).Register(e)
	req := httptest.NewRequest(http.MethodPost, "/internal/webhook?event="+event, strings.NewReader(body))
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestWebhookRoutesNotifyEvents(t *testing.T) {
	t.Parallel()

	for _, event := range []string{"msg.notify", "msg.offline"} {
		ing := &fakeIngestor{}
		rec := postWebhook(t, ing, event, `[]`)
		if rec.Code != http.StatusOK || rec.Body.String() != "OK" {
			t.Fatalf("%s: code=%d body=%q", event, rec.Code, rec.Body.String())
		}
		if len(ing.notified) != 1 {
			t.Fatalf("%s: notify not invoked", event)
		}
	}
}

func TestWebhookRoutesOnlineStatus(t *testing.T) {
	t.Parallel()

	ing := &fakeIngestor{}
	rec := postWebhook(t, ing, "user.onlinestatus", `["2_5-1-1"]`)
	if rec.Code != http.StatusOK || rec.Body.String() != "OK" {
		t.Fatalf("code=%d body=%q", rec.Code, rec.Body.String())
	}
	if len(ing.statuses) != 1 {
		t.Fatalf("status not invoked")
	}
}

func TestWebhookProcessingErrorStillReturns200(t *testing.T) {
	t.Parallel()

	ing := &fakeIngestor{notifyErr: errors.New("decode notify batch")}
	rec := postWebhook(t, ing, "msg.notify", `not json`)
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d", rec.Code)
	}
	if !strings.HasPrefix(rec.Body.String(), "ERROR: ") {
		t.Fatalf("body = %q", rec.Body.String())
	}
}

func TestWebhookUnknownEventIsDropped(t *testing.T) {
	t.Parallel()

	ing := &fakeIngestor{}
	rec := postWebhook(t, ing, "msg.mystery", `[]`)
	if rec.Code != http.StatusOK || rec.Body.String() != "OK" {
		t.Fatalf("code=%d body=%q", rec.Code, rec.Body.String())
	}
	if len(ing.notified) != 0 || len(ing.statuses) != 0 {
		t.Fatalf("unknown event must not reach the ingestor")
	}
}

func TestWebhookPanicNeverEscapes(t *testing.T) {
	t.Parallel()

	ing := &fakeIngestor{panicOn: true}
	rec := postWebhook(t, ing, "msg.notify", `[]`)
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d", rec.Code)
	}
	if !strings.HasPrefix(rec.Body.String(), "ERROR: ") {
		t.Fatalf("body = %q", rec.Body.String())
	}
}
