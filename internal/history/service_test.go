package history

import (
	"context"
	"encoding/base64"
	"log/slog"
	"testing"

	"github.com/wincLei/customer-service-sub000/internal/gateway"
)

type fakeGateway struct {
	lastReq  gateway.SyncRequest
	messages []gateway.Message
}

func (f *fakeGateway) SyncMessages(ctx context.Context, req gateway.SyncRequest) []gateway.Message {
	f.lastReq = req
	return f.messages
}

func b64(s string) string { return base64.StdEncoding.EncodeToString([]byte(s)) }

func TestLoadDecodesPayloadsAndClassifiesSenders(t *testing.T) {
	t.Parallel()

	gw := &fakeGateway{messages: []gateway.Message{
		{MessageID: 1, MessageSeq: 1, FromUID: "2_5", Timestamp: 100, Payload: b64(`{"content":"hi"}`)},
		{MessageID: 2, MessageSeq: 2, FromUID: "agent_7", Timestamp: 101, Payload: b64(`plain reply`)},
		{MessageID: 3, MessageSeq: 3, FromUID: "system", Timestamp: 102, Payload: "%%%not-base64%%%"},
	}}
	svc := NewService(slog.New(slog.DiscardHandler), gw)

	items := svc.Load(context.Background(), Query{LoginUID: "2_5", ChannelID: "2_5"})
	if len(items) != 3 {
		t.Fatalf("items = %+v", items)
	}
	if items[0].Content != "hi" || items[0].SenderKind != "visitor" {
		t.Fatalf("item 0 = %+v", items[0])
	}
	if items[1].Content != "plain reply" || items[1].SenderKind != "agent" {
		t.Fatalf("item 1 = %+v", items[1])
	}
	// Undecodable payload keeps the item with empty content.
	if items[2].Content != "" || items[2].SenderKind != "system" {
		t.Fatalf("item 2 = %+v", items[2])
	}
}

func TestLoadAppliesQueryDefaults(t *testing.T) {
	t.Parallel()

	gw := &fakeGateway{}
	svc := NewService(slog.New(slog.DiscardHandler), gw)

	svc.Load(context.Background(), Query{LoginUID: "2_5", ChannelID: "2_5"})
	if gw.lastReq.ChannelType != gateway.ChannelTypeVisitor {
		t.Fatalf("channel type = %d", gw.lastReq.ChannelType)
	}
	if gw.lastReq.Limit != 50 {
		t.Fatalf("limit = %d", gw.lastReq.Limit)
	}
}
