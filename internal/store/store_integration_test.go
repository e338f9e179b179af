package store

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := strings.TrimSpace(os.Getenv("SUPPORT_TEST_POSTGRES_DSN"))
	if dsn == "" {
		t.Skip("set SUPPORT_TEST_POSTGRES_DSN to run Postgres integration tests")
	}
	pool, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(pool.Close)
	for _, table := range []string{"messages", "conversations", "conversation_summaries", "project_agents", "system_flags", "users"} {
		if _, err := pool.Exec(context.Background(), "TRUNCATE "+table+" CASCADE"); err != nil {
			t.Fatalf("truncate %s: %v", table, err)
		}
	}
	return New(slog.New(slog.DiscardHandler), pool)
}

func TestApplySummaryEventSeqGating(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	now := time.Now()
	sum, err := s.ApplySummaryEvent(ctx, 5, "hello", now, 3)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if sum.UnreadCount != 1 || sum.LastMessageSeq != 3 {
		t.Fatalf("first apply = %+v", sum)
	}

	// Replay of the same sequence refreshes the preview but not the counter.
	sum, err = s.ApplySummaryEvent(ctx, 5, "hello again", now, 3)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if sum.UnreadCount != 1 || sum.LastMessageContent != "hello again" {
		t.Fatalf("replay = %+v", sum)
	}

	// A stale sequence still overwrites the preview but keeps seq and count.
	sum, err = s.ApplySummaryEvent(ctx, 5, "older", now, 2)
	if err != nil {
		t.Fatalf("stale: %v", err)
	}
	if sum.UnreadCount != 1 || sum.LastMessageSeq != 3 || sum.LastMessageContent != "older" {
		t.Fatalf("stale = %+v", sum)
	}

	sum, err = s.ApplySummaryEvent(ctx, 5, "newer", now, 4)
	if err != nil {
		t.Fatalf("advance: %v", err)
	}
	if sum.UnreadCount != 2 || sum.LastMessageSeq != 4 {
		t.Fatalf("advance = %+v", sum)
	}

	if err := s.ResetUnread(ctx, 5); err != nil {
		t.Fatalf("reset: %v", err)
	}
	sum, err = s.GetSummary(ctx, 5)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if sum.UnreadCount != 0 || sum.LastMessageSeq != 4 {
		t.Fatalf("after reset = %+v", sum)
	}
}

func TestRecordMessageRollsConversationForward(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, err := s.EnsureUser(ctx, 5, 2, "Visitor Five"); err != nil {
		t.Fatalf("ensure user: %v", err)
	}
	msg, err := s.RecordMessage(ctx, Message{
		ProjectID:  2,
		SenderType: SenderTypeUser,
		SenderID:   5,
		MsgType:    "text",
		Content:    "first",
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if msg.ConversationID == 0 {
		t.Fatalf("conversation not assigned")
	}

	conv, err := s.EnsureConversation(ctx, 2, 5)
	if err != nil {
		t.Fatalf("ensure conversation: %v", err)
	}
	if conv.ID != msg.ConversationID || conv.LastMessageContent != "first" {
		t.Fatalf("conversation = %+v", conv)
	}

	messages, err := s.ListMessages(ctx, conv.ID, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(messages) != 1 || messages[0].Content != "first" {
		t.Fatalf("messages = %+v", messages)
	}
}

func TestClaimFlagIsOneShot(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	first, err := s.ClaimFlag(ctx, "system_sender_registered")
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	second, err := s.ClaimFlag(ctx, "system_sender_registered")
	if err != nil {
		t.Fatalf("reclaim: %v", err)
	}
	if !first || second {
		t.Fatalf("claims = %v, %v", first, second)
	}
}
