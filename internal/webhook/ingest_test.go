package webhook

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/wincLei/customer-service-sub000/internal/store"
)

type fakeStore struct {
	mu        sync.Mutex
	users     map[int64]store.User
	summaries map[int64]store.Summary
	touched   []int64
}

func newFakeStore(users ...store.User) *fakeStore {
	f := &fakeStore{
		users:     make(map[int64]store.User),
		summaries: make(map[int64]store.Summary),
	}
	for _, u := range users {
		f.users[u.ID] = u
	}
	return f
}

func (f *fakeStore) GetUser(ctx context.Context, id int64) (store.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return store.User{}, store.ErrNotFound
	}
	return u, nil
}

func (f *fakeStore) ApplySummaryEvent(ctx context.Context, userID int64, content string, at time.Time, seq int64) (store.Summary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sum, ok := f.summaries[userID]
	if !ok {
		sum = store.Summary{UserID: userID}
	}
	sum.LastMessageContent = content
	sum.LastMessageTime = &at
	if seq > sum.LastMessageSeq {
		sum.LastMessageSeq = seq
		sum.UnreadCount++
	}
	sum.UpdatedAt = time.Now()
	f.summaries[userID] = sum
	return sum, nil
}

func (f *fakeStore) TouchLastActive(ctx context.Context, userID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.touched = append(f.touched, userID)
	return nil
}

type fakeHub struct {
	mu     sync.Mutex
	events []string
}

func (f *fakeHub) Broadcast(eventType string, data any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, eventType)
}

func newTestIngestor(st *fakeStore) (*Ingestor, *fakeHub) {
	hub := &fakeHub{}
	return NewIngestor(slog.New(slog.DiscardHandler), st, hub), hub
}

func notifyBody(t *testing.T, items ...NotifyEvent) []byte {
	t.Helper()
	body, err := json.Marshal(items)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return body
}

func textPayload(content string) string {
	return base64.StdEncoding.EncodeToString([]byte(fmt.Sprintf(`{"content":%q}`, content)))
}

func visitorEvent(seq int64, content string) NotifyEvent {
	return NotifyEvent{
		FromUID:     "2_5",
		ChannelID:   "2_5",
		ChannelType: 10,
		MessageSeq:  seq,
		Timestamp:   1700000000,
		Payload:     textPayload(content),
	}
}

func TestIngestNotifyCreatesSummary(t *testing.T) {
	t.Parallel()

	st := newFakeStore(store.User{ID: 5, ProjectID: 2})
	ing, hub := newTestIngestor(st)

	if err := ing.IngestNotify(context.Background(), notifyBody(t, visitorEvent(1, "hello"))); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	sum := st.summaries[5]
	if sum.UnreadCount != 1 || sum.LastMessageSeq != 1 || sum.LastMessageContent != "hello" {
		t.Fatalf("summary = %+v", sum)
	}
	if len(hub.events) != 1 {
		t.Fatalf("events = %v", hub.events)
	}
}

func TestIngestNotifySameSeqIsIdempotent(t *testing.T) {
	t.Parallel()

	st := newFakeStore(store.User{ID: 5, ProjectID: 2})
	ing, _ := newTestIngestor(st)
	ctx := context.Background()

	if err := ing.IngestNotify(ctx, notifyBody(t, visitorEvent(1, "hello"))); err != nil {
		t.Fatalf("first: %v", err)
	}
	if err := ing.IngestNotify(ctx, notifyBody(t, visitorEvent(1, "hello edited"))); err != nil {
		t.Fatalf("second: %v", err)
	}
	sum := st.summaries[5]
	if sum.UnreadCount != 1 || sum.LastMessageSeq != 1 {
		t.Fatalf("summary = %+v", sum)
	}
	if sum.LastMessageContent != "hello edited" {
		t.Fatalf("content should track the latest event: %+v", sum)
	}
}

func TestIngestNotifyOutOfOrderCountsOnce(t *testing.T) {
	t.Parallel()

	st := newFakeStore(store.User{ID: 5, ProjectID: 2})
	ing, _ := newTestIngestor(st)
	ctx := context.Background()

	if err := ing.IngestNotify(ctx, notifyBody(t, visitorEvent(5, "newest"))); err != nil {
		t.Fatalf("seq 5: %v", err)
	}
	if err := ing.IngestNotify(ctx, notifyBody(t, visitorEvent(3, "stale"))); err != nil {
		t.Fatalf("seq 3: %v", err)
	}
	sum := st.summaries[5]
	if sum.UnreadCount != 1 || sum.LastMessageSeq != 5 {
		t.Fatalf("summary = %+v", sum)
	}
}

func TestIngestNotifyMalformedItemDoesNotAbortBatch(t *testing.T) {
	t.Parallel()

	st := newFakeStore(store.User{ID: 5, ProjectID: 2}, store.User{ID: 6, ProjectID: 2})
	ing, _ := newTestIngestor(st)

	batch := notifyBody(t,
		visitorEvent(1, "first"),
		NotifyEvent{FromUID: "not-a-uid", ChannelID: "2_5", ChannelType: 10, MessageSeq: 2, Payload: textPayload("bad")},
		NotifyEvent{FromUID: "2_6", ChannelID: "2_6", ChannelType: 10, MessageSeq: 1, Payload: textPayload("third")},
	)
	if err := ing.IngestNotify(context.Background(), batch); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if st.summaries[5].UnreadCount != 1 || st.summaries[6].UnreadCount != 1 {
		t.Fatalf("summaries = %+v", st.summaries)
	}
}

func TestIngestNotifySkipsNonVisitorTraffic(t *testing.T) {
	t.Parallel()

	st := newFakeStore(store.User{ID: 5, ProjectID: 2})
	ing, hub := newTestIngestor(st)

	batch := notifyBody(t,
		// Wrong channel type.
		NotifyEvent{FromUID: "2_5", ChannelID: "2_5", ChannelType: 1, MessageSeq: 1, Payload: textPayload("x")},
		// Agent sender on the visitor channel.
		NotifyEvent{FromUID: "agent_7", ChannelID: "2_5", ChannelType: 10, MessageSeq: 2, Payload: textPayload("y")},
		// An agent-prefixed UID is never a visitor, even with a numeric pair suffix.
		NotifyEvent{FromUID: "agent_2_5", ChannelID: "2_5", ChannelType: 10, MessageSeq: 3, Payload: textPayload("z")},
	)
	if err := ing.IngestNotify(context.Background(), batch); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if len(st.summaries) != 0 || len(hub.events) != 0 {
		t.Fatalf("summaries = %+v events = %v", st.summaries, hub.events)
	}
}

func TestIngestNotifyProjectMismatchIsSkipped(t *testing.T) {
	t.Parallel()

	st := newFakeStore(store.User{ID: 5, ProjectID: 9})
	ing, _ := newTestIngestor(st)

	if err := ing.IngestNotify(context.Background(), notifyBody(t, visitorEvent(1, "hello"))); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if len(st.summaries) != 0 {
		t.Fatalf("summaries = %+v", st.summaries)
	}
}

func TestIngestNotifyUndecodablePayloadStillReconciles(t *testing.T) {
	t.Parallel()

	st := newFakeStore(store.User{ID: 5, ProjectID: 2})
	ing, _ := newTestIngestor(st)

	ev := visitorEvent(1, "ignored")
	ev.Payload = "%%%not-base64%%%"
	if err := ing.IngestNotify(context.Background(), notifyBody(t, ev)); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	sum := st.summaries[5]
	if sum.UnreadCount != 1 || sum.LastMessageContent != "" {
		t.Fatalf("summary = %+v", sum)
	}
}

func TestIngestNotifyRejectsNonArrayBody(t *testing.T) {
	t.Parallel()

	st := newFakeStore()
	ing, _ := newTestIngestor(st)

	if err := ing.IngestNotify(context.Background(), []byte(`{"events":[]}`)); err == nil {
		t.Fatalf("expected decode error for object wrapper")
	}
}

func TestIngestOnlineStatus(t *testing.T) {
	t.Parallel()

	st := newFakeStore(store.User{ID: 5, ProjectID: 2})
	ing, hub := newTestIngestor(st)

	lines := []string{
		"2_5-1-1-conn1-1-1",  // visitor online
		"2_5-1-0-conn1-0-0",  // visitor offline still counts as liveness
		"agent_7-1-1-c-1-1",  // agent lines are ignored
		"garbage",            // too few fields
		"nope_x-1-1-c-1-1",   // unparseable visitor uid
	}
	body, err := json.Marshal(lines)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := ing.IngestOnlineStatus(context.Background(), body); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if len(st.touched) != 2 || st.touched[0] != 5 || st.touched[1] != 5 {
		t.Fatalf("touched = %v", st.touched)
	}
	if len(hub.events) != 2 {
		t.Fatalf("events = %v", hub.events)
	}
}
