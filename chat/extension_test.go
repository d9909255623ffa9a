package chat

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/pserra/chatcache/bus"
	"github.com/pserra/chatcache/cache"
	"github.com/pserra/chatcache/record"
	"github.com/pserra/chatcache/remote"
	"github.com/pserra/chatcache/store"
	"go.uber.org/zap"
)

// fakeRemote is an in-memory remote.API with a configurable fetch delay
// and injectable failures.
type fakeRemote struct {
	mu         sync.Mutex
	records    map[string]*record.Record
	deletedIDs []string
	fetchDelay time.Duration
	saveErr    error
	deleteErr  error
	calls      []string
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{records: make(map[string]*record.Record)}
}

func (f *fakeRemote) Fetch(ctx context.Context, q remote.Query) (*remote.Result, error) {
	if f.fetchDelay > 0 {
		select {
		case <-time.After(f.fetchDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	res := &remote.Result{DeletedIDs: f.deletedIDs}
	for _, rec := range f.records {
		if rec.Type != q.RecordType {
			continue
		}
		if q.ConversationID != "" {
			if cid, _ := rec.Fields["conversation_id"].(string); cid != q.ConversationID {
				continue
			}
		}
		if len(q.IDs) > 0 && !contains(q.IDs, rec.ID) {
			continue
		}
		res.Records = append(res.Records, rec)
	}
	return res, nil
}

func (f *fakeRemote) Save(_ context.Context, rec *record.Record) (*record.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return nil, f.saveErr
	}
	f.records[rec.ID] = rec
	return rec, nil
}

func (f *fakeRemote) Delete(_ context.Context, _, recordID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	if _, ok := f.records[recordID]; !ok {
		return remote.ErrNotFound
	}
	delete(f.records, recordID)
	return nil
}

func (f *fakeRemote) Call(_ context.Context, name string, _ map[string]any) (map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name)
	return map[string]any{}, nil
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func testExtension(t *testing.T) (*Extension, *fakeRemote, *cache.Controller, *bus.Bus) {
	t.Helper()
	st, err := store.OpenInMemory(t.Name())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := st.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = st.Close() })

	b := bus.New()
	c := cache.NewController(st, b, zap.NewNop())
	api := newFakeRemote()
	return New(api, c, b, "user1", zap.NewNop()), api, c, b
}

func serverMessage(id, conversationID, body string, createdAt int64) *record.Record {
	m := &record.Message{
		ID:             id,
		ConversationID: conversationID,
		CreatorID:      "user2",
		Body:           body,
		CreatedAt:      time.UnixMilli(createdAt),
		EditedAt:       time.UnixMilli(createdAt),
	}
	return m.ToRecord()
}

func TestFetchMessagesCacheFirst(t *testing.T) {
	ext, api, c, _ := testExtension(t)

	// Populate the cache with an older snapshot.
	cached := record.Message{
		ID: "m1", ConversationID: "conv1", Body: "cached body",
		SyncStatus: record.SyncStatusSynced,
		CreatedAt:  time.UnixMilli(1000), EditedAt: time.UnixMilli(1000),
	}
	if err := c.SetMessages([]record.Message{cached}); err != nil {
		t.Fatal(err)
	}

	// Slower remote with a fresher body.
	api.records["m1"] = serverMessage("m1", "conv1", "server body", 1000)
	api.fetchDelay = 50 * time.Millisecond

	type phase struct {
		cached bool
		body   string
	}
	var phases []phase
	err := ext.FetchMessages(context.Background(), "conv1", 10, time.Time{}, record.ByCreationTime,
		func(msgs []record.Message, fromCache bool, err error) {
			if err != nil {
				t.Fatal(err)
			}
			if len(msgs) != 1 {
				t.Fatalf("got %d messages", len(msgs))
			}
			phases = append(phases, phase{cached: fromCache, body: msgs[0].Body})
		})
	if err != nil {
		t.Fatal(err)
	}

	if len(phases) != 2 {
		t.Fatalf("completion fired %d times, want 2", len(phases))
	}
	if !phases[0].cached || phases[0].body != "cached body" {
		t.Errorf("first phase = %+v, want cached result first", phases[0])
	}
	if phases[1].cached || phases[1].body != "server body" {
		t.Errorf("second phase = %+v, want authoritative remote result", phases[1])
	}

	// The remote result is now cached.
	got, err := c.FetchMessage("m1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Body != "server body" {
		t.Errorf("cache not reconciled, body = %q", got.Body)
	}
}

func TestFetchMessagesEmptyCacheSinglePhase(t *testing.T) {
	ext, api, _, _ := testExtension(t)
	api.records["m1"] = serverMessage("m1", "conv1", "hello", 1000)

	var fires int
	err := ext.FetchMessages(context.Background(), "conv1", 10, time.Time{}, record.ByCreationTime,
		func(msgs []record.Message, cached bool, err error) {
			fires++
			if cached {
				t.Error("cached phase fired with an empty cache")
			}
		})
	if err != nil {
		t.Fatal(err)
	}
	if fires != 1 {
		t.Errorf("completion fired %d times, want 1", fires)
	}
}

func TestFetchMessagesAppliesDeletions(t *testing.T) {
	ext, api, c, _ := testExtension(t)

	doomed := record.Message{
		ID: "m9", ConversationID: "conv1", Body: "going away",
		SyncStatus: record.SyncStatusSynced,
		CreatedAt:  time.UnixMilli(1000), EditedAt: time.UnixMilli(1000),
	}
	if err := c.SetMessages([]record.Message{doomed}); err != nil {
		t.Fatal(err)
	}
	api.deletedIDs = []string{"m9"}

	err := ext.FetchMessages(context.Background(), "conv1", 10, time.Time{}, record.ByCreationTime,
		func([]record.Message, bool, error) {})
	if err != nil {
		t.Fatal(err)
	}

	got, err := c.FetchMessage("m9")
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Errorf("confirmed-deleted message still cached: %v", got)
	}
}

func TestAddMessageSuccess(t *testing.T) {
	ext, _, c, _ := testExtension(t)

	msg, err := ext.CreateMessage(context.Background(), "conv1", "hello there", nil)
	if err != nil {
		t.Fatal(err)
	}
	if msg.SyncStatus != record.SyncStatusSynced {
		t.Errorf("sync status = %q, want synced", msg.SyncStatus)
	}

	// The add operation completed, so nothing is outstanding.
	ops, err := ext.FetchOutstandingOperations("conv1", record.OperationAdd, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(ops) != 0 {
		t.Errorf("completed operation still outstanding: %v", ops)
	}

	got, err := c.FetchMessage(msg.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.Body != "hello there" {
		t.Errorf("message not cached after send: %v", got)
	}
}

func TestAddMessageFailureRetryCancel(t *testing.T) {
	ext, api, c, _ := testExtension(t)

	sendErr := errors.New("network down")
	api.saveErr = sendErr

	_, err := ext.CreateMessage(context.Background(), "conv1", "doomed", nil)
	if !errors.Is(err, sendErr) {
		t.Fatalf("err = %v, want the remote error", err)
	}

	ops, err := ext.FetchOutstandingOperations("conv1", record.OperationAdd, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(ops) != 1 {
		t.Fatalf("got %d outstanding ops, want 1", len(ops))
	}
	failed := ops[0]
	if failed.Status != record.OperationFailed || failed.Error != "network down" {
		t.Errorf("op = %s/%q, want failed/network down", failed.Status, failed.Error)
	}

	// The optimistic cache row reflects the failure.
	got, err := c.FetchMessage(failed.MessageID)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.SyncStatus != record.SyncStatusFailed {
		t.Errorf("cached message = %v, want failed sync status", got)
	}

	// Retry with the network back: the failed op is replaced and the
	// send goes through.
	api.saveErr = nil
	next, err := ext.RetryOperation(context.Background(), &failed)
	if err != nil {
		t.Fatal(err)
	}
	if next.ID == failed.ID {
		t.Error("retry reused the failed operation record")
	}
	ops, err = ext.FetchOutstandingOperations("conv1", "", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(ops) != 0 {
		t.Errorf("operations outstanding after successful retry: %v", ops)
	}

	// Fail another send, then cancel it.
	api.saveErr = sendErr
	_, err = ext.CreateMessage(context.Background(), "conv1", "also doomed", nil)
	if !errors.Is(err, sendErr) {
		t.Fatal(err)
	}
	ops, err = ext.FetchOutstandingOperations("conv1", record.OperationAdd, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(ops) != 1 {
		t.Fatalf("got %d outstanding ops, want 1", len(ops))
	}
	if err := ext.CancelOperation(&ops[0]); err != nil {
		t.Fatal(err)
	}
	ops, err = ext.FetchOutstandingOperations("conv1", record.OperationAdd, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(ops) != 0 {
		t.Errorf("cancelled operation still outstanding: %v", ops)
	}
}

func TestDeleteMessageCachesMarker(t *testing.T) {
	ext, _, c, _ := testExtension(t)

	msg, err := ext.CreateMessage(context.Background(), "conv1", "to be deleted", nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := ext.DeleteMessage(context.Background(), msg); err != nil {
		t.Fatal(err)
	}

	got, err := c.FetchMessage(msg.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || !got.Deleted {
		t.Errorf("expected soft-delete marker, got %v", got)
	}
}

func TestCreateConversationDistinctReuse(t *testing.T) {
	ext, _, _, _ := testExtension(t)
	ctx := context.Background()

	first, err := ext.CreateDirectConversation(ctx, "user2", "dm", nil)
	if err != nil {
		t.Fatal(err)
	}
	second, err := ext.CreateDirectConversation(ctx, "user2", "dm again", nil)
	if err != nil {
		t.Fatal(err)
	}
	if first.ID != second.ID {
		t.Errorf("distinct conversation not reused: %q vs %q", first.ID, second.ID)
	}

	// A different participant set creates a new conversation.
	third, err := ext.CreateDirectConversation(ctx, "user3", "dm", nil)
	if err != nil {
		t.Fatal(err)
	}
	if third.ID == first.ID {
		t.Error("conversation wrongly reused across participant sets")
	}
}

func TestCreateConversationAdminsAreParticipants(t *testing.T) {
	ext, _, _, _ := testExtension(t)

	conv, err := ext.CreateConversation(context.Background(), []string{"user2", "user3"}, "team", nil)
	if err != nil {
		t.Fatal(err)
	}
	if !contains(conv.AdminIDs, "user1") {
		t.Errorf("creator not admin: %v", conv.AdminIDs)
	}
	for _, admin := range conv.AdminIDs {
		if !contains(conv.ParticipantIDs, admin) {
			t.Errorf("admin %q not in participant set %v", admin, conv.ParticipantIDs)
		}
	}
}

func TestUserChannelPushFeedsCache(t *testing.T) {
	ext, _, c, _ := testExtension(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c.Start(ctx)
	defer c.Stop()

	ext.HandleUserChannelMessage(map[string]any{
		"event":       "create",
		"record_type": "message",
		"record": map[string]any{
			"_id":             "m1",
			"_created_by":     "user2",
			"_created_at":     float64(1000),
			"_updated_at":     float64(1000),
			"conversation_id": "conv1",
			"body":            "pushed",
		},
	})

	deadline := time.After(2 * time.Second)
	for {
		got, err := c.FetchMessage("m1")
		if err != nil {
			t.Fatal(err)
		}
		if got != nil {
			if got.Body != "pushed" {
				t.Errorf("body = %q, want pushed", got.Body)
			}
			return
		}
		select {
		case <-deadline:
			t.Fatal("push payload never reached the cache")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestSubscribeTypingIndicator(t *testing.T) {
	ext, _, _, _ := testExtension(t)

	ch, cancel := ext.SubscribeTypingIndicator("conv1")
	defer cancel()

	ext.HandleUserChannelMessage(map[string]any{
		"conversation_id": "conv2",
		"typing": map[string]any{
			"user9": map[string]any{"event": "begin", "at": float64(1000)},
		},
	})
	ext.HandleUserChannelMessage(map[string]any{
		"conversation_id": "conv1",
		"typing": map[string]any{
			"user2": map[string]any{"event": "begin", "at": float64(2000)},
		},
	})

	select {
	case ind := <-ch:
		if ind.ConversationID != "conv1" {
			t.Errorf("conversation = %q, want conv1 (conv2 must be filtered)", ind.ConversationID)
		}
		if typing := ind.TypingUserIDs(); len(typing) != 1 || typing[0] != "user2" {
			t.Errorf("typing users = %v, want [user2]", typing)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for typing indicator")
	}
}
