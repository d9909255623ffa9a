package chatcache

import (
	"context"
	"testing"
	"time"

	"github.com/pserra/chatcache/chat"
	"github.com/pserra/chatcache/record"
	"github.com/pserra/chatcache/remote"
	"go.uber.org/fx"
)

type stubRemote struct{}

func (stubRemote) Fetch(context.Context, remote.Query) (*remote.Result, error) {
	return &remote.Result{}, nil
}

func (stubRemote) Save(_ context.Context, rec *record.Record) (*record.Record, error) {
	return rec, nil
}

func (stubRemote) Delete(context.Context, string, string) error { return nil }

func (stubRemote) Call(context.Context, string, map[string]any) (map[string]any, error) {
	return map[string]any{}, nil
}

// TestModuleWiring verifies the fx dependency graph resolves and the
// lifecycle starts and stops cleanly against an in-memory cache.
func TestModuleWiring(t *testing.T) {
	var ext *chat.Extension

	app := fx.New(
		fx.NopLogger,
		fx.Provide(func() remote.API { return stubRemote{} }),
		Module(Params{CacheName: "fxtest", UserID: "user1", InMemory: true}),
		fx.Invoke(func(e *chat.Extension) { ext = e }),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if ext == nil {
		t.Fatal("extension was not provided")
	}
	if ext.UserID() != "user1" {
		t.Errorf("UserID() = %q, want user1", ext.UserID())
	}

	// The wired extension works end to end against the stub remote.
	msg, err := ext.CreateMessage(context.Background(), "conv1", "hello", nil)
	if err != nil {
		t.Fatalf("CreateMessage() error = %v", err)
	}
	if msg.SyncStatus != record.SyncStatusSynced {
		t.Errorf("sync status = %q, want synced", msg.SyncStatus)
	}

	if err := app.Stop(ctx); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
}
