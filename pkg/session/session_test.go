package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/tank-voice/assistant/pkg/audioio"
	"github.com/tank-voice/assistant/pkg/config"
	"github.com/tank-voice/assistant/pkg/logging"
	"github.com/tank-voice/assistant/pkg/runtime"
)

// blockingSource is a minimal audioio.Source for tests that don't exercise
// real audio plumbing.
type blockingSource struct{}

func (blockingSource) Start()                     {}
func (blockingSource) Join()                       {}
func (blockingSource) Push(audioio.AudioFrame)     {}
func (blockingSource) Stop()                       {}

func blockingFactory() Factory {
	return func(ctx context.Context, rc *runtime.Context, sessionID string) Built {
		return Built{
			Source: blockingSource{},
			Workers: []func(context.Context) error{
				func(ctx context.Context) error { <-ctx.Done(); return nil },
			},
		}
	}
}

func TestRegistryGetOrCreateReplacesOldSessionByDefault(t *testing.T) {
	r := NewRegistry(config.ReplaceOldSession, 4, nil)
	factory := blockingFactory()

	first, err := r.GetOrCreate(context.Background(), "s1", factory)
	if err != nil {
		t.Fatalf("GetOrCreate() error: %v", err)
	}

	second, err := r.GetOrCreate(context.Background(), "s1", factory)
	if err != nil {
		t.Fatalf("second GetOrCreate() error: %v", err)
	}
	if first == second {
		t.Fatal("expected a fresh Session on replace, got the same pointer back")
	}
	if r.Len() != 1 {
		t.Fatalf("Len() = %d, want 1 (the old session was torn down)", r.Len())
	}

	r.CloseAll()
}

func TestRegistryGetOrCreateRejectsDuplicateUnderPolicy(t *testing.T) {
	r := NewRegistry(config.RejectDuplicate, 4, nil)
	factory := blockingFactory()

	if _, err := r.GetOrCreate(context.Background(), "s1", factory); err != nil {
		t.Fatalf("first GetOrCreate() error: %v", err)
	}

	_, err := r.GetOrCreate(context.Background(), "s1", factory)
	if err == nil {
		t.Fatal("expected ErrDuplicateSession under RejectDuplicate policy")
	}
	if _, ok := err.(*ErrDuplicateSession); !ok {
		t.Fatalf("err = %T, want *ErrDuplicateSession", err)
	}
	if r.Len() != 1 {
		t.Fatalf("Len() = %d, want 1 (the rejected duplicate must not replace it)", r.Len())
	}

	r.CloseAll()
}

func TestRegistryCloseTearsDownAndRemoves(t *testing.T) {
	r := NewRegistry(config.ReplaceOldSession, 4, nil)
	if _, err := r.GetOrCreate(context.Background(), "s1", blockingFactory()); err != nil {
		t.Fatalf("GetOrCreate() error: %v", err)
	}

	r.Close("s1")

	if _, ok := r.Get("s1"); ok {
		t.Fatal("expected the session to be gone after Close")
	}
	if r.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", r.Len())
	}
}

func TestRegistryCloseAllTearsDownEverySession(t *testing.T) {
	r := NewRegistry(config.ReplaceOldSession, 4, nil)
	for _, id := range []string{"a", "b", "c"} {
		if _, err := r.GetOrCreate(context.Background(), id, blockingFactory()); err != nil {
			t.Fatalf("GetOrCreate(%q) error: %v", id, err)
		}
	}
	r.CloseAll()
	if r.Len() != 0 {
		t.Fatalf("Len() = %d, want 0 after CloseAll", r.Len())
	}
}

// TestRegistryGetOrCreateIsLinearized exercises spec.md §8 property 1:
// concurrent creates for the same id are serialized under the replace
// policy, and exactly one session must survive.
func TestRegistryGetOrCreateIsLinearized(t *testing.T) {
	r := NewRegistry(config.ReplaceOldSession, 4, logging.NoOpLogger{})
	const n = 20

	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			r.GetOrCreate(context.Background(), "shared", blockingFactory())
		}()
	}
	wg.Wait()

	if r.Len() != 1 {
		t.Fatalf("Len() = %d, want exactly 1 surviving session after concurrent creates", r.Len())
	}
	r.CloseAll()
}

func TestSessionWaitReturnsAfterClose(t *testing.T) {
	r := NewRegistry(config.ReplaceOldSession, 4, nil)
	sess, err := r.GetOrCreate(context.Background(), "s1", blockingFactory())
	if err != nil {
		t.Fatalf("GetOrCreate() error: %v", err)
	}

	waited := make(chan struct{})
	go func() {
		sess.Wait()
		close(waited)
	}()

	select {
	case <-waited:
		t.Fatal("Wait() returned before the session was closed")
	case <-time.After(20 * time.Millisecond):
	}

	r.Close("s1")

	select {
	case <-waited:
	case <-time.After(time.Second):
		t.Fatal("Wait() did not return after Close")
	}
}
