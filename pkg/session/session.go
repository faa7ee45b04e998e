// Package session implements the session registry (spec.md §4.1):
// get-or-create, close, close-all, linearized by a single mutex, with
// worker startup inside the critical section so a concurrent duplicate
// create can never observe a half-started session.
//
// Grounded on original_source/.../core/runtime.py's session map and
// .../api/router.py's connect/disconnect handlers, combined with the
// pkg/orchestrator package for the Go idiom of one struct per
// live conversation. Worker supervision uses golang.org/x/sync/errgroup,
// the same dependency the pack's iamprashant-voice-ai websocket executor
// uses to supervise a connection's concurrent goroutines.
package session

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/tank-voice/assistant/pkg/audioio"
	"github.com/tank-voice/assistant/pkg/config"
	"github.com/tank-voice/assistant/pkg/logging"
	"github.com/tank-voice/assistant/pkg/runtime"
)

// Built is what a Factory hands back: the worker goroutines to supervise
// plus the ingest source the transport adapter pushes captured frames
// into (spec.md §4.2).
type Built struct {
	Workers []func(context.Context) error
	Source  audioio.Source
}

// Factory builds the worker goroutines and ingest source for one session.
// Implementations close over the session's runtime.Context and providers;
// each returned worker func must return when its ctx is cancelled.
type Factory func(ctx context.Context, rc *runtime.Context, sessionID string) Built

// Session is one live conversation: its runtime context plus the
// supervising errgroup for its worker goroutines.
type Session struct {
	ID       string
	RC       *runtime.Context
	Source   audioio.Source
	cancel   context.CancelFunc
	group    *errgroup.Group
	groupCtx context.Context
}

// Wait blocks until every worker goroutine has returned (or errored).
func (s *Session) Wait() error {
	return s.group.Wait()
}

// Registry tracks live sessions, keyed by client-assigned session id.
type Registry struct {
	mu                 sync.Mutex
	sessions           map[string]*Session
	policy             config.DuplicateSessionPolicy
	audioChunkQueueSize int
	log                logging.Logger
}

func NewRegistry(policy config.DuplicateSessionPolicy, audioChunkQueueSize int, log logging.Logger) *Registry {
	if log == nil {
		log = logging.NoOpLogger{}
	}
	return &Registry{sessions: make(map[string]*Session), policy: policy, audioChunkQueueSize: audioChunkQueueSize, log: log}
}

// ErrDuplicateSession is returned by GetOrCreate under RejectDuplicate
// policy when id already names a live session.
type ErrDuplicateSession struct{ ID string }

func (e *ErrDuplicateSession) Error() string {
	return fmt.Sprintf("session %q already active", e.ID)
}

// GetOrCreate returns the existing session for id, or builds a fresh one
// via factory (spec.md §4.1: "duplicate session id" policy governs what
// happens when id is already live).
//
// The entire decision plus worker startup runs under the registry mutex:
// spec.md's property 1 ("session registry operations are linearizable")
// requires that a second GetOrCreate for the same id can never observe a
// partially-started session from the first.
func (r *Registry) GetOrCreate(parent context.Context, id string, factory Factory) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.sessions[id]; ok {
		switch r.policy {
		case config.RejectDuplicate:
			return nil, &ErrDuplicateSession{ID: id}
		default: // ReplaceOldSession
			r.closeLocked(id)
		}
	}

	ctx, cancel := context.WithCancel(parent)
	rc := runtime.New(r.audioChunkQueueSize)
	group, groupCtx := errgroup.WithContext(ctx)

	built := factory(groupCtx, rc, id)
	sess := &Session{ID: id, RC: rc, Source: built.Source, cancel: cancel, group: group, groupCtx: groupCtx}

	for _, worker := range built.Workers {
		worker := worker
		group.Go(func() error { return worker(groupCtx) })
	}

	r.sessions[id] = sess
	r.log.Info("session started", "session_id", id)
	return sess, nil
}

// Get returns the live session for id, if any.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Close tears down the session for id, if live. Blocking: waits for every
// worker goroutine to return.
func (r *Registry) Close(id string) {
	r.mu.Lock()
	r.closeLocked(id)
	r.mu.Unlock()
}

func (r *Registry) closeLocked(id string) {
	sess, ok := r.sessions[id]
	if !ok {
		return
	}
	delete(r.sessions, id)
	sess.cancel()
	if err := sess.group.Wait(); err != nil {
		r.log.Warn("session worker exited with error", "session_id", id, "error", err)
	}
	r.log.Info("session closed", "session_id", id)
}

// CloseAll tears down every live session (spec.md §4.1 "close_all": server
// shutdown).
func (r *Registry) CloseAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id := range r.sessions {
		r.closeLocked(id)
	}
}

// Len reports the number of live sessions, for tests and metrics.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
