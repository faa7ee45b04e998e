package audioio

import (
	"sync"
	"testing"
	"time"
)

func TestCallbackSinkForwardsChunksAndSignalsStreamEnd(t *testing.T) {
	chunks := make(chan AudioChunk, 4)
	var mu sync.Mutex
	var got []AudioChunk
	streamEnded := make(chan struct{})

	sink := NewCallbackSink(chunks, func() bool { return false },
		func(c AudioChunk) { mu.Lock(); got = append(got, c); mu.Unlock() },
		func() { close(streamEnded) },
		nil,
	)
	sink.Start()

	chunks <- AudioChunk{Data: []byte{1, 2, 3}}
	chunks <- AudioChunk{Data: []byte{4, 5}}
	chunks <- EndOfStream
	close(chunks)
	sink.Join()

	select {
	case <-streamEnded:
	default:
		t.Fatal("expected onStreamEnd to fire for the end-of-stream sentinel")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 2 {
		t.Fatalf("forwarded %d chunks, want 2", len(got))
	}
}

func TestCallbackSinkDropsChunksWhileInterrupted(t *testing.T) {
	chunks := make(chan AudioChunk, 4)
	interrupted := true
	var forwarded int

	sink := NewCallbackSink(chunks, func() bool { return interrupted },
		func(AudioChunk) { forwarded++ },
		func() {},
		nil,
	)
	sink.Start()

	chunks <- AudioChunk{Data: []byte{1}}
	close(chunks)
	sink.Join()

	if forwarded != 0 {
		t.Fatalf("forwarded %d chunks while interrupted, want 0", forwarded)
	}
}

func TestCallbackSinkJoinBlocksUntilChannelCloses(t *testing.T) {
	chunks := make(chan AudioChunk)
	sink := NewCallbackSink(chunks, func() bool { return false }, func(AudioChunk) {}, func() {}, nil)
	sink.Start()

	joined := make(chan struct{})
	go func() {
		sink.Join()
		close(joined)
	}()

	select {
	case <-joined:
		t.Fatal("Join() returned before the chunk channel was closed")
	case <-time.After(20 * time.Millisecond):
	}

	close(chunks)
	select {
	case <-joined:
	case <-time.After(time.Second):
		t.Fatal("Join() did not return after the chunk channel closed")
	}
}
