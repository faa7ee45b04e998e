package audioio

import "testing"

func TestQueueSourcePushDropsOnFullQueue(t *testing.T) {
	s := NewQueueSource(2, nil)
	s.Push(AudioFrame{SampleRate: 16000})
	s.Push(AudioFrame{SampleRate: 16000})
	s.Push(AudioFrame{SampleRate: 16000}) // queue full: must drop, not block

	n := 0
	for range s.Frames() {
		n++
		if n == 2 {
			break
		}
	}
	if n != 2 {
		t.Fatalf("drained %d frames, want exactly the 2 that fit the bound", n)
	}
}

func TestQueueSourcePushAfterStopIsNoOp(t *testing.T) {
	s := NewQueueSource(4, nil)
	s.Stop()
	s.Push(AudioFrame{SampleRate: 16000}) // must not panic on a closed channel

	if _, ok := <-s.Frames(); ok {
		t.Fatal("expected the frame channel to be closed with nothing pushed after Stop")
	}
}

func TestQueueSourceStopIsIdempotent(t *testing.T) {
	s := NewQueueSource(4, nil)
	s.Stop()
	s.Stop() // must not double-close the channel
}
