package audioio

import "testing"

func int16At(b []byte, i int) int16 {
	return int16(b[2*i]) | int16(b[2*i+1])<<8
}

func constantPCM16(n int, value int16) []byte {
	out := make([]byte, n*2)
	for i := 0; i < n; i++ {
		out[2*i] = byte(value)
		out[2*i+1] = byte(value >> 8)
	}
	return out
}

func TestFadeInRampsFromZero(t *testing.T) {
	data := constantPCM16(100, 30000)
	out := fadeIn(data, 16000) // fadeSamples(16000) = 16000*5/1000 = 80

	if int16At(out, 0) != 0 {
		t.Fatalf("first sample = %d, want 0 (ramp starts silent)", int16At(out, 0))
	}
	if int16At(out, 99) != 30000 {
		t.Fatalf("last sample = %d, want full amplitude 30000 (past the ramp)", int16At(out, 99))
	}
	mid := int16At(out, 40)
	if mid <= 0 || mid >= 30000 {
		t.Fatalf("mid-ramp sample = %d, want strictly between 0 and 30000", mid)
	}
}

func TestFadeOutTailRampsToZero(t *testing.T) {
	buf := constantPCM16(100, 30000)
	fadeOutTail(buf, 16000)

	if int16At(buf, 0) != 30000 {
		t.Fatalf("first sample = %d, want untouched full amplitude", int16At(buf, 0))
	}
	if int16At(buf, 99) != 0 {
		t.Fatalf("last sample = %d, want 0 (ramp ends silent)", int16At(buf, 99))
	}
}

func TestPlaybackSinkFadesInFirstChunkOfUtterance(t *testing.T) {
	chunks := make(chan AudioChunk, 4)
	sink := NewPlaybackSink(chunks, func() bool { return false }, 16000, nil)
	sink.Start()

	chunks <- AudioChunk{Data: constantPCM16(100, 30000)}
	chunks <- EndOfStream
	close(chunks)
	sink.Join()

	out := sink.Pull(200)
	if len(out) != 200 {
		t.Fatalf("Pull returned %d bytes, want 200 (100 int16 samples)", len(out))
	}
	if int16At(out, 0) != 0 {
		t.Fatalf("first sample = %d, want 0 from the fade-in", int16At(out, 0))
	}
}

func TestPlaybackSinkDropsAllChunksWhileInterrupted(t *testing.T) {
	chunks := make(chan AudioChunk, 4)
	sink := NewPlaybackSink(chunks, func() bool { return true }, 16000, nil)
	sink.Start()

	chunks <- AudioChunk{Data: constantPCM16(50, 10000)}
	chunks <- AudioChunk{Data: constantPCM16(50, 10000)}
	close(chunks)
	sink.Join()

	out := sink.Pull(1000)
	if len(out) != 0 {
		t.Fatalf("buffered bytes while interrupt stays set = %d, want 0", len(out))
	}
}

func TestPlaybackSinkPullDrainsPartial(t *testing.T) {
	chunks := make(chan AudioChunk, 4)
	sink := NewPlaybackSink(chunks, func() bool { return false }, 16000, nil)
	sink.Start()

	chunks <- AudioChunk{Data: constantPCM16(10, 100)}
	close(chunks)
	sink.Join()

	first := sink.Pull(10)
	if len(first) != 10 {
		t.Fatalf("first Pull(10) returned %d bytes, want 10", len(first))
	}
	second := sink.Pull(20)
	if len(second) != 10 {
		t.Fatalf("second Pull(20) returned %d bytes, want the remaining 10", len(second))
	}
}
