package class

import (
	"bytes"
	"testing"

	"github.com/kayrt/kay/id"
)

func TestInboxPutDrainRoundTrip(t *testing.T) {
	ib := NewInbox(1024)
	sender := id.New(1, 2, 3, 4)
	ib.Put(7, sender, []byte("hello"))
	ib.Put(9, sender, []byte("world"))

	frames, err := ib.Drain()
	if err != nil {
		t.Fatal(err)
	}
	if len(frames) != 2 {
		t.Fatalf("Drain() returned %d frames, want 2", len(frames))
	}
	if frames[0].MsgTypeID != 7 || !bytes.Equal(frames[0].Payload, []byte("hello")) {
		t.Fatalf("frame 0 = %+v", frames[0])
	}
	if frames[1].From != sender {
		t.Fatalf("frame 1 From = %+v, want %+v", frames[1].From, sender)
	}
	if ib.Len() != 0 {
		t.Fatal("Drain should reset the inbox")
	}
}

func TestInboxDrainBoundsToStartingFrameCount(t *testing.T) {
	ib := NewInbox(1024)
	ib.Put(1, id.RawID{}, []byte("a"))
	// PutRaw after Drain has captured the starting snapshot must not be
	// visible to that Drain call; simulate this by draining immediately
	// (no concurrent put is possible in this single-goroutine test, so we
	// instead verify draining twice in a row: the second call sees only
	// what was put after the first).
	frames, err := ib.Drain()
	if err != nil {
		t.Fatal(err)
	}
	if len(frames) != 1 {
		t.Fatalf("first Drain() = %d frames, want 1", len(frames))
	}
	frames, err = ib.Drain()
	if err != nil {
		t.Fatal(err)
	}
	if len(frames) != 0 {
		t.Fatalf("second Drain() = %d frames, want 0", len(frames))
	}
}

func TestPutRawMatchesEncodeFrame(t *testing.T) {
	sender := id.New(5, 6, 7, 8)
	frame := EncodeFrame(3, sender, []byte("payload"))

	ib := NewInbox(1024)
	ib.PutRaw(frame)
	frames, err := ib.Drain()
	if err != nil {
		t.Fatal(err)
	}
	if len(frames) != 1 || frames[0].MsgTypeID != 3 || frames[0].From != sender || !bytes.Equal(frames[0].Payload, []byte("payload")) {
		t.Fatalf("PutRaw round trip mismatch: %+v", frames)
	}
}

func TestDecodeFrameHeader(t *testing.T) {
	sender := id.New(1, 1, 1, 1)
	frame := EncodeFrame(42, sender, []byte("x"))
	msgType, from, payload, err := DecodeFrameHeader(frame)
	if err != nil {
		t.Fatal(err)
	}
	if msgType != 42 || from != sender || string(payload) != "x" {
		t.Fatalf("DecodeFrameHeader mismatch: %d %+v %q", msgType, from, payload)
	}
}
