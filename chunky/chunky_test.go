package chunky

import (
	"bytes"
	"testing"
)

func TestQueueAppendGrowsAndReports(t *testing.T) {
	q := NewQueue(8)
	q.Append([]byte("hello"))
	q.Append([]byte("worldworld"))
	if q.FrameCount() != 2 {
		t.Fatalf("FrameCount() = %d, want 2", q.FrameCount())
	}
	if !bytes.Equal(q.Bytes(), []byte("helloworldworld")) {
		t.Fatalf("Bytes() = %q", q.Bytes())
	}
	q.Reset()
	if q.FrameCount() != 0 || q.Len() != 0 {
		t.Fatal("Reset() should clear frame count and length")
	}
}

func TestMemStorageRoundTrip(t *testing.T) {
	s := NewMemStorage()
	ident := IdentOf("class:Counter/bin:0")
	if _, ok, _ := s.Load(ident); ok {
		t.Fatal("Load on empty storage should report not-found")
	}
	if err := s.Store(ident, []byte("state")); err != nil {
		t.Fatal(err)
	}
	data, ok, err := s.Load(ident)
	if err != nil || !ok || string(data) != "state" {
		t.Fatalf("Load() = %q, %v, %v", data, ok, err)
	}
	if err := s.Delete(ident); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := s.Load(ident); ok {
		t.Fatal("Load after Delete should report not-found")
	}
}

func TestIdentOfIsStable(t *testing.T) {
	a := IdentOf("same-name")
	b := IdentOf("same-name")
	if a != b {
		t.Fatal("IdentOf should be deterministic for the same input")
	}
	if IdentOf("different") == a {
		t.Fatal("IdentOf should differ for different inputs")
	}
}
