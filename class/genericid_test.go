package class

import (
	"testing"

	"github.com/kayrt/kay/id"
)

func TestGenericIDString(t *testing.T) {
	raw := id.New(3, 7, 1, 0)

	g := NewGenericID(raw, "Counter")
	if got, want := g.String(), "Counter("+raw.String()+")"; got != want {
		t.Fatalf("String() = %q, want %q", got, want)
	}
	if g.AsRaw() != raw {
		t.Fatalf("AsRaw() = %v, want %v", g.AsRaw(), raw)
	}

	anon := NewGenericID(raw, "")
	if got, want := anon.String(), raw.String(); got != want {
		t.Fatalf("String() with empty kind = %q, want %q", got, want)
	}
}

func TestExternalGetInvalidate(t *testing.T) {
	e := NewExternal(42)

	v, ok := e.Get()
	if !ok || v != 42 {
		t.Fatalf("Get() = %v, %v, want 42, true", v, ok)
	}

	e.Invalidate()
	if _, ok := e.Get(); ok {
		t.Fatal("Get() after Invalidate() should report false")
	}

	zero, ok := e.Get()
	if ok || zero != 0 {
		t.Fatalf("Get() after Invalidate() = %v, %v, want 0, false", zero, ok)
	}
}
