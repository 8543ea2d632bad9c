package treg

import (
	"reflect"
	"testing"
)

type fooType struct{}
type barType struct{}

func TestGetOrRegisterIsStableAndDense(t *testing.T) {
	r := New(64)
	fooT := reflect.TypeOf(fooType{})
	barT := reflect.TypeOf(barType{})

	id1, err := r.GetOrRegister(fooT)
	if err != nil {
		t.Fatal(err)
	}
	if id1 != 0 {
		t.Fatalf("first registered type should get id 0, got %d", id1)
	}
	id2, err := r.GetOrRegister(barT)
	if err != nil {
		t.Fatal(err)
	}
	if id2 != 1 {
		t.Fatalf("second registered type should get id 1, got %d", id2)
	}
	again, err := r.GetOrRegister(fooT)
	if err != nil {
		t.Fatal(err)
	}
	if again != id1 {
		t.Fatalf("re-registering should return the same id: got %d, want %d", again, id1)
	}
	if r.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", r.Len())
	}
	if r.Name(id1) == "<unknown>" {
		t.Fatal("Name() should resolve a registered id")
	}
}

func TestRegistryEnforcesCap(t *testing.T) {
	r := New(1)
	if _, err := r.GetOrRegister(reflect.TypeOf(fooType{})); err != nil {
		t.Fatal(err)
	}
	if _, err := r.GetOrRegister(reflect.TypeOf(barType{})); err == nil {
		t.Fatal("expected registering past capacity to fail")
	}
}

func TestRegisterDummyReservesASlot(t *testing.T) {
	r := New(2)
	dummyID, err := r.RegisterDummy("placeholder")
	if err != nil {
		t.Fatal(err)
	}
	realID, err := r.GetOrRegister(reflect.TypeOf(fooType{}))
	if err != nil {
		t.Fatal(err)
	}
	if dummyID == realID {
		t.Fatal("dummy and real registration should not collide")
	}
}
