package class

import (
	"testing"

	"github.com/kayrt/kay/id"
)

func TestAddGetSwapRemove(t *testing.T) {
	c := NewClass[int](0, 0, 4, 1024)
	a := c.Add(10)
	b := c.Add(20)
	d := c.Add(30)

	if v, ok := c.Get(b); !ok || v == nil || *v != 20 {
		t.Fatalf("Get(b) = %v, %v, want 20, true", v, ok)
	}

	if !c.SwapRemove(a) {
		t.Fatal("SwapRemove(a) should succeed the first time")
	}
	if c.SwapRemove(a) {
		t.Fatal("SwapRemove(a) should fail the second time: a is already dead")
	}
	if c.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", c.Len())
	}
	// b and d must still be addressable after a's removal, even though the
	// swap-remove may have relocated one of them into a's old slot.
	if v, ok := c.Get(b); !ok || *v != 20 {
		t.Fatalf("Get(b) after removal = %v, %v, want 20, true", v, ok)
	}
	if v, ok := c.Get(d); !ok || *v != 30 {
		t.Fatalf("Get(d) after removal = %v, %v, want 30, true", v, ok)
	}
}

func TestVersionIsBumpedOnReuse(t *testing.T) {
	c := NewClass[int](0, 0, 4, 1024)
	a := c.Add(1)
	c.SwapRemove(a)
	b := c.Add(2)

	if b.InstanceID != a.InstanceID {
		t.Fatalf("expected the freed instance id to be recycled: got %d, want %d", b.InstanceID, a.InstanceID)
	}
	if b.Version == a.Version {
		t.Fatal("recycled instance id must carry a new version")
	}
	if _, ok := c.Get(a); ok {
		t.Fatal("the stale RawID must no longer resolve after recycling")
	}
	if _, ok := c.Get(b); !ok {
		t.Fatal("the fresh RawID must resolve")
	}
}

func TestResizeMovesAcrossBinsPreservingID(t *testing.T) {
	c := NewClass[int](0, 0, 2, 1024)
	a := c.Add(1)
	c.Add(2)
	c.Add(3) // opens a second bin (binCap=2)

	if c.Bins() < 2 {
		t.Fatalf("expected at least 2 bins, got %d", c.Bins())
	}
	if err := c.Resize(a, 1); err != nil {
		t.Fatalf("Resize: %v", err)
	}
	v, ok := c.Get(a)
	if !ok || *v != 1 {
		t.Fatalf("Get(a) after Resize = %v, %v, want 1, true", v, ok)
	}
}

func TestVisitAllRepeatSlotRule(t *testing.T) {
	c := NewClass[int](0, 0, 1024, 1024)
	ids := make([]id.RawID, 0, 5)
	for i := 0; i < 5; i++ {
		ids = append(ids, c.Add(i))
	}

	visited := map[uint32]int{}
	// Kill instance index 1 while visiting instance index 0: the
	// swap-remove pulls the *last* live instance (index 4) into slot 1,
	// ahead of the current cursor, so ordinary forward progression alone
	// reaches it.
	killOnce := true
	c.VisitAll(func(instanceID uint32, a *int) bool {
		visited[instanceID]++
		if killOnce && instanceID == ids[0].InstanceID {
			killOnce = false
			c.SwapRemove(ids[1])
		}
		return false
	})

	for i, rid := range ids {
		if i == 1 {
			continue // removed, must not appear
		}
		if visited[rid.InstanceID] != 1 {
			t.Fatalf("instance %d (original index %d) visited %d times, want exactly 1", rid.InstanceID, i, visited[rid.InstanceID])
		}
	}
	if visited[ids[1].InstanceID] != 0 {
		t.Fatalf("removed instance should not have been visited after removal")
	}
}

func TestVisitAllRepeatSlotRuleBackwardKill(t *testing.T) {
	c := NewClass[int](0, 0, 1024, 1024)
	ids := make([]id.RawID, 0, 5)
	for i := 0; i < 5; i++ {
		ids = append(ids, c.Add(i))
	}

	visited := map[uint32]int{}
	killOnce := true
	// Kill an already-visited earlier instance (index 0) while visiting a
	// later one (index 3): the swap-remove pulls the not-yet-visited last
	// instance (index 4) into the now-vacant, already-passed slot 0.
	// Without rewinding the cursor there, index 4 would never be visited.
	c.VisitAll(func(instanceID uint32, a *int) bool {
		visited[instanceID]++
		if killOnce && instanceID == ids[3].InstanceID {
			killOnce = false
			c.SwapRemove(ids[0])
		}
		return false
	})

	for i, rid := range ids {
		if i == 0 {
			continue // removed
		}
		if visited[rid.InstanceID] == 0 {
			t.Fatalf("instance %d (original index %d) was never visited: a live recipient was skipped", rid.InstanceID, i)
		}
	}
	if visited[ids[0].InstanceID] != 1 {
		t.Fatalf("removed instance should only have been visited before its removal, got %d visits", visited[ids[0].InstanceID])
	}
}

func TestIsLiveAndForEachInstanceID(t *testing.T) {
	c := NewClass[int](0, 0, 1024, 1024)
	a := c.Add(1)
	b := c.Add(2)
	if !c.IsLive(a) || !c.IsLive(b) {
		t.Fatal("freshly added instances should be live")
	}
	c.SwapRemove(a)
	if c.IsLive(a) {
		t.Fatal("removed instance should not be live")
	}
	seen := map[uint32]bool{}
	c.ForEachInstanceID(func(iid uint32) { seen[iid] = true })
	if !seen[b.InstanceID] || seen[a.InstanceID] {
		t.Fatalf("ForEachInstanceID saw %v, want only %d", seen, b.InstanceID)
	}
}
