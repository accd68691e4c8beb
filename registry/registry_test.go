package registry

import "testing"

// Test Case 1: registering the same (kind, id) twice is a conflict.
func TestRegister_DuplicateConflict(t *testing.T) {
	r, err := NewTyped[string]("")
	if err != nil {
		t.Fatalf("NewTyped: %v", err)
	}
	if err := r.Register("map", "m1", "", "actor-1"); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if err := r.Register("map", "m1", "", "actor-2"); err == nil {
		t.Fatal("expected a conflict error on duplicate registration")
	}
}

// Test Case 2: a version constraint that the host version doesn't satisfy
// is rejected.
func TestRegister_IncompatibleVersionRejected(t *testing.T) {
	r, err := NewTyped[string]("1.5.0")
	if err != nil {
		t.Fatalf("NewTyped: %v", err)
	}
	if err := r.Register("map", "m1", ">= 2.0.0", "actor-1"); err == nil {
		t.Fatal("expected a version-incompatibility error")
	}
	if _, ok := r.Get("map", "m1"); ok {
		t.Fatal("a rejected registration should not be stored")
	}
}

// Test Case 3: Get/List/All/Unregister round-trip.
func TestRegistry_RoundTrip(t *testing.T) {
	r, err := NewTyped[int]("1.0.0")
	if err != nil {
		t.Fatalf("NewTyped: %v", err)
	}
	if err := r.Register("map", "m1", ">= 1.0.0", 1); err != nil {
		t.Fatalf("register m1: %v", err)
	}
	if err := r.Register("map", "m2", "", 2); err != nil {
		t.Fatalf("register m2: %v", err)
	}

	if handle, ok := r.Get("map", "m1"); !ok || handle != 1 {
		t.Errorf("Get(map, m1) = %v, %v, want 1, true", handle, ok)
	}

	ids := r.List("map")
	if len(ids) != 2 || ids[0] != "m1" || ids[1] != "m2" {
		t.Errorf("List(map) = %v, want [m1 m2]", ids)
	}

	all := r.All("map")
	if len(all) != 2 || all["m1"] != 1 || all["m2"] != 2 {
		t.Errorf("All(map) = %v, want {m1:1 m2:2}", all)
	}

	r.Unregister("map", "m1")
	if _, ok := r.Get("map", "m1"); ok {
		t.Error("m1 should be gone after Unregister")
	}
}
