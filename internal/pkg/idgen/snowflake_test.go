package idgen

import "testing"

func TestGenerateIDUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := GenerateID()
		if id == "" {
			t.Fatal("expected a non-empty id")
		}
		if seen[id] {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = true
	}
}

func TestInitializeIsIdempotent(t *testing.T) {
	if err := Initialize(1); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	// Later calls are no-ops, not errors.
	if err := Initialize(2); err != nil {
		t.Fatalf("second Initialize: %v", err)
	}
	if GenerateID() == "" {
		t.Error("expected generator to stay usable")
	}
}
