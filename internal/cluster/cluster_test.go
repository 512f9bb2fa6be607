package cluster

import "testing"

func TestHashTagEquality(t *testing.T) {
	if KeyHashSlot("{foo}bar") != KeyHashSlot("foo") {
		t.Fatal("expected hash-tagged key to slot identically to the tag alone")
	}
}

func TestHashTagSharedAcrossKeys(t *testing.T) {
	a := KeyHashSlot("{user1000}.profile")
	b := KeyHashSlot("{user1000}.following")
	if a != b {
		t.Fatalf("expected shared hash tag to produce the same slot, got %d vs %d", a, b)
	}
}

func TestExtractHashTagEmptyBraces(t *testing.T) {
	if ExtractHashTag("{}foo") != "{}foo" {
		t.Fatal("expected empty braces to fall back to the whole key")
	}
}

func TestDisabledClusterIsAlwaysLocal(t *testing.T) {
	s := NewState("127.0.0.1", 6379)
	if !s.IsKeyLocal("anything") {
		t.Fatal("expected disabled cluster to treat every key as local")
	}
	if err := s.Check([]string{"a", "b"}); err != nil {
		t.Fatalf("expected disabled cluster to allow cross-slot keys, got %v", err)
	}
}

func TestCrossSlotRejected(t *testing.T) {
	s := NewState("127.0.0.1", 6379)
	s.Enable()
	s.AddSlots(allSlots())
	if err := s.Check([]string{"a", "b"}); err == nil {
		t.Fatal("expected CROSSSLOT for keys hashing to different slots")
	}
}

func TestClusterDownWhenUnowned(t *testing.T) {
	s := NewState("127.0.0.1", 6379)
	s.Enable()
	if err := s.Check([]string{"onlykey"}); err == nil {
		t.Fatal("expected CLUSTERDOWN when no node owns the slot")
	}
}

func TestOwnedSlotPassesCheck(t *testing.T) {
	s := NewState("127.0.0.1", 6379)
	s.Enable()
	s.AddSlots(allSlots())
	if err := s.Check([]string{"onlykey"}); err != nil {
		t.Fatalf("expected locally owned key to pass, got %v", err)
	}
}

func allSlots() []uint16 {
	out := make([]uint16, SlotCount)
	for i := range out {
		out[i] = uint16(i)
	}
	return out
}
