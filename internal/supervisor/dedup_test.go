package supervisor

import "testing"

func TestSeenRingDedupes(t *testing.T) {
	ring, err := newSeenRing(4, 2)
	if err != nil {
		t.Fatal(err)
	}

	if ring.seenBefore(100, "ABCD") {
		t.Fatal("first sighting should not be seen")
	}
	if !ring.seenBefore(100, "ABCD") {
		t.Fatal("second sighting of the same (ledger,hash) must be flagged seen")
	}
	if ring.seenBefore(100, "EFGH") {
		t.Fatal("a different hash in the same ledger must not collide")
	}
	if ring.seenBefore(101, "ABCD") {
		t.Fatal("the same hash in a different ledger must not collide")
	}
}
