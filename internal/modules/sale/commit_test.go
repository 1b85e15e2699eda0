package sale

import (
	"testing"

	"github.com/google/uuid"

	"github.com/georgemunganga/printa-pos/internal/modules/inventory"
)

func TestLockOrder(t *testing.T) {
	t.Parallel()

	a := uuid.MustParse("0a000000-0000-0000-0000-000000000000")
	b := uuid.MustParse("0b000000-0000-0000-0000-000000000000")
	c := uuid.MustParse("0c000000-0000-0000-0000-000000000000")
	loc1 := uuid.MustParse("10000000-0000-0000-0000-000000000000")
	loc2 := uuid.MustParse("20000000-0000-0000-0000-000000000000")

	cart := []*inventory.Reservation{
		{ProductID: c, LocationID: loc1, Line: 0},
		{ProductID: a, LocationID: loc2, Line: 1},
		{ProductID: b, LocationID: loc1, Line: 2},
		{ProductID: a, LocationID: loc1, Line: 3},
	}
	// The same records in a different cart order lock identically.
	reversed := []*inventory.Reservation{cart[3], cart[2], cart[1], cart[0]}

	want := []int{3, 1, 2, 0}
	for name, holds := range map[string][]*inventory.Reservation{"cart": cart, "reversed": reversed} {
		got := lockOrder(holds)
		if len(got) != len(want) {
			t.Fatalf("%s: %d holds, want %d", name, len(got), len(want))
		}
		for i, h := range got {
			if h.Line != want[i] {
				t.Fatalf("%s: position %d is line %d, want %d", name, i, h.Line, want[i])
			}
		}
	}
	if cart[0].Line != 0 || cart[3].Line != 3 {
		t.Fatalf("lockOrder reordered its input")
	}
}
