package body

import "testing"

func TestPartsOrderIsStable(t *testing.T) {
	parts := Parts()
	if len(parts) != PartCount() {
		t.Fatalf("unexpected part count: %d", len(parts))
	}
	want := []string{
		"body",
		"leg0-upper", "leg0-lower",
		"leg1-upper", "leg1-lower",
		"leg2-upper", "leg2-lower",
		"leg3-upper", "leg3-lower",
	}
	for i, part := range parts {
		if part.String() != want[i] {
			t.Fatalf("part %d: want %q got %q", i, want[i], part.String())
		}
	}
}

func TestPartIDString(t *testing.T) {
	if PartBody.String() != "body" {
		t.Fatalf("unexpected root name: %q", PartBody.String())
	}
	if PartID(-1).String() != "unknown" || PartID(99).String() != "unknown" {
		t.Fatal("out-of-range ids should stringify as unknown")
	}
}

func TestIsRoot(t *testing.T) {
	if !PartBody.IsRoot() {
		t.Fatal("body should be root")
	}
	for _, part := range Parts()[1:] {
		if part.IsRoot() {
			t.Fatalf("%s should not be root", part)
		}
	}
}

func TestLegGroups(t *testing.T) {
	uppers := UpperLegs()
	lowers := LowerLegs()
	if len(uppers) != 4 || len(lowers) != 4 {
		t.Fatalf("expected 4 legs per group, got %d/%d", len(uppers), len(lowers))
	}
	for leg := 0; leg < 4; leg++ {
		if lowers[leg] != uppers[leg]+1 {
			t.Fatalf("leg %d: lower %d should follow upper %d", leg, lowers[leg], uppers[leg])
		}
	}
}
