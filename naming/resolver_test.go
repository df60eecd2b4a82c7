package naming

import (
	"regexp"
	"testing"

	"github.com/justapithecus/gridcap/types"
)

var safeName = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

func TestSanitize(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"minecraft:dirt", "dirt"},
		{"minecraft:stone_bricks", "stone_bricks"},
		{"mod:sub:thing", "thing"},
		{"plain", "plain"},
		{"page3-slot12", "page3_slot12"},
		{"ns:with.dots/and-dash", "with_dots_and_dash"},
		{"ns:ÜBER", "_BER"},
		{"minecraft:", Unnamed},
		{"", Unnamed},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got := Sanitize(tt.raw)
			if got != tt.want {
				t.Errorf("Sanitize(%q) = %q, want %q", tt.raw, got, tt.want)
			}
			if !safeName.MatchString(got) {
				t.Errorf("Sanitize(%q) = %q contains unsafe characters", tt.raw, got)
			}
		})
	}
}

func TestResolve_Scenario(t *testing.T) {
	names := types.SlotNameMap{0: "minecraft:dirt", 3: "minecraft:stone"}

	want := []string{"dirt", "page0_slot1", "page0_slot2", "stone"}
	for slot, w := range want {
		if got := Resolve(slot, names, 0); got != w {
			t.Errorf("Resolve(%d) = %q, want %q", slot, got, w)
		}
	}
}

func TestResolve_Deterministic(t *testing.T) {
	names := types.SlotNameMap{4: "minecraft:oak_log"}
	first := Resolve(4, names, 7)
	for range 10 {
		if got := Resolve(4, names, 7); got != first {
			t.Fatalf("Resolve not deterministic: %q vs %q", got, first)
		}
	}
}

func TestResolve_SyntheticDistinct(t *testing.T) {
	seen := make(map[string][2]int)
	for page := 0; page < 15; page++ {
		for slot := 0; slot < 60; slot++ {
			name := Resolve(slot, nil, page)
			if prev, dup := seen[name]; dup {
				t.Fatalf("synthetic name %q shared by %v and (%d,%d)", name, prev, page, slot)
			}
			seen[name] = [2]int{page, slot}
			if !safeName.MatchString(name) {
				t.Fatalf("synthetic name %q unsafe", name)
			}
		}
	}
}

func TestResolve_CollisionNotDeduplicated(t *testing.T) {
	names := types.SlotNameMap{0: "a:dup", 1: "b:dup"}
	if Resolve(0, names, 0) != Resolve(1, names, 0) {
		t.Error("colliding source names should resolve to the same tile name")
	}
}
