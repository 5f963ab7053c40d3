package view

import (
	"reflect"
	"testing"

	"github.com/ferndale/homewatch/internal/entity"
)

func testEntities() []entity.Entity {
	return []entity.Entity{
		{
			ID:    "light.living_room",
			State: "on",
			Attributes: map[string]any{
				"friendly_name": "Living Room Lamp",
				"room":          "living room",
			},
		},
		{
			ID:    "light.kitchen",
			State: "off",
			Attributes: map[string]any{
				"friendly_name": "Kitchen Light",
				"room":          "kitchen",
			},
		},
		{
			ID:    "climate.bedroom",
			State: "heat",
			Attributes: map[string]any{
				"friendly_name": "Bedroom Thermostat",
				"room":          "bedroom",
			},
		},
		{
			ID:         "switch.office",
			State:      "on",
			Attributes: map[string]any{"friendly_name": "Office Switch"},
		},
	}
}

func noFavs() map[string]struct{} { return map[string]struct{}{} }

func TestCompute_DomainFilter(t *testing.T) {
	cfg := Config{
		Filter:  FilterDomains,
		Domains: map[string]struct{}{"climate": {}},
		Group:   GroupNone,
	}

	got := Compute(testEntities(), noFavs(), cfg)
	want := []string{"climate.bedroom"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Compute() = %v, want %v", got, want)
	}
}

func TestCompute_Search(t *testing.T) {
	cfg := Config{Filter: FilterAll, Group: GroupNone, Search: "living"}

	got := Compute(testEntities(), noFavs(), cfg)
	want := []string{"light.living_room"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Compute() = %v, want %v", got, want)
	}
}

func TestCompute_SearchMatchesIDToo(t *testing.T) {
	// "office" appears in the id as well as the friendly name; "switch."
	// appears only in the id.
	cfg := Config{Filter: FilterAll, Group: GroupNone, Search: "switch."}

	got := Compute(testEntities(), noFavs(), cfg)
	want := []string{"switch.office"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Compute() = %v, want %v", got, want)
	}
}

func TestCompute_SearchCaseInsensitive(t *testing.T) {
	cfg := Config{Filter: FilterAll, Group: GroupNone, Search: "LIVING"}

	got := Compute(testEntities(), noFavs(), cfg)
	if len(got) != 1 || got[0] != "light.living_room" {
		t.Errorf("Compute() = %v, want [light.living_room]", got)
	}
}

func TestCompute_FavoritesFilter(t *testing.T) {
	favs := map[string]struct{}{"switch.office": {}}
	cfg := Config{Filter: FilterFavorites, Group: GroupNone}

	got := Compute(testEntities(), favs, cfg)
	want := []string{"switch.office"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Compute() = %v, want %v", got, want)
	}
}

func TestCompute_GroupByType(t *testing.T) {
	cfg := Config{Filter: FilterAll, Group: GroupType}

	got := Compute(testEntities(), noFavs(), cfg)
	// Buckets alphabetical by domain: climate, light, switch.
	// Lights sorted by friendly name: Kitchen Light, Living Room Lamp.
	want := []string{"climate.bedroom", "light.kitchen", "light.living_room", "switch.office"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Compute() = %v, want %v", got, want)
	}
}

func TestCompute_GroupByRoom_UnassignedLast(t *testing.T) {
	cfg := Config{Filter: FilterAll, Group: GroupRoom}

	got := Compute(testEntities(), noFavs(), cfg)
	// Rooms alphabetical: bedroom, kitchen, living room; roomless last.
	want := []string{"climate.bedroom", "light.kitchen", "light.living_room", "switch.office"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Compute() = %v, want %v", got, want)
	}
}

func TestCompute_GroupByState(t *testing.T) {
	cfg := Config{Filter: FilterAll, Group: GroupState}

	got := Compute(testEntities(), noFavs(), cfg)
	// States alphabetical: heat, off, on. Within "on": Living Room Lamp
	// before Office Switch by friendly name.
	want := []string{"climate.bedroom", "light.kitchen", "light.living_room", "switch.office"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Compute() = %v, want %v", got, want)
	}
}

func TestCompute_FavoritesFirst(t *testing.T) {
	favs := map[string]struct{}{"switch.office": {}, "light.kitchen": {}}
	cfg := Config{Filter: FilterAll, Group: GroupFavoritesFirst}

	got := Compute(testEntities(), favs, cfg)
	// Favorites bucket sorted by name, then the rest sorted by name.
	want := []string{"light.kitchen", "switch.office", "climate.bedroom", "light.living_room"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Compute() = %v, want %v", got, want)
	}
}

func TestCompute_TieBrokenByID(t *testing.T) {
	entities := []entity.Entity{
		{ID: "light.b", State: "on", Attributes: map[string]any{"friendly_name": "Lamp"}},
		{ID: "light.a", State: "on", Attributes: map[string]any{"friendly_name": "Lamp"}},
	}
	cfg := Config{Filter: FilterAll, Group: GroupNone}

	got := Compute(entities, noFavs(), cfg)
	want := []string{"light.a", "light.b"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Compute() = %v, want %v", got, want)
	}
}

func TestCompute_Deterministic(t *testing.T) {
	favs := map[string]struct{}{"light.kitchen": {}}

	configs := []Config{
		{Filter: FilterAll, Group: GroupNone},
		{Filter: FilterAll, Group: GroupType},
		{Filter: FilterAll, Group: GroupRoom},
		{Filter: FilterAll, Group: GroupState},
		{Filter: FilterAll, Group: GroupFavoritesFirst},
		{Filter: FilterFavorites, Group: GroupFavoritesFirst},
		{Filter: FilterDomains, Domains: map[string]struct{}{"light": {}}, Group: GroupType},
		{Filter: FilterAll, Group: GroupType, Search: "li"},
	}

	for _, cfg := range configs {
		first := Compute(testEntities(), favs, cfg)
		for i := 0; i < 5; i++ {
			again := Compute(testEntities(), favs, cfg)
			if !reflect.DeepEqual(first, again) {
				t.Errorf("Compute() nondeterministic for %+v: %v then %v", cfg, first, again)
				break
			}
		}
	}
}

func TestCompute_FriendlyNameFallback(t *testing.T) {
	entities := []entity.Entity{
		{ID: "sensor.zz", State: "1"},
		{ID: "sensor.aa", State: "2"},
	}
	cfg := Config{Filter: FilterAll, Group: GroupNone}

	got := Compute(entities, noFavs(), cfg)
	want := []string{"sensor.aa", "sensor.zz"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Compute() = %v, want %v (sorted by id fallback)", got, want)
	}
}

func TestCounts(t *testing.T) {
	favs := map[string]struct{}{"light.kitchen": {}, "climate.bedroom": {}}

	counts := Counts(testEntities(), favs, []string{"light", "climate", "switch"})

	if counts["all"] != 4 {
		t.Errorf("counts[all] = %d, want 4", counts["all"])
	}
	if counts["favorites"] != 2 {
		t.Errorf("counts[favorites] = %d, want 2", counts["favorites"])
	}
	if counts["light"] != 2 {
		t.Errorf("counts[light] = %d, want 2", counts["light"])
	}
	if counts["switch"] != 1 {
		t.Errorf("counts[switch] = %d, want 1", counts["switch"])
	}
}

func TestParseFilter(t *testing.T) {
	tests := []struct {
		spec     string
		wantMode FilterMode
		wantErr  bool
	}{
		{"all", FilterAll, false},
		{"favorites", FilterFavorites, false},
		{"light", FilterDomains, false},
		{"light,switch", FilterDomains, false},
		{"", "", true},
		{"light,,switch", "", true},
	}

	for _, tt := range tests {
		mode, _, err := ParseFilter(tt.spec)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseFilter(%q) expected error", tt.spec)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseFilter(%q) error = %v", tt.spec, err)
			continue
		}
		if mode != tt.wantMode {
			t.Errorf("ParseFilter(%q) mode = %q, want %q", tt.spec, mode, tt.wantMode)
		}
	}
}

func TestParseGroupMode_Unknown(t *testing.T) {
	if _, err := ParseGroupMode("alphabetical-ish"); err == nil {
		t.Error("ParseGroupMode() expected error for unknown mode")
	}
}
