package booking

import (
	"reflect"
	"testing"
)

func TestExpandWindowFullDay(t *testing.T) {
	slots := ExpandWindow(TimeOfDay{8, 0}, TimeOfDay{17, 0}, 30)

	if len(slots) != 18 {
		t.Fatalf("slot count = %d, want 18", len(slots))
	}
	if slots[0] != (SlotTime{Start: "08:00", End: "08:30"}) {
		t.Errorf("first slot = %+v, want 08:00-08:30", slots[0])
	}
	if slots[17] != (SlotTime{Start: "16:30", End: "17:00"}) {
		t.Errorf("last slot = %+v, want 16:30-17:00", slots[17])
	}
}

// The last slot starts before the window end even when its own end runs
// past the boundary. Published inventory relies on this.
func TestExpandWindowLastSlotOvershootsBoundary(t *testing.T) {
	slots := ExpandWindow(TimeOfDay{8, 0}, TimeOfDay{8, 50}, 30)

	want := []SlotTime{
		{Start: "08:00", End: "08:30"},
		{Start: "08:30", End: "09:00"},
	}
	if !reflect.DeepEqual(slots, want) {
		t.Fatalf("slots = %+v, want %+v", slots, want)
	}
}

func TestExpandWindowDeterministic(t *testing.T) {
	a := ExpandWindow(TimeOfDay{9, 15}, TimeOfDay{12, 0}, 45)
	b := ExpandWindow(TimeOfDay{9, 15}, TimeOfDay{12, 0}, 45)

	if !reflect.DeepEqual(a, b) {
		t.Fatalf("two identical calls diverged: %+v vs %+v", a, b)
	}
}

func TestExpandWindowEmptyAndDegenerate(t *testing.T) {
	if got := ExpandWindow(TimeOfDay{10, 0}, TimeOfDay{10, 0}, 30); got != nil {
		t.Errorf("zero-width window = %+v, want none", got)
	}
	if got := ExpandWindow(TimeOfDay{11, 0}, TimeOfDay{10, 0}, 30); got != nil {
		t.Errorf("inverted window = %+v, want none", got)
	}
	if got := ExpandWindow(TimeOfDay{8, 0}, TimeOfDay{9, 0}, 0); got != nil {
		t.Errorf("zero interval = %+v, want none", got)
	}
}

func TestExpandWindowZeroPadsLabels(t *testing.T) {
	slots := ExpandWindow(TimeOfDay{7, 5}, TimeOfDay{7, 35}, 15)

	want := []SlotTime{
		{Start: "07:05", End: "07:20"},
		{Start: "07:20", End: "07:35"},
	}
	if !reflect.DeepEqual(slots, want) {
		t.Fatalf("slots = %+v, want %+v", slots, want)
	}
}

func TestParseTimeOfDay(t *testing.T) {
	got, err := ParseTimeOfDay("08:30")
	if err != nil {
		t.Fatalf("ParseTimeOfDay error: %v", err)
	}
	if got != (TimeOfDay{8, 30}) {
		t.Fatalf("parsed = %+v, want {8 30}", got)
	}

	for _, bad := range []string{"", "8h30", "25:00", "10:75"} {
		if _, err := ParseTimeOfDay(bad); err == nil {
			t.Errorf("ParseTimeOfDay(%q) = nil error, want failure", bad)
		}
	}
}

// Trailing characters after the minutes must fail instead of being
// truncated to a valid time.
func TestParseTimeOfDayRejectsTrailingInput(t *testing.T) {
	for _, bad := range []string{"08:30:00", "08:30xyz", "08:30 ", " 08:30", "+8:30", "08:-5"} {
		if _, err := ParseTimeOfDay(bad); err == nil {
			t.Errorf("ParseTimeOfDay(%q) = nil error, want failure", bad)
		}
	}

	got, err := ParseTimeOfDay("8:5")
	if err != nil {
		t.Fatalf("ParseTimeOfDay(\"8:5\") error: %v", err)
	}
	if got != (TimeOfDay{8, 5}) {
		t.Fatalf("parsed = %+v, want {8 5}", got)
	}
}
