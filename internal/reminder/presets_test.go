package reminder

import (
	"testing"
	"time"
)

func TestParsePreset(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want Preset
		ok   bool
	}{
		{"later", PresetLater, true},
		{"Tomorrow", PresetTomorrow, true},
		{" evening ", PresetEvening, true},
		{"WEEKEND", PresetWeekend, true},
		{"monday", PresetMonday, true},
		{"", "", false},
		{"nope", "", false},
		{"30m", "", false},
	}
	for _, tc := range tests {
		got, ok := ParsePreset(tc.in)
		if got != tc.want || ok != tc.ok {
			t.Errorf("ParsePreset(%q) = (%q, %v), want (%q, %v)", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestResolvePreset(t *testing.T) {
	t.Parallel()
	r := testResolver(t)

	tests := []struct {
		name   string
		preset Preset
		ref    time.Time
		want   time.Time
	}{
		{
			name:   "later is plus two days at default hour",
			preset: PresetLater,
			ref:    refMon,
			want:   time.Date(2026, 9, 2, 10, 0, 0, 0, time.UTC),
		},
		{
			name:   "tomorrow",
			preset: PresetTomorrow,
			ref:    refMon,
			want:   time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC),
		},
		{
			name:   "evening before 18 stays today",
			preset: PresetEvening,
			ref:    refMon, // 09:00
			want:   time.Date(2026, 8, 31, 18, 0, 0, 0, time.UTC),
		},
		{
			name:   "evening after 18 moves to tomorrow",
			preset: PresetEvening,
			ref:    time.Date(2026, 8, 31, 19, 30, 0, 0, time.UTC),
			want:   time.Date(2026, 9, 1, 18, 0, 0, 0, time.UTC),
		},
		{
			name:   "evening exactly at 18 moves to tomorrow",
			preset: PresetEvening,
			ref:    time.Date(2026, 8, 31, 18, 0, 0, 0, time.UTC),
			want:   time.Date(2026, 9, 1, 18, 0, 0, 0, time.UTC),
		},
		{
			name:   "weekend is next saturday",
			preset: PresetWeekend,
			ref:    refMon,
			want:   time.Date(2026, 9, 5, 10, 0, 0, 0, time.UTC),
		},
		{
			name:   "weekend on saturday jumps a full week",
			preset: PresetWeekend,
			ref:    time.Date(2026, 9, 5, 9, 0, 0, 0, time.UTC),
			want:   time.Date(2026, 9, 12, 10, 0, 0, 0, time.UTC),
		},
		{
			name:   "monday on monday jumps a full week",
			preset: PresetMonday,
			ref:    refMon,
			want:   time.Date(2026, 9, 7, 10, 0, 0, 0, time.UTC),
		},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := r.ResolvePreset(tc.preset, tc.ref)
			if !got.Equal(tc.want) {
				t.Errorf("ResolvePreset(%s, %v) = %v, want %v", tc.preset, tc.ref, got, tc.want)
			}
		})
	}
}

func TestPresetsOrder(t *testing.T) {
	t.Parallel()
	want := []Preset{PresetLater, PresetTomorrow, PresetEvening, PresetWeekend, PresetMonday}
	got := Presets()
	if len(got) != len(want) {
		t.Fatalf("Presets() len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Presets()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
