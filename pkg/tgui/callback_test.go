package tgui

import "testing"

func TestDataSplitDataRoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		ns, action, payload string
		want                string
	}{
		{"rem", "cancel", "12", "rem:cancel:12"},
		{"rem", "preset", "12:tomorrow", "rem:preset:12:tomorrow"},
		{"rem", "snooze", "", "rem:snooze"},
		{" rem ", "cancel", "1", "rem:cancel:1"},
	}
	for _, tc := range tests {
		got := Data(tc.ns, tc.action, tc.payload)
		if got != tc.want {
			t.Errorf("Data(%q,%q,%q) = %q, want %q", tc.ns, tc.action, tc.payload, got, tc.want)
			continue
		}
		ns, action, payload := SplitData(got)
		if ns != "rem" || action != tc.action {
			t.Errorf("SplitData(%q) = (%q,%q,%q)", got, ns, action, payload)
		}
		if tc.payload != "" && payload != tc.payload {
			t.Errorf("SplitData(%q) payload = %q, want %q", got, payload, tc.payload)
		}
	}
}

func TestSplitDataDegenerate(t *testing.T) {
	t.Parallel()

	ns, action, payload := SplitData("justtext")
	if ns != "justtext" || action != "" || payload != "" {
		t.Errorf("SplitData(justtext) = (%q,%q,%q)", ns, action, payload)
	}
}

func TestTruncRunes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"hello", 10, "hello"},
		{"hello", 5, "hello"},
		{"hello world", 5, "hello…"},
		{"héllo wörld", 5, "héllo…"},
		{"x", 0, ""},
	}
	for _, tc := range tests {
		if got := TruncRunes(tc.in, tc.n); got != tc.want {
			t.Errorf("TruncRunes(%q, %d) = %q, want %q", tc.in, tc.n, got, tc.want)
		}
	}
}
