package money

import "testing"

func TestParseMinor(t *testing.T) {
	cases := []struct {
		amount   string
		currency string
		want     int64
		wantErr  bool
	}{
		{"1000.00", "USD", 100_000, false},
		{"1000", "USD", 100_000, false},
		{"0.01", "USD", 1, false},
		{"1500", "XAF", 1_500, false},
		{"-25.50", "USD", -2_550, false},
		{"10.001", "USD", 0, true},  // sub-minor-unit precision
		{"1500.5", "XAF", 0, true},  // XAF has no minor units
		{"abc", "USD", 0, true},
		{"", "USD", 0, true},
	}

	for _, tc := range cases {
		got, err := ParseMinor(tc.amount, tc.currency)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseMinor(%q, %s): expected error, got %d", tc.amount, tc.currency, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseMinor(%q, %s): %v", tc.amount, tc.currency, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseMinor(%q, %s) = %d, want %d", tc.amount, tc.currency, got, tc.want)
		}
	}
}

func TestFormatMinor(t *testing.T) {
	if got := FormatMinor(100_000, "USD"); got != "1000.00" {
		t.Errorf("FormatMinor USD = %q", got)
	}
	if got := FormatMinor(1_500, "XAF"); got != "1500" {
		t.Errorf("FormatMinor XAF = %q", got)
	}
	if got := FormatMinor(-2_550, "USD"); got != "-25.50" {
		t.Errorf("FormatMinor negative = %q", got)
	}
}

func TestParseFormatRoundTripKeepsValue(t *testing.T) {
	got, err := ParseMinor(FormatMinor(987_654, "EUR"), "EUR")
	if err != nil {
		t.Fatalf("round trip: %v", err)
	}
	if got != 987_654 {
		t.Fatalf("round trip = %d", got)
	}
}
