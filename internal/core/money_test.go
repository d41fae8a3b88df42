package core

import "testing"

func TestRound(t *testing.T) {
	cases := []struct {
		in     float64
		places int32
		out    float64
	}{
		{36.3195, 2, 36.32},
		{1.005, 2, 1.01}, // half away from zero on the decimal form
		{2.5, 0, 3},
		{-2.5, 0, -3},
		{3.4594, 3, 3.459},
		{3.4595, 3, 3.46},
		{10, 2, 10},
	}
	for _, tc := range cases {
		if got := Round(tc.in, tc.places); got != tc.out {
			t.Fatalf("Round(%v, %d) expected %v, got %v", tc.in, tc.places, tc.out, got)
		}
	}
}

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in  string
		out float64
		set bool
		ok  bool
	}{
		{"3.459", 3.459, true, true},
		{" 12500 ", 12500, true, true},
		{"0", 0, true, true},
		{"", 0, false, true},
		{"-1", 0, false, false},
		{"1,5", 0, false, false},
		{"abc", 0, false, false},
	}
	for _, tc := range cases {
		got, set, err := ParseAmount(tc.in)
		if tc.ok {
			if err != nil || got != tc.out || set != tc.set {
				t.Fatalf("%q expected (%v,%v), got (%v,%v) err=%v", tc.in, tc.out, tc.set, got, set, err)
			}
		} else if err == nil {
			t.Fatalf("%q expected error", tc.in)
		}
	}
}

func TestFormatAmount(t *testing.T) {
	cases := map[float64]string{
		36.32:   "36.32",
		12500:   "12500",
		0.1:     "0.1",
		1234567: "1234567",
	}
	for in, want := range cases {
		if got := FormatAmount(in); got != want {
			t.Fatalf("FormatAmount(%v) expected %q, got %q", in, want, got)
		}
	}
}
