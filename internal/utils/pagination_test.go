package utils

import "testing"

func TestAtoiDefault(t *testing.T) {
	cases := []struct {
		in        string
		def, want int
	}{
		{"", 20, 20},
		{"3", 1, 3},
		{"-2", 1, -2},
		{"007", 1, 7},
		{"two", 1, 1},
		{" 3", 1, 1},
		{"99999999999999999999", 20, 20},
	}
	for _, tc := range cases {
		if got := AtoiDefault(tc.in, tc.def); got != tc.want {
			t.Fatalf("AtoiDefault(%q,%d)=%d want %d", tc.in, tc.def, got, tc.want)
		}
	}
}
