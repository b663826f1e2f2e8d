package controller

import "testing"

func TestParseAddress(t *testing.T) {
	tests := []struct {
		input      string
		wantDevice string
		wantButton int
	}{
		{"1A 2B 3C 1", "1A 2B 3C", 1},
		{"1A 2B 3C 2", "1A 2B 3C", 2},
		{"1a 2b 3c 8", "1a 2b 3c", 8},
		{"A1 02", "A1", 2},
		{"A1", "A1", 0},
		{"1A 2B 3C", "1A 2B 3C", 0},
		{"1A 2B 3C 4D", "1A 2B 3C 4D", 0},
		{"ZZ 2B 3C 2", "ZZ 2B 3C 2", 0},
		{"12345", "12345", 0},
		{"  A1   03 ", "A1", 3},
		{"", "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := ParseAddress(tt.input)
			if got.Device != tt.wantDevice || got.Button != tt.wantButton {
				t.Errorf("ParseAddress(%q) = %+v, want {%s %d}", tt.input, got, tt.wantDevice, tt.wantButton)
			}
		})
	}
}

func TestIsSecondaryButton(t *testing.T) {
	tests := []struct {
		address string
		want    bool
	}{
		{"1A 2B 3C 1", false},
		{"1A 2B 3C 2", true},
		{"1A 2B 3C 9", true},
		{"1A 2B 3C 10", false},
		{"A1 02", true},
		{"A1 01", false},
		{"A1", false},
		{"1A 2B 3C", false},
		{"1A 2B 05", false},
	}

	for _, tt := range tests {
		t.Run(tt.address, func(t *testing.T) {
			if got := IsSecondaryButton(tt.address); got != tt.want {
				t.Errorf("IsSecondaryButton(%q) = %v, want %v", tt.address, got, tt.want)
			}
		})
	}
}
