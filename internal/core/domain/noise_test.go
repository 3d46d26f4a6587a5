package domain

import "testing"

func TestIsNoiseText(t *testing.T) {
	cases := []struct {
		name  string
		text  string
		noise bool
	}{
		{"empty", "", true},
		{"separator run", "| --- | --- |", true},
		{"dashes only", "----  ----", true},
		{"short junk", "| a | 1 |", true},
		{"real sentence", "Le consultant assure la production des livrables mensuels.", false},
		{"short but wordy", "rapport final", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsNoiseText(tc.text); got != tc.noise {
				t.Fatalf("IsNoiseText(%q) = %v, want %v", tc.text, got, tc.noise)
			}
		})
	}
}
