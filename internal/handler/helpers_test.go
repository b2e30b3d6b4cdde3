package handler

import "testing"

// ========================================
// Helper Function Tests
// ========================================

func TestAtoiDefault(t *testing.T) {
	tests := []struct {
		input    string
		def      int
		expected int
	}{
		{"10", 5, 10},
		{"1", 0, 1},
		{"999", 0, 999},
		{"", 5, 5},
		{"abc", 10, 10},
		{"-1", 5, 5},
		{"0", 5, 5},
		{"12.5", 5, 5},
	}

	for _, tt := range tests {
		result := atoiDefault(tt.input, tt.def)
		if result != tt.expected {
			t.Errorf("atoiDefault(%q, %d) = %d, expected %d", tt.input, tt.def, result, tt.expected)
		}
	}
}

func TestParseCoordinate(t *testing.T) {
	tests := []struct {
		input string
		want  int
		isNil bool
	}{
		{"", 0, true},
		{"   ", 0, true},
		{"abc", 0, true},
		{"NaN", 0, true},
		{"12", 12, false},
		{"12.9", 12, false},
		{"-4", 0, false},
		{" 7 ", 7, false},
		{"1e12", 2147483647, false},
	}

	for _, tt := range tests {
		got := parseCoordinate(tt.input)
		if tt.isNil {
			if got != nil {
				t.Errorf("parseCoordinate(%q) = %d, expected nil", tt.input, *got)
			}
			continue
		}
		if got == nil || *got != tt.want {
			t.Errorf("parseCoordinate(%q) = %v, expected %d", tt.input, got, tt.want)
		}
	}
}

func TestFormBool(t *testing.T) {
	for _, v := range []string{"1", "true", "TRUE", " yes ", "on"} {
		if !formBool(v) {
			t.Errorf("formBool(%q) = false", v)
		}
	}
	for _, v := range []string{"", "0", "false", "off", "maybe"} {
		if formBool(v) {
			t.Errorf("formBool(%q) = true", v)
		}
	}
}

func TestSentence(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"invalid JSON body", "Invalid JSON body."},
		{"name cannot be blank", "Name cannot be blank."},
		{"", ""},
	}

	for _, tt := range tests {
		if got := sentence(tt.input); got != tt.expected {
			t.Errorf("sentence(%q) = %q, expected %q", tt.input, got, tt.expected)
		}
	}
}
