package util

import (
	"reflect"
	"testing"
)

func TestTrimQuotes(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"empty string", "", ""},
		{"no quotes", "hello", "hello"},
		{"double quoted", `"hello"`, "hello"},
		{"single quotes only", "'hello'", "'hello'"},
		{"quotes in middle", `he"llo`, `he"llo`},
		{"only quotes", `""`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := TrimQuotes(tt.input)
			if result != tt.expected {
				t.Errorf("TrimQuotes(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestFixEscapeQuotes(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"empty string", "", ""},
		{"no escaped quotes", "hello", "hello"},
		{"single escaped quote", `he""llo`, `he"llo`},
		{"consecutive escaped", `a""""b`, `a""b`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := FixEscapeQuotes(tt.input)
			if result != tt.expected {
				t.Errorf("FixEscapeQuotes(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestSplitArgs(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{"empty", "", nil},
		{"blank", "   ", nil},
		{"command only", "EllipseGrip_ToggleParticles", []string{"EllipseGrip_ToggleParticles"}},
		{"numbers", "EllipseGrip_SetParticleColor 1 0.5  0", []string{"EllipseGrip_SetParticleColor", "1", "0.5", "0"}},
		{"quoted", `cmd "a b" c`, []string{"cmd", "a b", "c"}},
		{"escaped quote", `cmd "say ""hi"""`, []string{"cmd", `say "hi"`}},
		{"empty quoted", `cmd ""`, []string{"cmd", ""}},
		{"tabs", "cmd\t0.3", []string{"cmd", "0.3"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := SplitArgs(tt.input)
			if !reflect.DeepEqual(result, tt.expected) {
				t.Errorf("SplitArgs(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestParseFloats(t *testing.T) {
	tests := []struct {
		name     string
		input    []string
		expected []float64
		wantErr  bool
	}{
		{"separate", []string{"1", "0.5", "0"}, []float64{1, 0.5, 0}, false},
		{"bracketed", []string{"[1,", "0.5,", "0,", "1]"}, []float64{1, 0.5, 0, 1}, false},
		{"bracketed single arg", []string{"[0.2,0.4,0.6]"}, []float64{0.2, 0.4, 0.6}, false},
		{"rgba call", []string{"RGBA(1.000,", "0.000,", "0.000,", "0.500)"}, []float64{1, 0, 0, 0.5}, false},
		{"quoted numbers", []string{`"0.1"`, `"0.2"`}, []float64{0.1, 0.2}, false},
		{"empty", nil, []float64{}, false},
		{"not a number", []string{"red"}, nil, true},
		{"unbalanced", []string{"[1,", "2"}, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := ParseFloats(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseFloats(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if !tt.wantErr && !reflect.DeepEqual(result, tt.expected) {
				t.Errorf("ParseFloats(%q) = %v, want %v", tt.input, result, tt.expected)
			}
		})
	}
}

func TestParseFloat32(t *testing.T) {
	v, err := ParseFloat32(` "0.25" `)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 0.25 {
		t.Errorf("expected 0.25, got %v", v)
	}

	if _, err := ParseFloat32("strong"); err == nil {
		t.Error("expected error for non-number")
	}
}
