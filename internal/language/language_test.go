package language

import (
	"strings"
	"testing"
)

func TestToISO2(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"pt", "pt"},
		{"PT", "pt"},
		{"por", "pt"},
		{"pt-BR", "pt"},
		{"pt_br", "pt"},
		{"português", "pt"},
		{"Portuguese", "pt"},
		{"eng", "en"},
		{"inglês", "en"},
		{"gre", "el"},
		{"heb", "he"},
		{"es-419", "es"},
		{"xy", "xy"},
		{"xy-ZZ", "xy"},
		{"xyz", ""},
		{"", ""},
		{" ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ToISO2(tt.input); got != tt.expected {
				t.Errorf("ToISO2(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestDisplayName(t *testing.T) {
	tests := map[string]string{
		"pt":    "Portuguese",
		"pt-BR": "Portuguese",
		"ell":   "Greek",
		"":      "Unknown",
		"xx":    "XX",
	}
	for input, want := range tests {
		if got := DisplayName(input); got != want {
			t.Errorf("DisplayName(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestNormalizeList(t *testing.T) {
	got := NormalizeList([]string{" Portuguese ", "pt", "pt-BR", "ENG", "", "en"})
	if strings.Join(got, ",") != "pt,pt-br,en" {
		t.Fatalf("NormalizeList = %v", got)
	}
	if NormalizeList(nil) != nil {
		t.Fatal("expected nil for empty input")
	}
}
