package gotlive

import (
	"errors"
	"testing"
)

func TestNormalizeLanguage(t *testing.T) {
	tests := []struct {
		code     string
		expected string
	}{
		{"es", "es"},
		{"ES", "es"},
		{"pt_BR", "pt-BR"},
		{"pt-br", "pt-BR"},
		{" fr ", "fr"},
		{"zh-Hant-TW", "zh-Hant-TW"},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			got, err := NormalizeLanguage(tt.code)
			if err != nil {
				t.Fatalf("NormalizeLanguage(%q) error: %v", tt.code, err)
			}
			if got != tt.expected {
				t.Errorf("NormalizeLanguage(%q) = %q, want %q", tt.code, got, tt.expected)
			}
		})
	}
}

func TestNormalizeLanguage_Invalid(t *testing.T) {
	for _, code := range []string{"", "   ", "not a language!", "und"} {
		_, err := NormalizeLanguage(code)
		var langErr *LanguageError
		if !errors.As(err, &langErr) {
			t.Errorf("NormalizeLanguage(%q) should return LanguageError, got %v", code, err)
		}
	}
}

func TestSameLanguage(t *testing.T) {
	if !SameLanguage("en", "en-GB") {
		t.Error("en and en-GB share a base language")
	}
	if !SameLanguage("en_US", "EN") {
		t.Error("locale-style codes should compare by base")
	}
	if SameLanguage("en", "es") {
		t.Error("en and es differ")
	}
}

func TestDirection(t *testing.T) {
	tests := []struct {
		code     string
		expected string
	}{
		{"ar-SA", "rtl"},
		{"he_IL", "rtl"},
		{"fa", "rtl"},
		{"ur", "rtl"},
		{"es", "ltr"},
		{"en-US", "ltr"},
		{"ja", "ltr"},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			if got := Direction(tt.code); got != tt.expected {
				t.Errorf("Direction(%q) = %q, want %q", tt.code, got, tt.expected)
			}
		})
	}

	if !IsRTL("ar") || IsRTL("en") {
		t.Error("IsRTL disagrees with Direction")
	}
}

func TestLanguageName(t *testing.T) {
	if got := LanguageName("es"); got != "Spanish" {
		t.Errorf("LanguageName(es) = %q", got)
	}
	if got := LanguageName("!!"); got != "!!" {
		t.Errorf("LanguageName should fall back to the code, got %q", got)
	}
}
