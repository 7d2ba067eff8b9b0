package gotlive

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// rtlLanguages contains base language codes written right-to-left.
var rtlLanguages = map[string]bool{
	"ar": true, // Arabic
	"he": true, // Hebrew
	"fa": true, // Persian/Farsi
	"ur": true, // Urdu
	"ps": true, // Pashto
	"sd": true, // Sindhi
	"ug": true, // Uyghur
	"yi": true, // Yiddish
	"dv": true, // Divehi
}

// NormalizeLanguage validates a language code and returns its canonical
// BCP 47 form. Locale-style separators are accepted ("pt_BR" -> "pt-BR").
func NormalizeLanguage(code string) (string, error) {
	code = strings.TrimSpace(strings.ReplaceAll(code, "_", "-"))
	if code == "" {
		return "", &LanguageError{Code: code}
	}

	tag, err := language.Parse(code)
	if err != nil {
		return "", &LanguageError{Code: code, Cause: err}
	}
	if tag == language.Und {
		return "", &LanguageError{Code: code}
	}
	return tag.String(), nil
}

// BaseLanguage returns the base language subtag ("pt-BR" -> "pt"). Unparseable
// codes are lower-cased up to the first separator.
func BaseLanguage(code string) string {
	code = strings.ReplaceAll(code, "_", "-")
	if tag, err := language.Parse(code); err == nil {
		base, _ := tag.Base()
		return base.String()
	}
	return strings.ToLower(strings.Split(code, "-")[0])
}

// SameLanguage reports whether two codes share a base language. Regional
// variants of the source language need no translation.
func SameLanguage(a, b string) bool {
	return BaseLanguage(a) == BaseLanguage(b)
}

// Direction returns "rtl" for right-to-left languages, "ltr" otherwise.
func Direction(code string) string {
	if rtlLanguages[BaseLanguage(code)] {
		return "rtl"
	}
	return "ltr"
}

// IsRTL returns true if the language uses right-to-left text direction.
func IsRTL(code string) bool {
	return Direction(code) == "rtl"
}

// LanguageName returns the English name of a language ("es-MX" ->
// "Mexican Spanish"). Falls back to the code itself if unknown.
func LanguageName(code string) string {
	tag, err := language.Parse(strings.ReplaceAll(code, "_", "-"))
	if err != nil {
		return code
	}
	if name := display.English.Tags().Name(tag); name != "" {
		return name
	}
	return code
}
