package textproc

import (
	"testing"

	"github.com/joseph-ayodele/doc-extractor/constants"
)

func TestDetectLanguage(t *testing.T) {
	cases := []struct {
		in   string
		want constants.Language
	}{
		{"", constants.LanguageUnknown},
		{"שלום", constants.LanguageUnknown},
		{"   short   ", constants.LanguageUnknown},
		{"זהו מסמך בעברית עם מעט מילים", constants.LanguageHebrew},
		{"Invoice 2024 for שירותים מקצועיים", constants.LanguageHebrew},
		{"This document is written in English.", constants.LanguageEnglish},
		{"Mostly English text with one word שלום inside it", constants.LanguageEnglish},
		{"مرحبا بكم في هذا المستند", constants.LanguageArabic},
		{"Привет, это документ на русском", constants.LanguageRussian},
		{"1234567890 0987654321", constants.LanguageEnglish},
	}
	for _, tc := range cases {
		if got := DetectLanguage(tc.in); got != tc.want {
			t.Fatalf("DetectLanguage(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
