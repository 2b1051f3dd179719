package constants

// Language is the script-level language classification of extracted text.
type Language string

const (
	LanguageUnknown Language = "unknown"
	LanguageHebrew  Language = "hebrew"
	LanguageEnglish Language = "english"
	LanguageArabic  Language = "arabic"
	LanguageRussian Language = "russian"
)
