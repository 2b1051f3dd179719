package textproc

import (
	"unicode"

	"github.com/joseph-ayodele/doc-extractor/constants"
)

const (
	// MinLanguageRunes is the shortest text (non-space runes) that gets classified.
	MinLanguageRunes = 10
	// ScriptThreshold is the share of a script's runes needed to pick that script.
	ScriptThreshold = 0.30
)

var scripts = []struct {
	lang  constants.Language
	table *unicode.RangeTable
}{
	{constants.LanguageHebrew, unicode.Hebrew},
	{constants.LanguageArabic, unicode.Arabic},
	{constants.LanguageRussian, unicode.Cyrillic},
}

// DetectLanguage classifies text by script share. Short texts are unknown; texts where no
// tracked script reaches ScriptThreshold default to english.
func DetectLanguage(text string) constants.Language {
	counts := make([]int, len(scripts))
	total := 0
	for _, r := range text {
		if unicode.IsSpace(r) {
			continue
		}
		total++
		for i, s := range scripts {
			if unicode.Is(s.table, r) {
				counts[i]++
				break
			}
		}
	}
	if total < MinLanguageRunes {
		return constants.LanguageUnknown
	}
	best, bestShare := -1, 0.0
	for i, c := range counts {
		share := float64(c) / float64(total)
		if share >= ScriptThreshold && share > bestShare {
			best, bestShare = i, share
		}
	}
	if best < 0 {
		return constants.LanguageEnglish
	}
	return scripts[best].lang
}
