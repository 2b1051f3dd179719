// Package textproc normalizes extracted text and classifies its script.
package textproc

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var (
	reCRLF       = regexp.MustCompile(`\r\n?`)
	reMultiBlank = regexp.MustCompile(`\n{3,}`)
	reBoxNoise   = regexp.MustCompile(`^[_\-=~.·•*]{3,}$`) // ruling lines and dot leaders
)

// substitutions fixes characters OCR engines and word processors emit in place of the
// plain forms people search for. Applied after NFKC, so ligatures are already split.
var substitutions = strings.NewReplacer(
	"‘", "'", "’", "'", "‚", "'", "‛", "'", "′", "'",
	"“", `"`, "”", `"`, "„", `"`, "‟", `"`,
	"‐", "-", "‑", "-", "‒", "-", "–", "-", "—", "-", "―", "-", "−", "-",
	"־", "-", // maqaf
	"׳", "'", // geresh
	"״", `"`, // gershayim
	"װ", "וו",
	"ױ", "וי",
	"ײ", "יי",
)

// keepAlone lists punctuation that carries meaning even as a standalone token.
const keepAlone = `-&+=%$€₪£#@*/:!?"'()[]`

// PostProcess normalizes extracted text: unified line endings, no invisible format
// characters, NFKC, the substitution table, repaired OCR digit confusions, no isolated
// noise characters, single spaces, tab-separated cells kept apart by a single tab, trimmed
// lines and at most one blank line in a row. It is total and idempotent.
func PostProcess(s string) string {
	if s == "" {
		return ""
	}
	s = Fold(s)

	lines := strings.Split(s, "\n")
	for i, line := range lines {
		var cells []string
		for _, cell := range strings.Split(line, "\t") {
			fields := strings.Fields(cell)
			kept := fields[:0]
			for _, f := range fields {
				if !isNoiseToken(f) {
					kept = append(kept, RepairToken(f))
				}
			}
			if len(kept) > 0 {
				cells = append(cells, strings.Join(kept, " "))
			}
		}
		line = strings.Join(cells, "\t")
		if reBoxNoise.MatchString(line) {
			line = ""
		}
		lines[i] = line
	}
	s = strings.Join(lines, "\n")
	s = reMultiBlank.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// Fold applies the character-level part of PostProcess: line endings, invisible and control
// characters, NFKC and the substitution table. Whitespace layout is left alone. Filters
// that must hold on the final text can match against Fold's output.
func Fold(s string) string {
	s = reCRLF.ReplaceAllString(s, "\n")
	s = strings.ReplaceAll(s, "\f", "\n\n")
	s = strings.ReplaceAll(s, "\v", "\n")
	s = strings.Map(func(r rune) rune {
		switch {
		case r == '\n' || r == '\t':
			return r
		case r == unicode.ReplacementChar, unicode.IsControl(r), unicode.Is(unicode.Cf, r):
			return -1
		}
		return r
	}, s)
	s = norm.NFKC.String(s)
	s = substitutions.Replace(s)
	return strings.ReplaceAll(s, "''", `"`)
}

// RepairToken fixes the digit zero read in place of the letter O inside a Latin word:
// "B0X" becomes "BOX" and "c0de" becomes "code". Tokens that start with a digit or carry
// any other digit are codes or numbers and are left as they are, as is every non-Latin script.
func RepairToken(tok string) string {
	if !strings.ContainsRune(tok, '0') {
		return tok
	}
	rs := []rune(tok)
	if unicode.IsDigit(rs[0]) {
		return tok
	}
	for _, r := range rs {
		if unicode.IsDigit(r) && r != '0' {
			return tok
		}
	}
	changed := false
	for i := 1; i < len(rs)-1; i++ {
		if rs[i] != '0' || !isLatinLetter(rs[i-1]) || !isLatinLetter(rs[i+1]) {
			continue
		}
		if unicode.IsUpper(rs[i-1]) && unicode.IsUpper(rs[i+1]) {
			rs[i] = 'O'
		} else {
			rs[i] = 'o'
		}
		changed = true
	}
	if !changed {
		return tok
	}
	return string(rs)
}

func isLatinLetter(r rune) bool {
	return unicode.IsLetter(r) && unicode.Is(unicode.Latin, r)
}

// isNoiseToken reports whether tok is a lone character that is neither a letter, a digit
// nor meaningful punctuation, which in scans is usually dust or a table border.
func isNoiseToken(tok string) bool {
	var r rune
	n := 0
	for _, c := range tok {
		r = c
		n++
		if n > 1 {
			return false
		}
	}
	if n == 0 {
		return false
	}
	return !unicode.IsLetter(r) && !unicode.IsNumber(r) && !strings.ContainsRune(keepAlone, r)
}
