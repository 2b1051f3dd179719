package ocr

import (
	"strconv"
	"strings"
)

// tsvKey groups words into the lines tesseract reported them on.
type tsvKey struct {
	page, block, par, line int
}

// parseTSV turns tesseract TSV output into text, word boxes and a mean confidence.
// Columns: level page_num block_num par_num line_num word_num left top width height conf text.
func parseTSV(out string) *Result {
	res := &Result{}
	var (
		b        strings.Builder
		prev     tsvKey
		havePrev bool
		sum      float64
		n        int
	)
	for i, ln := range strings.Split(out, "\n") {
		if i == 0 || strings.TrimSpace(ln) == "" {
			continue // header
		}
		cols := strings.Split(strings.TrimRight(ln, "\r"), "\t")
		if len(cols) < 12 {
			continue
		}
		ints := make([]int, 10)
		ok := true
		for j := 0; j < 10; j++ {
			v, err := strconv.Atoi(cols[j])
			if err != nil {
				ok = false
				break
			}
			ints[j] = v
		}
		if !ok {
			continue
		}
		if ints[0] == 1 && res.Width == 0 {
			res.Width, res.Height = ints[8], ints[9]
		}
		text := strings.TrimSpace(strings.Join(cols[11:], "\t"))
		if ints[0] != 5 || text == "" {
			continue
		}
		conf, err := strconv.ParseFloat(cols[10], 64)
		if err != nil || conf < 0 {
			continue
		}
		if conf > 100 {
			conf = 100
		}
		key := tsvKey{page: ints[1], block: ints[2], par: ints[3], line: ints[4]}
		switch {
		case !havePrev:
		case key.page != prev.page || key.block != prev.block:
			b.WriteString("\n\n")
		case key != prev:
			b.WriteString("\n")
		default:
			b.WriteString(" ")
		}
		b.WriteString(text)
		prev, havePrev = key, true

		res.Words = append(res.Words, Word{
			Text:       text,
			Confidence: conf / 100,
			Box:        Box{X: ints[6], Y: ints[7], W: ints[8], H: ints[9]},
		})
		sum += conf
		n++
	}
	res.Text = b.String()
	if n > 0 {
		res.Confidence = sum / float64(n) / 100
	}
	return res
}
