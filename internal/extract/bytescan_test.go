package extract

import (
	"strings"
	"testing"
)

func utf16le(s string) []byte {
	var out []byte
	for _, r := range s {
		out = append(out, byte(r), byte(r>>8))
	}
	return out
}

func TestScanText(t *testing.T) {
	cases := []struct {
		name string
		in   []byte
		want string
	}{
		{"plain run", []byte("\x00\x01Readable words here\x02"), "Readable words here"},
		{"short runs dropped", []byte("ab\x00cd\x00ef"), ""},
		{"markup dropped", []byte(`<w:t xml:space="preserve"> Quarterly numbers </w:t>`), "Quarterly numbers"},
		{"numbers dropped", []byte("\x00 2024 15.50 \x00Invoice total\x00"), "Invoice total"},
		{"hebrew kept", []byte("\x00\x00שלום עולם\x00"), "שלום עולם"},
		{"mostly symbols", []byte("\x00#### ==== ~~~ a\x00"), ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := scanText(tc.in); got != tc.want {
				t.Fatalf("scanText = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestBestScanPrefersWideText(t *testing.T) {
	data := append([]byte{0xd0, 0xcf, 0x11, 0xe0}, utf16le("Minutes of the annual meeting")...)
	text, enc := bestScan(data)
	if enc != "utf-16le" || !strings.Contains(text, "Minutes of the annual meeting") {
		t.Fatalf("bestScan = %q (%s)", text, enc)
	}

	text, enc = bestScan([]byte("\x00\x00Narrow text survives\x00"))
	if enc != "8-bit" || text != "Narrow text survives" {
		t.Fatalf("bestScan = %q (%s)", text, enc)
	}
}
