package extract

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/joseph-ayodele/doc-extractor/internal/common"
	"github.com/joseph-ayodele/doc-extractor/internal/textproc"
)

// xmlNode is a parsed XML element. Text holds the element's own character data.
type xmlNode struct {
	Name     xml.Name
	Attrs    []xml.Attr
	Text     string
	Children []*xmlNode
}

// attr returns the value of the first attribute with the given local name.
func (n *xmlNode) attr(local string) string {
	for _, a := range n.Attrs {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}

// parseXML builds a node tree from a document. Any syntax error is ErrCorruptContainer.
func parseXML(data []byte) (*xmlNode, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	var (
		root  *xmlNode
		stack []*xmlNode
	)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: xml: %v", common.ErrCorruptContainer, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			n := &xmlNode{Name: t.Name, Attrs: t.Attr}
			if len(stack) > 0 {
				parent := stack[len(stack)-1]
				parent.Children = append(parent.Children, n)
			} else if root == nil {
				root = n
			}
			stack = append(stack, n)
		case xml.EndElement:
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].Text += string(t)
			}
		}
	}
	if root == nil {
		return nil, fmt.Errorf("%w: xml: no root element", common.ErrCorruptContainer)
	}
	return root, nil
}

// namespacePrefixes are schema URL prefixes used inside OOXML containers.
var namespacePrefixes = []string{
	"http://schemas.openxmlformats.org/",
	"https://schemas.openxmlformats.org/",
	"http://schemas.microsoft.com/",
	"https://schemas.microsoft.com/",
	"http://purl.org/",
	"http://www.w3.org/",
	"urn:schemas-microsoft-com:",
}

// containsNamespace matches against the folded text, so fullwidth or zero-width-split
// forms that post-processing would turn back into a schema URL are caught here too.
func containsNamespace(s string) bool {
	folded := textproc.Fold(s)
	if hasNamespacePrefix(folded) {
		return true
	}
	for _, f := range strings.Fields(folded) {
		if r := textproc.RepairToken(f); r != f && hasNamespacePrefix(r) {
			return true
		}
	}
	return false
}

func hasNamespacePrefix(s string) bool {
	lower := strings.ToLower(s)
	for _, p := range namespacePrefixes {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// isNumericOnly reports whether s is digits plus number punctuation.
func isNumericOnly(s string) bool {
	digits := 0
	for _, r := range s {
		switch {
		case unicode.IsDigit(r):
			digits++
		case strings.ContainsRune(".,-+/:% ", r):
		default:
			return false
		}
	}
	return digits > 0
}

// keepRun is the leaf filter: it rejects namespace URLs, numeric-only strings and strings
// of at most one character.
func keepRun(s string) bool {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= 1 {
		return false
	}
	if isNumericOnly(s) {
		return false
	}
	if containsNamespace(s) && len(strings.Fields(s)) == 1 {
		return false
	}
	return true
}

// scrubNamespaces drops every whitespace-separated token that contains a namespace URL.
// Text that needs scrubbing comes back folded, with tab-separated cells kept apart.
func scrubNamespaces(s string) string {
	if !containsNamespace(s) {
		return s
	}
	lines := strings.Split(textproc.Fold(s), "\n")
	for i, line := range lines {
		cells := strings.Split(line, "\t")
		for j, cell := range cells {
			fields := strings.Fields(cell)
			kept := fields[:0]
			for _, f := range fields {
				if !containsNamespace(f) {
					kept = append(kept, f)
				}
			}
			cells[j] = strings.Join(kept, " ")
		}
		lines[i] = strings.Join(cells, "\t")
	}
	return strings.Join(lines, "\n")
}

// textVisitor walks an OOXML part, collecting paragraph text and embedded image
// relationship ids in document order.
type textVisitor struct {
	keep       func(string) bool
	paragraphs []string
	imageRefs  []string
	runs       int
}

func newTextVisitor() *textVisitor {
	return &textVisitor{keep: keepRun}
}

// visit walks n until it reaches a paragraph, which is gathered as one unit.
func (v *textVisitor) visit(n *xmlNode) {
	switch n.Name.Local {
	case "p":
		var b strings.Builder
		v.paragraph(n, &b)
		v.emit(b.String())
		return
	case "Fallback":
		return // markup-compatibility duplicate of the preceding Choice
	case "blip", "imagedata":
		v.noteImage(n)
	}
	for _, c := range n.Children {
		v.visit(c)
	}
}

func (v *textVisitor) paragraph(n *xmlNode, b *strings.Builder) {
	for _, c := range n.Children {
		switch c.Name.Local {
		case "t":
			b.WriteString(c.Text)
			v.runs++
		case "tab":
			b.WriteString("\t")
		case "br", "cr":
			b.WriteString("\n")
		case "p":
			v.visit(c) // text box paragraphs are emitted on their own
		case "instrText", "delText", "Fallback":
			// field codes, deleted revisions and compatibility duplicates
		case "blip", "imagedata":
			v.noteImage(c)
		default:
			v.paragraph(c, b)
		}
	}
}

func (v *textVisitor) noteImage(n *xmlNode) {
	id := n.attr("embed")
	if id == "" {
		id = n.attr("id")
	}
	if id != "" {
		v.imageRefs = append(v.imageRefs, id)
	}
}

func (v *textVisitor) emit(s string) {
	s = strings.TrimSpace(s)
	if !v.keep(s) {
		return
	}
	if s = strings.TrimSpace(scrubNamespaces(s)); s != "" {
		v.paragraphs = append(v.paragraphs, s)
	}
}

// text joins the collected paragraphs.
func (v *textVisitor) text() string {
	return strings.Join(v.paragraphs, "\n")
}
