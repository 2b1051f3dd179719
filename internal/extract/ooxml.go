package extract

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/joseph-ayodele/doc-extractor/internal/common"
)

// container is an opened ZIP+XML office file.
type container struct {
	files   map[string]*zip.File
	maxPart int64
}

func openContainer(f File, maxPart int64) (*container, error) {
	zr, err := zip.NewReader(f, f.Size())
	if err != nil {
		return nil, fmt.Errorf("%w: zip: %v", common.ErrCorruptContainer, err)
	}
	c := &container{files: make(map[string]*zip.File, len(zr.File)), maxPart: maxPart}
	for _, zf := range zr.File {
		c.files[strings.TrimPrefix(zf.Name, "/")] = zf
	}
	return c, nil
}

func (c *container) has(name string) bool {
	_, ok := c.files[name]
	return ok
}

// read returns the uncompressed bytes of a part.
func (c *container) read(name string) ([]byte, error) {
	zf, ok := c.files[name]
	if !ok {
		return nil, fmt.Errorf("%w: missing part %s", common.ErrCorruptContainer, name)
	}
	if c.maxPart > 0 && zf.UncompressedSize64 > uint64(c.maxPart) {
		return nil, fmt.Errorf("%w: part %s is %d bytes, limit is %d",
			common.ErrCorruptContainer, name, zf.UncompressedSize64, c.maxPart)
	}
	rc, err := zf.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", common.ErrCorruptContainer, name, err)
	}
	defer rc.Close()
	r := io.Reader(rc)
	if c.maxPart > 0 {
		r = io.LimitReader(rc, c.maxPart+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", common.ErrCorruptContainer, name, err)
	}
	if c.maxPart > 0 && int64(len(data)) > c.maxPart {
		return nil, fmt.Errorf("%w: part %s exceeds %d bytes", common.ErrCorruptContainer, name, c.maxPart)
	}
	return data, nil
}

type relationships struct {
	Items []struct {
		ID         string `xml:"Id,attr"`
		Type       string `xml:"Type,attr"`
		Target     string `xml:"Target,attr"`
		TargetMode string `xml:"TargetMode,attr"`
	} `xml:"Relationship"`
}

// relsFor returns relationship id -> resolved part name for part. A part without a
// relationship file has no relationships.
func (c *container) relsFor(part string) (map[string]string, error) {
	relsName := path.Join(path.Dir(part), "_rels", path.Base(part)+".rels")
	out := map[string]string{}
	if !c.has(relsName) {
		return out, nil
	}
	data, err := c.read(relsName)
	if err != nil {
		return out, err
	}
	var rels relationships
	if err := xml.Unmarshal(data, &rels); err != nil {
		return out, fmt.Errorf("%w: %s: %v", common.ErrCorruptContainer, relsName, err)
	}
	for _, r := range rels.Items {
		if strings.EqualFold(r.TargetMode, "External") || r.Target == "" {
			continue
		}
		out[r.ID] = resolveTarget(part, r.Target)
	}
	return out, nil
}

func resolveTarget(part, target string) string {
	if strings.HasPrefix(target, "/") {
		return strings.TrimPrefix(path.Clean(target), "/")
	}
	return path.Join(path.Dir(part), target)
}

// imageParts resolves image relationship ids into distinct part names, keeping order.
func (c *container) imageParts(rels map[string]string, refs []string) []string {
	seen := map[string]bool{}
	var parts []string
	for _, id := range refs {
		name, ok := rels[id]
		if !ok || seen[name] || !c.has(name) {
			continue
		}
		seen[name] = true
		parts = append(parts, name)
	}
	return parts
}

var reSlidePart = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)

// slideParts lists slide parts in numeric order.
func (c *container) slideParts() []string {
	type slide struct {
		n    int
		name string
	}
	var slides []slide
	for name := range c.files {
		m := reSlidePart.FindStringSubmatch(name)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		slides = append(slides, slide{n: n, name: name})
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].n < slides[j].n })
	out := make([]string, len(slides))
	for i, s := range slides {
		out[i] = s.name
	}
	return out
}
