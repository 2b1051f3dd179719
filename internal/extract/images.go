package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"github.com/joseph-ayodele/doc-extractor/internal/common"
	"github.com/joseph-ayodele/doc-extractor/internal/ocr"
	"github.com/joseph-ayodele/doc-extractor/internal/progress"
)

// imageOCR recognizes images embedded in a container, one at a time, so only a single
// decoded image is held in memory.
type imageOCR struct {
	engine ocr.Engine
	logger *slog.Logger
}

type imageBatch struct {
	texts      []string
	processed  int
	skipped    int
	chars      int
	confidence float64
}

func (o imageOCR) recognize(ctx context.Context, c *container, parts []string, opts Options, rep progress.Reporter) (imageBatch, error) {
	var (
		b imageBatch
		w []weighted
	)
	if len(parts) == 0 {
		return b, nil
	}
	if opts.DisableOCR || o.engine == nil {
		b.skipped = len(parts)
		return b, nil
	}
	for i, part := range parts {
		sub := progress.Scale(rep, 100*i/len(parts), 100*(i+1)/len(parts))
		data, err := c.read(part)
		if err != nil {
			o.logger.Warn("skipping unreadable embedded image", "part", part, "error", err)
			b.skipped++
			continue
		}
		res, err := o.engine.Recognize(ctx, data, ocr.Options{Languages: opts.Languages}, sub)
		if errors.Is(err, common.ErrInvalidImage) {
			// vector formats (EMF, WMF, SVG) land here
			o.logger.Debug("skipping embedded image the engine cannot read", "part", part, "error", err)
			b.skipped++
			continue
		}
		if err != nil {
			return b, fmt.Errorf("embedded image %s: %w", path.Base(part), err)
		}
		b.processed++
		if t := strings.TrimSpace(res.Text); t != "" {
			b.texts = append(b.texts, t)
			b.chars += len(t)
			w = append(w, weighted{n: len(t), conf: res.Confidence})
		}
	}
	b.confidence = blend(w...)
	return b, nil
}

func (b imageBatch) text() string {
	return strings.Join(b.texts, "\n\n")
}
