// Package cache keeps finished extraction results keyed by file content, so an identical
// upload is answered without running the extractors again.
package cache

import (
	"context"
	"time"

	"github.com/joseph-ayodele/doc-extractor/constants"
	"github.com/joseph-ayodele/doc-extractor/internal/entity"
)

// Cache stores results by content key. Implementations are safe for concurrent use and
// never fail a lookup loudly: any backend problem is a miss.
type Cache interface {
	Get(ctx context.Context, key string) (*entity.ExtractionResult, bool)
	Put(ctx context.Context, key string, result *entity.ExtractionResult)
}

// Clock returns the current time. Tests inject a fake one.
type Clock func() time.Time

// Key builds the content key: file hash, format and requested method.
func Key(contentHash string, format constants.Format, requestedMethod string) string {
	return contentHash + ":" + format.String() + ":" + requestedMethod
}

func expired(insertedAt, now time.Time, ttl time.Duration) bool {
	return now.Sub(insertedAt) > ttl
}
