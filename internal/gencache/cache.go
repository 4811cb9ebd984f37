// Package gencache caches the structured prompt the generation service
// echoed back for each produced image. The refiner prefers a cached
// structured prompt over re-deriving one from the original text prompt, so
// repeated edits against the same image stay consistent with what the
// service actually rendered.
package gencache

import (
	"context"
	"time"

	"github.com/fpang/design-refine/internal/chain"
	"github.com/fpang/design-refine/internal/scene"
)

// RecordTTL is how long a cached generation record stays retrievable. It
// matches the chain TTL so a chain never outlives the prompts it refers to.
const RecordTTL = 24 * time.Hour

// Record is one cached generation result keyed by the produced image URL.
type Record struct {
	// ImageURL is the canonical key, normalized with chain.CanonicalKey
	// before storage so query-string variants of the same image hit.
	ImageURL string `json:"imageUrl" dynamodbav:"-"`

	// OriginalPrompt is the plain-text prompt that produced the image,
	// kept for the text fallback path when no structured prompt exists.
	OriginalPrompt string `json:"originalPrompt" dynamodbav:"originalPrompt"`

	// Structured is the scene descriptor the generation service echoed
	// back, nil when the service returned text-only output.
	Structured *scene.Prompt `json:"structured,omitempty" dynamodbav:"structured,omitempty"`

	// Background is the chain background state at generation time.
	Background chain.BackgroundState `json:"background" dynamodbav:"background"`

	Width  int    `json:"width,omitempty" dynamodbav:"width,omitempty"`
	Height int    `json:"height,omitempty" dynamodbav:"height,omitempty"`
	Format string `json:"format,omitempty" dynamodbav:"format,omitempty"`

	CreatedAt time.Time `json:"createdAt" dynamodbav:"createdAt"`
}

// Cache stores generation records by canonical image URL. Get returns
// (nil, nil) when no record exists. Implementations are safe for
// concurrent use.
type Cache interface {
	Get(ctx context.Context, imageURL string) (*Record, error)
	Put(ctx context.Context, rec *Record) error
}
