package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"github.com/raine/sellsmart-bot/internal/listing"
	"github.com/rs/zerolog/log"
)

// AnalysisCache stores drafts keyed by image hash. Get returns nil, nil on a
// miss.
type AnalysisCache interface {
	GetAnalysis(imageHash string) (*listing.Draft, error)
	SetAnalysis(imageHash string, draft *listing.Draft) error
}

// CachedAnalyzer wraps an Analyzer with SQLite caching.
type CachedAnalyzer struct {
	inner Analyzer
	cache AnalysisCache
}

// NewCachedAnalyzer creates a cached analyzer. A nil cache disables caching.
func NewCachedAnalyzer(inner Analyzer, cache AnalysisCache) *CachedAnalyzer {
	return &CachedAnalyzer{inner: inner, cache: cache}
}

// hashImage creates a SHA256 hash of the image bytes.
func hashImage(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Analyze implements Analyzer with caching.
func (c *CachedAnalyzer) Analyze(ctx context.Context, image listing.Payload) (*AnalysisResult, error) {
	hash := hashImage(image.Data)

	if c.cache != nil {
		cached, err := c.cache.GetAnalysis(hash)
		if err != nil {
			log.Warn().Err(err).Msg("failed to check analysis cache")
		} else if cached != nil {
			cached.Normalize()
			if err := cached.Validate(); err != nil {
				log.Warn().Err(err).Str("hash", hash[:16]).Msg("ignoring invalid cached analysis")
			} else {
				log.Debug().Str("hash", hash[:16]).Msg("analysis cache hit")
				return &AnalysisResult{Draft: cached}, nil
			}
		}
	}

	result, err := c.inner.Analyze(ctx, image)
	if err != nil {
		return nil, err
	}

	if c.cache != nil && result.Draft != nil {
		if err := c.cache.SetAnalysis(hash, result.Draft); err != nil {
			log.Warn().Err(err).Msg("failed to cache analysis result")
		} else {
			log.Debug().Str("hash", hash[:16]).Msg("cached analysis result")
		}
	}

	return result, nil
}
