package cache

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru"
	"github.com/rs/zerolog"

	"github.com/prismview/prism/pkg/models"
)

// ResultCache is a bounded LRU cache of chart results. Caching is safe
// because the engine is deterministic: a key embeds the dataset version and
// the canonical request, so a hit is byte-equivalent to recomputing.
type ResultCache struct {
	lru    *lru.Cache
	logger zerolog.Logger
}

// New creates a cache holding up to size entries.
func New(size int, logger zerolog.Logger) (*ResultCache, error) {
	if size <= 0 {
		return nil, fmt.Errorf("cache size must be positive, got %d", size)
	}
	l, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("failed to create result cache: %w", err)
	}
	return &ResultCache{
		lru:    l,
		logger: logger.With().Str("component", "result-cache").Logger(),
	}, nil
}

// Get returns a deep copy of the cached result for key. Results are owned
// solely by their caller, so the cached value is never shared.
func (c *ResultCache) Get(key string) (*models.ChartResult, bool) {
	v, ok := c.lru.Get(key)
	if !ok {
		return nil, false
	}
	res := v.(*models.ChartResult)
	return cloneResult(res), true
}

// Put stores a deep copy of the result under key.
func (c *ResultCache) Put(key string, res *models.ChartResult) {
	evicted := c.lru.Add(key, cloneResult(res))
	if evicted {
		c.logger.Debug().Msg("Result cache evicted oldest entry")
	}
}

// Len returns the number of cached entries.
func (c *ResultCache) Len() int {
	return c.lru.Len()
}

// Purge drops every entry. Called when a new dataset version is published;
// stale keys could never hit again, they would only squat on capacity.
func (c *ResultCache) Purge() {
	c.lru.Purge()
}

func cloneResult(res *models.ChartResult) *models.ChartResult {
	out := &models.ChartResult{
		Labels:   append([]string(nil), res.Labels...),
		Series:   make([]models.Series, len(res.Series)),
		Metadata: res.Metadata,
	}
	for i, s := range res.Series {
		out.Series[i] = models.Series{
			Label:  s.Label,
			Values: append([]float64(nil), s.Values...),
			Color:  s.Color,
		}
	}
	if res.Metadata.Reduction.TopNCutoff != nil {
		cutoff := *res.Metadata.Reduction.TopNCutoff
		out.Metadata.Reduction.TopNCutoff = &cutoff
	}
	return out
}
