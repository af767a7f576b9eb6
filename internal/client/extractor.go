package client

import (
	"context"
	"time"

	"github.com/scrapouille/scrapouille/internal/batch"
)

// Extractor adapts the API client to the batch scheduler's Invoker
// contract: one POST /api/v1/scrape per URL, batch-wide options shared
// across all calls.
type Extractor struct {
	client *Client
	req    batch.Request
}

// NewExtractor builds an Invoker for one batch run. The request's toggles
// are translated into the service's enum fields: rate limiting off maps to
// mode "none", stealth on maps to level "medium" (the service's default
// for batch work).
func NewExtractor(c *Client, req batch.Request) *Extractor {
	return &Extractor{client: c, req: req}
}

// Extract invokes the remote single-URL extraction. Transport errors are
// returned as errors; service-reported failures come back as a failed
// Result so they carry execution metadata.
func (e *Extractor) Extract(ctx context.Context, url string) (batch.Result, error) {
	rateLimitMode := "none"
	if e.req.UseRateLimiting {
		rateLimitMode = "normal"
	}
	stealthLevel := "off"
	if e.req.UseStealth {
		stealthLevel = "medium"
	}

	resp, err := e.client.Scrape(ctx, ScrapeRequest{
		URL:           url,
		Prompt:        e.req.Prompt,
		Model:         e.req.Model,
		SchemaName:    e.req.SchemaName,
		RateLimitMode: rateLimitMode,
		StealthLevel:  stealthLevel,
		UseCache:      e.req.UseCache,
	})
	if err != nil {
		return batch.Result{}, err
	}

	res := batch.Result{
		Success:          resp.Success,
		Data:             resp.Data,
		ExecutionTime:    time.Duration(resp.Metadata.ExecutionTime * float64(time.Second)),
		ModelUsed:        resp.Metadata.ModelUsed,
		FallbackAttempts: resp.Metadata.FallbackAttempts,
		Cached:           resp.Metadata.Cached,
		ValidationPassed: resp.Metadata.ValidationPassed,
	}
	if resp.Error != nil {
		res.Error = *resp.Error
	}
	return res, nil
}
