// Package enrich fetches supplier pages and extracts company and contact details from
// them. Each supplier is handled independently; one failure never affects another.
package enrich

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/sync/errgroup"

	"github.com/kiranshivaraju/partscout/internal/metrics"
	"github.com/kiranshivaraju/partscout/pkg/models"
)

const (
	DefaultConcurrency = 4
	DefaultRetryDelay  = 500 * time.Millisecond
)

// Enricher fans supplier fetches out over a bounded number of goroutines.
type Enricher struct {
	fetcher     Fetcher
	concurrency int
	retryDelay  time.Duration
	metrics     *metrics.Pipeline
}

// Option configures an Enricher.
type Option func(*Enricher)

// WithConcurrency caps the number of in-flight fetches.
func WithConcurrency(n int) Option {
	return func(e *Enricher) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

// WithRetryDelay sets the pause before the single retry of a transient failure.
func WithRetryDelay(d time.Duration) Option {
	return func(e *Enricher) { e.retryDelay = d }
}

// WithMetrics records fetch outcomes.
func WithMetrics(m *metrics.Pipeline) Option {
	return func(e *Enricher) { e.metrics = m }
}

// New creates an Enricher.
func New(fetcher Fetcher, opts ...Option) *Enricher {
	e := &Enricher{
		fetcher:     fetcher,
		concurrency: DefaultConcurrency,
		retryDelay:  DefaultRetryDelay,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Enrich returns one result per URL in input order. It never fails: fetch and parse
// errors become success=false results. When ctx ends, URLs that have not finished are
// reported as cancelled and finished results are kept.
func (e *Enricher) Enrich(ctx context.Context, urls []string) []models.EnrichmentResult {
	results := make([]models.EnrichmentResult, len(urls))

	// A plain Group: one supplier's failure must not cancel its siblings.
	var g errgroup.Group
	g.SetLimit(e.concurrency)
	for i, u := range urls {
		i, u := i, u
		g.Go(func() error {
			results[i] = e.enrichOne(ctx, u)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (e *Enricher) enrichOne(ctx context.Context, rawURL string) (res models.EnrichmentResult) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic enriching supplier", "url", rawURL, "panic", r)
			res = models.FailedEnrichment(rawURL, fmt.Sprintf("Failed to parse page: %v", r))
		}
		e.metrics.ObserveFetch(fetchOutcome(ctx, res), time.Since(start))
	}()

	if err := ctx.Err(); err != nil {
		return cancelled(rawURL, err)
	}

	status, body, err := e.fetcher.Fetch(ctx, rawURL)
	if isTransient(status, err) && ctx.Err() == nil {
		slog.Debug("retrying supplier fetch", "url", rawURL, "status", status, "error", err)
		if !sleep(ctx, e.retryDelay) {
			return cancelled(rawURL, ctx.Err())
		}
		status, body, err = e.fetcher.Fetch(ctx, rawURL)
	}

	switch {
	case err != nil && ctx.Err() != nil:
		return cancelled(rawURL, ctx.Err())
	case err != nil:
		slog.Warn("supplier fetch failed", "url", rawURL, "error", err)
		return models.FailedEnrichment(rawURL, "Failed to fetch page: "+err.Error())
	case status < 200 || status > 299:
		r := models.FailedEnrichment(rawURL, fmt.Sprintf("Failed to fetch page: HTTP %d %s", status, http.StatusText(status)))
		r.StatusCode = status
		return r
	}
	return analyze(rawURL, status, body)
}

// analyze turns a fetched body into a result. An empty page, or one with no contact
// details, is still a success.
func analyze(rawURL string, status int, body []byte) models.EnrichmentResult {
	res := models.EnrichmentResult{URL: rawURL, Success: true, StatusCode: status, FetchedAt: models.Now()}
	if len(strings.TrimSpace(string(body))) == 0 {
		res.Normalize()
		return res
	}

	mt := mimetype.Detect(body)
	if !strings.HasPrefix(mt.String(), "text/") && !mt.Is("application/xhtml+xml") {
		r := models.FailedEnrichment(rawURL, "Failed to parse page: unsupported content type "+mt.String())
		r.StatusCode = status
		return r
	}

	base, _ := url.Parse(rawURL)
	page, err := ParsePage(base, body)
	if err != nil {
		r := models.FailedEnrichment(rawURL, "Failed to parse page: "+err.Error())
		r.StatusCode = status
		return r
	}

	res.CompanyName = ExtractTitle(page)
	res.Description = ExtractDescription(page)
	res.Contact = models.ContactInfo{
		Emails:       ExtractEmails(page.Text, page.Links),
		Phones:       ExtractPhones(page.Text, page.Links),
		Addresses:    ExtractAddresses(page.Text),
		ContactLinks: ExtractContactLinks(page.Links),
		SocialMedia:  ExtractSocialMedia(page.Links),
	}
	res.Normalize()
	return res
}

func cancelled(rawURL string, err error) models.EnrichmentResult {
	if err == nil {
		err = context.Canceled
	}
	return models.FailedEnrichment(rawURL, "enrichment cancelled: "+err.Error())
}

func fetchOutcome(ctx context.Context, res models.EnrichmentResult) string {
	switch {
	case res.Success:
		return "ok"
	case ctx.Err() != nil && strings.HasPrefix(res.Error, "enrichment cancelled"):
		return "cancelled"
	default:
		return "error"
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// Apply attaches results to the suppliers whose URL they were fetched from. Pricing
// and every other AI-extracted field are left as they were.
func Apply(suppliers []models.SupplierCandidate, results []models.EnrichmentResult) []models.SupplierCandidate {
	byURL := make(map[string]models.EnrichmentResult, len(results))
	for _, r := range results {
		byURL[r.URL] = r
	}
	out := make([]models.SupplierCandidate, len(suppliers))
	for i, s := range suppliers {
		out[i] = s
		if r, ok := byURL[s.URL]; ok && s.URL != "" {
			out[i].Enrichment = &r
		}
	}
	return out
}
