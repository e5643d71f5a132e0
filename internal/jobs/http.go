package jobs

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/danpasecinic/harvester/internal/types"
)

const (
	defaultRequestTimeout = 30 * time.Second
	maxPageBytes          = 10 << 20
	userAgent             = "harvester/1.0"
)

// Scraper fetches listing pages over HTTP and counts item markers in them.
type Scraper struct {
	client *http.Client
}

// NewScraper creates a scraper. A nil client uses a default one.
func NewScraper(client *http.Client) *Scraper {
	if client == nil {
		client = &http.Client{
			// Per-page timeouts come from the job config
			Timeout: 2 * time.Minute,
		}
	}
	return &Scraper{client: client}
}

// Run scrapes the pages named by config:
//
//	urls         explicit page URLs (list or comma separated)
//	base_url     used with pages and page_param when urls is empty
//	item_marker  substring counted once per item; each page is one item if empty
//	max_items    stop once this many items were processed (0 = unlimited)
func (s *Scraper) Run(ctx context.Context, config map[string]any) (*types.JobResult, error) {
	pages, err := pageURLs(config)
	if err != nil {
		return nil, err
	}

	marker := types.StringOption(config, "item_marker", "")
	maxItems := types.IntOption(config, "max_items", 0)
	timeout := types.DurationOption(config, "request_timeout", defaultRequestTimeout)

	result := &types.JobResult{Data: map[string]any{"pages_total": len(pages)}}

	for i, page := range pages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		body, err := s.fetch(ctx, page, timeout)
		if err != nil {
			return nil, err
		}

		count := 1
		if marker != "" {
			count = strings.Count(body, marker)
		}
		result.ItemsFound += count
		result.ItemsProcessed += count
		result.PagesProcessed++

		limited := maxItems > 0 && result.ItemsProcessed >= maxItems
		if limited {
			result.ItemsProcessed = maxItems
		}

		types.ReportProgress(
			ctx, types.Progress{
				Percent:        float64(i+1) / float64(len(pages)) * 100,
				ItemsFound:     result.ItemsFound,
				ItemsProcessed: result.ItemsProcessed,
				PagesProcessed: result.PagesProcessed,
				Message:        page,
			},
		)

		if limited {
			result.Data["stopped_at_max_items"] = true
			break
		}
	}

	return result, nil
}

func (s *Scraper) fetch(ctx context.Context, page string, timeout time.Duration) (string, error) {
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, page, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		return "", fmt.Errorf("page %s returned HTTP %d", page, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return "", fmt.Errorf("failed to read page %s: %w", page, err)
	}
	return string(body), nil
}

// pageURLs expands the url settings of a job config into the page list.
func pageURLs(config map[string]any) ([]string, error) {
	if urls := types.StringsOption(config, "urls"); len(urls) > 0 {
		return urls, nil
	}

	base := types.StringOption(config, "base_url", "")
	if base == "" {
		return nil, fmt.Errorf("no urls or base_url configured")
	}

	parsed, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("invalid base_url: %w", err)
	}

	pages := types.IntOption(config, "pages", 1)
	if pages < 1 {
		pages = 1
	}
	param := types.StringOption(config, "page_param", "page")

	urls := make([]string, 0, pages)
	for i := 1; i <= pages; i++ {
		u := *parsed
		q := u.Query()
		q.Set(param, strconv.Itoa(i))
		u.RawQuery = q.Encode()
		urls = append(urls, u.String())
	}
	return urls, nil
}
