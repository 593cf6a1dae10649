// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package webinfo fetches free-text facts about books and people from a
// MediaWiki-style API. It returns plain-text extracts; callers parse
// dates out and decide what to trust.
package webinfo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/pdiddy/citation-engine/internal/httputil"
	"github.com/pdiddy/citation-engine/pkg/types"
)

// Client talks to one wiki API endpoint. The zero value is not usable;
// construct with New.
type Client struct {
	http *http.Client
	cfg  types.WebLookupConfig
}

// New builds a client from config. The HTTP client carries the
// configured timeout; per-call deadlines come from the context.
func New(cfg types.WebLookupConfig) *Client {
	return &Client{
		http: &http.Client{Timeout: cfg.Timeout},
		cfg:  cfg,
	}
}

// GetBookInfo returns the intro extract of the page best matching the
// book, for general metadata parsing.
func (c *Client) GetBookInfo(ctx context.Context, title, author string) (string, error) {
	query := strings.TrimSpace(title + " " + author + " book")
	return c.searchExtract(ctx, query)
}

// GetOriginalPublicationDate returns free text likely to mention when
// the work was first published. When the extract has a sentence about
// publication or composition that sentence is returned alone, so a year
// elsewhere in the intro does not shadow the one that matters.
func (c *Client) GetOriginalPublicationDate(ctx context.Context, title, author string) (string, error) {
	text, err := c.searchExtract(ctx, strings.TrimSpace(title+" "+author))
	if err != nil {
		return "", err
	}
	for _, sentence := range strings.Split(text, ". ") {
		lower := strings.ToLower(sentence)
		if strings.Contains(lower, "publish") || strings.Contains(lower, "written") ||
			strings.Contains(lower, "composed") || strings.Contains(lower, "first performed") {
			return sentence, nil
		}
	}
	return text, nil
}

// GetPersonDates returns the intro extract for a person, which for
// biographical pages carries birth and death years in the first
// sentence.
func (c *Client) GetPersonDates(ctx context.Context, name string) (string, error) {
	return c.searchExtract(ctx, name)
}

// searchExtract runs the two-call flow: full-text search for the best
// page title, then a plain-text intro extract of that page.
func (c *Client) searchExtract(ctx context.Context, query string) (string, error) {
	title, err := c.searchTitle(ctx, query)
	if err != nil {
		return "", err
	}
	if title == "" {
		return "", fmt.Errorf("no page found for %q", query)
	}
	return c.extract(ctx, title)
}

type searchResponse struct {
	Query struct {
		Search []struct {
			Title string `json:"title"`
		} `json:"search"`
	} `json:"query"`
}

func (c *Client) searchTitle(ctx context.Context, query string) (string, error) {
	params := url.Values{
		"action":   {"query"},
		"list":     {"search"},
		"srsearch": {query},
		"srlimit":  {"1"},
		"format":   {"json"},
	}

	var sr searchResponse
	if err := c.getJSON(ctx, params, &sr); err != nil {
		return "", fmt.Errorf("searching for %q: %w", query, err)
	}
	if len(sr.Query.Search) == 0 {
		return "", nil
	}
	return sr.Query.Search[0].Title, nil
}

type extractResponse struct {
	Query struct {
		Pages map[string]struct {
			Extract string `json:"extract"`
		} `json:"pages"`
	} `json:"query"`
}

func (c *Client) extract(ctx context.Context, title string) (string, error) {
	params := url.Values{
		"action":      {"query"},
		"prop":        {"extracts"},
		"titles":      {title},
		"exintro":     {"1"},
		"explaintext": {"1"},
		"format":      {"json"},
	}

	var er extractResponse
	if err := c.getJSON(ctx, params, &er); err != nil {
		return "", fmt.Errorf("fetching extract for %q: %w", title, err)
	}
	for _, page := range er.Query.Pages {
		if page.Extract != "" {
			return page.Extract, nil
		}
	}
	return "", fmt.Errorf("no extract for %q", title)
}

func (c *Client) getJSON(ctx context.Context, params url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.APIBase+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)

	resp, err := httputil.DoWithRetry(ctx, c.http, req, 0)
	if err != nil {
		return fmt.Errorf("wiki API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("wiki API returned HTTP %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("parsing wiki response: %w", err)
	}
	return nil
}
