package locations

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/JakeFAU/loc-announcer/internal/httpjson"
)

// Doer is the subset of httpjson.Client used by Source.
type Doer interface {
	Do(ctx context.Context, req httpjson.Request) (string, error)
}

// Source fetches the current locations of interest.
type Source struct {
	client Doer
	url    string
}

// NewSource builds a Source reading from url.
func NewSource(client Doer, url string) (*Source, error) {
	if client == nil {
		return nil, fmt.Errorf("http client is required")
	}
	if url == "" {
		return nil, fmt.Errorf("source url is required")
	}
	return &Source{client: client, url: url}, nil
}

// Fetch downloads the feed and returns its items in upstream order.
func (s *Source) Fetch(ctx context.Context) ([]Entry, error) {
	body, err := s.client.Do(ctx, httpjson.Request{URL: s.url, Method: http.MethodGet})
	if err != nil {
		return nil, fmt.Errorf("fetch locations: %w", err)
	}
	var feed Feed
	if err := json.Unmarshal([]byte(body), &feed); err != nil {
		return nil, fmt.Errorf("decode locations: %w", err)
	}
	return feed.Items, nil
}
