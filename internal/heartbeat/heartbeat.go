// Package heartbeat reports run liveness to an external uptime monitor.
package heartbeat

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/JakeFAU/loc-announcer/internal/httpjson"
)

// Doer is the subset of httpjson.Client used by Pinger.
type Doer interface {
	Do(ctx context.Context, req httpjson.Request) (string, error)
}

// Pinger hits the monitor URL once per successful run.
type Pinger struct {
	client Doer
	url    string
	method string
}

// New builds a Pinger. An empty url yields a Pinger whose Ping is a no-op.
func New(client Doer, url, method string) (*Pinger, error) {
	if client == nil {
		return nil, fmt.Errorf("http client is required")
	}
	method = strings.ToUpper(strings.TrimSpace(method))
	if method == "" {
		method = http.MethodPost
	}
	return &Pinger{client: client, url: url, method: method}, nil
}

// Enabled reports whether a monitor URL is configured.
func (p *Pinger) Enabled() bool {
	return p.url != ""
}

// Ping notifies the monitor and returns its response body.
func (p *Pinger) Ping(ctx context.Context) (string, error) {
	if !p.Enabled() {
		return "", nil
	}
	res, err := p.client.Do(ctx, httpjson.Request{URL: p.url, Method: p.method})
	if err != nil {
		return "", fmt.Errorf("uptime ping: %w", err)
	}
	return res, nil
}
