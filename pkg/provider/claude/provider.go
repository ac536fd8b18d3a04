// Package claude streams design-agent turns from the Anthropic Messages API.
package claude

import (
	"context"
	"iter"
	"net/http"
	"net/url"
	"os"

	"github.com/jmuk/sleek/pkg/agent"
	"github.com/jmuk/sleek/pkg/session"
)

type Provider struct {
	config *Config
	url    *url.URL
	apiKey string
	client *http.Client
}

func New(c *Config) (*Provider, error) {
	apiKey, err := c.apiKey(os.Getenv)
	if err != nil {
		return nil, err
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return nil, err
	}
	return &Provider{
		config: c,
		url:    u.JoinPath("v1", "messages"),
		apiKey: apiKey,
		client: &http.Client{},
	}, nil
}

func (p *Provider) Stream(ctx context.Context, req *agent.Request) iter.Seq2[agent.Chunk, error] {
	return func(yield func(agent.Chunk, error) bool) {
		logger := session.Logger(ctx, "claude")
		logger.Debug("Sending request", "model", p.config.model(), "messages", len(req.Messages), "tools", len(req.Tools))
		body, err := p.request(ctx, req)
		if err != nil {
			yield(nil, err)
			return
		}
		defer body.Close()
		for chunk, err := range newEventProcessor(body, logger).processEvents() {
			if !yield(chunk, err) {
				return
			}
		}
	}
}
