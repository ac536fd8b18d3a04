// Package openai streams design-agent turns through the OpenAI Responses API.
package openai

import (
	"context"
	"iter"
	"os"

	"github.com/jmuk/sleek/pkg/agent"
	"github.com/jmuk/sleek/pkg/session"
	"github.com/openai/openai-go/v3/packages/param"
	"github.com/openai/openai-go/v3/responses"
	"github.com/openai/openai-go/v3/shared"
)

type Provider struct {
	client responses.ResponseService
	config *Config
}

func New(c *Config) (*Provider, error) {
	opts, err := c.requestOptions(os.Getenv)
	if err != nil {
		return nil, err
	}
	return &Provider{
		client: responses.NewResponseService(opts...),
		config: c,
	}, nil
}

func (p *Provider) params(req *agent.Request) (responses.ResponseNewParams, error) {
	input, err := toInput(req.Messages)
	if err != nil {
		return responses.ResponseNewParams{}, err
	}
	params := responses.ResponseNewParams{
		Input: responses.ResponseNewParamsInputUnion{OfInputItemList: input},
		Model: p.config.model(),
		Store: param.NewOpt(false),
	}
	if req.System != "" {
		params.Instructions = param.NewOpt(req.System)
	}
	if p.config.MaxOutputTokens > 0 {
		params.MaxOutputTokens = param.NewOpt(p.config.MaxOutputTokens)
	}
	if p.config.ReasoningEffort != "" {
		params.Reasoning = shared.ReasoningParam{
			Effort:  shared.ReasoningEffort(p.config.ReasoningEffort),
			Summary: shared.ReasoningSummaryAuto,
		}
	}
	for _, def := range req.Tools {
		tp, err := convertToolDef(def)
		if err != nil {
			return responses.ResponseNewParams{}, err
		}
		params.Tools = append(params.Tools, tp)
	}
	return params, nil
}

func (p *Provider) Stream(ctx context.Context, req *agent.Request) iter.Seq2[agent.Chunk, error] {
	return func(yield func(agent.Chunk, error) bool) {
		logger := session.Logger(ctx, "openai")
		params, err := p.params(req)
		if err != nil {
			yield(nil, err)
			return
		}
		logger.Debug("Sending request", "model", params.Model, "items", len(params.Input.OfInputItemList), "tools", len(params.Tools))
		st := p.client.NewStreaming(ctx, params)
		for chunk, err := range newOutputProcessor(logger).processStream(st) {
			if !yield(chunk, err) {
				return
			}
		}
	}
}
