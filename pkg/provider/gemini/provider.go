// Package gemini streams design-agent turns from Gemini models through the
// genai SDK.
package gemini

import (
	"context"
	"iter"

	"github.com/google/uuid"
	"github.com/jmuk/sleek/pkg/agent"
	"github.com/jmuk/sleek/pkg/session"
	"google.golang.org/genai"
)

type Provider struct {
	client *genai.Client
	config *Config
}

func New(ctx context.Context, c *Config) (*Provider, error) {
	client, err := c.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	return &Provider{client: client, config: c}, nil
}

func (p *Provider) model() string {
	if p.config.Model != "" {
		return p.config.Model
	}
	return defaultModel
}

func (p *Provider) generateConfig(req *agent.Request) *genai.GenerateContentConfig {
	maxTokens := p.config.MaxOutputTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxOutputTokens
	}
	gc := &genai.GenerateContentConfig{
		MaxOutputTokens: maxTokens,
		ThinkingConfig: &genai.ThinkingConfig{
			IncludeThoughts: !p.config.ExcludeThoughts,
		},
	}
	if req.System != "" {
		gc.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if len(req.Tools) > 0 {
		gc.Tools = []*genai.Tool{{FunctionDeclarations: toFunctions(req.Tools)}}
		fcc := &genai.FunctionCallingConfig{Mode: genai.FunctionCallingConfigModeAuto}
		if p.config.StreamArgs {
			fcc.StreamFunctionCallArguments = genai.Ptr(true)
		}
		gc.ToolConfig = &genai.ToolConfig{FunctionCallingConfig: fcc}
	}
	return gc
}

func (p *Provider) Stream(ctx context.Context, req *agent.Request) iter.Seq2[agent.Chunk, error] {
	logger := session.Logger(ctx, "gemini")
	contents := toContents(req.Messages)
	gc := p.generateConfig(req)
	logger.Debug("Sending request", "model", p.model(), "contents", len(contents), "tools", len(req.Tools))
	responses := p.client.Models.GenerateContentStream(ctx, p.model(), contents, gc)
	return chunks(responses, uuid.NewString)
}
