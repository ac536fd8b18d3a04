package gemini

import (
	"encoding/base64"
	"iter"
	"strings"

	"github.com/jmuk/sleek/pkg/agent"
	"github.com/jmuk/sleek/pkg/partial"
	"google.golang.org/genai"
)

// skipSignature is accepted by the API in place of a missing thought
// signature on a replayed function call.
const skipSignature = "skip_thought_signature_validator"

func encodeSignature(sig []byte) string {
	if len(sig) == 0 {
		return ""
	}
	return base64.StdEncoding.EncodeToString(sig)
}

func decodeSignature(token string) []byte {
	if token == "" {
		return nil
	}
	sig, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return nil
	}
	return sig
}

func toPatches(args []*genai.PartialArg) []partial.Patch {
	patches := make([]partial.Patch, 0, len(args))
	for _, pa := range args {
		if pa == nil {
			continue
		}
		switch {
		case pa.NumberValue != nil:
			patches = append(patches, partial.NumberPatch(pa.JsonPath, *pa.NumberValue))
		case pa.BoolValue != nil:
			patches = append(patches, partial.BoolPatch(pa.JsonPath, *pa.BoolValue))
		case pa.NULLValue != "":
			patches = append(patches, partial.NullPatch(pa.JsonPath))
		default:
			patches = append(patches, partial.StringPatch(pa.JsonPath, pa.StringValue))
		}
	}
	return patches
}

type openCall struct {
	id   string
	name string
}

// chunker converts response parts into agent chunks. At most one function
// call streams at a time.
type chunker struct {
	newID func() string
	open  *openCall
}

func (c *chunker) callID(fc *genai.FunctionCall) string {
	if fc.ID != "" {
		return fc.ID
	}
	return c.newID()
}

func (c *chunker) close(args map[string]any, token string) agent.Chunk {
	final := agent.CallFinalChunk{ID: c.open.id, Name: c.open.name, Args: args, Token: token}
	c.open = nil
	return final
}

func (c *chunker) part(p *genai.Part) []agent.Chunk {
	var chunks []agent.Chunk
	if p.Text != "" {
		if p.Thought {
			chunks = append(chunks, agent.ReasoningChunk{Text: p.Text, Signature: encodeSignature(p.ThoughtSignature)})
		} else {
			chunks = append(chunks, agent.TextChunk{Text: p.Text})
		}
	}
	fc := p.FunctionCall
	if fc == nil {
		return chunks
	}

	token := encodeSignature(p.ThoughtSignature)
	name := strings.TrimSpace(fc.Name)
	streaming := len(fc.PartialArgs) > 0 || (fc.WillContinue != nil && *fc.WillContinue)
	willContinue := fc.WillContinue != nil && *fc.WillContinue

	// A new named call ends the one still open.
	if c.open != nil && name != "" && name != "unknown" && name != c.open.name {
		chunks = append(chunks, c.close(nil, ""))
	}

	if c.open != nil {
		if len(fc.PartialArgs) > 0 {
			chunks = append(chunks, agent.CallDeltaChunk{
				ID:      c.open.id,
				Name:    c.open.name,
				Patches: toPatches(fc.PartialArgs),
				Token:   token,
			})
		}
		if !willContinue {
			chunks = append(chunks, c.close(fc.Args, token))
		}
		return chunks
	}

	if name == "" || name == "unknown" {
		return chunks
	}
	if !streaming {
		return append(chunks, agent.CallFinalChunk{ID: c.callID(fc), Name: name, Args: fc.Args, Token: token})
	}

	c.open = &openCall{id: c.callID(fc), name: name}
	chunks = append(chunks, agent.CallDeltaChunk{
		ID:      c.open.id,
		Name:    name,
		Patches: toPatches(fc.PartialArgs),
		Token:   token,
	})
	if !willContinue {
		chunks = append(chunks, c.close(fc.Args, token))
	}
	return chunks
}

// chunks adapts a genai response stream. A call still open when the stream
// ends is closed with the arguments received so far.
func chunks(responses iter.Seq2[*genai.GenerateContentResponse, error], newID func() string) iter.Seq2[agent.Chunk, error] {
	return func(yield func(agent.Chunk, error) bool) {
		c := &chunker{newID: newID}
		for resp, err := range responses {
			if err != nil {
				yield(nil, err)
				return
			}
			if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
				continue
			}
			for _, p := range resp.Candidates[0].Content.Parts {
				if p == nil {
					continue
				}
				for _, chunk := range c.part(p) {
					if !yield(chunk, nil) {
						return
					}
				}
			}
		}
		if c.open != nil {
			yield(c.close(nil, ""), nil)
		}
	}
}
