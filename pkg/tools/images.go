package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/tidwall/gjson"
)

type ImageRequest struct {
	ID          string
	Prompt      string
	AspectRatio string
	Background  string
}

// ImageSource produces a URL (or data: URL) for a generated image.
type ImageSource interface {
	Name() string
	Generate(ctx context.Context, req ImageRequest) (string, error)
}

// ImageChain tries each source in turn and returns the first URL.
type ImageChain []ImageSource

func (c ImageChain) Name() string {
	return "chain"
}

func (c ImageChain) Generate(ctx context.Context, req ImageRequest) (string, error) {
	logger := getLogger(ctx)
	var allerr error
	for _, src := range c {
		url, err := src.Generate(ctx, req)
		if err == nil && url != "" {
			return url, nil
		}
		if err == nil {
			err = errors.New("no image returned")
		}
		logger.Warn("Image source failed", "source", src.Name(), "id", req.ID, "error", err)
		allerr = errors.Join(allerr, fmt.Errorf("%s: %w", src.Name(), err))
		if ctx.Err() != nil {
			break
		}
	}
	if allerr == nil {
		allerr = errors.New("no image sources")
	}
	return "", allerr
}

// AspectRatio maps square|landscape|portrait to a width:height ratio.
func AspectRatio(name string) string {
	switch name {
	case "landscape":
		return "16:9"
	case "portrait":
		return "9:16"
	default:
		return "1:1"
	}
}

func imageSize(name string) (int, int) {
	switch name {
	case "landscape":
		return 1024, 768
	case "portrait":
		return 768, 1024
	default:
		return 512, 512
	}
}

// HTTPImageSource posts the prompt to an image generation endpoint that
// answers with a URL in one of the common response shapes.
type HTTPImageSource struct {
	URL    string
	Client *http.Client
}

func (s *HTTPImageSource) Name() string {
	return "http"
}

var imageURLPaths = []string{"url", "data.0.url", "output.0"}

func (s *HTTPImageSource) Generate(ctx context.Context, req ImageRequest) (string, error) {
	body, err := json.Marshal(map[string]any{
		"prompt":       req.Prompt,
		"aspect_ratio": req.AspectRatio,
		"n":            1,
	})
	if err != nil {
		return "", err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.URL, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("status %d: %s", resp.StatusCode, string(data))
	}
	for _, p := range imageURLPaths {
		if v := gjson.GetBytes(data, p); v.Type == gjson.String && v.Str != "" {
			return v.Str, nil
		}
	}
	return "", errors.New("no url in response")
}

// PicsumSource returns a deterministic stock photo for the placeholder id.
type PicsumSource struct{}

func (PicsumSource) Name() string {
	return "picsum"
}

func (PicsumSource) Generate(_ context.Context, req ImageRequest) (string, error) {
	w, h := imageSize(req.AspectRatio)
	seed := req.ID
	if seed == "" {
		seed = "placeholder"
	}
	return fmt.Sprintf("https://picsum.photos/seed/%s/%d/%d", url.PathEscape(seed), w, h), nil
}
