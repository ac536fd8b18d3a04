package gemini

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/jmuk/sleek/pkg/tools"
	"google.golang.org/genai"
)

const defaultImageModel = "imagen-3.0-fast-generate-001"

// ImageSource generates images with Imagen and returns them as data: URLs.
type ImageSource struct {
	models *genai.Models
	model  string
}

func NewImageSource(client *genai.Client, model string) *ImageSource {
	if model == "" {
		model = defaultImageModel
	}
	return &ImageSource{models: client.Models, model: model}
}

func (s *ImageSource) Name() string {
	return "imagen"
}

func (s *ImageSource) Generate(ctx context.Context, req tools.ImageRequest) (string, error) {
	resp, err := s.models.GenerateImages(ctx, s.model, req.Prompt, &genai.GenerateImagesConfig{
		NumberOfImages: 1,
		AspectRatio:    tools.AspectRatio(req.AspectRatio),
	})
	if err != nil {
		return "", err
	}
	if len(resp.GeneratedImages) == 0 || resp.GeneratedImages[0].Image == nil {
		return "", errors.New("no image generated")
	}
	return dataURL(resp.GeneratedImages[0].Image)
}

func dataURL(img *genai.Image) (string, error) {
	if len(img.ImageBytes) == 0 {
		return "", errors.New("empty image")
	}
	mime := img.MIMEType
	if mime == "" {
		mime = "image/png"
	}
	return fmt.Sprintf("data:%s;base64,%s", mime, base64.StdEncoding.EncodeToString(img.ImageBytes)), nil
}
