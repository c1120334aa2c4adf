package remote

import (
	"context"
	"errors"
	"net/http"

	"aidispatch/internal/backend"
)

type generateRequest struct {
	Model  string   `json:"model"`
	Prompt string   `json:"prompt"`
	Images []string `json:"images"`
	Stream bool     `json:"stream"`
}

type generateResponse struct {
	Model    string `json:"model"`
	Response string `json:"response"`
	Error    string `json:"error"`
}

// ProcessImage describes a base64 image with /api/generate.
func (b *Backend) ProcessImage(ctx context.Context, req backend.VisionRequest) (backend.VisionResponse, error) {
	if err := b.guard(backend.CapVision); err != nil {
		return backend.VisionResponse{}, err
	}
	if req.Image == "" {
		return backend.VisionResponse{}, errors.New("image is empty")
	}
	model := req.Model
	if model == "" {
		_, _, model = b.models()
	}
	prompt := req.Prompt
	if prompt == "" {
		prompt = b.visionPrompt
	}
	var out generateResponse
	body := generateRequest{Model: model, Prompt: prompt, Images: []string{req.Image}}
	if err := b.doJSON(ctx, callOpts{}, http.MethodPost, "/api/generate", body, &out); err != nil {
		return backend.VisionResponse{}, err
	}
	if out.Error != "" {
		return backend.VisionResponse{}, errors.New("vision: " + out.Error)
	}
	if out.Model == "" {
		out.Model = model
	}
	return backend.VisionResponse{Description: out.Response, Model: out.Model}, nil
}
