package backend

import (
	"encoding/json"
	"errors"
)

// ModelKind classifies what a model is used for.
type ModelKind string

const (
	KindChat   ModelKind = "chat"
	KindEmbed  ModelKind = "embed"
	KindVision ModelKind = "vision"
)

// ModelInfo describes one model known to a backend.
type ModelInfo struct {
	Name       string    `json:"name"`
	Size       int64     `json:"size,omitempty"`
	Downloaded bool      `json:"downloaded"`
	Kind       ModelKind `json:"kind"`
	Dimensions int       `json:"dimensions,omitempty"`
}

// Status is a point-in-time report of a backend. Initialized is always false
// when Available is false.
type Status struct {
	Identity     Identity     `json:"identity"`
	Available    bool         `json:"available"`
	Initialized  bool         `json:"initialized"`
	Capabilities []Capability `json:"capabilities"`
	Models       []ModelInfo  `json:"models,omitempty"`
	Version      string       `json:"version,omitempty"`
	Error        string       `json:"error,omitempty"`
}

// ConnectionParams are the per-backend settings that can be changed at
// runtime. Empty fields leave the current value untouched.
type ConnectionParams struct {
	BaseURL     string `json:"base_url,omitempty" yaml:"base_url" toml:"base_url"`
	ChatModel   string `json:"chat_model,omitempty" yaml:"chat_model" toml:"chat_model"`
	EmbedModel  string `json:"embed_model,omitempty" yaml:"embed_model" toml:"embed_model"`
	VisionModel string `json:"vision_model,omitempty" yaml:"vision_model" toml:"vision_model"`
}

type Message struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"`
}

type ChatRequest struct {
	Model       string
	Messages    []Message
	Temperature *float64
	MaxTokens   int
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

type ChatResponse struct {
	Content string
	Model   string
	// FinishReason is "stop" only when the backend reported completion.
	FinishReason string
	Usage        Usage
}

// EmbedInput is either a single string or a batch of strings. The shape is
// preserved through to the result: a single input yields EmbeddingResult.Vector,
// a batch yields EmbeddingResult.Vectors.
type EmbedInput struct {
	values []string
	batch  bool
}

// Text returns a single-string input.
func Text(s string) EmbedInput { return EmbedInput{values: []string{s}} }

// Texts returns a batch input. A batch of one is still a batch.
func Texts(s ...string) EmbedInput {
	return EmbedInput{values: append([]string(nil), s...), batch: true}
}

func (in EmbedInput) IsBatch() bool    { return in.batch }
func (in EmbedInput) Len() int         { return len(in.values) }
func (in EmbedInput) Values() []string { return append([]string(nil), in.values...) }

func (in EmbedInput) MarshalJSON() ([]byte, error) {
	if in.batch {
		if in.values == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(in.values)
	}
	if len(in.values) == 0 {
		return json.Marshal("")
	}
	return json.Marshal(in.values[0])
}

func (in *EmbedInput) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*in = Text(s)
		return nil
	}
	var ss []string
	if err := json.Unmarshal(b, &ss); err != nil {
		return errors.New("embedding input must be a string or an array of strings")
	}
	*in = Texts(ss...)
	return nil
}

type EmbeddingRequest struct {
	Model string
	Input EmbedInput
}

// EmbeddingResult carries Vector for single inputs and Vectors for batches.
// In a partially failed batch the failed positions hold nil.
type EmbeddingResult struct {
	Vector     []float32
	Vectors    [][]float32
	Dimensions int
	Model      string
}

type VisionRequest struct {
	Model string
	// Image is base64 encoded.
	Image  string
	Prompt string
}

type VisionResponse struct {
	Description string
	Model       string
}

// PullProgress is one progress report of a model download.
type PullProgress struct {
	Model     string  `json:"model"`
	Status    string  `json:"status"`
	Completed int64   `json:"completed,omitempty"`
	Total     int64   `json:"total,omitempty"`
	Percent   float64 `json:"percent,omitempty"`
}
