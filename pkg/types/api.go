package types

import "encoding/json"

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: invalid JSON body
	Error string `json:"error" example:"invalid JSON body"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
}

// Model describes one model known to the active backend.
type Model struct {
	// example: nomic-embed-text
	Name string `json:"name" example:"nomic-embed-text"`
	// Size on disk in bytes, when known.
	Size int64 `json:"size,omitempty" example:"274302450"`
	// Whether the model is present locally.
	Downloaded bool `json:"downloaded" example:"true"`
	// One of chat, embed, vision.
	// example: embed
	Kind string `json:"kind" example:"embed"`
	// Vector size for embedding models, when known.
	Dimensions int `json:"dimensions,omitempty" example:"768"`
}

// BackendStatus is the point-in-time report of one backend.
type BackendStatus struct {
	// example: http-remote
	Identity     string   `json:"identity" example:"http-remote"`
	Available    bool     `json:"available" example:"true"`
	Initialized  bool     `json:"initialized" example:"true"`
	Active       bool     `json:"active" example:"true"`
	Capabilities []string `json:"capabilities" example:"chat,embeddings,vision"`
	Models       []Model  `json:"models,omitempty"`
	// Server version reported by the backend, if any.
	Version string `json:"version,omitempty" example:"0.5.7"`
	Error   string `json:"error,omitempty"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	// Identity of the active backend; empty when none is active.
	// example: subprocess-embed
	Active string `json:"active" example:"subprocess-embed"`
	// Every registered backend, in registration order.
	Backends []BackendStatus `json:"backends"`
	// Uptime of the server in seconds.
	// example: 3600
	UptimeSeconds int64 `json:"uptime_seconds" example:"3600"`
	// Server time in unix seconds.
	// example: 1700000000
	ServerTimeUnix int64 `json:"server_time_unix" example:"1700000000"`
}

// SwitchRequest is the body of POST /switch.
type SwitchRequest struct {
	// example: http-remote
	Backend string `json:"backend" example:"http-remote"`
}

// ConnectionParams are runtime-changeable backend parameters.
type ConnectionParams struct {
	BaseURL     string `json:"base_url,omitempty" example:"http://localhost:11434"`
	ChatModel   string `json:"chat_model,omitempty" example:"llama3.2"`
	EmbedModel  string `json:"embed_model,omitempty" example:"nomic-embed-text"`
	VisionModel string `json:"vision_model,omitempty" example:"llava"`
}

// Settings is returned by GET and PATCH /settings.
type Settings struct {
	// example: subprocess-embed
	PreferredBackend string                      `json:"preferred_backend" example:"subprocess-embed"`
	FallbackEnabled  bool                        `json:"fallback_enabled" example:"true"`
	FallbackOrder    []string                    `json:"fallback_order" example:"subprocess-embed,http-remote"`
	Connections      map[string]ConnectionParams `json:"connections,omitempty"`
}

// SettingsPatch is the body of PATCH /settings. Omitted fields are unchanged.
type SettingsPatch struct {
	PreferredBackend *string                     `json:"preferred_backend,omitempty" example:"http-remote"`
	FallbackEnabled  *bool                       `json:"fallback_enabled,omitempty" example:"false"`
	FallbackOrder    []string                    `json:"fallback_order,omitempty"`
	Connections      map[string]ConnectionParams `json:"connections,omitempty"`
}

// ChatMessage is one turn of a conversation.
type ChatMessage struct {
	// example: user
	Role string `json:"role" example:"user"`
	// example: Why is the sky blue?
	Content string `json:"content" example:"Why is the sky blue?"`
	// Optional base64 encoded images for vision-capable chat models.
	Images []string `json:"images,omitempty"`
}

// ChatRequest is the body of POST /chat.
type ChatRequest struct {
	// Optional model; the backend default is used when empty.
	// example: llama3.2
	Model    string        `json:"model,omitempty" example:"llama3.2"`
	Messages []ChatMessage `json:"messages"`
	// If true, the response is NDJSON of ChatChunk lines.
	Stream bool `json:"stream,omitempty" example:"true"`
	// example: 0.7
	Temperature *float64 `json:"temperature,omitempty" example:"0.7"`
	// example: 256
	MaxTokens int `json:"max_tokens,omitempty" example:"256"`
}

// ChatChunk is one NDJSON line of a streamed chat.
type ChatChunk struct {
	Delta string `json:"delta,omitempty" example:"The sky"`
	Done  bool   `json:"done,omitempty"`
	Error string `json:"error,omitempty"`
}

// ChatResponse is returned by POST /chat when stream is false.
type ChatResponse struct {
	Content          string `json:"content" example:"Rayleigh scattering."`
	Model            string `json:"model" example:"llama3.2"`
	FinishReason     string `json:"finish_reason,omitempty" example:"stop"`
	PromptTokens     int    `json:"prompt_tokens" example:"12"`
	CompletionTokens int    `json:"completion_tokens" example:"48"`
}

// EmbeddingRequest is the body of POST /embeddings. Input is a string or an
// array of strings; the response mirrors that shape.
type EmbeddingRequest struct {
	Model string          `json:"model,omitempty" example:"nomic-embed-text"`
	Input json.RawMessage `json:"input" swaggertype:"string" example:"hello world"`
}

// EmbeddingResponse carries Embedding for a string input and Embeddings for
// an array input. FailedIndexes lists batch positions that produced no vector.
type EmbeddingResponse struct {
	Embedding     []float32   `json:"embedding,omitempty"`
	Embeddings    [][]float32 `json:"embeddings,omitempty"`
	Dimensions    int         `json:"dimensions" example:"384"`
	Model         string      `json:"model" example:"nomic-embed-text"`
	FailedIndexes []int       `json:"failed_indexes,omitempty"`
	Error         string      `json:"error,omitempty"`
}

// VisionRequest is the body of POST /vision.
type VisionRequest struct {
	Model string `json:"model,omitempty" example:"llava"`
	// Base64 encoded image.
	Image  string `json:"image"`
	Prompt string `json:"prompt,omitempty" example:"What is in this picture?"`
}

type VisionResponse struct {
	Description string `json:"description" example:"A cat sleeping on a sofa."`
	Model       string `json:"model" example:"llava"`
}

// ModelsResponse wraps the catalog of the active backend.
type ModelsResponse struct {
	// example: http-remote
	Backend string  `json:"backend" example:"http-remote"`
	Models  []Model `json:"models"`
}

// PullRequest is the body of POST /models/pull.
type PullRequest struct {
	// example: llava
	Name string `json:"name" example:"llava"`
}

// PullProgress is one NDJSON line of POST /models/pull.
type PullProgress struct {
	Model     string  `json:"model,omitempty" example:"llava"`
	Status    string  `json:"status,omitempty" example:"pulling manifest"`
	Completed int64   `json:"completed,omitempty" example:"1024"`
	Total     int64   `json:"total,omitempty" example:"4096"`
	Percent   float64 `json:"percent,omitempty" example:"25"`
	Done      bool    `json:"done,omitempty"`
	Error     string  `json:"error,omitempty"`
}
