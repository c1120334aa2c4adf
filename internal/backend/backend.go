package backend

import (
	"context"
	"iter"
)

// Backend is one compute provider behind the dispatcher. Implementations must
// be safe for concurrent use.
type Backend interface {
	Identity() Identity
	Capabilities() []Capability
	HasCapability(c Capability) bool

	// IsAvailable is a side-effect free probe. It never returns an error; any
	// failure simply reports false.
	IsAvailable(ctx context.Context) bool
	// Initialize prepares the backend for requests. Calling it on an already
	// initialized backend is a no-op.
	Initialize(ctx context.Context) error
	// Shutdown releases resources. It is best effort and never fails.
	Shutdown(ctx context.Context)
	// Status is recomputed on every call.
	Status(ctx context.Context) Status

	// Chat returns a lazy, forward-only fragment sequence. Ranging over it a
	// second time yields ErrStreamConsumed. Callers must range it, even if
	// only to break, or cancel ctx; otherwise the stream is held open.
	Chat(ctx context.Context, req ChatRequest) (iter.Seq2[string, error], error)
	ChatComplete(ctx context.Context, req ChatRequest) (ChatResponse, error)
	GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (EmbeddingResult, error)
	ProcessImage(ctx context.Context, req VisionRequest) (VisionResponse, error)
}

// ModelManager is implemented by backends that can fetch and remove models.
type ModelManager interface {
	ListModels(ctx context.Context) ([]ModelInfo, error)
	DownloadModel(ctx context.Context, name string, onProgress func(PullProgress)) error
	// DeleteModel removes name and returns the refreshed catalog.
	DeleteModel(ctx context.Context, name string) ([]ModelInfo, error)
}

// Configurable is implemented by backends whose connection parameters can be
// changed at runtime through dispatcher settings.
type Configurable interface {
	Configure(params ConnectionParams) error
}
