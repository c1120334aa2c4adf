package dispatcher

import (
	"context"
	"errors"
	"iter"
	"sync"
	"testing"
	"time"

	"aidispatch/internal/backend"
)

type fakeBackend struct {
	id   backend.Identity
	caps []backend.Capability

	mu            sync.Mutex
	available     bool
	initErr       error
	unhealthy     bool
	panicShutdown bool
	initialized   bool
	initCalls     int
	shutdownCalls int
	configured    []backend.ConnectionParams
	models        []backend.ModelInfo
}

func newFake(id backend.Identity, caps ...backend.Capability) *fakeBackend {
	return &fakeBackend{id: id, caps: caps, available: true}
}

func (f *fakeBackend) Identity() backend.Identity { return f.id }
func (f *fakeBackend) Capabilities() []backend.Capability { return f.caps }
func (f *fakeBackend) HasCapability(c backend.Capability) bool {
	return backend.Require(f.id, f.caps, c) == nil
}

func (f *fakeBackend) IsAvailable(context.Context) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.available
}

func (f *fakeBackend) Initialize(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.initCalls++
	if f.initErr != nil {
		return f.initErr
	}
	f.initialized = true
	return nil
}

func (f *fakeBackend) Shutdown(context.Context) {
	f.mu.Lock()
	f.shutdownCalls++
	f.initialized = false
	p := f.panicShutdown
	f.mu.Unlock()
	if p {
		panic("shutdown exploded")
	}
}

func (f *fakeBackend) Status(context.Context) backend.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return backend.Status{
		Identity:     f.id,
		Available:    f.available,
		Initialized:  f.initialized && !f.unhealthy,
		Capabilities: f.caps,
		Models:       f.models,
	}
}

func (f *fakeBackend) ready(c backend.Capability) error {
	if err := backend.Require(f.id, f.caps, c); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.initialized {
		return backend.ErrNotInitialized(f.id)
	}
	return nil
}

func (f *fakeBackend) Chat(_ context.Context, _ backend.ChatRequest) (iter.Seq2[string, error], error) {
	if err := f.ready(backend.CapChat); err != nil {
		return nil, err
	}
	return func(yield func(string, error) bool) {
		for _, s := range []string{"hel", "lo"} {
			if !yield(s, nil) {
				return
			}
		}
	}, nil
}

func (f *fakeBackend) ChatComplete(_ context.Context, req backend.ChatRequest) (backend.ChatResponse, error) {
	if err := f.ready(backend.CapChat); err != nil {
		return backend.ChatResponse{}, err
	}
	return backend.ChatResponse{Content: "hello", Model: req.Model, FinishReason: "stop"}, nil
}

func (f *fakeBackend) GenerateEmbedding(_ context.Context, req backend.EmbeddingRequest) (backend.EmbeddingResult, error) {
	if err := f.ready(backend.CapEmbeddings); err != nil {
		return backend.EmbeddingResult{}, err
	}
	return backend.EmbeddingResult{Vector: []float32{float32(req.Input.Len())}, Dimensions: 1, Model: string(f.id)}, nil
}

func (f *fakeBackend) ProcessImage(_ context.Context, _ backend.VisionRequest) (backend.VisionResponse, error) {
	if err := f.ready(backend.CapVision); err != nil {
		return backend.VisionResponse{}, err
	}
	return backend.VisionResponse{Description: "a cat"}, nil
}

func (f *fakeBackend) Configure(p backend.ConnectionParams) error {
	if p.BaseURL == "bad" {
		return errors.New("invalid base url")
	}
	f.mu.Lock()
	f.configured = append(f.configured, p)
	f.mu.Unlock()
	return nil
}

func (f *fakeBackend) counts() (inits, shutdowns int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.initCalls, f.shutdownCalls
}

// managedFake adds model management on top of fakeBackend.
type managedFake struct {
	*fakeBackend
	pullErr error
	deleted []string
}

func (m *managedFake) ListModels(context.Context) ([]backend.ModelInfo, error) {
	return []backend.ModelInfo{{Name: "llama3.2", Downloaded: true, Kind: backend.KindChat}}, nil
}

func (m *managedFake) DownloadModel(_ context.Context, name string, onProgress func(backend.PullProgress)) error {
	onProgress(backend.PullProgress{Model: name, Status: "pulling", Completed: 50, Total: 100, Percent: 50})
	if m.pullErr != nil {
		return m.pullErr
	}
	onProgress(backend.PullProgress{Model: name, Status: "success", Completed: 100, Total: 100, Percent: 100})
	return nil
}

func (m *managedFake) DeleteModel(_ context.Context, name string) ([]backend.ModelInfo, error) {
	m.deleted = append(m.deleted, name)
	return nil, nil
}

func newDispatcher(s Settings) (*Dispatcher, *MemoryPublisher) {
	pub := NewMemoryPublisher()
	return New(Config{Settings: s, Publisher: pub}), pub
}

func testCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}
