// Package remote implements the http-remote backend against an Ollama-style
// inference server.
package remote

import (
	"context"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"aidispatch/internal/backend"
)

var capabilities = []backend.Capability{backend.CapChat, backend.CapEmbeddings, backend.CapVision}

// Backend talks to a remote inference server over HTTP.
type Backend struct {
	log          zerolog.Logger
	client       *http.Client
	embedClient  *http.Client
	run          CommandRunner
	curlPath     string
	probeTimeout time.Duration
	visionPrompt string

	mu          sync.RWMutex
	base        string
	chatModel   string
	embedModel  string
	visionModel string
	version     string
	initialized bool
}

var (
	_ backend.Backend      = (*Backend)(nil)
	_ backend.ModelManager = (*Backend)(nil)
	_ backend.Configurable = (*Backend)(nil)
)

func New(cfg Config) *Backend {
	cfg = cfg.withDefaults()
	log := zerolog.Nop()
	if cfg.Logger != nil {
		log = *cfg.Logger
	}
	pooled, embed := newClients(cfg.ConnectTimeout)
	return &Backend{
		log:          log.With().Str("backend", string(backend.HTTPRemote)).Logger(),
		client:       pooled,
		embedClient:  embed,
		run:          cfg.RunCommand,
		curlPath:     cfg.CurlPath,
		probeTimeout: cfg.ProbeTimeout,
		visionPrompt: cfg.VisionPrompt,
		base:         cfg.BaseURL,
		chatModel:    cfg.ChatModel,
		embedModel:   cfg.EmbedModel,
		visionModel:  cfg.VisionModel,
	}
}

func (b *Backend) Identity() backend.Identity { return backend.HTTPRemote }

func (b *Backend) Capabilities() []backend.Capability { return slices.Clone(capabilities) }

func (b *Backend) HasCapability(c backend.Capability) bool { return slices.Contains(capabilities, c) }

func (b *Backend) baseURL() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.base
}

// IsAvailable probes GET /api/tags with a short timeout.
func (b *Backend) IsAvailable(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, b.probeTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL()+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// Initialize probes the server and records its version. A failed version
// lookup is tolerated.
func (b *Backend) Initialize(ctx context.Context) error {
	id := b.Identity()
	if !b.IsAvailable(ctx) {
		return backend.ErrInitialization(id, backend.ErrUnavailable(id, "server not reachable at "+b.baseURL()))
	}
	version, err := b.Version(ctx)
	if err != nil {
		b.log.Warn().Err(err).Msg("version lookup failed")
	}
	b.mu.Lock()
	b.version = version
	b.initialized = true
	b.mu.Unlock()
	b.log.Info().Str("event", "initialized").Str("url", b.baseURL()).Str("version", version).Msg("remote server ready")
	return nil
}

func (b *Backend) Shutdown(ctx context.Context) {
	b.mu.Lock()
	b.initialized = false
	b.mu.Unlock()
	b.client.CloseIdleConnections()
	b.embedClient.CloseIdleConnections()
}

func (b *Backend) isInitialized() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.initialized
}

// guard is the common prologue of every capability entry point.
func (b *Backend) guard(c backend.Capability) error {
	if err := backend.Require(b.Identity(), capabilities, c); err != nil {
		return err
	}
	if !b.isInitialized() {
		return backend.ErrNotInitialized(b.Identity())
	}
	return nil
}

func (b *Backend) Status(ctx context.Context) backend.Status {
	st := backend.Status{Identity: b.Identity(), Capabilities: b.Capabilities()}
	if !b.IsAvailable(ctx) {
		st.Error = "server not reachable at " + b.baseURL()
		return st
	}
	st.Available = true
	b.mu.RLock()
	st.Initialized = b.initialized
	st.Version = b.version
	b.mu.RUnlock()
	models, err := b.ListModels(ctx)
	if err != nil {
		st.Error = err.Error()
	}
	st.Models = models
	return st
}

// Version returns the server version from GET /api/version.
func (b *Backend) Version(ctx context.Context) (string, error) {
	var out struct {
		Version string `json:"version"`
	}
	if err := b.doJSON(ctx, callOpts{}, http.MethodGet, "/api/version", nil, &out); err != nil {
		return "", err
	}
	return out.Version, nil
}

// Configure applies non-empty connection fields.
func (b *Backend) Configure(p backend.ConnectionParams) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if u := strings.TrimRight(p.BaseURL, "/"); u != "" {
		b.base = u
	}
	if p.ChatModel != "" {
		b.chatModel = p.ChatModel
	}
	if p.EmbedModel != "" {
		b.embedModel = p.EmbedModel
	}
	if p.VisionModel != "" {
		b.visionModel = p.VisionModel
	}
	return nil
}

func (b *Backend) models() (chat, embed, vision string) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.chatModel, b.embedModel, b.visionModel
}
