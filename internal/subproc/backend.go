package subproc

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"os/exec"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"aidispatch/internal/backend"
	"aidispatch/internal/common/fsutil"
)

// State is the worker lifecycle state.
type State int

const (
	StateNotStarted State = iota
	StateSpawning
	StateAwaitingReady
	StateReady
	StateShuttingDown
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not-started"
	case StateSpawning:
		return "spawning"
	case StateAwaitingReady:
		return "awaiting-ready"
	case StateReady:
		return "ready"
	case StateShuttingDown:
		return "shutting-down"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

var capabilities = []backend.Capability{backend.CapEmbeddings}

// Backend runs a local embedding worker as a child process and talks to it
// with one JSON object per line over stdin/stdout.
type Backend struct {
	cfg      Config
	log      zerolog.Logger
	lookPath func(string) (string, error)

	// initMu serializes Initialize and Shutdown.
	initMu sync.Mutex

	mu    sync.Mutex
	state State
	proc  *process
	model string
}

var (
	_ backend.Backend      = (*Backend)(nil)
	_ backend.Configurable = (*Backend)(nil)
)

// New constructs a Backend. No process is started until Initialize.
func New(cfg Config) *Backend {
	cfg = cfg.withDefaults()
	log := zerolog.Nop()
	if cfg.Logger != nil {
		log = *cfg.Logger
	}
	return &Backend{
		cfg:      cfg,
		log:      log.With().Str("backend", string(backend.SubprocessEmbed)).Logger(),
		lookPath: exec.LookPath,
		model:    cfg.Model,
	}
}

func (b *Backend) Identity() backend.Identity { return backend.SubprocessEmbed }

func (b *Backend) Capabilities() []backend.Capability { return slices.Clone(capabilities) }

func (b *Backend) HasCapability(c backend.Capability) bool { return slices.Contains(capabilities, c) }

// State returns the current lifecycle state.
func (b *Backend) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Backend) setState(s State) {
	b.mu.Lock()
	b.state = s
	b.mu.Unlock()
}

// ready returns the running process when the worker is Ready.
func (b *Backend) ready() *process {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != StateReady {
		return nil
	}
	return b.proc
}

// IsAvailable checks that the interpreter resolves and the worker script
// exists. It never spawns anything.
func (b *Backend) IsAvailable(ctx context.Context) bool { return b.availability() == nil }

func (b *Backend) availability() error {
	if _, err := b.lookPath(b.cfg.Command); err != nil {
		return fmt.Errorf("interpreter %q not found: %w", b.cfg.Command, err)
	}
	if b.cfg.Script == "" {
		return nil
	}
	script, err := fsutil.ExpandHome(b.cfg.Script)
	if err != nil {
		return err
	}
	if !fsutil.PathExists(script) {
		return fmt.Errorf("worker script %q not found", script)
	}
	return nil
}

// Initialize spawns the worker and waits until it answers a ping.
func (b *Backend) Initialize(ctx context.Context) error {
	b.initMu.Lock()
	defer b.initMu.Unlock()

	id := b.Identity()
	if b.State() == StateReady {
		return nil
	}
	if err := b.availability(); err != nil {
		return backend.ErrInitialization(id, backend.ErrUnavailable(id, err.Error()))
	}

	b.setState(StateSpawning)
	p, err := b.spawn(b.handleExit)
	if err != nil {
		b.setState(StateNotStarted)
		return backend.ErrInitialization(id, err)
	}
	b.mu.Lock()
	b.proc = p
	b.state = StateAwaitingReady
	b.mu.Unlock()
	p.log.Info().Str("event", "spawned").Str("command", b.cfg.Command).Msg("worker started")

	start := time.Now()
	if err := b.awaitReady(ctx, p); err != nil {
		p.stop(b.cfg.StopGrace)
		b.mu.Lock()
		if b.proc == p {
			b.proc = nil
		}
		b.state = StateNotStarted
		b.mu.Unlock()
		p.log.Error().Str("event", "startup_failed").Err(err).Msg("worker did not become ready")
		return backend.ErrInitialization(id, err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.proc != p {
		return backend.ErrInitialization(id, p.exitDetail())
	}
	b.state = StateReady
	p.log.Info().Str("event", "ready").Dur("took", time.Since(start)).Msg("worker ready")
	return nil
}

// awaitReady pings until a successful reply, the startup deadline, or early
// process exit. Only one ping is outstanding at a time.
func (b *Backend) awaitReady(ctx context.Context, p *process) error {
	deadline := time.Now().Add(b.cfg.StartupTimeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return backend.ErrStartupTimeout(b.Identity(), b.cfg.StartupTimeout)
		}
		resp, err := p.conn.callTimeout(ctx, request{Command: cmdPing}, remaining)
		switch {
		case err == nil && resp.Success:
			return nil
		case backend.IsRequestTimeout(err):
			return backend.ErrStartupTimeout(b.Identity(), b.cfg.StartupTimeout)
		case ctx.Err() != nil:
			return ctx.Err()
		case err != nil:
			p.log.Debug().Err(err).Msg("ping failed")
		}
		select {
		case <-time.After(b.cfg.PollInterval):
		case <-ctx.Done():
			return ctx.Err()
		case <-p.exited:
			return p.exitDetail()
		}
	}
}

// handleExit runs on the supervisor goroutine after the worker was reaped.
func (b *Backend) handleExit(p *process) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.proc != p {
		return
	}
	b.proc = nil
	if b.state == StateReady || b.state == StateAwaitingReady {
		b.state = StateNotStarted
		p.log.Warn().Str("event", "exited").Err(p.exitDetail()).Msg("worker exited unexpectedly")
	}
}

// Shutdown stops the worker. Pending requests fail with a process-exited
// TransportError. The backend can be initialized again afterwards.
func (b *Backend) Shutdown(ctx context.Context) {
	b.initMu.Lock()
	defer b.initMu.Unlock()

	b.mu.Lock()
	p := b.proc
	b.proc = nil
	if p != nil {
		b.state = StateShuttingDown
	}
	b.mu.Unlock()

	if p != nil {
		p.stop(b.cfg.StopGrace)
		p.log.Info().Str("event", "stopped").Msg("worker stopped")
	}
	b.setState(StateStopped)
}

// Status reports availability, readiness and the static catalog. When ready,
// the worker is asked for its own status and any failure is reported in Error.
func (b *Backend) Status(ctx context.Context) backend.Status {
	st := backend.Status{
		Identity:     b.Identity(),
		Capabilities: b.Capabilities(),
		Models:       b.catalog(),
	}
	if err := b.availability(); err != nil {
		st.Error = err.Error()
		return st
	}
	st.Available = true
	p := b.ready()
	if p == nil {
		return st
	}
	st.Initialized = true
	resp, err := p.conn.callTimeout(ctx, request{Command: cmdStatus}, statusTimeout)
	switch {
	case err != nil:
		st.Error = err.Error()
	case !resp.Success:
		st.Error = resp.Error
	}
	return st
}

// Configure switches the default embedding model.
func (b *Backend) Configure(params backend.ConnectionParams) error {
	if params.EmbedModel == "" {
		return nil
	}
	b.mu.Lock()
	b.model = params.EmbedModel
	b.mu.Unlock()
	return nil
}

func (b *Backend) currentModel() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.model
}

func (b *Backend) Chat(ctx context.Context, req backend.ChatRequest) (iter.Seq2[string, error], error) {
	return nil, backend.Require(b.Identity(), capabilities, backend.CapChat)
}

func (b *Backend) ChatComplete(ctx context.Context, req backend.ChatRequest) (backend.ChatResponse, error) {
	return backend.ChatResponse{}, backend.Require(b.Identity(), capabilities, backend.CapChat)
}

func (b *Backend) ProcessImage(ctx context.Context, req backend.VisionRequest) (backend.VisionResponse, error) {
	return backend.VisionResponse{}, backend.Require(b.Identity(), capabilities, backend.CapVision)
}

// GenerateEmbedding sends one embed command carrying the whole input. A single
// string yields Vector; a batch yields Vectors in input order.
func (b *Backend) GenerateEmbedding(ctx context.Context, req backend.EmbeddingRequest) (backend.EmbeddingResult, error) {
	if err := backend.Require(b.Identity(), capabilities, backend.CapEmbeddings); err != nil {
		return backend.EmbeddingResult{}, err
	}
	if req.Input.Len() == 0 {
		return backend.EmbeddingResult{}, errors.New("embedding input is empty")
	}
	p := b.ready()
	if p == nil {
		return backend.EmbeddingResult{}, backend.ErrNotInitialized(b.Identity())
	}
	model := req.Model
	if model == "" {
		model = b.currentModel()
	}
	in := req.Input
	resp, err := p.conn.call(ctx, request{Command: cmdEmbed, Text: &in, Model: model})
	if err != nil {
		return backend.EmbeddingResult{}, err
	}
	if !resp.Success {
		return backend.EmbeddingResult{}, fmt.Errorf("%s: embed failed: %s", b.Identity(), resp.Error)
	}
	vectors, err := resp.vectors()
	if err != nil {
		return backend.EmbeddingResult{}, backend.ErrTransport(backend.TransportDecode, "embed reply", err)
	}
	if len(vectors) != in.Len() {
		return backend.EmbeddingResult{}, fmt.Errorf("%s: got %d vectors for %d inputs", b.Identity(), len(vectors), in.Len())
	}

	res := backend.EmbeddingResult{Model: model, Dimensions: resp.Dimensions}
	if resp.Model != "" {
		res.Model = resp.Model
	}
	if res.Dimensions == 0 {
		res.Dimensions = len(vectors[0])
	}
	if in.IsBatch() {
		res.Vectors = vectors
	} else {
		res.Vector = vectors[0]
	}
	return res, nil
}
