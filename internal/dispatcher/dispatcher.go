package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"aidispatch/internal/backend"
)

var (
	ErrUnknownBackend             = errors.New("unknown backend")
	ErrDuplicateBackend           = errors.New("backend registered twice")
	ErrAlreadyInitialized         = errors.New("dispatcher already initialized")
	ErrModelManagementUnsupported = errors.New("active backend does not manage models")
)

// Dispatcher routes capability calls to the active backend.
type Dispatcher struct {
	log               zerolog.Logger
	pub               EventPublisher
	statusConcurrency int

	// switchMu serializes Initialize, SwitchBackend, UpdateSettings and
	// Shutdown. It is always taken before mu.
	switchMu sync.Mutex

	mu          sync.RWMutex
	order       []backend.Identity
	backends    map[backend.Identity]backend.Backend
	active      backend.Backend
	settings    Settings
	initialized bool
}

// New constructs a Dispatcher. Backends are registered by Initialize.
func New(cfg Config) *Dispatcher {
	log := zerolog.Nop()
	if cfg.Logger != nil {
		log = *cfg.Logger
	}
	pub := cfg.Publisher
	if pub == nil {
		pub = noopPublisher{}
	}
	s := cfg.Settings.clone()
	if s.Preferred == "" {
		s.Preferred = DefaultFallbackOrder[0]
	}
	if len(s.FallbackOrder) == 0 {
		s.FallbackOrder = slices.Clone(DefaultFallbackOrder)
	}
	n := cfg.StatusConcurrency
	if n <= 0 {
		n = defaultStatusConcurrency
	}
	return &Dispatcher{
		log:               log.With().Str("component", "dispatcher").Logger(),
		pub:               pub,
		statusConcurrency: n,
		backends:          make(map[backend.Identity]backend.Backend),
		settings:          s,
	}
}

// Initialize registers backends and selects the active one. A selection
// failure is returned; the dispatcher stays usable for SwitchBackend and
// UpdateSettings with no active backend.
func (d *Dispatcher) Initialize(ctx context.Context, backends ...backend.Backend) error {
	d.switchMu.Lock()
	defer d.switchMu.Unlock()

	if err := d.register(backends); err != nil {
		return err
	}
	preferred := d.Settings().Preferred
	chosen, err := d.selectLocked(ctx)
	if err != nil {
		d.log.Error().Err(err).Msg("no backend could be activated")
		d.emitError(err, preferred)
		return err
	}
	d.setActive(chosen)
	to := chosen.Identity()
	d.log.Info().Str("event", "activated").Str("backend", string(to)).Msg("backend active")
	if to != preferred {
		switchesTotal.WithLabelValues(string(preferred), string(to)).Inc()
		d.emit(Event{Kind: EventBackendSwitched, From: preferred, To: to})
	}
	d.emit(Event{Kind: EventStatusChanged, Backend: to})
	return nil
}

func (d *Dispatcher) register(backends []backend.Backend) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.initialized {
		return ErrAlreadyInitialized
	}
	seen := make(map[backend.Identity]bool, len(backends))
	for _, b := range backends {
		id := b.Identity()
		if seen[id] {
			return fmt.Errorf("%w: %s", ErrDuplicateBackend, id)
		}
		seen[id] = true
	}
	for _, b := range backends {
		d.order = append(d.order, b.Identity())
		d.backends[b.Identity()] = b
	}
	d.initialized = true
	return nil
}

// Shutdown shuts every registered backend down and clears the active one.
func (d *Dispatcher) Shutdown(ctx context.Context) {
	d.switchMu.Lock()
	defer d.switchMu.Unlock()

	d.mu.RLock()
	order := slices.Clone(d.order)
	backends := d.backends
	d.mu.RUnlock()
	for _, id := range order {
		d.shutdownQuietly(ctx, backends[id])
	}
	d.setActive(nil)
	d.emit(Event{Kind: EventStatusChanged})
}

func (d *Dispatcher) setActive(b backend.Backend) backend.Backend {
	d.mu.Lock()
	prev := d.active
	d.active = b
	order := slices.Clone(d.order)
	d.mu.Unlock()
	for _, id := range order {
		v := 0.0
		if b != nil && b.Identity() == id {
			v = 1
		}
		activeBackend.WithLabelValues(string(id)).Set(v)
	}
	return prev
}

func (d *Dispatcher) current() backend.Backend {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.active
}

func (d *Dispatcher) lookup(id backend.Identity) (backend.Backend, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	b, ok := d.backends[id]
	return b, ok
}

// shutdownQuietly never lets a backend's Shutdown fail the caller.
func (d *Dispatcher) shutdownQuietly(ctx context.Context, b backend.Backend) {
	if b == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			d.log.Error().Str("backend", string(b.Identity())).Interface("panic", r).Msg("backend shutdown panicked")
		}
	}()
	b.Shutdown(ctx)
}

func (d *Dispatcher) emit(e Event) {
	e.ID = uuid.NewString()
	e.Time = timeNow()
	d.pub.Publish(e)
}

func (d *Dispatcher) emitError(err error, id backend.Identity) {
	d.emit(Event{Kind: EventError, Backend: id, Error: err.Error()})
}
