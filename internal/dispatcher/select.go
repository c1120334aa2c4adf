package dispatcher

import (
	"context"
	"fmt"
	"time"

	"aidispatch/internal/backend"
)

var timeNow = time.Now

// activate runs probe, Initialize and a status check on b. A candidate that
// initialized but reports unhealthy is shut down again unless it is active.
func (d *Dispatcher) activate(ctx context.Context, b backend.Backend) error {
	id := b.Identity()
	if !b.IsAvailable(ctx) {
		return backend.ErrInitialization(id, backend.ErrUnavailable(id, "availability probe failed"))
	}
	if err := b.Initialize(ctx); err != nil {
		if !backend.IsInitialization(err) {
			err = backend.ErrInitialization(id, err)
		}
		return err
	}
	st := b.Status(ctx)
	if st.Available && st.Initialized {
		return nil
	}
	if b != d.current() {
		d.shutdownQuietly(ctx, b)
	}
	reason := fmt.Errorf("status after initialize reports available=%t initialized=%t", st.Available, st.Initialized)
	if st.Error != "" {
		reason = fmt.Errorf("%w: %s", reason, st.Error)
	}
	return backend.ErrInitialization(id, reason)
}

// selectLocked tries the preferred backend, then the fallback order. The
// caller holds switchMu.
func (d *Dispatcher) selectLocked(ctx context.Context) (backend.Backend, error) {
	s := d.Settings()
	pref := s.Preferred
	tried := []backend.Identity{pref}

	var prefErr error
	if b, ok := d.lookup(pref); ok {
		if prefErr = d.activate(ctx, b); prefErr == nil {
			return b, nil
		}
	} else {
		prefErr = fmt.Errorf("%w: %s", ErrUnknownBackend, pref)
	}
	d.log.Warn().Err(prefErr).Str("backend", string(pref)).Msg("preferred backend could not be activated")
	if !s.FallbackEnabled {
		if backend.IsInitialization(prefErr) {
			return nil, prefErr
		}
		return nil, backend.ErrInitialization(pref, prefErr)
	}

	for _, id := range s.FallbackOrder {
		if id == pref {
			continue
		}
		b, ok := d.lookup(id)
		if !ok {
			continue
		}
		tried = append(tried, id)
		if err := d.activate(ctx, b); err != nil {
			d.log.Warn().Err(err).Str("backend", string(id)).Msg("fallback candidate rejected")
			continue
		}
		return b, nil
	}
	return nil, backend.ErrNoBackendAvailable(tried)
}

// reselectLocked re-runs selection and swaps the active backend if a
// different one wins. On failure the current backend stays active.
func (d *Dispatcher) reselectLocked(ctx context.Context) error {
	chosen, err := d.selectLocked(ctx)
	if err != nil {
		d.emitError(err, d.Settings().Preferred)
		return err
	}
	if chosen != d.current() {
		d.swapLocked(ctx, chosen)
	}
	return nil
}

// swapLocked makes next active, then shuts the previous backend down.
func (d *Dispatcher) swapLocked(ctx context.Context, next backend.Backend) {
	prev := d.setActive(next)
	var from backend.Identity
	if prev != nil {
		from = prev.Identity()
		d.shutdownQuietly(ctx, prev)
	}
	to := next.Identity()
	switchesTotal.WithLabelValues(string(from), string(to)).Inc()
	d.log.Info().Str("event", "switched").Str("from", string(from)).Str("to", string(to)).Msg("active backend changed")
	d.emit(Event{Kind: EventBackendSwitched, From: from, To: to})
	d.emit(Event{Kind: EventStatusChanged, Backend: to})
}

// SwitchBackend activates id and, only once that succeeded, shuts down the
// previously active backend. On failure nothing changes.
func (d *Dispatcher) SwitchBackend(ctx context.Context, id backend.Identity) error {
	d.switchMu.Lock()
	defer d.switchMu.Unlock()

	d.mu.RLock()
	initialized := d.initialized
	d.mu.RUnlock()
	if !initialized {
		return backend.ErrNotInitialized("")
	}
	b, ok := d.lookup(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownBackend, id)
	}
	if b == d.current() {
		return nil
	}
	if err := d.activate(ctx, b); err != nil {
		d.log.Warn().Err(err).Str("backend", string(id)).Msg("switch rejected")
		d.emitError(err, id)
		return err
	}
	d.swapLocked(ctx, b)
	return nil
}
