package dispatcher

import (
	"context"
	"slices"

	"golang.org/x/sync/errgroup"

	"aidispatch/internal/backend"
)

// AllBackendStatus probes every registered backend concurrently and returns
// the reports in registration order.
func (d *Dispatcher) AllBackendStatus(ctx context.Context) []backend.Status {
	d.mu.RLock()
	order := slices.Clone(d.order)
	backends := make([]backend.Backend, len(order))
	for i, id := range order {
		backends[i] = d.backends[id]
	}
	d.mu.RUnlock()

	out := make([]backend.Status, len(backends))
	var g errgroup.Group
	g.SetLimit(d.statusConcurrency)
	for i, b := range backends {
		g.Go(func() error {
			st := b.Status(ctx)
			st.Identity = b.Identity()
			if !st.Available {
				st.Initialized = false
			}
			out[i] = st
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// ActiveIdentity returns the active backend's identity, or "" when none is.
func (d *Dispatcher) ActiveIdentity() backend.Identity {
	if b := d.current(); b != nil {
		return b.Identity()
	}
	return ""
}
