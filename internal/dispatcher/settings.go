package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"

	"aidispatch/internal/backend"
)

// Settings are the user-facing dispatcher preferences.
type Settings struct {
	Preferred       backend.Identity                              `json:"preferred"`
	FallbackEnabled bool                                          `json:"fallback_enabled"`
	FallbackOrder   []backend.Identity                            `json:"fallback_order"`
	Connections     map[backend.Identity]backend.ConnectionParams `json:"connections,omitempty"`
}

func (s Settings) clone() Settings {
	s.FallbackOrder = slices.Clone(s.FallbackOrder)
	s.Connections = maps.Clone(s.Connections)
	return s
}

// SettingsPatch changes only the fields that are set.
type SettingsPatch struct {
	Preferred       *backend.Identity
	FallbackEnabled *bool
	FallbackOrder   []backend.Identity
	Connections     map[backend.Identity]backend.ConnectionParams
}

func mergeParams(cur, p backend.ConnectionParams) backend.ConnectionParams {
	if p.BaseURL != "" {
		cur.BaseURL = p.BaseURL
	}
	if p.ChatModel != "" {
		cur.ChatModel = p.ChatModel
	}
	if p.EmbedModel != "" {
		cur.EmbedModel = p.EmbedModel
	}
	if p.VisionModel != "" {
		cur.VisionModel = p.VisionModel
	}
	return cur
}

// Settings returns a copy of the current settings.
func (d *Dispatcher) Settings() Settings {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.settings.clone()
}

// UpdateSettings applies patch. Connection parameters are pushed to backends
// that implement backend.Configurable. A changed preferred identity re-runs
// selection once the dispatcher is initialized; if that fails the current
// backend stays active and the error is returned with the new settings.
func (d *Dispatcher) UpdateSettings(ctx context.Context, patch SettingsPatch) (Settings, error) {
	d.switchMu.Lock()
	defer d.switchMu.Unlock()

	var errs []error
	d.mu.Lock()
	prevPreferred := d.settings.Preferred
	next := d.settings.clone()
	if patch.Preferred != nil {
		next.Preferred = *patch.Preferred
	}
	if patch.FallbackEnabled != nil {
		next.FallbackEnabled = *patch.FallbackEnabled
	}
	if patch.FallbackOrder != nil {
		next.FallbackOrder = slices.Clone(patch.FallbackOrder)
	}
	d.settings = next
	initialized := d.initialized
	d.mu.Unlock()

	// Connection params are recorded only once the backend accepted them.
	for id, params := range patch.Connections {
		b, ok := d.lookup(id)
		if !ok {
			errs = append(errs, fmt.Errorf("%w: %s", ErrUnknownBackend, id))
			continue
		}
		if c, ok := b.(backend.Configurable); ok {
			if err := c.Configure(params); err != nil {
				errs = append(errs, fmt.Errorf("configure %s: %w", id, err))
				continue
			}
		}
		d.mu.Lock()
		if d.settings.Connections == nil {
			d.settings.Connections = make(map[backend.Identity]backend.ConnectionParams)
		}
		d.settings.Connections[id] = mergeParams(d.settings.Connections[id], params)
		d.mu.Unlock()
	}
	d.log.Info().Str("event", "settings_updated").Str("preferred", string(next.Preferred)).Bool("fallback", next.FallbackEnabled).Msg("settings updated")
	d.emit(Event{Kind: EventStatusChanged, Backend: d.ActiveIdentity()})

	if initialized && next.Preferred != prevPreferred {
		if err := d.reselectLocked(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return d.Settings(), errors.Join(errs...)
}
