package config

import (
	"time"

	"github.com/rs/zerolog"

	"aidispatch/internal/backend"
	"aidispatch/internal/dispatcher"
	"aidispatch/internal/remote"
	"aidispatch/internal/subproc"
)

func millis(n int) time.Duration { return time.Duration(n) * time.Millisecond }

func identities(ids []string) []backend.Identity {
	if len(ids) == 0 {
		return nil
	}
	out := make([]backend.Identity, len(ids))
	for i, id := range ids {
		out[i] = backend.Identity(id)
	}
	return out
}

func (c Config) connections() map[backend.Identity]backend.ConnectionParams {
	return map[backend.Identity]backend.ConnectionParams{
		backend.SubprocessEmbed: {EmbedModel: c.Subprocess.Model},
		backend.HTTPRemote: {
			BaseURL:     c.Remote.BaseURL,
			ChatModel:   c.Remote.ChatModel,
			EmbedModel:  c.Remote.EmbedModel,
			VisionModel: c.Remote.VisionModel,
		},
	}
}

// DispatcherSettings converts c into initial dispatcher settings. Call it on
// a config that went through WithDefaults.
func (c Config) DispatcherSettings() dispatcher.Settings {
	s := dispatcher.Settings{
		Preferred:     backend.Identity(c.PreferredBackend),
		FallbackOrder: identities(c.FallbackOrder),
		Connections:   c.connections(),
	}
	if c.FallbackEnabled != nil {
		s.FallbackEnabled = *c.FallbackEnabled
	}
	return s
}

// SettingsPatch describes what a reloaded file asks the dispatcher to change.
// Fields absent from the file are left alone.
func (c Config) SettingsPatch() dispatcher.SettingsPatch {
	var p dispatcher.SettingsPatch
	if c.PreferredBackend != "" {
		pref := backend.Identity(c.PreferredBackend)
		p.Preferred = &pref
	}
	p.FallbackEnabled = c.FallbackEnabled
	p.FallbackOrder = identities(c.FallbackOrder)
	p.Connections = make(map[backend.Identity]backend.ConnectionParams)
	for id, params := range c.connections() {
		if params != (backend.ConnectionParams{}) {
			p.Connections[id] = params
		}
	}
	return p
}

// SubprocessBackend returns the embedding worker configuration.
func (c Config) SubprocessBackend(log *zerolog.Logger) subproc.Config {
	s := c.Subprocess
	return subproc.Config{
		Command:        s.Command,
		Script:         s.Script,
		Args:           s.Args,
		Model:          s.Model,
		CacheDir:       s.CacheDir,
		StartupTimeout: millis(s.StartupTimeoutMS),
		RequestTimeout: millis(s.RequestTimeoutMS),
		Logger:         log,
	}
}

// RemoteBackend returns the HTTP backend configuration.
func (c Config) RemoteBackend(log *zerolog.Logger) remote.Config {
	r := c.Remote
	return remote.Config{
		BaseURL:      r.BaseURL,
		ChatModel:    r.ChatModel,
		EmbedModel:   r.EmbedModel,
		VisionModel:  r.VisionModel,
		ProbeTimeout: millis(r.ProbeTimeoutMS),
		CurlPath:     r.CurlPath,
		Logger:       log,
	}
}
