package dispatcher

import (
	"github.com/rs/zerolog"

	"aidispatch/internal/backend"
)

const defaultStatusConcurrency = 4

// DefaultFallbackOrder is the fixed priority list tried when the preferred
// backend cannot be activated.
var DefaultFallbackOrder = []backend.Identity{backend.SubprocessEmbed, backend.HTTPRemote}

// Config encapsulates all tunables for Dispatcher construction.
type Config struct {
	Settings  Settings
	Logger    *zerolog.Logger
	Publisher EventPublisher
	// StatusConcurrency bounds parallel probes in AllBackendStatus.
	StatusConcurrency int
}

// DefaultSettings prefers the subprocess backend with fallback enabled.
func DefaultSettings() Settings {
	return Settings{
		Preferred:       backend.SubprocessEmbed,
		FallbackEnabled: true,
		FallbackOrder:   append([]backend.Identity(nil), DefaultFallbackOrder...),
	}
}
