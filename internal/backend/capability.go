package backend

import "slices"

// Capability is a named operation category a Backend may support.
type Capability string

const (
	CapChat       Capability = "chat"
	CapEmbeddings Capability = "embeddings"
	CapVision     Capability = "vision"
)

// AllCapabilities lists every known capability in a stable order.
var AllCapabilities = []Capability{CapChat, CapEmbeddings, CapVision}

// Identity is the registry key of a Backend. Exactly one Backend per identity
// may be registered with a dispatcher.
type Identity string

const (
	SubprocessEmbed Identity = "subprocess-embed"
	HTTPRemote      Identity = "http-remote"
)

// Require is the shared capability guard. Concrete backends call it first in
// every capability entry point; it returns an UnsupportedCapabilityError when
// c is not in caps.
func Require(id Identity, caps []Capability, c Capability) error {
	if slices.Contains(caps, c) {
		return nil
	}
	return ErrUnsupportedCapability(id, c)
}
