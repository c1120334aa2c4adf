package remote

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Defaults applied when corresponding Config fields are unset.
const (
	defaultBaseURL        = "http://localhost:11434"
	defaultChatModel      = "llama3.2"
	defaultEmbedModel     = "nomic-embed-text"
	defaultVisionModel    = "llava"
	defaultVisionPrompt   = "Describe this image in detail."
	defaultCurlPath       = "curl"
	defaultProbeTimeout   = 5 * time.Second
	defaultConnectTimeout = 5 * time.Second
)

// CommandRunner executes name with args and returns its stdout.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

// Config configures the HTTP backend.
type Config struct {
	BaseURL     string
	ChatModel   string
	EmbedModel  string
	VisionModel string
	// VisionPrompt is used when a vision request carries no prompt.
	VisionPrompt string

	ProbeTimeout   time.Duration
	ConnectTimeout time.Duration

	// CurlPath is the binary used for the embedding fallback.
	CurlPath string
	// RunCommand overrides how the fallback is executed.
	RunCommand CommandRunner

	Logger *zerolog.Logger
}

func (c Config) withDefaults() Config {
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.BaseURL == "" {
		c.BaseURL = defaultBaseURL
	}
	if c.ChatModel == "" {
		c.ChatModel = defaultChatModel
	}
	if c.EmbedModel == "" {
		c.EmbedModel = defaultEmbedModel
	}
	if c.VisionModel == "" {
		c.VisionModel = defaultVisionModel
	}
	if c.VisionPrompt == "" {
		c.VisionPrompt = defaultVisionPrompt
	}
	if c.ProbeTimeout <= 0 {
		c.ProbeTimeout = defaultProbeTimeout
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = defaultConnectTimeout
	}
	if c.CurlPath == "" {
		c.CurlPath = defaultCurlPath
	}
	if c.RunCommand == nil {
		c.RunCommand = runCommand
	}
	return c
}
