package subproc

import (
	"time"

	"github.com/rs/zerolog"

	"aidispatch/internal/backend"
)

// Defaults applied when corresponding Config fields are unset.
const (
	defaultCommand        = "python3"
	defaultModel          = "sentence-transformers/all-MiniLM-L6-v2"
	defaultCacheDir       = "~/.cache/huggingface/hub"
	defaultStartupTimeout = 10 * time.Second
	defaultRequestTimeout = 30 * time.Second
	defaultPollInterval   = 100 * time.Millisecond
	defaultStopGrace      = 2 * time.Second

	statusTimeout   = 2 * time.Second
	stderrTailBytes = 4096
)

// Config describes how to launch and talk to the embedding worker.
type Config struct {
	// Command is the interpreter or binary resolved on PATH.
	Command string
	// Script, when set, is passed as the first argument and must exist.
	Script string
	Args   []string
	Dir    string
	// Env is appended to the parent environment.
	Env []string

	// Model is the default embedding model sent with each request.
	Model string
	// Models is the static catalog. Nil means DefaultModels.
	Models []backend.ModelInfo
	// CacheDir is scanned for downloaded models; '~' is expanded.
	CacheDir string

	StartupTimeout time.Duration
	RequestTimeout time.Duration
	PollInterval   time.Duration
	StopGrace      time.Duration

	Logger *zerolog.Logger
}

func (c Config) withDefaults() Config {
	if c.Command == "" {
		c.Command = defaultCommand
	}
	if c.Model == "" {
		c.Model = defaultModel
	}
	if c.Models == nil {
		c.Models = DefaultModels
	}
	if c.CacheDir == "" {
		c.CacheDir = defaultCacheDir
	}
	if c.StartupTimeout <= 0 {
		c.StartupTimeout = defaultStartupTimeout
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = defaultRequestTimeout
	}
	if c.PollInterval <= 0 {
		c.PollInterval = defaultPollInterval
	}
	if c.StopGrace <= 0 {
		c.StopGrace = defaultStopGrace
	}
	return c
}
