package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"aidispatch/internal/config"
	"aidispatch/internal/dispatcher"
	"aidispatch/internal/httpapi"
	"aidispatch/internal/remote"
	"aidispatch/internal/subproc"
)

const shutdownTimeout = 10 * time.Second

type serveOptions struct {
	configPath     string
	addr           string
	preferred      string
	fallback       bool
	corsOrigins    string
	requestTimeout int
	maxBodyBytes   int
	watch          bool
}

func newServeCmd(root *rootOptions) *cobra.Command {
	opts := &serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Example: "  aidispatch serve --config aidispatch.yaml\n" +
			"  AIDISPATCH_PREFERRED_BACKEND=http-remote aidispatch serve",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load(cmd)
			if err != nil {
				return err
			}
			if root.logLevel == "" {
				root.log = newLogger(cfg.LogLevel)
			}
			return serve(cmd.Context(), root, opts, cfg)
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.configPath, "config", envStr("AIDISPATCH_CONFIG", ""), "Config file (.yaml, .yml, .json or .toml)")
	f.StringVar(&opts.addr, "addr", envStr("AIDISPATCH_ADDR", ""), "HTTP listen address, e.g. :8080")
	f.StringVar(&opts.preferred, "preferred", envStr("AIDISPATCH_PREFERRED_BACKEND", ""), "Preferred backend identity")
	f.BoolVar(&opts.fallback, "fallback", envBool("AIDISPATCH_FALLBACK_ENABLED", true), "Fall back to other backends when the preferred one fails")
	f.StringVar(&opts.corsOrigins, "cors-origins", envStr("AIDISPATCH_CORS_ORIGINS", ""), "Comma separated allowed CORS origins; empty disables CORS")
	f.IntVar(&opts.requestTimeout, "request-timeout", envInt("AIDISPATCH_REQUEST_TIMEOUT", 0), "Per-call timeout in seconds for non-streaming calls (0 disables)")
	f.IntVar(&opts.maxBodyBytes, "max-body-bytes", envInt("AIDISPATCH_MAX_BODY_BYTES", 1<<20), "Maximum JSON request body size")
	f.BoolVar(&opts.watch, "watch", envBool("AIDISPATCH_WATCH", true), "Reload dispatcher settings when the config file changes")
	return cmd
}

// load reads the config file, then applies flag and environment overrides.
// An explicitly set --fallback flag or AIDISPATCH_FALLBACK_ENABLED wins over
// the file.
func (o *serveOptions) load(cmd *cobra.Command) (config.Config, error) {
	var cfg config.Config
	if o.configPath != "" {
		var err error
		if cfg, err = config.Load(o.configPath); err != nil {
			return cfg, err
		}
	}
	if o.addr != "" {
		cfg.Addr = o.addr
	}
	if o.preferred != "" {
		cfg.PreferredBackend = o.preferred
	}
	if cmd.Flags().Changed("fallback") || envStr("AIDISPATCH_FALLBACK_ENABLED", "") != "" {
		fb := o.fallback
		cfg.FallbackEnabled = &fb
	}
	if origins := splitCSV(o.corsOrigins); origins != nil {
		cfg.CORSOrigins = origins
	}
	cfg = cfg.WithDefaults()
	return cfg, cfg.Validate()
}

func serve(parent context.Context, root *rootOptions, opts *serveOptions, cfg config.Config) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	log := root.log

	events := dispatcher.NewBroadcaster()
	d := dispatcher.New(dispatcher.Config{
		Settings:  cfg.DispatcherSettings(),
		Logger:    &log,
		Publisher: events,
	})
	sub := subproc.New(cfg.SubprocessBackend(&log))
	rem := remote.New(cfg.RemoteBackend(&log))
	// No backend is not fatal: /switch and PATCH /settings can recover.
	if err := d.Initialize(ctx, sub, rem); err != nil {
		log.Error().Err(err).Msg("no backend activated at startup")
	}

	if opts.watch && opts.configPath != "" {
		w, err := config.Watch(opts.configPath, 0, log, func(c config.Config) {
			uctx, cancel := context.WithTimeout(ctx, time.Minute)
			defer cancel()
			if _, err := d.UpdateSettings(uctx, c.SettingsPatch()); err != nil {
				log.Warn().Err(err).Msg("config reload applied with errors")
			}
		})
		if err != nil {
			log.Warn().Err(err).Str("path", opts.configPath).Msg("config watch disabled")
		} else {
			defer w.Close()
		}
	}

	httpapi.SetLogger(log)
	httpapi.SetBaseContext(ctx)
	httpapi.SetMaxBodyBytes(int64(opts.maxBodyBytes))
	httpapi.SetRequestTimeout(time.Duration(opts.requestTimeout) * time.Second)
	httpapi.SetCORSOptions(len(cfg.CORSOrigins) > 0, cfg.CORSOrigins,
		[]string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		[]string{"Content-Type", "X-Log-Level", "X-Request-Id"})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpapi.NewMux(d, events),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Addr).Str("active", string(d.ActiveIdentity())).Msg("aidispatch listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down")
	case serveErr = <-errCh:
	}

	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		log.Warn().Err(err).Msg("graceful shutdown error")
	}
	d.Shutdown(sctx)
	return serveErr
}
