package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"

	"github.com/vinayprograms/ctxmgr/internal/config"
	"github.com/vinayprograms/ctxmgr/internal/indexer"
	"github.com/vinayprograms/ctxmgr/internal/logging"
	"github.com/vinayprograms/ctxmgr/internal/notify"
	"github.com/vinayprograms/ctxmgr/internal/resolver"
	"github.com/vinayprograms/ctxmgr/internal/store"
	"github.com/vinayprograms/ctxmgr/internal/telemetry"
)

// Build-time variables (set via ldflags).
var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

func init() {
	_ = godotenv.Load()
}

// runtime bundles the components every subcommand needs, built once from
// the loaded configuration.
type runtime struct {
	cfg      *config.Config
	store    store.Client
	ix       *indexer.Indexer
	resolver *resolver.Resolver
	log      *logging.Logger
}

func bootstrap(configPath string) (*runtime, func(), error) {
	var cfg *config.Config
	var err error
	if configPath != "" {
		if _, statErr := os.Stat(configPath); statErr == nil {
			cfg, err = config.LoadFile(configPath)
		} else {
			cfg, err = config.LoadDefault()
		}
	} else {
		cfg, err = config.LoadDefault()
	}
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	log := logging.New()
	if level := logging.Level(cfg.Log.Level); level != "" {
		log.SetLevel(level)
	}

	shutdownTelemetry, err := telemetry.Init(telemetry.Config{
		Enabled:     cfg.Telemetry.Enabled,
		ServiceName: cfg.Telemetry.ServiceName,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("init telemetry: %w", err)
	}

	client, err := store.NewBoltClient(store.BoltConfig{Path: cfg.Store.Path, Workers: cfg.Store.Workers})
	if err != nil {
		shutdownTelemetry(context.Background())
		return nil, nil, fmt.Errorf("open store: %w", err)
	}

	mounts := make([]resolver.Mount, len(cfg.Mounts))
	for i, m := range cfg.Mounts {
		mounts[i] = resolver.Mount{
			AgentPrefix:     m.AgentPrefix,
			CanonicalPrefix: m.CanonicalPrefix,
			FilesystemID:    m.FilesystemID,
			Writable:        m.Writable,
		}
	}
	defaultFS := resolver.DefaultFilesystemID(cfg.Session.MachineIDPath)
	res := resolver.New(defaultFS, mounts)

	ix := indexer.New(client, log)
	var publisher *notify.Publisher
	if cfg.Notify.Enabled {
		publisher, err = notify.Connect(cfg.Notify.URL, cfg.Notify.Subject)
		if err != nil {
			log.Warn("notify_connect_failed", map[string]any{"error": err.Error()})
		} else {
			ix.WithNotifier(publisher)
		}
	}

	rt := &runtime{
		cfg:      cfg,
		store:    client,
		ix:       ix,
		resolver: res,
		log:      log,
	}

	cleanup := func() {
		client.Close()
		if publisher != nil {
			publisher.Close()
		}
		shutdownTelemetry(context.Background())
	}
	return rt, cleanup, nil
}

// Context is threaded through every CLI command's Run method.
type Context struct {
	context.Context
	rt *runtime
}

func main() {
	var cli CLI
	kctx := kong.Parse(&cli, kongVars(),
		kong.Name("ctxmgr"),
		kong.Description("Content-addressed context manager for long-running agents."),
	)

	rt, cleanup, err := bootstrap(cli.Config)
	if err != nil {
		fmt.Fprintln(os.Stderr, "ctxmgr:", err)
		os.Exit(1)
	}
	defer cleanup()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := kctx.Run(&Context{Context: ctx, rt: rt}); err != nil {
		fmt.Fprintln(os.Stderr, "ctxmgr:", err)
		os.Exit(1)
	}
}
