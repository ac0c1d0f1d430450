package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/haukened/blocksync/internal/sync/common/clock"
	"github.com/haukened/blocksync/internal/sync/common/log"
	"github.com/haukened/blocksync/internal/sync/domain"
	"github.com/haukened/blocksync/internal/sync/gateways/cloudflare"
	"github.com/haukened/blocksync/internal/sync/gateways/probe"
	"github.com/haukened/blocksync/internal/sync/infra/config"
	"github.com/haukened/blocksync/internal/sync/repos/listcache"
	"github.com/haukened/blocksync/internal/sync/repos/snapshot"
	"github.com/haukened/blocksync/internal/sync/repos/source"
	"github.com/haukened/blocksync/internal/sync/services/reconciler"
	"github.com/haukened/blocksync/internal/sync/services/watcher"
)

const (
	// Version information
	version = "0.1.0-dev"
	appName = "blocksync"

	// listCacheSize bounds cached remote memberships per pass.
	listCacheSize = 128
)

const usage = `usage: blocksync <command>

commands:
  create-lists     converge the managed domain lists only
  create-policy    converge the block rule only
  apply            create-lists + create-policy (+ prune under exact-resize)
  delete-lists     delete every managed list
  delete-policies  delete the managed block rule
  delete-all       delete the rule, then the lists
  reset            delete-all, settle, then apply
  verify           probe sampled blocked domains via the gateway resolver
  watch            apply on every change of the source file

configuration comes from BLOCKSYNC_* environment variables.`

// Application holds the wired components for one invocation.
type Application struct {
	config   *config.AppConfig
	service  *reconciler.Service
	reader   *source.Reader
	snapshot *snapshot.Store
}

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
	command := os.Args[1]
	if command == "help" || command == "-h" || command == "--help" {
		fmt.Println(usage)
		return
	}
	if !knownCommand(command) {
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n%s\n", command, usage)
		os.Exit(2)
	}

	// Load configuration from environment
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	// Configure global logging
	if err := log.Configure(cfg.Env, cfg.LogLevel); err != nil {
		fmt.Fprintf(os.Stderr, "Logging configuration error: %v\n", err)
		os.Exit(1)
	}

	log.Info(map[string]any{
		"version":  version,
		"command":  command,
		"source":   cfg.Source,
		"prefix":   cfg.ListPrefix,
		"rule":     cfg.RuleName,
		"policy":   cfg.Policy,
		"slots":    cfg.MaxSlots,
		"capacity": cfg.Capacity,
	}, "Starting blocksync")

	app, err := buildApplication(cfg)
	if err != nil {
		log.Fatal(map[string]any{"error": err}, "Failed to build application")
	}
	defer app.Close()

	// Cancel the pass on shutdown signals so external state is left in
	// a consistent subset (lists converged, rule untouched) rather than
	// torn mid-call.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Info(map[string]any{"signal": sig.String()}, "Shutdown signal received")
		cancel()
	}()

	if err := app.Run(ctx, command); err != nil {
		log.Error(map[string]any{"command": command, "error": err.Error()}, "Command failed")
		os.Exit(1)
	}
	log.Info(map[string]any{"command": command}, "Command succeeded")
}

func knownCommand(cmd string) bool {
	switch cmd {
	case "create-lists", "create-policy", "apply",
		"delete-lists", "delete-policies", "delete-all",
		"reset", "verify", "watch":
		return true
	}
	return false
}

// buildApplication constructs all components and wires them together.
func buildApplication(cfg *config.AppConfig) (*Application, error) {
	logger := log.GetLogger()

	client, err := cloudflare.NewClient(cloudflare.Options{
		AccountID:    cfg.AccountID,
		Token:        cfg.APIToken,
		BaseURL:      cfg.BaseURL,
		Timeout:      cfg.RequestTimeout(),
		Retries:      cfg.Retries,
		RateLimitRPS: cfg.RateLimitRPS,
		Logger:       logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gateway client: %w", err)
	}

	// one pass shares a single remote enumeration between phases
	lists, err := listcache.New(client, listCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create list cache: %w", err)
	}

	var snapStore *snapshot.Store
	var snapshots reconciler.Snapshots
	if cfg.SnapshotPath != "" {
		snapStore, err = snapshot.New(cfg.SnapshotPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open snapshot store: %w", err)
		}
		snapshots = snapStore
		log.Info(map[string]any{"path": cfg.SnapshotPath}, "Snapshot store opened")
	}

	policy, err := domain.ParsePolicy(cfg.Policy)
	if err != nil {
		return nil, err
	}

	reader := source.New(cfg.Source, logger)
	svc, err := reconciler.NewService(reconciler.Options{
		Source:          reader,
		Lists:           lists,
		Rules:           client,
		Snapshots:       snapshots,
		Clock:           clock.RealClock{},
		Logger:          logger,
		ListPrefix:      cfg.ListPrefix,
		RuleName:        cfg.RuleName,
		RuleDescription: cfg.RuleDescription,
		RulePrecedence:  cfg.RulePrecedence,
		Capacity:        cfg.Capacity,
		MaxSlots:        cfg.MaxSlots,
		Policy:          policy,
		Concurrency:     cfg.Concurrency,
		SettleDelay:     cfg.SettleDelay(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create reconciler: %w", err)
	}

	return &Application{
		config:   cfg,
		service:  svc,
		reader:   reader,
		snapshot: snapStore,
	}, nil
}

// Run dispatches one operator command.
func (app *Application) Run(ctx context.Context, command string) error {
	switch command {
	case "create-lists":
		_, err := app.service.CreateLists(ctx)
		return err
	case "create-policy":
		return app.service.CreatePolicy(ctx)
	case "apply":
		return app.service.Apply(ctx)
	case "delete-lists":
		return app.service.DeleteLists(ctx)
	case "delete-policies":
		return app.service.DeletePolicies(ctx)
	case "delete-all":
		return app.service.Teardown(ctx)
	case "reset":
		return app.service.Reset(ctx)
	case "verify":
		return app.runVerify(ctx)
	case "watch":
		return app.runWatch(ctx)
	default:
		return fmt.Errorf("unknown command: %s", command)
	}
}

// runVerify samples the source list and probes each sample through the
// gateway resolver, failing when any sample still resolves.
func (app *Application) runVerify(ctx context.Context) error {
	if app.config.Resolver == "" {
		return fmt.Errorf("verify requires BLOCKSYNC_RESOLVER")
	}
	domains, err := app.reader.Load()
	if err != nil {
		return err
	}
	prober, err := probe.New(probe.Options{
		Resolver: app.config.Resolver,
		Timeout:  app.config.RequestTimeout(),
	})
	if err != nil {
		return err
	}

	samples := probe.Sample(domains, app.config.VerifySamples)
	results, err := prober.Verify(ctx, samples)
	if err != nil {
		return err
	}
	var unblocked int
	for _, r := range results {
		if !r.Blocked {
			unblocked++
		}
	}
	log.Info(map[string]any{
		"probed":    len(results),
		"unblocked": unblocked,
	}, "Verification finished")
	if unblocked > 0 {
		return fmt.Errorf("%d of %d probed domains are not blocked", unblocked, len(results))
	}
	return nil
}

// runWatch applies once, then re-applies on every settled source change
// until interrupted.
func (app *Application) runWatch(ctx context.Context) error {
	if err := app.service.Apply(ctx); err != nil {
		log.Error(map[string]any{"error": err.Error()}, "Initial apply failed")
	}
	w, err := watcher.New(watcher.Options{
		Path:     app.config.Source,
		Debounce: app.config.Debounce(),
	})
	if err != nil {
		return err
	}
	err = w.Run(ctx, app.service.Apply)
	if err == context.Canceled {
		return nil
	}
	return err
}

// Close releases local resources.
func (app *Application) Close() {
	if app.snapshot != nil {
		_ = app.snapshot.Close()
	}
}
