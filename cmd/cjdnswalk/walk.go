package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/cjdelisle/cjdnswalk/internal/config"
	"github.com/cjdelisle/cjdnswalk/internal/crawl"
	"github.com/cjdelisle/cjdnswalk/internal/daemon"
	"github.com/cjdelisle/cjdnswalk/internal/graph"
	"github.com/cjdelisle/cjdnswalk/internal/label"
	"github.com/cjdelisle/cjdnswalk/internal/wire"
)

// frameBacklog bounds frames read from the router but not yet handled.
const frameBacklog = 64

// NewWalkCmd creates the walk command.
func NewWalkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "walk [bootstrap-node]",
		Short: "Crawl the network reachable from the local cjdroute",
		Long: `Walk asks every reachable node for its peers, starting from one peer of
the local router, until no query is queued or outstanding.

Each discovered node and link is written as one JSON array per line:
  ["node",ts,version,name]
  ["link",ts,label,parentKey,childKey,formNum]
  ["hzn",ts,childKey,childPath,viaLabel]
  ["fail",ts,target]
  ["info",ts,queued,outstanding,session]

The bootstrap node is a name such as v20.0000.0000.0000.0013.<key>.k.
When it is omitted the first ESTABLISHED peer of the router is used.

Admin credentials are read from ~/.cjdnsadmin when present.

Examples:
  # Walk from the first established peer, log to stdout
  cjdnswalk walk

  # Walk from a given peer into a compressed log
  cjdnswalk walk -o walk.log.zst v20.0000.0000.0000.0013.<key>.k

  # Use a router on another admin port
  cjdnswalk walk --admin 127.0.0.1:11235 --password secret`,
		Args: cobra.MaximumNArgs(1),
		RunE: runWalkCmd,
	}

	// Router connection flags
	cmd.Flags().StringP("admin", "a", config.DefaultAdminAddress,
		"cjdroute admin address (host:port)")
	cmd.Flags().StringP("password", "p", config.DefaultAdminPassword,
		"cjdroute admin password")
	cmd.Flags().Duration("admin-timeout", config.DefaultAdminTimeout,
		"Timeout for each admin call")
	cmd.Flags().String("admin-file", "",
		"cjdns admin credentials file (default: ~/.cjdnsadmin if present)")

	// Walk behavior flags
	cmd.Flags().Duration("cycle", config.DefaultCycleTime,
		"Interval between queries")
	cmd.Flags().Duration("info-interval", config.DefaultInfoInterval,
		"Interval between progress records and completion checks")
	cmd.Flags().Duration("retry-interval", config.DefaultRetryInterval,
		"Time a query may go unanswered before it is sent again")
	cmd.Flags().Int("max-retries", config.DefaultMaxRetries,
		"Number of times a query is sent again before it is given up")

	// Configuration file
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .cjdnswalk.yaml or $XDG_CONFIG_HOME/cjdnswalk/config.yaml)")

	// Output
	cmd.Flags().StringP("output", "o", "",
		"Event log path, \"-\" for stdout (a .zst suffix compresses the log)")

	return cmd
}

// runWalkCmd executes the walk command.
func runWalkCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := setupLogger(cmd)
	slog.SetDefault(logger)

	// Set up context with signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			logger.Warn("received shutdown signal, stopping walk")
			cancel()
		case <-ctx.Done():
		}
	}()

	return runWalk(ctx, cfg, cmd.OutOrStdout(), cmd.ErrOrStderr(), logger)
}

// buildConfig layers defaults, ~/.cjdnsadmin, the config file and flags,
// in that order.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	flags := cmd.Flags()

	adminPath, err := flags.GetString("admin-file")
	if err != nil {
		return nil, err
	}
	explicitAdminPath := adminPath != ""
	if !explicitAdminPath {
		adminPath = config.FindAdminFile()
	}
	if adminPath != "" {
		af, err := config.LoadAdminFile(adminPath)
		switch {
		case err == nil:
			cfg.ApplyAdmin(af)
		case errors.Is(err, config.ErrConfigNotFound) && !explicitAdminPath:
		default:
			return nil, fmt.Errorf("failed to load admin file %s: %w", adminPath, err)
		}
	}

	cfg.ConfigFilePath, err = flags.GetString("config")
	if err != nil {
		return nil, err
	}

	// If the user named a config file it must exist; otherwise the search
	// may come up empty.
	explicitConfigPath := cfg.ConfigFilePath != ""
	configPath := config.FindConfigFile(cfg.ConfigFilePath)
	if configPath != "" {
		f, err := config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
		cfg.Apply(f)
	} else if explicitConfigPath {
		return nil, fmt.Errorf("configuration file not found: %s", cfg.ConfigFilePath)
	}

	// Flags win, but only when given, so file values survive flag defaults.
	if flags.Changed("admin") {
		if cfg.AdminAddress, err = flags.GetString("admin"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("password") {
		if cfg.AdminPassword, err = flags.GetString("password"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("admin-timeout") {
		if cfg.AdminTimeout, err = flags.GetDuration("admin-timeout"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("cycle") {
		if cfg.CycleTime, err = flags.GetDuration("cycle"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("info-interval") {
		if cfg.InfoInterval, err = flags.GetDuration("info-interval"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("retry-interval") {
		if cfg.RetryInterval, err = flags.GetDuration("retry-interval"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("max-retries") {
		if cfg.MaxRetries, err = flags.GetInt("max-retries"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("output") {
		if cfg.Output, err = flags.GetString("output"); err != nil {
			return nil, err
		}
	}

	if len(args) > 0 {
		cfg.Bootstrap = args[0]
	}

	cfg.Verbose = getBoolFlag(cmd, "verbose")
	cfg.LogJSON = getBoolFlag(cmd, "log-json")

	return cfg, nil
}

// runWalk connects to the router, crawls and writes the event log.
func runWalk(ctx context.Context, cfg *config.Config, stdout, stderr io.Writer, logger *slog.Logger) error {
	client, err := daemon.Dial(ctx, cfg.AdminAddress, cfg.AdminPassword,
		daemon.WithTimeout(cfg.AdminTimeout),
		daemon.WithLogger(logger),
	)
	if err != nil {
		return fmt.Errorf("failed to reach cjdroute: %w", err)
	}
	defer client.Close()

	if status := client.CheckConnection(ctx); status != daemon.AdminStatusOK {
		return fmt.Errorf("admin check failed: %s (make sure cjdroute is running at %s): %w",
			status, cfg.AdminAddress, status.Error())
	}

	info, err := client.NodeInfo(ctx)
	if err != nil {
		return fmt.Errorf("failed to read local node info: %w", err)
	}
	logger.Info("connected to cjdroute", "address", cfg.AdminAddress, "node", info.Name.String(), "ip", info.IP)

	bootstrap, err := resolveBootstrap(ctx, cfg, client)
	if err != nil {
		return err
	}

	link, err := daemon.ListenLink(ctx, linkBindAddress(cfg.AdminAddress), cfg.AdminAddress, logger)
	if err != nil {
		return fmt.Errorf("failed to open router link: %w", err)
	}
	defer link.Close()

	detach, err := client.Attach(ctx, link)
	if err != nil {
		return fmt.Errorf("failed to register with cjdroute: %w", err)
	}
	defer func() {
		dctx, cancel := context.WithTimeout(context.Background(), cfg.AdminTimeout)
		defer cancel()
		if err := detach(dctx); err != nil {
			logger.Warn("failed to unregister from cjdroute", "error", err)
		}
	}()

	out, closeOut, err := openEventLog(cfg.Output, stdout)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeOut(); err != nil {
			logger.Error("failed to close event log", "error", err)
		}
	}()

	session, err := crawl.NewSession(
		crawl.Self{Name: info.Name, Scheme: info.Scheme},
		link,
		graph.NewEmitter(out),
		crawl.WithLogger(logger),
		crawl.WithCycleTime(cfg.CycleTime),
		crawl.WithInfoInterval(cfg.InfoInterval),
		crawl.WithRetryPolicy(crawl.RetryPolicy{
			Interval:   cfg.RetryInterval,
			MaxRetries: cfg.MaxRetries,
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to start walk: %w", err)
	}
	if err := session.Start(bootstrap); err != nil {
		return fmt.Errorf("failed to start walk: %w", err)
	}

	startTime := time.Now()
	err = serveSession(ctx, link, session)
	stats := session.Stats()
	fmt.Fprintf(stderr, "Walk %s: %d nodes (%d visited), %d links, %d unreachable, %d failed in %s\n",
		walkOutcome(err), stats.Nodes, stats.Visited, stats.Links, stats.Horizons, stats.Failures,
		time.Since(startTime).Round(time.Millisecond))

	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("walk interrupted: %w", err)
	default:
		return fmt.Errorf("walk failed: %w", err)
	}
}

// serveSession runs the router reader and the session event loop until the
// session ends, then stops the reader.
func serveSession(ctx context.Context, link *daemon.Link, session *crawl.Session) error {
	frames := make(chan wire.Frame, frameBacklog)

	g, gctx := errgroup.WithContext(ctx)
	runCtx, stop := context.WithCancel(gctx)
	defer stop()

	g.Go(func() error {
		return link.Serve(runCtx, frames)
	})
	g.Go(func() error {
		defer stop()
		return session.Run(runCtx, frames)
	})

	return g.Wait()
}

// resolveBootstrap returns the configured bootstrap peer, or asks the
// router for its first established peer.
func resolveBootstrap(ctx context.Context, cfg *config.Config, client *daemon.Client) (label.NodeName, error) {
	if cfg.Bootstrap != "" {
		return crawl.ParseBootstrap(cfg.Bootstrap)
	}
	bootstrap, err := client.Bootstrap(ctx)
	if err != nil {
		return label.NodeName{}, fmt.Errorf("failed to pick a bootstrap peer: %w", err)
	}
	return bootstrap, nil
}

// linkBindAddress picks the loopback family of the admin endpoint.
func linkBindAddress(adminAddress string) string {
	host, _, err := net.SplitHostPort(adminAddress)
	if err == nil {
		if ip := net.ParseIP(host); ip != nil && ip.To4() == nil {
			return "[::1]:0"
		}
	}
	return "127.0.0.1:0"
}

// openEventLog returns the event log writer and its closer. An empty path
// or "-" selects stdout, which is left open.
func openEventLog(path string, stdout io.Writer) (io.Writer, func() error, error) {
	if path == "" || path == "-" {
		return stdout, func() error { return nil }, nil
	}

	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	w, err := graph.CreateLog(path)
	if err != nil {
		return nil, nil, err
	}
	return w, w.Close, nil
}

func walkOutcome(err error) string {
	switch {
	case err == nil:
		return "complete"
	case errors.Is(err, context.Canceled):
		return "interrupted"
	default:
		return "stopped"
	}
}
