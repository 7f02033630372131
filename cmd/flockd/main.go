// Command flockd joins the cluster as a long-lived node and drives the
// dispatch loop, logging every cluster event it delivers.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"flock"
	"flock/cluster"
	"flock/config"
	"flock/internal/buildinfo"
	"flock/internal/clockcheck"
	"flock/internal/journal"
	"flock/internal/logging"
)

func main() {
	tp := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(tp)
	defer func() {
		_ = tp.Shutdown(context.Background())
	}()

	if err := logging.Configure(logging.LevelInfo); err != nil {
		_, _ = os.Stderr.WriteString("configure logger: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := rootCmd().Execute(); err != nil {
		slog.Error("command failed", "err", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		configPath string
		endpoints  string
		node       string
		addr       string
		journalDB  string
		debug      bool
	)

	cmd := &cobra.Command{
		Use:     "flockd",
		Short:   "Flock cluster node daemon",
		Version: buildinfo.Version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := logging.LevelInfo
			if debug {
				level = logging.LevelDebug
			}
			return logging.Configure(level)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if endpoints != "" {
				cfg.Endpoints = config.ParseEndpoints(endpoints)
			}
			if node != "" {
				cfg.Node = node
			}
			if addr != "" {
				cfg.Addr = addr
			}
			if journalDB != "" {
				cfg.Journal = journalDB
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return run(ctx, cfg)
		},
	}

	cmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	cmd.Flags().StringVar(&configPath, "config", "flockd.yaml", "Config file path")
	cmd.Flags().StringVar(&endpoints, "endpoints", "", "Comma-separated coordination endpoints")
	cmd.Flags().StringVar(&node, "node", "", "Cluster node identity")
	cmd.Flags().StringVar(&addr, "addr", "", "Advertised address")
	cmd.Flags().StringVar(&journalDB, "journal", "", "Local event journal path")
	return cmd
}

func run(ctx context.Context, cfg *config.Config) error {
	opts := []cluster.Option{cluster.WithAdvertiseAddr(cfg.Addr)}
	if cfg.Root != "" {
		opts = append(opts, cluster.WithRoot(cfg.Root))
	}

	var rec *journal.Journal
	if cfg.Journal != "" {
		var err error
		rec, err = journal.Open(cfg.Journal)
		if err != nil {
			return err
		}
		defer func() { _ = rec.Close() }()
		opts = append(opts, cluster.WithRecorder(rec))
	}

	drv, err := cluster.Init(cfg.EndpointString(), &logHandler{}, opts...)
	if err != nil {
		return err
	}
	defer func() { _ = drv.Close() }()

	go clockcheck.New().Run(ctx)

	if err := drv.Join(flock.NodeID(cfg.Node), nil); err != nil {
		return err
	}

	slog.Info("flockd running", "node", cfg.Node, "wake_fd", drv.WakeFD())
	for {
		select {
		case <-ctx.Done():
			slog.Info("shutting down")
			return nil
		case <-drv.Wake():
			drv.Dispatch()
		}
	}
}

// logHandler accepts every joiner and logs delivered events.
type logHandler struct{}

func (logHandler) CheckJoin(node flock.NodeID, payload []byte) flock.JoinResult {
	return flock.JoinAccept
}

func (logHandler) HandleJoin(node flock.NodeID, view []flock.Member, result flock.JoinResult, payload []byte) {
	slog.Info("join", "node", node, "members", len(view), "result", result)
}

func (logHandler) HandleLeave(node flock.NodeID, view []flock.Member) {
	slog.Info("leave", "node", node, "members", len(view))
}

func (logHandler) HandleNotify(node flock.NodeID, payload []byte) {
	slog.Info("notify", "node", node, "len", len(payload))
}
