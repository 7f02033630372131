// Command flock inspects a running cluster through its coordination
// tree: member records, the ordered event log, and a status summary.
package main

import (
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"flock/config"
	"flock/internal/buildinfo"
	"flock/internal/logging"
	"flock/internal/zoo"
)

// inspectTimeout is the session timeout of the inspection connection.
// Transient coordination errors are retried without limit, so a command
// against an unreachable server does not time out.
const inspectTimeout = 10 * time.Second

func main() {
	if err := logging.Configure(logging.LevelWarn); err != nil {
		_, _ = os.Stderr.WriteString("configure logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	if err := rootCmd().Execute(); err != nil {
		slog.Error("command failed", "err", err)
		os.Exit(1)
	}
}

type inspectOpts struct {
	endpoints string
	root      string
}

func (o *inspectOpts) connect() (*zoo.Client, error) {
	client, _, err := zoo.Connect(config.ParseEndpoints(o.endpoints), inspectTimeout)
	return client, err
}

func rootCmd() *cobra.Command {
	opts := &inspectOpts{}

	cmd := &cobra.Command{
		Use:     "flock",
		Short:   "Inspect a flock cluster",
		Version: buildinfo.Version,
	}
	cmd.PersistentFlags().StringVar(&opts.endpoints, "endpoints", "127.0.0.1:2181", "Comma-separated coordination endpoints")
	cmd.PersistentFlags().StringVar(&opts.root, "root", config.DefaultRoot, "Base path of the coordination tree")

	cmd.AddCommand(membersCmd(opts))
	cmd.AddCommand(queueCmd(opts))
	cmd.AddCommand(statusCmd(opts))
	return cmd
}
