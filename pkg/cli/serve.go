package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/msgsight/cfgd/pkg/config"
	"github.com/msgsight/cfgd/pkg/logging"
)

// serveFlags holds the serve flags that override the config file.
type serveFlags struct {
	configFile string
	adminHost  string
	adminPort  int
	backend    string
	dataDir    string
	logLevel   string
	logFormat  string
	imports    []string
}

func newServeCmd() *cobra.Command {
	f := &serveFlags{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the configuration server (foreground)",
		Long: `Start the configuration server. Settings come from the config file
(--config, $CFGD_CONFIG, or cfgd.yaml in the working directory), then CFGD_*
environment variables, then these flags.

When the storage backend holds no configuration yet, the files listed under
import.paths (or --import) are applied as the first batch.`,
		Example: `  # Defaults: file backend, admin API on :9089
  cfgd serve

  # SQLite backend, seeded from a directory of YAML documents
  cfgd serve --backend sqlite --import 'conf.d/*.yaml'

  # etcd backend from a config file
  cfgd serve -c /etc/cfgd/cfgd.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := f.load(cmd)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&f.configFile, "config", "c", "", "Path to the server config file")
	cmd.Flags().StringVar(&f.adminHost, "admin-host", "", "Admin API listen host")
	cmd.Flags().IntVarP(&f.adminPort, "admin-port", "a", 0, fmt.Sprintf("Admin API port (default %d)", config.DefaultAdminPort))
	cmd.Flags().StringVar(&f.backend, "backend", "", "Storage backend: file, sqlite, etcd or memory")
	cmd.Flags().StringVar(&f.dataDir, "data-dir", "", "Data directory for the file and sqlite backends")
	cmd.Flags().StringVar(&f.logLevel, "log-level", "", "Log level: debug, info, warn or error")
	cmd.Flags().StringVar(&f.logFormat, "log-format", "", "Log format: text or json")
	cmd.Flags().StringSliceVar(&f.imports, "import", nil, "Files or globs imported when the backend is empty")
	return cmd
}

// load reads the config file and environment, then applies the flags that
// were set on the command line.
func (f *serveFlags) load(cmd *cobra.Command) (*config.ServerConfig, error) {
	cfg, err := config.Load(f.configFile)
	if err != nil {
		return nil, err
	}
	flags := cmd.Flags()
	if flags.Changed("admin-host") {
		cfg.Admin.Host = f.adminHost
	}
	if flags.Changed("admin-port") {
		cfg.Admin.Port = f.adminPort
	}
	if flags.Changed("backend") {
		cfg.Storage.Backend = f.backend
	}
	if flags.Changed("data-dir") {
		cfg.Storage.DataDir = f.dataDir
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = f.logLevel
	}
	if flags.Changed("log-format") {
		cfg.Log.Format = f.logFormat
	}
	if flags.Changed("import") {
		cfg.Import.Paths = f.imports
	}
	return cfg, cfg.Validate()
}

// runServe starts the server and blocks until ctx is done or the admin
// listener fails.
func runServe(ctx context.Context, cfg *config.ServerConfig, out io.Writer) error {
	log, closeLog, err := logging.Open(logging.Config{
		Level:     logging.ParseLevel(cfg.Log.Level),
		Format:    logging.ParseFormat(cfg.Log.Format),
		AuditFile: cfg.Log.AuditFile,
		AddSource: cfg.Log.AddSource,
	})
	if err != nil {
		return err
	}
	defer func() { _ = closeLog() }()

	srv, err := newServer(ctx, cfg, log)
	if err != nil {
		return err
	}
	if err := srv.start(ctx); err != nil {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Admin.ShutdownTimeout)
		defer cancel()
		return errors.Join(err, srv.shutdown(shutdownCtx))
	}
	fmt.Fprintf(out, "cfgd admin API listening on http://%s (backend: %s)\n", srv.api.Addr(), srv.backend.Name())

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-srv.api.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Admin.ShutdownTimeout)
	defer cancel()
	return errors.Join(serveErr, srv.shutdown(shutdownCtx))
}
