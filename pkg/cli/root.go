package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/msgsight/cfgd/internal/cliconfig"
)

// BuildInfo is injected during build.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildDate string
}

// globals holds the persistent flags and the lazily built client shared by
// every subcommand of one root command.
type globals struct {
	adminURL string
	output   string
	timeout  string

	cfg    *cliconfig.CLIConfig
	client *AdminClient
}

// settings returns the merged client configuration: flags over environment
// over config files over defaults.
func (g *globals) settings() (*cliconfig.CLIConfig, error) {
	if g.cfg != nil {
		return g.cfg, nil
	}
	cfg, err := cliconfig.LoadAll()
	if err != nil {
		return nil, err
	}
	for _, f := range []struct{ key, value string }{
		{cliconfig.KeyAdminURL, g.adminURL},
		{cliconfig.KeyOutput, g.output},
		{cliconfig.KeyTimeout, g.timeout},
	} {
		if err := cfg.ApplyFlag(f.key, f.value); err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	g.cfg = cfg
	return cfg, nil
}

func (g *globals) adminClient() (*AdminClient, error) {
	if g.client != nil {
		return g.client, nil
	}
	cfg, err := g.settings()
	if err != nil {
		return nil, err
	}
	g.client = NewAdminClient(cfg.AdminURL, WithTimeout(time.Duration(cfg.Timeout)))
	return g.client, nil
}

func (g *globals) outputFormat() string {
	cfg, err := g.settings()
	if err != nil {
		return g.output
	}
	return cfg.Output
}

// NewRootCommand builds the cfgd command tree.
func NewRootCommand(info BuildInfo) *cobra.Command {
	g := &globals{}
	root := &cobra.Command{
		Use:   "cfgd",
		Short: "cfgd stores and validates messaging server configuration objects",
		Long: `cfgd keeps the typed configuration objects of a messaging server: policies,
endpoints, hubs, queues and server-wide settings. It validates every change
against the object schema and cross-object rules, persists it, and serves it
over a REST admin API.

Run 'cfgd serve' to start the server. The other commands are clients of a
running server, except 'validate' and 'schema', which work offline.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&g.adminURL, "admin-url", "", "Admin API base URL (default: "+cliconfig.DefaultAdminURL+")")
	root.PersistentFlags().StringVarP(&g.output, "output", "o", "", "Output format: json or yaml")
	root.PersistentFlags().StringVar(&g.timeout, "timeout", "", "Request timeout, e.g. 10s")

	root.AddCommand(
		newServeCmd(),
		newGetCmd(g),
		newSetCmd(g),
		newDeleteCmd(g),
		newRestartCmd(g),
		newStatusCmd(g),
		newExportCmd(g),
		newImportCmd(g),
		newValidateCmd(),
		newSchemaCmd(g),
		newWatchCmd(g),
		newVersionCmd(info),
	)
	return root
}

// Execute runs the command tree with os.Args and returns the exit code.
func Execute(info BuildInfo) int {
	root := NewRootCommand(info)
	if err := root.Execute(); err != nil {
		printError(os.Stderr, err)
		return 1
	}
	return 0
}

func printError(w io.Writer, err error) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		fmt.Fprintf(w, "Error: %s (HTTP %d)\n", apiErr.Error(), apiErr.StatusCode)
		return
	}
	fmt.Fprintln(w, "Error:", err)
}

func newVersionCmd(info BuildInfo) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "cfgd %s (commit %s, built %s)\n", info.Version, info.Commit, info.BuildDate)
		},
	}
}
