package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/msgsight/cfgd/internal/cliconfig"
	"github.com/msgsight/cfgd/pkg/cli/internal/output"
	"github.com/msgsight/cfgd/pkg/portability"
)

func newGetCmd(g *globals) *cobra.Command {
	var jsonPath string
	cmd := &cobra.Command{
		Use:   "get [type] [name]",
		Short: "Show the configuration, one object type, or one object",
		Example: `  # Whole configuration document
  cfgd get

  # Every queue, as YAML
  cfgd get Queue -o yaml

  # One value from one object
  cfgd get Endpoint ep1 --jsonpath '$.Endpoint.ep1.Port'`,
		Args: cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := g.adminClient()
			if err != nil {
				return err
			}
			var objectType, name string
			if len(args) > 0 {
				objectType = args[0]
			}
			if len(args) > 1 {
				name = args[1]
			}
			body, err := client.Get(cmd.Context(), objectType, name)
			if err != nil {
				return err
			}
			return output.Render(cmd.OutOrStdout(), body, g.outputFormat(), jsonPath)
		},
	}
	cmd.Flags().StringVarP(&jsonPath, "jsonpath", "p", "", "Print only the values selected by a JSONPath expression")
	return cmd
}

func newSetCmd(g *globals) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "set [document]",
		Short: "Create or update objects from a JSON or YAML document",
		Long: `Create or update objects. The document has the same shape as the body of
POST /configuration and is applied as one batch: either every object is
stored or none is.`,
		Example: `  # Inline JSON
  cfgd set '{"MessageHub":{"hub":{}},"Queue":{"orders":{"MaxMessages":10000}}}'

  # From a file (YAML or JSON), or '-' for stdin
  cfgd set -f objects.yaml`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if (len(args) == 1) == (file != "") {
				return errors.New("pass either a document argument or --file")
			}
			var body []byte
			var err error
			if file != "" {
				body, err = readDocument(cmd.InOrStdin(), file)
				if err != nil {
					return err
				}
			} else {
				body = []byte(args[0])
			}

			client, err := g.adminClient()
			if err != nil {
				return err
			}
			resp, err := client.Apply(cmd.Context(), body)
			if err != nil {
				return err
			}
			return output.Render(cmd.OutOrStdout(), resp, g.outputFormat(), "")
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "Read the document from a file ('-' for stdin)")
	return cmd
}

// readDocument reads a JSON or YAML document and returns it as JSON.
func readDocument(stdin io.Reader, path string) ([]byte, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, err
	}
	doc, err := portability.Decode(data, portability.DetectFormat(data, path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return json.Marshal(doc)
}

func newDeleteCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <type> <name>",
		Short:   "Delete an object that nothing references",
		Example: `  cfgd delete Queue orders`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := g.adminClient()
			if err != nil {
				return err
			}
			resp, err := client.Delete(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			return output.Render(cmd.OutOrStdout(), resp, g.outputFormat(), "")
		},
	}
}

func newRestartCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "restart",
		Short: "Reload the server configuration from durable state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := g.adminClient()
			if err != nil {
				return err
			}
			resp, err := client.Restart(cmd.Context())
			if err != nil {
				return err
			}
			return output.Render(cmd.OutOrStdout(), resp, g.outputFormat(), "")
		},
	}
}

// statusView is the subset of GET /service/status shown as a table.
type statusView struct {
	Service     string `json:"Service"`
	State       string `json:"State"`
	Version     string `json:"Version"`
	Backend     string `json:"Backend"`
	Revision    uint64 `json:"Revision"`
	Objects     int    `json:"Objects"`
	Restarts    int    `json:"Restarts"`
	Subscribers int    `json:"Subscribers"`
	Uptime      int64  `json:"Uptime"`
	LastError   string `json:"LastError"`
}

func newStatusCmd(g *globals) *cobra.Command {
	var table bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the server lifecycle state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := g.adminClient()
			if err != nil {
				return err
			}
			resp, err := client.Status(cmd.Context())
			if err != nil {
				return err
			}
			if !table {
				return output.Render(cmd.OutOrStdout(), resp, g.outputFormat(), "")
			}

			var st statusView
			if err := json.Unmarshal(resp, &st); err != nil {
				return fmt.Errorf("decode status: %w", err)
			}
			cfg, err := g.settings()
			if err != nil {
				return err
			}
			tw := output.Table(cmd.OutOrStdout())
			fmt.Fprintf(tw, "Admin URL\t%s (%s)\n", cfg.AdminURL, cfg.Sources[cliconfig.KeyAdminURL])
			fmt.Fprintf(tw, "Service\t%s\n", st.Service)
			fmt.Fprintf(tw, "State\t%s\n", st.State)
			fmt.Fprintf(tw, "Version\t%s\n", st.Version)
			fmt.Fprintf(tw, "Backend\t%s\n", st.Backend)
			fmt.Fprintf(tw, "Revision\t%d\n", st.Revision)
			fmt.Fprintf(tw, "Objects\t%d\n", st.Objects)
			fmt.Fprintf(tw, "Restarts\t%d\n", st.Restarts)
			fmt.Fprintf(tw, "Subscribers\t%d\n", st.Subscribers)
			fmt.Fprintf(tw, "Uptime\t%ds\n", st.Uptime)
			if st.LastError != "" {
				fmt.Fprintf(tw, "Last error\t%s\n", st.LastError)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&table, "table", false, "Print a summary table instead of the raw status")
	return cmd
}
