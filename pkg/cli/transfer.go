package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/msgsight/cfgd/pkg/admin"
	"github.com/msgsight/cfgd/pkg/cli/internal/output"
	"github.com/msgsight/cfgd/pkg/config"
	"github.com/msgsight/cfgd/pkg/portability"
	"github.com/msgsight/cfgd/pkg/schema"
)

func newExportCmd(g *globals) *cobra.Command {
	var (
		types []string
		file  string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the configuration as a JSON or YAML document",
		Long: `Export the running configuration. The output can be fed back to
'cfgd import' or listed under import.paths to seed a fresh server.`,
		Example: `  cfgd export -o yaml > cfgd-objects.yaml
  cfgd export --type Queue --type MessageHub --file hubs.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			format, err := portability.ParseFormat(g.outputFormat())
			if err != nil {
				return err
			}
			client, err := g.adminClient()
			if err != nil {
				return err
			}
			body, err := client.Get(cmd.Context(), "", "")
			if err != nil {
				return err
			}
			doc, err := portability.Decode(body, portability.FormatJSON)
			if err != nil {
				return fmt.Errorf("decode configuration: %w", err)
			}
			data, err := portability.Export(doc, portability.ExportOptions{Format: format, Types: types})
			if err != nil {
				return err
			}
			if file != "" {
				if err := os.WriteFile(file, data, 0600); err != nil {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "Exported configuration to %s\n", file)
				return nil
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
	cmd.Flags().StringSliceVar(&types, "type", nil, "Only export these object types")
	cmd.Flags().StringVar(&file, "file", "", "Write to a file instead of stdout")
	return cmd
}

func newImportCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file-or-glob>...",
		Short: "Apply JSON or YAML documents to a running server as one batch",
		Example: `  cfgd import objects.yaml
  cfgd import 'conf.d/**/*.yaml'`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bundle, err := portability.Load(args, portability.LoadOptions{Registry: schema.MustNew()})
			if err != nil {
				return err
			}
			body, err := bundle.Body()
			if err != nil {
				return err
			}
			client, err := g.adminClient()
			if err != nil {
				return err
			}
			resp, err := client.Apply(cmd.Context(), body)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Imported %d file(s)\n", len(bundle.Files))
			return output.Render(cmd.OutOrStdout(), resp, g.outputFormat(), "")
		},
	}
}

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file-or-glob>...",
		Short: "Check documents offline against the schema and cross-object rules",
		Long: `Validate documents without a server. The files are merged and applied to
a scratch configuration holding only the defaults, so references must
resolve within the files themselves.`,
		Example: `  cfgd validate 'conf.d/*.yaml'`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := schema.New()
			if err != nil {
				return err
			}
			bundle, err := portability.Load(args, portability.LoadOptions{Registry: reg})
			if err != nil {
				return err
			}
			res, err := portability.Validate(cmd.Context(), reg, bundle)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "OK: %d object(s) in %d file(s)\n", len(res.Objects), len(bundle.Files))
			return nil
		},
	}
}

func newSchemaCmd(g *globals) *cobra.Command {
	var (
		openAPI bool
		remote  bool
		version string
	)
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON Schema of configuration documents, or the OpenAPI description",
		Example: `  cfgd schema > cfgd-document.schema.json
  cfgd schema --openapi -o yaml
  cfgd schema --openapi --remote`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if remote {
				client, err := g.adminClient()
				if err != nil {
					return err
				}
				fetch := client.DocumentSchema
				if openAPI {
					fetch = client.OpenAPI
				}
				data, err := fetch(cmd.Context())
				if err != nil {
					return err
				}
				return output.Render(cmd.OutOrStdout(), data, g.outputFormat(), "")
			}

			reg, err := schema.New()
			if err != nil {
				return err
			}
			if openAPI {
				data, err := admin.BuildOpenAPI(cmd.Context(), reg, version)
				if err != nil {
					return err
				}
				return output.Render(cmd.OutOrStdout(), data, g.output, "")
			}
			if g.output == output.FormatYAML {
				return output.YAML(cmd.OutOrStdout(), reg.DocumentSchema())
			}
			return output.JSON(cmd.OutOrStdout(), reg.DocumentSchema())
		},
	}
	cmd.Flags().BoolVar(&openAPI, "openapi", false, "Print the OpenAPI description of the admin API")
	cmd.Flags().BoolVar(&remote, "remote", false, "Fetch from the running server instead of the built-in schema")
	cmd.Flags().StringVar(&version, "api-version", config.DefaultVersion, "API version reported in the OpenAPI info")
	return cmd
}
