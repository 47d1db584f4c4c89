package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-tableview/cmd/tableview/config"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:          "tableview",
		Short:        "Fetch a JSON API into a table and export it",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ./tableview.yaml)")
	root.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	root.PersistentFlags().String("log-format", "", "log format (text, json)")
	root.PersistentFlags().String("pdf-engine", "", "pdf engine (chromium, wkhtmltopdf, none)")

	root.AddCommand(newServeCommand(&configPath), newExportCommand(&configPath))
	return root
}

func newServeCommand(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the table viewer page and API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath, cmd.Flags())
			if err != nil {
				return err
			}
			app, err := NewApp(cfg, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer app.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, app)
		},
	}
	cmd.Flags().String("host", "", "listen host")
	cmd.Flags().String("port", "", "listen port")
	cmd.Flags().String("base-path", "", "path prefix for the viewer routes")
	return cmd
}

func newExportCommand(configPath *string) *cobra.Command {
	opts := exportOptions{}
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Fetch a URL once and write its records in one format",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath, cmd.Flags())
			if err != nil {
				return err
			}
			app, err := NewApp(cfg, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer app.Close()
			return runExport(cmd.Context(), app, opts, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&opts.URL, "url", "", "JSON API URL returning an array of objects")
	cmd.Flags().StringVarP(&opts.Format, "format", "f", "csv", "export format (csv, json, xlsx, html, pdf, sqlite)")
	cmd.Flags().StringVarP(&opts.Out, "out", "o", "", "output file, - for stdout (default table_data.<ext>)")
	cmd.Flags().Duration("timeout", 0, "upstream request timeout")
	_ = cmd.MarkFlagRequired("url")
	return cmd
}
