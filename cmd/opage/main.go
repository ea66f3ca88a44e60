package main

import (
	"context"
	"log"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/vgerber/opage/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	root := &cobra.Command{
		Use:           "opage",
		Short:         "Generate typed API clients from OpenAPI 3.1 documents",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	var verbose bool
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	root.AddCommand(newGenerateCmd(&verbose))
	root.AddCommand(newValidateCmd(&verbose))

	if err := root.ExecuteContext(ctx); err != nil {
		log.Println(err)
		os.Exit(1)
	}
}

func newGenerateCmd(verbose *bool) *cobra.Command {
	var p cli.RunGenerateParams

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a client",
		RunE: func(cmd *cobra.Command, args []string) error {
			p.Verbose = *verbose
			return cli.RunGenerate(cmd.Context(), p, cli.NewLogger(cmd.ErrOrStderr(), p.Verbose))
		},
	}

	cmd.Flags().StringVarP(&p.Spec, "spec", "s", "", "OpenAPI document, file (yaml/json) or http(s) URL")
	cmd.Flags().StringVarP(&p.OutDir, "out", "o", "", "Output directory")
	cmd.Flags().StringVarP(&p.ConfigPath, "config", "c", "", "Path to the generator configuration")
	cmd.Flags().StringVar(&p.Type, "type", "", "Client type (default: the configured target)")
	_ = cmd.MarkFlagRequired("spec")
	_ = cmd.MarkFlagRequired("out")

	return cmd
}

func newValidateCmd(verbose *bool) *cobra.Command {
	var input string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate an OpenAPI document and check that it can be resolved",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.RunValidate(cmd.Context(), input, cli.NewLogger(cmd.ErrOrStderr(), *verbose))
		},
	}
	cmd.Flags().StringVarP(&input, "spec", "s", "", "OpenAPI document, file (yaml/json) or http(s) URL")
	_ = cmd.MarkFlagRequired("spec")
	return cmd
}
