package main

import (
	"os"

	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	ctx := &commandContext{}

	rootCmd := &cobra.Command{
		Use:           "pipelinectl",
		Short:         "Editorial pipeline admin CLI",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&ctx.apiURL, "api", envOr("PIPELINE_API", "http://localhost:8080"), "Base URL of the pipeline service")
	flags.StringVar(&ctx.token, "token", os.Getenv("PIPELINE_TOKEN"), "Bearer token for the API")
	flags.StringVar(&ctx.secret, "jwt-secret", os.Getenv("PIPELINE_JWT_SECRET"), "Mint a short-lived token with this secret when --token is empty")
	flags.StringVar(&ctx.user, "user", envOr("USER", "pipelinectl"), "Editor id used as the token subject")
	flags.BoolVar(&ctx.jsonOut, "json", false, "Print raw JSON instead of tables")

	rootCmd.AddCommand(newSubmitCommand(ctx))
	rootCmd.AddCommand(newShowCommand(ctx))
	rootCmd.AddCommand(newListCommand(ctx))
	rootCmd.AddCommand(newRetryCommand(ctx))
	rootCmd.AddCommand(newSalvageCommand(ctx))
	rootCmd.AddCommand(newCancelCommand(ctx))

	return rootCmd
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
