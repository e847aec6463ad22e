// Application server is the main server for the application
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/starquake/quizdocs/cmd/server/app"
)

// flagEnv maps command line flags to the environment variables they override.
var flagEnv = map[string]string{
	"config": "CONFIG_PATH",
	"host":   "HOST",
	"port":   "PORT",
}

func newRootCmd(getenv func(string) string, stdout io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "quizdocs",
		Short:         "HTTP service for quizzes and questions",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().String("config", "", "path to a YAML config file (overrides CONFIG_PATH)")
	cmd.PersistentFlags().String("host", "", "host to listen on (overrides HOST)")
	cmd.PersistentFlags().String("port", "", "port to listen on (overrides PORT)")

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.Run(cmd.Context(), withFlags(cmd, getenv), stdout, nil)
		},
	}
	migrate := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.Migrate(cmd.Context(), withFlags(cmd, getenv), stdout)
		},
	}

	cmd.AddCommand(serve, migrate)
	cmd.RunE = serve.RunE

	return cmd
}

// withFlags returns a getenv that prefers explicitly set flags over the environment.
func withFlags(cmd *cobra.Command, getenv func(string) string) func(string) string {
	overrides := make(map[string]string)
	for flag, key := range flagEnv {
		f := cmd.Flags().Lookup(flag)
		if f != nil && f.Changed {
			overrides[key] = f.Value.String()
		}
	}

	return func(key string) string {
		if v, ok := overrides[key]; ok {
			return v
		}

		return getenv(key)
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := newRootCmd(os.Getenv, os.Stdout).ExecuteContext(ctx)
	stop()
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
