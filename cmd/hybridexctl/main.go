// Package main provides the hybridexctl admin CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/hybridex/internal/client"
	"github.com/kailas-cloud/hybridex/internal/version"
)

var (
	serverURL   string
	humanOutput bool
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		stop()
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "hybridexctl",
	Short: "Administer a hybridex search server",
	Long: `hybridexctl talks to a running hybridex server over its HTTP API.

It can search, add and delete documents, rebuild the indices, show
statistics and load the bundled sample corpora.

Output is JSON unless --human is set.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", envOr("HYBRIDEX_URL", client.DefaultBaseURL), "Server base URL (env HYBRIDEX_URL)")
	rootCmd.PersistentFlags().BoolVar(&humanOutput, "human", false, "Use human-readable output instead of JSON")
	rootCmd.Version = version.Get().String()
}

func newClient() *client.Client {
	return client.New(serverURL, client.WithUserAgent("hybridexctl/"+version.Version))
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
