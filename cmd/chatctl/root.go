package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	serverURL string
	shopFlag  string
	timeout   time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "chatctl",
	Short: "Command line client for the storefront assistant",
	Long: `chatctl talks to a running storefront assistant over its HTTP API.

Examples:
  chatctl send --shop acme.myshopify.com "show me rain jackets"
  chatctl repl --shop acme.myshopify.com
  chatctl health
  chatctl conversations --shop acme.myshopify.com --secret $APP_API_SECRET`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", envOr("CHATCTL_SERVER", "http://localhost:8080"), "Base URL of the assistant")
	rootCmd.PersistentFlags().StringVar(&shopFlag, "shop", os.Getenv("SHOPIFY_SHOP_DOMAIN"), "Shop domain to talk to")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "Request timeout")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func newClient() *apiClient {
	return newAPIClient(serverURL, shopFlag, timeout)
}
