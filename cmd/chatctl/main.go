// Command chatctl talks to a running storefront assistant: send messages,
// chat interactively, check health and read merchant conversations.
package main

import (
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
