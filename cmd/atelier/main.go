package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const banner = `
  ┌─┐┌┬┐┌─┐┬  ┬┌─┐┬─┐
  ├─┤ │ ├┤ │  │├┤ ├┬┘
  ┴ ┴ ┴ └─┘┴─┘┴└─┘┴└─
`

func main() {
	rootCmd := &cobra.Command{
		Use:   "atelier",
		Short: "Client toolkit for collaborative design feeds",
		Long: `Atelier is a Go client toolkit for collaborative design feeds.

It ships an optimistic mutation controller over a paginated query
cache, a presence/broadcast room channel, and a local platform
emulator for development:

  • Optimistic likes and collection membership with rollback
  • Prefix-wide cache updates across every cached page
  • Realtime rooms with presence, cursors and typed actions
  • In-memory platform emulator with a Prometheus endpoint`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		devCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "\033[31mError:\033[0m %s\n", err)
		os.Exit(1)
	}
}

// printBanner prints the Atelier ASCII art banner.
func printBanner() {
	fmt.Print(banner)
}

// success prints a success message.
func success(format string, args ...any) {
	fmt.Printf("\033[32m✓\033[0m %s\n", fmt.Sprintf(format, args...))
}

// info prints an info message.
func info(format string, args ...any) {
	fmt.Printf("  %s\n", fmt.Sprintf(format, args...))
}
