package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/atelier-dev/atelier/internal/config"
)

func versionCmd() *cobra.Command {
	var short bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			if short {
				fmt.Println(version)
				return
			}
			fmt.Printf("atelier %s (commit %s, built %s, %s %s/%s)\n",
				version, commit, date, runtime.Version(), runtime.GOOS, runtime.GOARCH)
			// Show which platform this checkout talks to, when configured.
			if cfg, err := config.LoadWithEnv("."); err == nil && cfg.PlatformURL != "" {
				fmt.Printf("platform %s\n", cfg.PlatformURL)
			}
		},
	}

	cmd.Flags().BoolVarP(&short, "short", "s", false, "Print only the version number")

	return cmd
}
