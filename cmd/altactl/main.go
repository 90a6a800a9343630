// Command altactl holds operator tasks that have no HTTP surface.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:     "altactl",
		Short:   "Operator tools for the Alta Montaña booking API",
		Version: Version,
	}

	rootCmd.AddCommand(seedAdminCmd())
	rootCmd.AddCommand(purgeCacheCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
