// corefsctl is an operator inspection CLI: a superblock dump, a read-only
// key walk over one of the nine fixed trees, and an interactive
// raw-terminal key browser driven by the transaction API's iterators.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:           "corefsctl",
		Short:         "inspect a corefs filesystem directory",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newDumpCmd(), newWalkCmd(), newBrowseCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
