// Command portal is the chronokeep-portal RFID timing daemon and its
// companion operator shell, grounded on the teacher's cobra-based CLI
// entrypoint.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:   "portal",
		Short: "chronokeep-portal RFID timing daemon",
	}

	var cfgPath string
	root.PersistentFlags().StringVar(&cfgPath, "config", "", "path to a config file")

	root.AddCommand(newServeCmd(&cfgPath))
	root.AddCommand(newShellCmd(&cfgPath))

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
