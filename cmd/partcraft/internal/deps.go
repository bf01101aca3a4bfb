package internal

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var depsCmd = &cobra.Command{
	Use:   "deps",
	Short: "Print the host packages and snaps needed to build",
	RunE:  runDeps,
}

func init() {
	rootCmd.AddCommand(depsCmd)
}

func runDeps(cmd *cobra.Command, args []string) error {
	b, err := newBuilder(1)
	if err != nil {
		return err
	}
	packages, snaps := b.Requirements()
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "build-packages: %s\n", strings.Join(packages, " "))
	fmt.Fprintf(w, "build-snaps: %s\n", strings.Join(snaps, " "))
	return nil
}
