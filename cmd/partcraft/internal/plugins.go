package internal

import (
	"encoding/json"
	"fmt"

	"github.com/goplus/partcraft/pkgs/buildsys"
	"github.com/goplus/partcraft/pkgs/buildsys/builtin"
	"github.com/spf13/cobra"
)

var pluginsCmd = &cobra.Command{
	Use:   "plugins",
	Short: "List the available plugins",
	RunE:  runPlugins,
}

var schemaCmd = &cobra.Command{
	Use:   "schema plugin",
	Short: "Print the JSON Schema of a plugin's properties",
	Args:  cobra.ExactArgs(1),
	RunE:  runSchema,
}

func init() {
	rootCmd.AddCommand(pluginsCmd, schemaCmd)
}

func runPlugins(cmd *cobra.Command, args []string) error {
	reg := builtin.Registry()
	for _, name := range reg.Names() {
		f, _ := reg.Lookup(name)
		gen, err := buildsys.GenerationOf(f.Schema)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%-10s %s\n", name, gen)
	}
	return nil
}

func runSchema(cmd *cobra.Command, args []string) error {
	f, ok := builtin.Registry().Lookup(args[0])
	if !ok {
		return fmt.Errorf("unknown plugin %q", args[0])
	}
	data, err := json.MarshalIndent(f.Schema.JSONSchema(), "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}
