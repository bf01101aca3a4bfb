package internal

import (
	"fmt"
	"os"

	"github.com/goplus/partcraft/internal/env"
	"github.com/goplus/partcraft/internal/project"
	"github.com/qiniu/x/log"
	"github.com/spf13/cobra"
)

var (
	partsFile   string
	verbose     bool
	workDir     string
	targetArch  string
	hostTriplet string
)

var rootCmd = &cobra.Command{
	Use:   "partcraft",
	Short: "partcraft builds parts with build-system plugins",
	Long: `partcraft builds the parts described in a parts file with the make,
autotools and flutter plugins.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verbose {
			log.SetOutputLevel(log.Ldebug)
		}
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&partsFile, "file", "f", "", "Parts file (default: parts.yaml, parts.yml or parts.toml)")
	flags.BoolVarP(&verbose, "verbose", "v", false, "Log every command run")
	flags.StringVar(&workDir, "work-dir", "", "Work directory (default: $"+env.WorkDirEnv+" or the user cache directory)")
	flags.StringVar(&targetArch, "target-arch", "", "Architecture to build for (default: the host's)")
	flags.StringVar(&hostTriplet, "host-triplet", "", "Triplet of the target toolchain, used with --target-arch (default: derived from it)")
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}

func loadProject() (*project.Project, error) {
	path := partsFile
	if path == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		if path, err = project.Find(cwd); err != nil {
			return nil, err
		}
	}
	proj, err := project.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load parts: %w", err)
	}
	return proj, nil
}

func resolveWorkDir() (string, error) {
	if workDir != "" {
		return workDir, nil
	}
	return env.WorkDir()
}
