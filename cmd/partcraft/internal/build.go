package internal

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/goplus/partcraft/internal/lifecycle"
	"github.com/goplus/partcraft/pkgs/buildsys/builtin"
	"github.com/spf13/cobra"
)

var (
	buildJobs          int
	buildParallelCount int
	buildDryRun        bool
	buildForce         bool
)

var buildCmd = &cobra.Command{
	Use:   "build [part...]",
	Short: "Build parts",
	Long:  `Build builds the given parts, or every part of the parts file.`,
	RunE:  runBuild,
}

func init() {
	buildCmd.Flags().IntVarP(&buildJobs, "jobs", "j", 1, "Number of parts built at once")
	buildCmd.Flags().IntVar(&buildParallelCount, "parallel-build-count", 0, "Parallel jobs within a part (default: one per CPU)")
	buildCmd.Flags().BoolVar(&buildDryRun, "dry-run", false, "Print the build commands instead of running them")
	buildCmd.Flags().BoolVar(&buildForce, "force", false, "Rebuild parts that are up to date")
	rootCmd.AddCommand(buildCmd)
}

func newBuilder(jobs int) (*lifecycle.Builder, error) {
	proj, err := loadProject()
	if err != nil {
		return nil, err
	}
	work, err := resolveWorkDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get work dir: %w", err)
	}
	target, err := resolveTarget(targetArch, hostTriplet, buildParallelCount)
	if err != nil {
		return nil, err
	}
	return lifecycle.New(builtin.Registry(), proj.Parts, lifecycle.Options{
		WorkDir: work,
		Target:  target,
		Jobs:    jobs,
		Force:   buildForce,
	})
}

func selectSteps(b *lifecycle.Builder, names []string) ([]*lifecycle.Step, error) {
	if len(names) == 0 {
		return b.Steps(), nil
	}
	steps := make([]*lifecycle.Step, 0, len(names))
	for _, name := range names {
		s := b.Step(name)
		if s == nil {
			return nil, fmt.Errorf("unknown part %q", name)
		}
		steps = append(steps, s)
	}
	return steps, nil
}

func runBuild(cmd *cobra.Command, args []string) error {
	b, err := newBuilder(buildJobs)
	if err != nil {
		return err
	}
	steps, err := selectSteps(b, args)
	if err != nil {
		return err
	}
	if buildDryRun {
		return printPlan(cmd.OutOrStdout(), b, steps)
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if err := b.BuildAll(ctx, steps); err != nil {
		return fmt.Errorf("failed to build: %w", err)
	}
	return nil
}

func printPlan(w io.Writer, b *lifecycle.Builder, steps []*lifecycle.Step) error {
	for _, s := range steps {
		fmt.Fprintf(w, "# %s (%s plugin, in %s)\n", s.Part.Name, s.Instance.Name, s.Layout.BuildDir)
		cmds, ok, err := b.Plan(s)
		if err != nil {
			return fmt.Errorf("part %q: %w", s.Part.Name, err)
		}
		if !ok {
			fmt.Fprintf(w, "# the %s plugin decides its commands while building\n", s.Instance.Name)
			continue
		}
		for _, env := range s.Environment() {
			fmt.Fprintf(w, "export %s=%q\n", env.Name, env.Value)
		}
		fmt.Fprintln(w, strings.Join(cmds, "\n"))
	}
	return nil
}
