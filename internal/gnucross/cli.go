package gnucross

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"github.com/docker/go-units"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Root  string
	Debug bool
}

// BuildOptions holds the flags of the build and plan commands.
type BuildOptions struct {
	Build  string
	Host   string
	Target string
	Jobs   int
	DryRun bool
}

// Main is the CLI entrypoint for cmd/gnucross.
func Main() {
	disableColorWithoutTTY()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cmd := NewRootCommand()
	if err := cmd.ExecuteContext(ctx); err != nil {
		reportError(err)
		cancel()
		os.Exit(1)
	}
}

func reportError(err error) {
	var bf *BuildFailure
	var it *InvalidTripleError
	switch {
	case errors.As(err, &bf):
		colArrow.Print("-> ")
		colError.Printf("Command failed: %s\n", strings.Join(bf.Command, " "))
		cPrintf(colError, "   cwd: %s\n", bf.Dir)
		cPrintf(colError, "   log: %s\n", bf.LogPath)
		cPrintf(colError, "   %v\n", bf.Err)
	case errors.As(err, &it):
		colArrow.Print("-> ")
		cPrintln(colError, it.Error())
	case errors.Is(err, context.Canceled):
		colArrow.Print("-> ")
		cPrintln(colError, "Interrupted; re-run to resume.")
	default:
		colArrow.Print("-> ")
		colError.Printf("Error: %v\n", err)
	}
}

// NewRootCommand creates the root command for the gnucross CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "gnucross",
		Short:         "Build GNU cross toolchains",
		Long:          "Builds binutils, gcc, kernel headers and glibc in bootstrap order for any build/host/target combination, including canadian crosses.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if opts.Debug {
				Debug = true
			}
		},
	}

	cmd.PersistentFlags().StringVar(&opts.Root, "root", "", "tree root holding src/, work/, logs/ and install/ (default $GNUCROSS_ROOT or the working directory)")
	cmd.PersistentFlags().BoolVar(&opts.Debug, "debug", false, "print debug output")

	cmd.AddCommand(NewBuildCommand(opts))
	cmd.AddCommand(NewPlanCommand(opts))
	cmd.AddCommand(NewStatusCommand(opts))
	cmd.AddCommand(NewLogCommand(opts))
	cmd.AddCommand(NewBundleCommand(opts))
	cmd.AddCommand(NewUploadCommand(opts))
	cmd.AddCommand(NewVersionCommand())

	return cmd
}

func addTripleFlags(cmd *cobra.Command, bopts *BuildOptions) {
	cmd.Flags().StringVar(&bopts.Build, "build", "", "machine doing the compilation (default: this machine)")
	cmd.Flags().StringVar(&bopts.Host, "host", "", "machine the toolchain runs on (default: this machine)")
	cmd.Flags().StringVar(&bopts.Target, "target", "", "machine the toolchain emits code for (default: this machine)")
}

// NewBuildCommand creates the build command.
func NewBuildCommand(opts *RootOptions) *cobra.Command {
	bopts := &BuildOptions{}

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build the toolchain",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadConfigForRoot(opts.Root)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("jobs") {
				bopts.Jobs = cfg.Jobs()
			}
			return runBuild(cmd.Context(), cfg, bopts)
		},
	}

	addTripleFlags(cmd, bopts)
	cmd.Flags().IntVarP(&bopts.Jobs, "jobs", "j", 0, "make parallelism (default: CPU count + 1)")
	cmd.Flags().BoolVarP(&bopts.DryRun, "dry-run", "n", false, "print the commands without running them")

	return cmd
}

func runBuild(ctx context.Context, cfg *Config, bopts *BuildOptions) error {
	triples, err := NewCanonicalizer(cfg).ResolveTriples(ctx, bopts.Build, bopts.Host, bopts.Target)
	if err != nil {
		return err
	}
	colInfo.Printf("build: %s, host: %s, target: %s\n", triples.Build, triples.Host, triples.Target)

	layout := cfg.Layout()
	if len(Resolve(triples)) == 0 {
		arrowf(colNote, "host and target are the same machine as build; nothing to build\n")
		return nil
	}

	runID := uuid.NewString()
	runner := &PackageRunner{
		Layout:  layout,
		Triples: triples,
		Jobs:    bopts.Jobs,
		DryRun:  bopts.DryRun,
		RunID:   runID,
	}

	if bopts.DryRun {
		return NewBuilder(triples, layout, runner).Compile(ctx)
	}

	if err := verifySources(layout); err != nil {
		return err
	}
	release, err := acquireRunLock(layout.LockPath())
	if err != nil {
		return err
	}
	defer release()

	history, err := OpenHistory(layout.HistoryPath())
	if err != nil {
		return err
	}
	defer history.Close()

	runner.Exec = NewExecutor(runID)
	runner.Recorder = history
	debugf("=> run %s\n", runID)

	if err := NewBuilder(triples, layout, runner).Compile(ctx); err != nil {
		return err
	}

	if err := WriteManifest(layout.ManifestPath(), NewManifest(runID, triples, bopts.Jobs, runner.Steps)); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	arrowf(colSuccess, "Toolchain installed in %s\n", layout.InstallDir())
	return nil
}

// verifySources checks that every package tree was provisioned before the
// run starts. Fetching sources is someone else's job.
func verifySources(l Layout) error {
	var missing []string
	for _, pkg := range AllPackages {
		dir := l.SrcDir(pkg)
		check := dir
		if pkg.Autoconf() {
			check = filepath.Join(dir, "configure")
		}
		if _, err := os.Stat(check); err != nil {
			missing = append(missing, check)
		}
	}
	if len(missing) > 0 {
		return configErrorf("missing package sources: %s", strings.Join(missing, ", "))
	}
	return nil
}

// NewPlanCommand creates the plan command.
func NewPlanCommand(opts *RootOptions) *cobra.Command {
	bopts := &BuildOptions{}

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show the canonical triples and the relations a build would produce",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadConfigForRoot(opts.Root)
			if err != nil {
				return err
			}
			t, err := NewCanonicalizer(cfg).ResolveTriples(cmd.Context(), bopts.Build, bopts.Host, bopts.Target)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "build:  %s\nhost:   %s\ntarget: %s\n", t.Build, t.Host, t.Target)
			fmt.Fprintf(out, "cross: %t, canadian: %t\n", t.IsCross(), t.IsCanadian())
			rels := Resolve(t)
			if len(rels) == 0 {
				fmt.Fprintln(out, "relations: none")
				return nil
			}
			fmt.Fprintln(out, "relations:")
			for _, rel := range rels {
				name, err := t.RelationName(rel)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "  %-8s %s\n", rel, name)
			}
			return nil
		},
	}

	addTripleFlags(cmd, bopts)
	return cmd
}

// NewStatusCommand creates the status command.
func NewStatusCommand(opts *RootOptions) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "List recorded build steps",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadConfigForRoot(opts.Root)
			if err != nil {
				return err
			}
			layout := cfg.Layout()
			if _, err := os.Stat(layout.HistoryPath()); err != nil {
				fmt.Fprintln(cmd.OutOrStdout(), "no runs recorded")
				return nil
			}
			history, err := OpenHistory(layout.HistoryPath())
			if err != nil {
				return err
			}
			defer history.Close()

			runID := ""
			if !all {
				if runID, err = history.LatestRunID(cmd.Context()); err != nil {
					return err
				}
			}
			steps, err := history.Steps(cmd.Context(), runID)
			if err != nil {
				return err
			}
			printSteps(cmd, layout, steps)
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "show every recorded run, not just the latest")
	return cmd
}

func printSteps(cmd *cobra.Command, layout Layout, steps []StepRecord) {
	out := cmd.OutOrStdout()
	if len(steps) == 0 {
		fmt.Fprintln(out, "no runs recorded")
		return
	}
	w := bufio.NewWriter(out)
	defer w.Flush()
	lastRun := ""
	for _, s := range steps {
		if s.RunID != lastRun {
			fmt.Fprintf(w, "run %s (%s)\n", s.RunID, s.Started.Format("2006-01-02 15:04:05"))
			lastRun = s.RunID
		}
		size := "-"
		if info, err := os.Stat(s.LogPath); err == nil {
			size = units.HumanSize(float64(info.Size()))
		}
		fmt.Fprintf(w, "  %-7s %-10s %-40s %-22s %10s %9s\n",
			s.Status, s.Package+s.Stage, s.Relation, s.Verb,
			units.HumanDuration(s.Duration), size)
		debugf("    %s\n", relativeTo(layout.Root, s.LogPath))
	}
}

// NewLogCommand creates the log command.
func NewLogCommand(opts *RootOptions) *cobra.Command {
	var stage, relName, verb string

	cmd := &cobra.Command{
		Use:   "log <package>",
		Short: "View the newest matching step log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadConfigForRoot(opts.Root)
			if err != nil {
				return err
			}
			pkg, err := ParsePackage(args[0])
			if err != nil {
				return err
			}
			path, err := findLog(cfg.Layout(), pkg, Stage(stage), relName, verb)
			if err != nil {
				return err
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
			return RunPager(filepath.Base(path), lines)
		},
	}

	cmd.Flags().StringVar(&stage, "stage", "", "compiler stage (\"\" or \"2\")")
	cmd.Flags().StringVar(&relName, "relation-name", "", "relation name (a triple, or host_target for canadian)")
	cmd.Flags().StringVar(&verb, "verb", "", "step verb (config, all, install, ...)")
	return cmd
}

// findLog returns the newest log matching the given parts; empty parts
// match anything.
func findLog(l Layout, pkg Package, stage Stage, relName, verb string) (string, error) {
	if relName == "" {
		relName = "*"
	}
	if verb == "" {
		verb = "*"
	}
	pattern := l.LogPath(pkg, stage, relName, verb)
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("no log matches %s", relativeTo(l.Root, pattern))
	}
	sort.Slice(matches, func(i, j int) bool {
		return modTime(matches[i]) > modTime(matches[j])
	})
	return matches[0], nil
}

func modTime(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.ModTime().UnixNano()
}

// NewBundleCommand creates the bundle command.
func NewBundleCommand(opts *RootOptions) *cobra.Command {
	var output, compression, triple string

	cmd := &cobra.Command{
		Use:   "bundle",
		Short: "Archive the install prefix",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadConfigForRoot(opts.Root)
			if err != nil {
				return err
			}
			layout := cfg.Layout()

			if compression == "" {
				compression = cfg.Get("GNUCROSS_COMPRESSION", string(CompressionXZ))
			}
			comp, err := ParseCompression(compression)
			if err != nil {
				return err
			}

			src := layout.InstallDir()
			if triple != "" {
				src = layout.Prefix(triple)
			}
			if output == "" {
				output = filepath.Join(layout.Root, bundleName(layout, triple)+".tar."+string(comp))
			}

			arrowf(colSuccess, "Bundling %s into %s\n", src, output)
			if err := CreateBundle(src, output, comp, os.Stderr); err != nil {
				return err
			}
			if info, err := os.Stat(output); err == nil {
				arrowf(colSuccess, "Wrote %s (%s)\n", output, units.HumanSize(float64(info.Size())))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "bundle path (default <root>/<name>.tar.<compression>)")
	cmd.Flags().StringVar(&compression, "compression", "", "gz, xz or zst (default $GNUCROSS_COMPRESSION or xz)")
	cmd.Flags().StringVar(&triple, "triple", "", "bundle only install/<triple>")
	return cmd
}

// bundleName derives a file name from the manifest of the last run.
func bundleName(l Layout, triple string) string {
	name := "gnucross-toolchain"
	if m, err := ReadManifest(l.ManifestPath()); err == nil {
		name = fmt.Sprintf("gnucross-%s-%s", m.Host, m.Target)
	}
	if triple != "" {
		name += "-" + triple
	}
	return name
}

// NewUploadCommand creates the upload command.
func NewUploadCommand(opts *RootOptions) *cobra.Command {
	var key string

	cmd := &cobra.Command{
		Use:   "upload <bundle>",
		Short: "Upload a bundle to the configured R2 bucket",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadConfigForRoot(opts.Root)
			if err != nil {
				return err
			}
			path := args[0]
			if _, err := listBundle(path); err != nil {
				return fmt.Errorf("refusing to upload %s: %w", path, err)
			}
			client, err := NewR2Client(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			if key == "" {
				key = filepath.Base(path)
			}
			arrowf(colSuccess, "Uploading %s to %s/%s\n", path, client.BucketName, key)
			if err := client.UploadLocalFile(cmd.Context(), key, path); err != nil {
				return fmt.Errorf("upload failed: %w", err)
			}
			arrowf(colSuccess, "Upload complete\n")
			return nil
		},
	}

	cmd.Flags().StringVar(&key, "key", "", "object key (default: the file name)")
	return cmd
}

// NewVersionCommand creates the version command.
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "gnucross %s (built %s)\n", version, buildDate)
		},
	}
}
