package gnucross

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// Invocation is one package step of the recipe: configure if needed, then
// make the requested verbs.
type Invocation struct {
	Package  Package
	Relation Relation
	Stage    Stage
	// Verbs are the make goals and variables; the first one names the log.
	Verbs []string
	// ConfigureArgs follow the derived --build/--host/--target arguments.
	ConfigureArgs []string
	// PathPrepend puts freshly installed tools ahead of the system ones.
	PathPrepend []string
}

// PackageRunner drives one package through configure, make and install.
type PackageRunner struct {
	Layout  Layout
	Triples Triples
	Jobs    int
	DryRun  bool
	Exec    CommandRunner
	// Out receives dry-run transcript lines.
	Out io.Writer
	// Recorder, when set, persists every executed step.
	Recorder StepRecorder
	RunID    string

	// Steps collects the records of this run in execution order.
	Steps []StepRecord

	// configured remembers work directories configured during this run so
	// dry runs report the same sequence a live run would.
	configured map[string]bool
}

func (r *PackageRunner) out() io.Writer {
	if r.Out == nil {
		return os.Stdout
	}
	return r.Out
}

// announce prints the step about to run. Dry runs print the exact line and
// nothing else happens.
func (r *PackageRunner) announce(c *Command) {
	line := relativeTo(r.Layout.Root, fmt.Sprintf("%s, cwd=%s", c, c.Dir))
	if r.DryRun {
		fmt.Fprintln(r.out(), line)
		return
	}
	arrowf(colSuccess, "%s\n", line)
}

func (r *PackageRunner) makeCommand(verbs []string) []string {
	jobs := r.Jobs
	if jobs < 1 {
		jobs = 1
	}
	return append([]string{"make", fmt.Sprintf("-j%d", jobs)}, verbs...)
}

// Run executes inv. Any non-zero exit surfaces as a *BuildFailure.
func (r *PackageRunner) Run(ctx context.Context, inv Invocation) error {
	if len(inv.Verbs) == 0 {
		return configErrorf("no make goals given for %s", inv.Package)
	}
	relName, err := r.Triples.RelationName(inv.Relation)
	if err != nil {
		return err
	}
	workDir := r.Layout.WorkDir(inv.Package, inv.Stage, relName)

	var configure *Command
	if inv.Package.Autoconf() {
		ct, err := Derive(inv.Relation, inv.Package.HostOnly(), r.Triples)
		if err != nil {
			return err
		}
		args := []string{filepath.Join(r.Layout.SrcDir(inv.Package), "configure")}
		args = append(args, ct.Args()...)
		args = append(args, inv.ConfigureArgs...)
		configure = &Command{
			Args:        args,
			Dir:         workDir,
			PathPrepend: inv.PathPrepend,
			LogPath:     r.Layout.LogPath(inv.Package, inv.Stage, relName, "config"),
		}
	}

	if !r.DryRun {
		for _, dir := range []string{r.Layout.LogDir(), workDir} {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("failed to create dir %s: %v", dir, err)
			}
		}
	}

	if configure != nil && !r.isConfigured(workDir, configure) {
		if err := r.exec(ctx, inv, relName, "config", configure); err != nil {
			return err
		}
		if !r.DryRun {
			if err := writeStamp(workDir, configure.String()); err != nil {
				return err
			}
		}
		r.markConfigured(workDir)
	}

	makeCmd := &Command{
		Args:        r.makeCommand(inv.Verbs),
		Dir:         workDir,
		PathPrepend: inv.PathPrepend,
		LogPath:     r.Layout.LogPath(inv.Package, inv.Stage, relName, inv.Verbs[0]),
	}
	return r.exec(ctx, inv, relName, inv.Verbs[0], makeCmd)
}

func (r *PackageRunner) isConfigured(workDir string, configure *Command) bool {
	if r.configured[workDir] {
		return true
	}
	digest, ok := readStamp(workDir)
	if !ok {
		return false
	}
	if want := hashString(configure.String()); digest != want && !r.DryRun {
		arrowf(colWarn, "%s was configured with different arguments; remove it to reconfigure\n",
			relativeTo(r.Layout.Root, workDir))
	}
	return true
}

func (r *PackageRunner) markConfigured(workDir string) {
	if r.configured == nil {
		r.configured = make(map[string]bool)
	}
	r.configured[workDir] = true
}

func (r *PackageRunner) exec(ctx context.Context, inv Invocation, relName, verb string, c *Command) error {
	r.announce(c)
	if r.DryRun {
		return nil
	}

	rec := StepRecord{
		RunID:    r.RunID,
		Package:  inv.Package.String(),
		Stage:    string(inv.Stage),
		Relation: relName,
		Verb:     verb,
		Command:  c.String(),
		Dir:      c.Dir,
		LogPath:  c.LogPath,
		Started:  time.Now(),
	}
	err := r.Exec.Run(ctx, c)
	rec.Duration = time.Since(rec.Started)
	switch {
	case err == nil:
		rec.Status = StatusOK
	case ctx.Err() != nil:
		rec.Status = StatusAborted
	default:
		rec.Status = StatusFailed
	}
	r.Steps = append(r.Steps, rec)
	if r.Recorder != nil {
		// The recorder runs even after cancellation so an aborted step is still logged.
		if recErr := r.Recorder.Record(context.WithoutCancel(ctx), rec); recErr != nil {
			debugf("failed to record step: %v\n", recErr)
		}
	}

	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return err
	}
	return &BuildFailure{Command: c.Args, Dir: c.Dir, LogPath: c.LogPath, Err: err}
}

// EnsureStubs creates prefix/include/gnu/stubs.h when missing. The C library
// does not generate it when cross-compiling, and libgcc fails without it.
func (r *PackageRunner) EnsureStubs(prefix string) error {
	path := filepath.Join(prefix, "include", "gnu", "stubs.h")
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}

	line := relativeTo(r.Layout.Root, "create empty "+path)
	if r.DryRun {
		fmt.Fprintln(r.out(), line)
		return nil
	}
	arrowf(colSuccess, "%s\n", line)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, nil, 0o644)
}
