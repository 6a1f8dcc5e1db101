package gnucross

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"syscall"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"
)

// Command is one external process a build step runs.
type Command struct {
	Args []string
	Dir  string
	// Env entries (KEY=VALUE) override the base environment for this
	// command only.
	Env []string
	// PathPrepend directories are put in front of PATH for this command only.
	PathPrepend []string
	// LogPath receives the combined stdout/stderr of the process.
	LogPath string
}

// String renders the command line as printed in transcripts.
func (c *Command) String() string {
	return strings.Join(c.Args, " ")
}

// CommandRunner executes a Command to completion.
type CommandRunner interface {
	Run(ctx context.Context, c *Command) error
}

// Executor runs commands in their own process group, tee-ing combined
// output line by line to Stdout and to the command's log file. Each log
// starts with a "# run <id>: <command> (cwd=<dir>)" header line; the rest is
// the tool's output as written.
type Executor struct {
	Stdout io.Writer // terminal sink; defaults to os.Stdout
	// BaseEnv is the environment overlays apply to; defaults to os.Environ().
	BaseEnv []string
	RunID   string
}

// NewExecutor returns an Executor writing to the terminal.
func NewExecutor(runID string) *Executor {
	return &Executor{Stdout: os.Stdout, RunID: runID}
}

var _ CommandRunner = (*Executor)(nil)

// environ applies the command's overlay to the base environment.
func (e *Executor) environ(c *Command) []string {
	base := e.BaseEnv
	if base == nil {
		base = os.Environ()
	}
	return overlayEnv(base, c.Env, c.PathPrepend)
}

func overlayEnv(base, overlay, pathPrepend []string) []string {
	env := make([]string, 0, len(base)+len(overlay)+1)
	index := make(map[string]int, len(base))
	set := func(kv string) {
		key, _, _ := strings.Cut(kv, "=")
		if i, ok := index[key]; ok {
			env[i] = kv
			return
		}
		index[key] = len(env)
		env = append(env, kv)
	}
	for _, kv := range base {
		set(kv)
	}
	for _, kv := range overlay {
		set(kv)
	}
	if len(pathPrepend) > 0 {
		path := strings.Join(pathPrepend, string(os.PathListSeparator))
		if i, ok := index["PATH"]; ok {
			if _, cur, _ := strings.Cut(env[i], "="); cur != "" {
				path += string(os.PathListSeparator) + cur
			}
		}
		set("PATH=" + path)
	}
	return env
}

// Run starts the command and blocks until it exits. Cancelling ctx kills the
// whole process group so make's children go down with it.
func (e *Executor) Run(ctx context.Context, c *Command) error {
	if len(c.Args) == 0 {
		return errors.New("empty command")
	}
	stdout := e.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}

	logFile, err := os.Create(c.LogPath)
	if err != nil {
		return fmt.Errorf("failed to create log file: %w", err)
	}
	defer logFile.Close()
	fmt.Fprintf(logFile, "# run %s: %s (cwd=%s)\n", e.RunID, c.String(), c.Dir)

	cmd := exec.Command(c.Args[0], c.Args[1:]...)
	cmd.Dir = c.Dir
	cmd.Env = e.environ(c)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	pipe, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	cmd.Stderr = cmd.Stdout

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start command: %w", err)
	}

	// The watcher kills the process group when ctx is cancelled or the drain
	// fails; a child nobody reads from would otherwise block forever.
	pgid := cmd.Process.Pid
	drained := make(chan struct{})
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := teeLines(pipe, stdout, logFile); err != nil {
			return fmt.Errorf("failed to capture output: %w", err)
		}
		close(drained)
		return nil
	})
	g.Go(func() error {
		select {
		case <-gctx.Done():
			_ = unix.Kill(-pgid, unix.SIGKILL)
		case <-drained:
		}
		return nil
	})
	drainErr := g.Wait()
	waitErr := cmd.Wait()

	if ctx.Err() != nil {
		return fmt.Errorf("command aborted: %w", ctx.Err())
	}
	if drainErr != nil {
		return drainErr
	}
	if waitErr != nil {
		return waitErr
	}
	return logFile.Close()
}

// teeLines copies r to both sinks a line at a time, so the terminal shows
// progress while the log stays complete.
func teeLines(r io.Reader, sinks ...io.Writer) error {
	w := io.MultiWriter(sinks...)
	br := bufio.NewReader(r)
	for {
		line, err := br.ReadBytes('\n')
		if len(line) > 0 {
			if _, werr := w.Write(line); werr != nil {
				return werr
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}
