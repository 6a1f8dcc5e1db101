package gnucross

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gookit/color"
	"github.com/stretchr/testify/require"
)

const (
	x86Triple   = "x86_64-pc-linux-gnu"
	arm64Triple = "aarch64-unknown-linux-gnu"
	ppcTriple   = "powerpc64le-unknown-linux-gnu"
)

func init() {
	color.Disable()
}

// fakeExec records commands instead of running them. A command whose line
// contains failOn exits non-zero.
type fakeExec struct {
	cmds   []*Command
	failOn string
}

func (f *fakeExec) Run(ctx context.Context, c *Command) error {
	f.cmds = append(f.cmds, c)
	if err := os.WriteFile(c.LogPath, []byte(c.String()+"\n"), 0o644); err != nil {
		return err
	}
	if f.failOn != "" && strings.Contains(c.String(), f.failOn) {
		return errors.New("exit status 2")
	}
	return nil
}

// writeScript drops an executable shell script into dir.
func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))
	return path
}

// fakeConfigScripts installs config.sub and config.guess stand-ins that know
// a handful of machines.
func fakeConfigScripts(t *testing.T) *Canonicalizer {
	t.Helper()
	dir := t.TempDir()
	sub := writeScript(t, dir, "config.sub", `case "$1" in
  aarch64-linux-gnu|aarch64-unknown-linux-gnu|arm64-linux) echo aarch64-unknown-linux-gnu ;;
  x86_64-linux-gnu|x86_64-linux|x86_64-pc-linux-gnu) echo x86_64-pc-linux-gnu ;;
  powerpc64le-linux-gnu) echo powerpc64le-unknown-linux-gnu ;;
  *) echo "Invalid configuration '$1': machine '$1' not recognized" >&2; exit 1 ;;
esac
`)
	guess := writeScript(t, dir, "config.guess", "echo x86_64-pc-linux-gnu\n")
	return &Canonicalizer{ConfigSub: sub, ConfigGuess: guess}
}

// newTree creates a root with provisioned package sources.
func newTree(t *testing.T) Layout {
	t.Helper()
	l := Layout{Root: t.TempDir()}
	for _, pkg := range AllPackages {
		dir := l.SrcDir(pkg)
		require.NoError(t, os.MkdirAll(dir, 0o755))
		if pkg.Autoconf() {
			writeScript(t, dir, "configure", "exit 0\n")
		}
	}
	return l
}
