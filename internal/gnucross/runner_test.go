package gnucross

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var crossTriples = Triples{Build: x86Triple, Host: x86Triple, Target: arm64Triple}

func newRunner(l Layout, exec CommandRunner) *PackageRunner {
	return &PackageRunner{Layout: l, Triples: crossTriples, Jobs: 4, Exec: exec, Out: &bytes.Buffer{}, RunID: "test"}
}

type memRecorder struct{ recs []StepRecord }

func (m *memRecorder) Record(_ context.Context, rec StepRecord) error {
	m.recs = append(m.recs, rec)
	return nil
}

func TestRunnerConfiguresThenMakes(t *testing.T) {
	l := newTree(t)
	fe := &fakeExec{}
	rec := &memRecorder{}
	r := newRunner(l, fe)
	r.Recorder = rec

	err := r.Run(context.Background(), Invocation{
		Package:       Binutils,
		Relation:      RelationTarget,
		Verbs:         []string{"all"},
		ConfigureArgs: []string{"--prefix=/p"},
	})
	require.NoError(t, err)

	work := l.WorkDir(Binutils, StageBootstrap, arm64Triple)
	require.Len(t, fe.cmds, 2)
	assert.Equal(t, []string{
		filepath.Join(l.SrcDir(Binutils), "configure"),
		"--build=" + x86Triple, "--host=" + x86Triple, "--target=" + arm64Triple, "--prefix=/p",
	}, fe.cmds[0].Args)
	assert.Equal(t, work, fe.cmds[0].Dir)
	assert.Equal(t, l.LogPath(Binutils, StageBootstrap, arm64Triple, "config"), fe.cmds[0].LogPath)
	assert.Equal(t, []string{"make", "-j4", "all"}, fe.cmds[1].Args)
	assert.Equal(t, l.LogPath(Binutils, StageBootstrap, arm64Triple, "all"), fe.cmds[1].LogPath)

	_, configured := readStamp(work)
	assert.True(t, configured)

	require.Len(t, rec.recs, 2)
	assert.Equal(t, "config", rec.recs[0].Verb)
	assert.Equal(t, StatusOK, rec.recs[1].Status)
	assert.Equal(t, rec.recs, r.Steps)
}

func TestRunnerSkipsConfigureOnResume(t *testing.T) {
	l := newTree(t)
	inv := Invocation{Package: GCC, Relation: RelationTarget, Verbs: []string{"all-gcc"}}

	first := &fakeExec{}
	require.NoError(t, newRunner(l, first).Run(context.Background(), inv))
	require.Len(t, first.cmds, 2)

	work := l.WorkDir(GCC, StageBootstrap, arm64Triple)
	stampBefore, err := os.ReadFile(filepath.Join(work, stampName))
	require.NoError(t, err)
	logPath := l.LogPath(GCC, StageBootstrap, arm64Triple, "all-gcc")
	require.NoError(t, os.WriteFile(logPath, []byte("stale\n"), 0o644))

	// A fresh runner models a second invocation of the tool.
	second := &fakeExec{}
	require.NoError(t, newRunner(l, second).Run(context.Background(), inv))
	require.Len(t, second.cmds, 1)
	assert.Equal(t, []string{"make", "-j4", "all-gcc"}, second.cmds[0].Args)

	stampAfter, err := os.ReadFile(filepath.Join(work, stampName))
	require.NoError(t, err)
	assert.Equal(t, stampBefore, stampAfter)

	log, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.NotContains(t, string(log), "stale")
}

func TestRunnerConfigureFailureLeavesNoStamp(t *testing.T) {
	l := newTree(t)
	fe := &fakeExec{failOn: "configure"}
	r := newRunner(l, fe)

	err := r.Run(context.Background(), Invocation{Package: Glibc, Relation: RelationTarget, Verbs: []string{"install-headers"}})
	var bf *BuildFailure
	require.True(t, errors.As(err, &bf))
	assert.Equal(t, l.WorkDir(Glibc, StageBootstrap, arm64Triple), bf.Dir)
	assert.Equal(t, l.LogPath(Glibc, StageBootstrap, arm64Triple, "config"), bf.LogPath)
	assert.Len(t, fe.cmds, 1, "make must not run after a failed configure")

	_, configured := readStamp(l.WorkDir(Glibc, StageBootstrap, arm64Triple))
	assert.False(t, configured)
	require.Len(t, r.Steps, 1)
	assert.Equal(t, StatusFailed, r.Steps[0].Status)
}

func TestRunnerMakeFailure(t *testing.T) {
	l := newTree(t)
	fe := &fakeExec{failOn: "make"}

	err := newRunner(l, fe).Run(context.Background(), Invocation{Package: Binutils, Relation: RelationTarget, Verbs: []string{"install"}})
	var bf *BuildFailure
	require.True(t, errors.As(err, &bf))
	assert.Equal(t, []string{"make", "-j4", "install"}, bf.Command)
}

func TestRunnerHostOnlyCanadianIsConfigurationError(t *testing.T) {
	l := newTree(t)
	fe := &fakeExec{}
	r := newRunner(l, fe)
	r.Triples = Triples{Build: x86Triple, Host: arm64Triple, Target: arm64Triple}

	err := r.Run(context.Background(), Invocation{Package: Glibc, Relation: RelationCanadian, Verbs: []string{"all"}})
	var cerr *ConfigurationError
	require.True(t, errors.As(err, &cerr))
	assert.Empty(t, fe.cmds)
}

func TestRunnerWithoutConfigure(t *testing.T) {
	l := newTree(t)
	fe := &fakeExec{}

	err := newRunner(l, fe).Run(context.Background(), Invocation{
		Package:  Linux,
		Relation: RelationTarget,
		Verbs:    []string{"headers_install", "ARCH=arm64"},
	})
	require.NoError(t, err)
	require.Len(t, fe.cmds, 1)
	assert.Equal(t, []string{"make", "-j4", "headers_install", "ARCH=arm64"}, fe.cmds[0].Args)
	assert.Equal(t, l.LogPath(Linux, StageBootstrap, arm64Triple, "headers_install"), fe.cmds[0].LogPath)
}

func TestRunnerPassesPathOverlay(t *testing.T) {
	l := newTree(t)
	fe := &fakeExec{}

	err := newRunner(l, fe).Run(context.Background(), Invocation{
		Package:     Glibc,
		Relation:    RelationTarget,
		Verbs:       []string{"all"},
		PathPrepend: []string{l.InstallBin()},
	})
	require.NoError(t, err)
	for _, c := range fe.cmds {
		assert.Equal(t, []string{l.InstallBin()}, c.PathPrepend)
	}
}

func TestRunnerDryRunHasNoSideEffects(t *testing.T) {
	root := t.TempDir()
	l := Layout{Root: root}
	var out bytes.Buffer
	r := &PackageRunner{Layout: l, Triples: crossTriples, Jobs: 2, DryRun: true, Out: &out}

	inv := Invocation{Package: Binutils, Relation: RelationTarget, Verbs: []string{"all"}}
	require.NoError(t, r.Run(context.Background(), inv))
	inv.Verbs = []string{"install"}
	require.NoError(t, r.Run(context.Background(), inv))
	require.NoError(t, r.EnsureStubs(l.Prefix(arm64Triple)))

	assert.Equal(t, ""+
		"src/binutils/configure --build="+x86Triple+" --host="+x86Triple+" --target="+arm64Triple+", cwd=work/binutils-"+arm64Triple+"\n"+
		"make -j2 all, cwd=work/binutils-"+arm64Triple+"\n"+
		"make -j2 install, cwd=work/binutils-"+arm64Triple+"\n"+
		"create empty install/"+arm64Triple+"/include/gnu/stubs.h\n",
		out.String())

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.Empty(t, r.Steps)
}

func TestEnsureStubs(t *testing.T) {
	l := newTree(t)
	r := newRunner(l, &fakeExec{})
	prefix := l.Prefix(arm64Triple)
	path := filepath.Join(prefix, "include", "gnu", "stubs.h")

	require.NoError(t, r.EnsureStubs(prefix))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Zero(t, info.Size())

	// An existing header is left alone.
	require.NoError(t, os.WriteFile(path, []byte("/* real */\n"), 0o644))
	require.NoError(t, r.EnsureStubs(prefix))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "/* real */\n", string(data))
}

func TestStampDigest(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, writeStamp(dir, "configure --a"))

	digest, ok := readStamp(dir)
	require.True(t, ok)
	assert.Equal(t, hashString("configure --a"), digest)
	assert.NotEqual(t, hashString("configure --b"), digest)
	assert.Len(t, digest, 64)

	matches, err := filepath.Glob(filepath.Join(dir, stampName+".*"))
	require.NoError(t, err)
	assert.Empty(t, matches, "temporary stamp files must not linger")
}
