package gnucross

import (
	"context"
	"fmt"
)

// StepRunner is what the Builder drives; *PackageRunner implements it.
type StepRunner interface {
	Run(ctx context.Context, inv Invocation) error
	EnsureStubs(prefix string) error
}

var _ StepRunner = (*PackageRunner)(nil)

// Builder sequences the bootstrap recipe for every relation a run needs.
type Builder struct {
	Triples Triples
	Layout  Layout
	Runner  StepRunner

	commonArgs    []string
	gccArgs       []string
	bootstrapArgs []string
}

// NewBuilder prepares the configure flag sets shared by all relations.
func NewBuilder(t Triples, l Layout, r StepRunner) *Builder {
	common := []string{"--prefix=" + l.InstallDir()}
	return &Builder{
		Triples:    t,
		Layout:     l,
		Runner:     r,
		commonArgs: common,
		gccArgs:    append(append([]string{}, common...), "--enable-languages=all"),
		// Shared libgcc cannot be built before the C library exists, and the
		// C library needs a C++ capable compiler.
		bootstrapArgs: append(append([]string{}, common...), "--disable-shared", "--enable-languages=c,c++"),
	}
}

// Relations returns the relations this run builds, in order.
func (b *Builder) Relations() []Relation {
	return Resolve(b.Triples)
}

// Compile runs the recipe for each relation. The first failing step aborts
// the run and its error is returned unchanged.
func (b *Builder) Compile(ctx context.Context) error {
	rels := b.Relations()
	// Surface unknown kernel architectures before any build work starts.
	for _, rel := range rels {
		if rel == RelationCanadian {
			continue
		}
		if _, err := b.kernelArch(rel); err != nil {
			return err
		}
	}

	for _, rel := range rels {
		if err := ctx.Err(); err != nil {
			return err
		}
		if rel == RelationCanadian {
			return b.doCanadian(ctx)
		}
		if err := b.doRelation(ctx, rel); err != nil {
			return err
		}
	}
	return nil
}

func (b *Builder) kernelArch(rel Relation) (string, error) {
	if rel == RelationHost {
		return kernelArch(b.Triples.Host)
	}
	return kernelArch(b.Triples.Target)
}

// headerPrefix is where a relation's kernel headers and C library go.
func (b *Builder) headerPrefix(rel Relation) string {
	if rel == RelationTarget {
		return b.Layout.Prefix(b.Triples.Target)
	}
	return b.Layout.Prefix(b.Triples.Host)
}

func (b *Builder) build(ctx context.Context, inv Invocation, verbs ...string) error {
	for _, verb := range verbs {
		step := inv
		step.Verbs = append([]string{verb}, inv.Verbs...)
		if err := b.Runner.Run(ctx, step); err != nil {
			return err
		}
	}
	return nil
}

func (b *Builder) doRelation(ctx context.Context, rel Relation) error {
	arrowf(colInfo, "Building the %s toolchain\n", rel)
	prefix := b.headerPrefix(rel)
	toolsPath := []string{b.Layout.InstallBin()}

	if err := b.build(ctx, Invocation{Package: Binutils, Relation: rel, ConfigureArgs: b.commonArgs},
		"all", "install"); err != nil {
		return err
	}

	// The bootstrap compiler has to be installed before the C library is
	// configured, or its configure picks up the system compiler.
	bootstrap := Invocation{Package: GCC, Relation: rel, Stage: StageBootstrap, ConfigureArgs: b.bootstrapArgs}
	if err := b.build(ctx, bootstrap, "all-gcc", "install-gcc"); err != nil {
		return err
	}

	if err := b.doLinux(ctx, rel, prefix); err != nil {
		return err
	}

	glibc := Invocation{
		Package:       Glibc,
		Relation:      rel,
		ConfigureArgs: []string{"--prefix=" + prefix},
		PathPrepend:   toolsPath,
	}
	if err := b.build(ctx, glibc, "install-headers"); err != nil {
		return err
	}
	if err := b.Runner.EnsureStubs(prefix); err != nil {
		return fmt.Errorf("failed to create stub header: %w", err)
	}

	// The C library links against libgcc.
	if err := b.build(ctx, bootstrap, "all-target-libgcc", "install-target-libgcc"); err != nil {
		return err
	}
	if err := b.build(ctx, glibc, "all", "install"); err != nil {
		return err
	}

	// Shared libraries and the full language set need the real C library.
	final := Invocation{Package: GCC, Relation: rel, Stage: StageFinal, ConfigureArgs: b.gccArgs}
	return b.build(ctx, final, "all", "install")
}

func (b *Builder) doLinux(ctx context.Context, rel Relation, prefix string) error {
	arch, err := b.kernelArch(rel)
	if err != nil {
		return err
	}
	name, err := b.Triples.RelationName(rel)
	if err != nil {
		return err
	}
	return b.Runner.Run(ctx, Invocation{
		Package:  Linux,
		Relation: rel,
		Verbs: []string{
			"headers_install",
			"ARCH=" + arch,
			"-C", b.Layout.SrcDir(Linux),
			"O=" + b.Layout.WorkDir(Linux, StageBootstrap, name),
			"INSTALL_HDR_PATH=" + prefix,
		},
	})
}

// doCanadian builds the tools that run on host and emit code for target. The C
// library and headers come from the host pass.
func (b *Builder) doCanadian(ctx context.Context) error {
	arrowf(colInfo, "Building the canadian toolchain\n")
	args := []string{"--prefix=" + b.Layout.Prefix(b.Triples.Host)}
	toolsPath := []string{b.Layout.InstallBin()}

	for _, pkg := range []Package{Binutils, GCC} {
		inv := Invocation{Package: pkg, Relation: RelationCanadian, ConfigureArgs: args, PathPrepend: toolsPath}
		if err := b.build(ctx, inv, "all", "install"); err != nil {
			return err
		}
	}
	return nil
}
