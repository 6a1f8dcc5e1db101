package gnucross

import (
	"fmt"
	"path/filepath"
)

// Package is one of the source trees the toolchain is assembled from.
type Package int

const (
	Binutils Package = iota
	GCC
	Glibc
	Linux
)

type packageInfo struct {
	name string
	// hostOnly packages take --host as the machine their code runs on.
	hostOnly bool
	// autoconf packages have a configure script; the others go straight to make.
	autoconf bool
}

var packageTable = [...]packageInfo{
	Binutils: {name: "binutils", autoconf: true},
	GCC:      {name: "gcc", autoconf: true},
	Glibc:    {name: "glibc", hostOnly: true, autoconf: true},
	Linux:    {name: "linux"},
}

// AllPackages lists every package in recipe order.
var AllPackages = []Package{Binutils, GCC, Linux, Glibc}

func (p Package) info() packageInfo {
	if p < 0 || int(p) >= len(packageTable) {
		panic(fmt.Sprintf("gnucross: unknown package %d", int(p)))
	}
	return packageTable[p]
}

func (p Package) String() string { return p.info().name }

// HostOnly reports whether the package's --host names its execution machine.
func (p Package) HostOnly() bool { return p.info().hostOnly }

// Autoconf reports whether the package is configured before make.
func (p Package) Autoconf() bool { return p.info().autoconf }

// ParsePackage looks a package up by name.
func ParsePackage(name string) (Package, error) {
	for i, info := range packageTable {
		if info.name == name {
			return Package(i), nil
		}
	}
	return 0, fmt.Errorf("unknown package %q", name)
}

// Stage separates the bootstrap and final passes of a package built twice
// for the same relation.
type Stage string

const (
	StageBootstrap Stage = ""
	StageFinal     Stage = "2"
)

// Layout derives every path of the tree from its root:
//
//	src/<package>/
//	work/<package><stage>-<relation>/
//	logs/<package><stage>-<relation>-<verb>.log
//	install/
type Layout struct {
	Root string
}

func (l Layout) SrcDir(p Package) string {
	return filepath.Join(l.Root, "src", p.String())
}

func (l Layout) WorkDir(p Package, stage Stage, relName string) string {
	return filepath.Join(l.Root, "work", fmt.Sprintf("%s%s-%s", p, stage, relName))
}

func (l Layout) LogDir() string { return filepath.Join(l.Root, "logs") }

func (l Layout) LogPath(p Package, stage Stage, relName, verb string) string {
	return filepath.Join(l.LogDir(), fmt.Sprintf("%s%s-%s-%s.log", p, stage, relName, verb))
}

func (l Layout) InstallDir() string { return filepath.Join(l.Root, "install") }

func (l Layout) InstallBin() string { return filepath.Join(l.InstallDir(), "bin") }

// Prefix is the per-machine sub-prefix holding headers and the C library.
func (l Layout) Prefix(triple string) string {
	return filepath.Join(l.InstallDir(), triple)
}

func (l Layout) HistoryPath() string { return filepath.Join(l.LogDir(), "history.db") }

func (l Layout) LockPath() string { return filepath.Join(l.LogDir(), ".gnucross.lock") }

func (l Layout) ManifestPath() string {
	return filepath.Join(l.InstallDir(), "gnucross-manifest.yaml")
}
