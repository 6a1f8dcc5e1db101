package gnucross

// Relation identifies which toolchain variant is being produced.
type Relation int

const (
	// RelationBuild is the native toolchain; nothing is ever built for it.
	RelationBuild Relation = iota
	// RelationHost runs on build and emits code for host.
	RelationHost
	// RelationTarget runs on build and emits code for target.
	RelationTarget
	// RelationCanadian runs on host and emits code for target.
	RelationCanadian
)

func (r Relation) String() string {
	switch r {
	case RelationBuild:
		return "build"
	case RelationHost:
		return "host"
	case RelationTarget:
		return "target"
	case RelationCanadian:
		return "canadian"
	}
	return "unknown"
}

// Resolve returns the relations to build, in build order. A Canadian entry
// is always last and ends the run.
func Resolve(t Triples) []Relation {
	var rels []Relation
	if t.IsCross() {
		rels = append(rels, RelationTarget)
	}
	if t.IsCanadian() {
		rels = append(rels, RelationHost, RelationCanadian)
	}
	return rels
}

// RelationName is the name a relation's work directories and logs are
// keyed by.
func (t Triples) RelationName(r Relation) (string, error) {
	switch r {
	case RelationHost:
		return t.Host, nil
	case RelationTarget:
		return t.Target, nil
	case RelationCanadian:
		return t.Host + "_" + t.Target, nil
	}
	return "", configErrorf("nothing is built for the %s relation", r)
}

// ConfigureTriple is the --build/--host/--target triple passed to one
// package's configure script.
type ConfigureTriple struct {
	Build  string
	Host   string
	Target string
}

// Args renders the triple as configure arguments.
func (c ConfigureTriple) Args() []string {
	return []string{
		"--build=" + c.Build,
		"--host=" + c.Host,
		"--target=" + c.Target,
	}
}

// Derive computes the configure triple for a package under relation r.
//
// For a compiler, --host is where the compiler runs and --target is what it
// emits code for. A host-only package (the C library) instead uses --host
// for the machine its code executes on, so the slot is replaced by target or
// host. Host-only packages are never rebuilt for the Canadian relation.
func Derive(r Relation, hostOnly bool, t Triples) (ConfigureTriple, error) {
	var c ConfigureTriple
	switch r {
	case RelationHost:
		c = ConfigureTriple{Build: t.Build, Host: t.Build, Target: t.Host}
	case RelationTarget:
		c = ConfigureTriple{Build: t.Build, Host: t.Build, Target: t.Target}
	case RelationCanadian:
		if hostOnly {
			return ConfigureTriple{}, configErrorf("host-only packages are not built for the canadian relation")
		}
		return ConfigureTriple{Build: t.Build, Host: t.Host, Target: t.Target}, nil
	default:
		return ConfigureTriple{}, configErrorf("nothing is built for the %s relation", r)
	}

	if hostOnly {
		if r == RelationTarget {
			c.Host = t.Target
		} else {
			c.Host = t.Host
		}
	}
	return c, nil
}
