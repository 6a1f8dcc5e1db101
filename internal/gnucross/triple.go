package gnucross

import (
	"bytes"
	"context"
	"os/exec"
	"strings"
)

// Default locations of the GNU config scripts as shipped by gnuconfig.
const (
	defaultConfigSub   = "/usr/share/gnuconfig/config.sub"
	defaultConfigGuess = "/usr/share/gnuconfig/config.guess"
)

var execCommandContext = exec.CommandContext

// Triples holds the canonical build, host and target machines of one run.
// It is filled once at startup and never mutated.
type Triples struct {
	Build  string
	Host   string
	Target string
}

// IsCross reports whether the produced tools emit code for another machine
// than the one they run on.
func (t Triples) IsCross() bool { return t.Host != t.Target }

// IsCanadian reports whether the produced tools run on another machine
// than the one building them.
func (t Triples) IsCanadian() bool { return t.Build != t.Host }

// Canonicalizer turns free-form machine specifications into canonical
// triples using config.sub, and guesses the invoking machine with config.guess.
type Canonicalizer struct {
	ConfigSub   string
	ConfigGuess string
}

// NewCanonicalizer reads the script locations from cfg, falling back to the
// gnuconfig defaults.
func NewCanonicalizer(cfg *Config) *Canonicalizer {
	return &Canonicalizer{
		ConfigSub:   cfg.Get("GNUCROSS_CONFIG_SUB", defaultConfigSub),
		ConfigGuess: cfg.Get("GNUCROSS_CONFIG_GUESS", defaultConfigGuess),
	}
}

// Canonicalize returns the canonical triple for spec or an
// *InvalidTripleError carrying config.sub's combined output.
func (c *Canonicalizer) Canonicalize(ctx context.Context, spec string) (string, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return "", &InvalidTripleError{Spec: spec, Output: "empty machine specification"}
	}

	cmd := execCommandContext(ctx, c.ConfigSub, spec)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(out.String())
		if msg == "" {
			msg = err.Error()
		}
		return "", &InvalidTripleError{Spec: spec, Output: msg}
	}

	triple := strings.TrimSpace(out.String())
	if triple == "" {
		return "", &InvalidTripleError{Spec: spec, Output: "config.sub printed nothing"}
	}
	debugf("=> canonicalized %s as %s\n", spec, triple)
	return triple, nil
}

// Guess returns the canonical triple of the invoking machine.
func (c *Canonicalizer) Guess(ctx context.Context) (string, error) {
	cmd := execCommandContext(ctx, c.ConfigGuess)
	out, err := cmd.Output()
	if err != nil {
		return "", &InvalidTripleError{Spec: "(config.guess)", Output: err.Error()}
	}
	return strings.TrimSpace(string(out)), nil
}

// ResolveTriples canonicalizes each supplied specification. Empty ones
// default to the invoking machine's triple, which is guessed at most once.
func (c *Canonicalizer) ResolveTriples(ctx context.Context, build, host, target string) (Triples, error) {
	var guessed string
	resolve := func(spec string) (string, error) {
		if spec != "" {
			return c.Canonicalize(ctx, spec)
		}
		if guessed == "" {
			g, err := c.Guess(ctx)
			if err != nil {
				return "", err
			}
			guessed = g
		}
		return guessed, nil
	}

	var t Triples
	var err error
	if t.Build, err = resolve(build); err != nil {
		return Triples{}, err
	}
	if t.Host, err = resolve(host); err != nil {
		return Triples{}, err
	}
	if t.Target, err = resolve(target); err != nil {
		return Triples{}, err
	}
	return t, nil
}

// kernelArch maps a triple's architecture field to the ARCH= value the
// kernel makefiles expect.
func kernelArch(triple string) (string, error) {
	cpu, _, _ := strings.Cut(triple, "-")
	switch {
	case cpu == "aarch64" || cpu == "aarch64_be":
		return "arm64", nil
	case cpu == "x86_64" || (len(cpu) == 4 && cpu[0] == 'i' && strings.HasSuffix(cpu, "86")):
		return "x86", nil
	case cpu == "alpha":
		return "alpha", nil
	case strings.HasPrefix(cpu, "powerpc"):
		return "powerpc", nil
	case strings.HasPrefix(cpu, "arm"):
		return "arm", nil
	case strings.HasPrefix(cpu, "riscv"):
		return "riscv", nil
	case strings.HasPrefix(cpu, "mips"):
		return "mips", nil
	case cpu == "s390x" || cpu == "s390":
		return "s390", nil
	case strings.HasPrefix(cpu, "sparc"):
		return "sparc", nil
	case cpu == "m68k":
		return "m68k", nil
	}
	return "", configErrorf("no kernel architecture known for %q", triple)
}
