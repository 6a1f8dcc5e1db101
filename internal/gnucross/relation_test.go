package gnucross

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		name string
		t    Triples
		want []Relation
	}{
		{"native", Triples{x86Triple, x86Triple, x86Triple}, nil},
		{"cross", Triples{x86Triple, x86Triple, arm64Triple}, []Relation{RelationTarget}},
		{"canadian same host and target", Triples{x86Triple, arm64Triple, arm64Triple}, []Relation{RelationHost, RelationCanadian}},
		{"three way canadian", Triples{x86Triple, arm64Triple, ppcTriple}, []Relation{RelationTarget, RelationHost, RelationCanadian}},
		{"host equals target on another build", Triples{arm64Triple, x86Triple, x86Triple}, []Relation{RelationHost, RelationCanadian}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Resolve(tt.t))
		})
	}
}

func TestResolveNativeFlags(t *testing.T) {
	tr := Triples{x86Triple, x86Triple, x86Triple}
	assert.False(t, tr.IsCross())
	assert.False(t, tr.IsCanadian())
	assert.Empty(t, Resolve(tr))
}

func TestRelationName(t *testing.T) {
	tr := Triples{x86Triple, arm64Triple, ppcTriple}

	name, err := tr.RelationName(RelationHost)
	require.NoError(t, err)
	assert.Equal(t, arm64Triple, name)

	name, err = tr.RelationName(RelationTarget)
	require.NoError(t, err)
	assert.Equal(t, ppcTriple, name)

	name, err = tr.RelationName(RelationCanadian)
	require.NoError(t, err)
	assert.Equal(t, arm64Triple+"_"+ppcTriple, name)

	_, err = tr.RelationName(RelationBuild)
	var cerr *ConfigurationError
	assert.True(t, errors.As(err, &cerr))
}

func TestDerive(t *testing.T) {
	tr := Triples{Build: x86Triple, Host: arm64Triple, Target: ppcTriple}

	tests := []struct {
		name     string
		rel      Relation
		hostOnly bool
		want     ConfigureTriple
	}{
		{"compiler for host", RelationHost, false, ConfigureTriple{x86Triple, x86Triple, arm64Triple}},
		{"compiler for target", RelationTarget, false, ConfigureTriple{x86Triple, x86Triple, ppcTriple}},
		{"compiler canadian", RelationCanadian, false, ConfigureTriple{x86Triple, arm64Triple, ppcTriple}},
		{"library for host", RelationHost, true, ConfigureTriple{x86Triple, arm64Triple, arm64Triple}},
		{"library for target", RelationTarget, true, ConfigureTriple{x86Triple, ppcTriple, ppcTriple}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Derive(tt.rel, tt.hostOnly, tr)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDeriveHostOnlyFollowsRunTriples(t *testing.T) {
	for _, tr := range []Triples{
		{x86Triple, x86Triple, arm64Triple},
		{x86Triple, arm64Triple, arm64Triple},
		{arm64Triple, ppcTriple, x86Triple},
	} {
		got, err := Derive(RelationTarget, true, tr)
		require.NoError(t, err)
		assert.Equal(t, tr.Target, got.Host)

		got, err = Derive(RelationHost, true, tr)
		require.NoError(t, err)
		assert.Equal(t, tr.Host, got.Host)

		_, err = Derive(RelationCanadian, true, tr)
		var cerr *ConfigurationError
		assert.True(t, errors.As(err, &cerr))
	}
}

func TestDeriveBuildRelationFails(t *testing.T) {
	_, err := Derive(RelationBuild, false, Triples{x86Triple, x86Triple, arm64Triple})
	var cerr *ConfigurationError
	assert.True(t, errors.As(err, &cerr))
}

func TestConfigureTripleArgs(t *testing.T) {
	c := ConfigureTriple{Build: "a", Host: "b", Target: "c"}
	assert.Equal(t, []string{"--build=a", "--host=b", "--target=c"}, c.Args())
}
