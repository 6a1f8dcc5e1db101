package gnucross

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCompression(t *testing.T) {
	for in, want := range map[string]Compression{
		"gz": CompressionGzip, "gzip": CompressionGzip, "XZ": CompressionXZ,
		"zst": CompressionZstd, "zstd": CompressionZstd,
	} {
		got, err := ParseCompression(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseCompression("bz2")
	assert.Error(t, err)
}

func TestCompressionForPath(t *testing.T) {
	c, ok := compressionForPath("x.tgz")
	assert.True(t, ok)
	assert.Equal(t, CompressionGzip, c)
	_, ok = compressionForPath("x.zip")
	assert.False(t, ok)
}

func TestCreateBundle(t *testing.T) {
	src := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(src, "bin"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "bin", "aarch64-unknown-linux-gnu-gcc"),
		bytes.Repeat([]byte("x"), 4096), 0o755))
	require.NoError(t, os.Symlink("aarch64-unknown-linux-gnu-gcc", filepath.Join(src, "bin", "cc")))

	for _, c := range []Compression{CompressionGzip, CompressionXZ, CompressionZstd} {
		t.Run(string(c), func(t *testing.T) {
			dest := filepath.Join(t.TempDir(), "toolchain.tar."+string(c))
			require.NoError(t, CreateBundle(src, dest, c, nil))

			_, err := os.Stat(dest + ".partial")
			assert.True(t, os.IsNotExist(err))

			names, err := listBundle(dest)
			require.NoError(t, err)
			assert.ElementsMatch(t, []string{"bin/", "bin/aarch64-unknown-linux-gnu-gcc", "bin/cc"}, names)
		})
	}
}

func TestCreateBundleMissingSource(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "out.tar.gz")
	assert.Error(t, CreateBundle(filepath.Join(t.TempDir(), "absent"), dest, CompressionGzip, nil))
	_, err := os.Stat(dest)
	assert.True(t, os.IsNotExist(err))
}
