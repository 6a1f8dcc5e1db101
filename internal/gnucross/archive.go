package gnucross

import (
	"archive/tar"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/klauspost/pgzip"
	"github.com/schollz/progressbar/v3"
	"github.com/ulikunitz/xz"
)

// Compression selects the bundle format.
type Compression string

const (
	CompressionGzip Compression = "gz"
	CompressionXZ   Compression = "xz"
	CompressionZstd Compression = "zst"
)

// ParseCompression accepts gz, xz or zst (and the usual long spellings).
func ParseCompression(s string) (Compression, error) {
	switch strings.ToLower(s) {
	case "gz", "gzip":
		return CompressionGzip, nil
	case "xz":
		return CompressionXZ, nil
	case "zst", "zstd":
		return CompressionZstd, nil
	}
	return "", fmt.Errorf("unknown compression %q (want gz, xz or zst)", s)
}

// compressionForPath picks the format from a bundle file name.
func compressionForPath(path string) (Compression, bool) {
	switch {
	case strings.HasSuffix(path, ".tar.gz"), strings.HasSuffix(path, ".tgz"):
		return CompressionGzip, true
	case strings.HasSuffix(path, ".tar.xz"):
		return CompressionXZ, true
	case strings.HasSuffix(path, ".tar.zst"):
		return CompressionZstd, true
	}
	return "", false
}

func newCompressor(w io.Writer, c Compression) (io.WriteCloser, error) {
	switch c {
	case CompressionGzip:
		return pgzip.NewWriter(w), nil
	case CompressionXZ:
		return xz.NewWriter(w)
	case CompressionZstd:
		return zstd.NewWriter(w)
	}
	return nil, fmt.Errorf("unknown compression %q", c)
}

// dirSize sums the sizes of the regular files below dir.
func dirSize(dir string) (int64, error) {
	var total int64
	err := filepath.WalkDir(dir, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			info, err := d.Info()
			if err != nil {
				return err
			}
			total += info.Size()
		}
		return nil
	})
	return total, err
}

// CreateBundle archives srcDir into destPath. Entries are stored relative
// to srcDir; symlinks are kept as links. progress may be nil.
func CreateBundle(srcDir, destPath string, c Compression, progress io.Writer) (err error) {
	total, err := dirSize(srcDir)
	if err != nil {
		return fmt.Errorf("failed to size %s: %w", srcDir, err)
	}
	if progress == nil {
		progress = io.Discard
	}
	bar := progressbar.NewOptions64(total,
		progressbar.OptionSetWriter(progress),
		progressbar.OptionSetDescription("bundling"),
		progressbar.OptionShowBytes(true),
		progressbar.OptionClearOnFinish(),
	)

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return err
	}
	tmpPath := destPath + ".partial"
	out, err := os.Create(tmpPath)
	if err != nil {
		return err
	}
	defer func() {
		out.Close()
		if err != nil {
			os.Remove(tmpPath)
		}
	}()

	cw, err := newCompressor(out, c)
	if err != nil {
		return err
	}
	tw := tar.NewWriter(cw)

	walkErr := filepath.WalkDir(srcDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		// Never bundle a bundle that is being written into the tree.
		if path == tmpPath {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		link := ""
		if d.Type()&fs.ModeSymlink != 0 {
			if link, err = os.Readlink(path); err != nil {
				return err
			}
		}
		hdr, err := tar.FileInfoHeader(info, link)
		if err != nil {
			return err
		}
		hdr.Name = filepath.ToSlash(rel)
		if d.IsDir() {
			hdr.Name += "/"
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(io.MultiWriter(tw, bar), f)
		return err
	})
	if walkErr != nil {
		return fmt.Errorf("failed to archive %s: %w", srcDir, walkErr)
	}

	if err := tw.Close(); err != nil {
		return err
	}
	if err := cw.Close(); err != nil {
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	_ = bar.Finish()
	return os.Rename(tmpPath, destPath)
}

// listBundle returns the entry names of a bundle; used to verify uploads
// and in tests.
func listBundle(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	c, ok := compressionForPath(path)
	if !ok {
		return nil, fmt.Errorf("unknown bundle format: %s", path)
	}
	var r io.Reader
	switch c {
	case CompressionGzip:
		gz, err := pgzip.NewReader(f)
		if err != nil {
			return nil, err
		}
		defer gz.Close()
		r = gz
	case CompressionXZ:
		xr, err := xz.NewReader(f)
		if err != nil {
			return nil, err
		}
		r = xr
	case CompressionZstd:
		zr, err := zstd.NewReader(f)
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		r = zr
	}

	var names []string
	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return names, nil
		}
		if err != nil {
			return nil, err
		}
		names = append(names, hdr.Name)
	}
}
