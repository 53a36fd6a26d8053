package testutil

import (
	"archive/tar"
	"io"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/pierrec/lz4/v4"
)

// ArchiveFile is one member written by the archive builders. A Name ending in "/"
// produces a directory entry.
type ArchiveFile struct {
	Name string
	Body string
}

// Files converts a name→body map into ArchiveFiles sorted by name.
func Files(m map[string]string) []ArchiveFile {
	out := make([]ArchiveFile, 0, len(m))
	for name, body := range m {
		out = append(out, ArchiveFile{Name: name, Body: body})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// WriteTarGz writes a gzip-compressed tar to path with files in the given order.
func WriteTarGz(t *testing.T, path string, files ...ArchiveFile) string {
	t.Helper()
	return writeArchive(t, path, files, func(w io.Writer) io.WriteCloser {
		return gzip.NewWriter(w)
	})
}

// WriteTarLz4 writes an lz4-framed tar to path.
func WriteTarLz4(t *testing.T, path string, files ...ArchiveFile) string {
	t.Helper()
	return writeArchive(t, path, files, func(w io.Writer) io.WriteCloser {
		return lz4.NewWriter(w)
	})
}

// WriteTar writes an uncompressed tar to path.
func WriteTar(t *testing.T, path string, files ...ArchiveFile) string {
	t.Helper()
	return writeArchive(t, path, files, func(w io.Writer) io.WriteCloser {
		return nopCloser{w}
	})
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

func writeArchive(t *testing.T, path string, files []ArchiveFile, wrap func(io.Writer) io.WriteCloser) string {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer func() { _ = f.Close() }()

	zw := wrap(f)
	tw := tar.NewWriter(zw)
	for _, file := range files {
		hdr := &tar.Header{Name: file.Name, Mode: 0o644, Size: int64(len(file.Body)), Typeflag: tar.TypeReg}
		if len(file.Name) > 0 && file.Name[len(file.Name)-1] == '/' {
			hdr = &tar.Header{Name: file.Name, Mode: 0o755, Typeflag: tar.TypeDir}
		}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatalf("write header %s: %v", file.Name, err)
		}
		if hdr.Typeflag == tar.TypeReg {
			if _, err := io.WriteString(tw, file.Body); err != nil {
				t.Fatalf("write body %s: %v", file.Name, err)
			}
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("close tar: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close compressor: %v", err)
	}
	return path
}
