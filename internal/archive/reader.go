// Package archive reads delivery archives (compressed tar containers) in place.
// Nothing is ever extracted to disk: every operation streams the container from
// the start, so a Reader holds no open handles between calls.
package archive

import (
	"archive/tar"
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"iter"
	"os"
	"path"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/klauspost/compress/gzip"
	"github.com/pierrec/lz4/v4"
	"golang.org/x/text/encoding/htmlindex"
)

// DefaultMaxEntrySize bounds how much of a single entry is buffered in memory (256 MiB).
const DefaultMaxEntrySize int64 = 256 << 20

// DefaultEncoding is used by text operations when no encoding is given.
const DefaultEncoding = "utf-8"

var (
	// ErrArchiveNotFound indicates the archive path does not exist or is not a file.
	ErrArchiveNotFound = errors.New("archive not found")

	// ErrEntryNotFound indicates no regular file with the requested path exists in the archive.
	ErrEntryNotFound = errors.New("entry not found")

	// ErrEntryTooLarge indicates an entry exceeds the reader's max entry size.
	ErrEntryTooLarge = errors.New("entry exceeds maximum readable size")
)

var (
	gzipMagic = []byte{0x1f, 0x8b}
	lz4Magic  = []byte{0x04, 0x22, 0x4d, 0x18}
)

// Entry is one regular file inside an archive.
type Entry struct {
	Path string `json:"path"`
	Name string `json:"name"`
	Size int64  `json:"size"`
}

// Line is a physical line of an entry's text, numbered from 1.
type Line struct {
	Number int    `json:"line_number"`
	Text   string `json:"line"`
}

// ContentMatch is an entry with the lines that matched a content search.
type ContentMatch struct {
	Entry Entry  `json:"entry"`
	Lines []Line `json:"matching_lines"`
}

// QueryMatch is a result of Query. Lines is nil when the query has no content pattern.
type QueryMatch struct {
	Entry Entry  `json:"entry"`
	Text  string `json:"-"`
	Lines []Line `json:"matching_lines,omitempty"`
}

// Query combines optional path, name and content patterns. All supplied patterns must match.
type Query struct {
	Path     *regexp.Regexp
	Name     *regexp.Regexp
	Content  *regexp.Regexp
	Encoding string
}

// Info summarises an archive.
type Info struct {
	Path        string `json:"archive_path"`
	FileCount   int    `json:"file_count"`
	TotalSize   int64  `json:"total_uncompressed_size"`
	ArchiveSize int64  `json:"archive_size"`
}

// Option configures a Reader.
type Option func(*Reader)

// WithMaxEntrySize overrides DefaultMaxEntrySize. Non-positive values are ignored.
func WithMaxEntrySize(n int64) Option {
	return func(r *Reader) {
		if n > 0 {
			r.maxEntrySize = n
		}
	}
}

// Reader gives read-only access to one archive.
type Reader struct {
	path         string
	maxEntrySize int64
}

// Open checks that path exists and returns a Reader for it.
func Open(archivePath string, opts ...Option) (*Reader, error) {
	info, err := os.Stat(archivePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrArchiveNotFound, archivePath)
		}
		return nil, fmt.Errorf("stat archive %s: %w", archivePath, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrArchiveNotFound, archivePath)
	}

	r := &Reader{path: archivePath, maxEntrySize: DefaultMaxEntrySize}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Path returns the archive path.
func (r *Reader) Path() string {
	return r.path
}

// Entries lists every regular file. Each range over the sequence re-scans the archive.
func (r *Reader) Entries() iter.Seq2[Entry, error] {
	return func(yield func(Entry, error) bool) {
		stopped := false
		err := r.walk(func(hdr *tar.Header, _ io.Reader) (bool, error) {
			if !yield(entryFromHeader(hdr), nil) {
				stopped = true
				return true, nil
			}
			return false, nil
		})
		if err != nil && !stopped {
			yield(Entry{}, err)
		}
	}
}

// Read returns the content of the entry at entryPath.
func (r *Reader) Read(entryPath string) ([]byte, error) {
	var data []byte
	found := false
	err := r.walk(func(hdr *tar.Header, body io.Reader) (bool, error) {
		if hdr.Name != entryPath {
			return false, nil
		}
		found = true
		b, err := r.readBody(hdr, body)
		if err != nil {
			return true, err
		}
		data = b
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%w: %s in %s", ErrEntryNotFound, entryPath, r.path)
	}
	return data, nil
}

// ReadText returns the entry decoded with encoding. It reports false instead of an
// error when the entry is missing, too large or not decodable.
func (r *Reader) ReadText(entryPath, encoding string) (string, bool) {
	data, err := r.Read(entryPath)
	if err != nil {
		return "", false
	}
	return Decode(data, encoding)
}

// Exists reports whether a regular file with entryPath exists.
func (r *Reader) Exists(entryPath string) bool {
	found := false
	_ = r.walk(func(hdr *tar.Header, _ io.Reader) (bool, error) {
		if hdr.Name == entryPath {
			found = true
			return true, nil
		}
		return false, nil
	})
	return found
}

// Info counts files and sizes.
func (r *Reader) Info() (Info, error) {
	st, err := os.Stat(r.path)
	if err != nil {
		return Info{}, fmt.Errorf("stat archive %s: %w", r.path, err)
	}
	info := Info{Path: r.path, ArchiveSize: st.Size()}
	for e, err := range r.Entries() {
		if err != nil {
			return Info{}, err
		}
		info.FileCount++
		info.TotalSize += e.Size
	}
	return info, nil
}

// SearchByPath yields entries whose full path contains a match for re.
func (r *Reader) SearchByPath(re *regexp.Regexp) iter.Seq2[Entry, error] {
	return r.filter(func(e Entry) bool { return re.MatchString(e.Path) })
}

// SearchByName yields entries whose base name contains a match for re.
func (r *Reader) SearchByName(re *regexp.Regexp) iter.Seq2[Entry, error] {
	return r.filter(func(e Entry) bool { return re.MatchString(e.Name) })
}

// SearchByExtension yields entries whose path ends with ext, case-insensitively.
// A missing leading dot is added.
func (r *Reader) SearchByExtension(ext string) iter.Seq2[Entry, error] {
	re := ExtensionPattern(ext)
	return r.SearchByPath(re)
}

// SearchContent yields decodable entries with at least one line matching re.
func (r *Reader) SearchContent(re *regexp.Regexp, encoding string) iter.Seq2[ContentMatch, error] {
	return func(yield func(ContentMatch, error) bool) {
		for m, err := range r.Query(Query{Content: re, Encoding: encoding}) {
			if err != nil {
				yield(ContentMatch{}, err)
				return
			}
			if !yield(ContentMatch{Entry: m.Entry, Lines: m.Lines}, nil) {
				return
			}
		}
	}
}

// Query yields decodable entries that satisfy every pattern in q. An entry is
// excluded when q.Content is set and no line matches, even if path and name matched.
func (r *Reader) Query(q Query) iter.Seq2[QueryMatch, error] {
	return func(yield func(QueryMatch, error) bool) {
		stopped := false
		err := r.walk(func(hdr *tar.Header, body io.Reader) (bool, error) {
			e := entryFromHeader(hdr)
			if q.Path != nil && !q.Path.MatchString(e.Path) {
				return false, nil
			}
			if q.Name != nil && !q.Name.MatchString(e.Name) {
				return false, nil
			}
			data, err := r.readBody(hdr, body)
			if err != nil {
				if errors.Is(err, ErrEntryTooLarge) {
					return false, nil
				}
				return true, err
			}
			text, ok := Decode(data, q.Encoding)
			if !ok {
				return false, nil
			}
			m := QueryMatch{Entry: e, Text: text}
			if q.Content != nil {
				m.Lines = matchLines(text, q.Content)
				if len(m.Lines) == 0 {
					return false, nil
				}
			}
			if !yield(m, nil) {
				stopped = true
				return true, nil
			}
			return false, nil
		})
		if err != nil && !stopped {
			yield(QueryMatch{}, err)
		}
	}
}

// ExtensionPattern builds the anchored, case-insensitive pattern for ext.
func ExtensionPattern(ext string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)` + regexp.QuoteMeta(NormalizeExtension(ext)) + `$`)
}

// ContainerSuffixes lists the file name suffixes recognized as delivery archives.
var ContainerSuffixes = []string{".tar.gz", ".tgz", ".tar.lz4"}

// IsContainerName reports whether name ends with one of ContainerSuffixes, ignoring case.
func IsContainerName(name string) bool {
	lower := strings.ToLower(name)
	for _, suffix := range ContainerSuffixes {
		if strings.HasSuffix(lower, suffix) {
			return true
		}
	}
	return false
}

// NormalizeExtension lower-cases ext and ensures a leading dot.
func NormalizeExtension(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

// Decode converts data to a string using the named encoding. UTF-8 is validated
// strictly; other encodings are looked up by their WHATWG name.
func Decode(data []byte, encoding string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "", "utf-8", "utf8":
		if !utf8.Valid(data) {
			return "", false
		}
		return string(data), true
	}
	enc, err := htmlindex.Get(encoding)
	if err != nil {
		return "", false
	}
	out, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return "", false
	}
	return string(out), true
}

// Collect drains seq into a slice, stopping at the first error.
func Collect[T any](seq iter.Seq2[T, error]) ([]T, error) {
	var out []T
	for v, err := range seq {
		if err != nil {
			return out, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (r *Reader) filter(keep func(Entry) bool) iter.Seq2[Entry, error] {
	return func(yield func(Entry, error) bool) {
		for e, err := range r.Entries() {
			if err != nil {
				yield(Entry{}, err)
				return
			}
			if keep(e) && !yield(e, nil) {
				return
			}
		}
	}
}

// walk streams the archive and calls fn for each regular file until fn asks to stop.
func (r *Reader) walk(fn func(hdr *tar.Header, body io.Reader) (bool, error)) error {
	f, err := os.Open(r.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrArchiveNotFound, r.path)
		}
		return fmt.Errorf("open archive %s: %w", r.path, err)
	}
	defer func() { _ = f.Close() }()

	stream, closeStream, err := decompress(bufio.NewReader(f))
	if err != nil {
		return fmt.Errorf("open archive %s: %w", r.path, err)
	}
	defer closeStream()

	tr := tar.NewReader(stream)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read archive %s: %w", r.path, err)
		}
		if !hdr.FileInfo().Mode().IsRegular() {
			continue
		}
		stop, err := fn(hdr, tr)
		if err != nil {
			return err
		}
		if stop {
			return nil
		}
	}
}

func (r *Reader) readBody(hdr *tar.Header, body io.Reader) ([]byte, error) {
	if hdr.Size > r.maxEntrySize {
		return nil, fmt.Errorf("%w: %s (%d > %d bytes)", ErrEntryTooLarge, hdr.Name, hdr.Size, r.maxEntrySize)
	}
	data, err := io.ReadAll(io.LimitReader(body, r.maxEntrySize+1))
	if err != nil {
		return nil, fmt.Errorf("read entry %s: %w", hdr.Name, err)
	}
	if int64(len(data)) > r.maxEntrySize {
		return nil, fmt.Errorf("%w: %s", ErrEntryTooLarge, hdr.Name)
	}
	return data, nil
}

// decompress sniffs the container's magic bytes. Anything that is neither gzip nor
// lz4 is handed to the tar reader as-is.
func decompress(br *bufio.Reader) (io.Reader, func(), error) {
	head, _ := br.Peek(4)
	switch {
	case bytes.HasPrefix(head, gzipMagic):
		zr, err := gzip.NewReader(br)
		if err != nil {
			return nil, nil, fmt.Errorf("gzip: %w", err)
		}
		return zr, func() { _ = zr.Close() }, nil
	case bytes.HasPrefix(head, lz4Magic):
		return lz4.NewReader(br), func() {}, nil
	default:
		return br, func() {}, nil
	}
}

func entryFromHeader(hdr *tar.Header) Entry {
	return Entry{Path: hdr.Name, Name: path.Base(hdr.Name), Size: hdr.Size}
}

func matchLines(text string, re *regexp.Regexp) []Line {
	var lines []Line
	for i, l := range strings.Split(text, "\n") {
		if re.MatchString(l) {
			lines = append(lines, Line{Number: i + 1, Text: l})
		}
	}
	return lines
}
