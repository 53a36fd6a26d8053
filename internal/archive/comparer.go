package archive

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// Side names used in comparer messages.
const (
	SideSource = "source"
	SideTarget = "target"
)

const maxDiffPreview = 240

// AmbiguousMatchError reports more than one candidate entry for an extension.
// Candidates are never auto-resolved.
type AmbiguousMatchError struct {
	Side       string
	Extension  string
	Candidates []string
}

func (e *AmbiguousMatchError) Error() string {
	quoted := make([]string, len(e.Candidates))
	for i, c := range e.Candidates {
		quoted[i] = fmt.Sprintf("'%s'", c)
	}
	return fmt.Sprintf("Multiple files with extension '%s' found in %s archive. Found: [%s]",
		e.Extension, e.Side, strings.Join(quoted, ", "))
}

// IsAmbiguousMatch reports whether err is an *AmbiguousMatchError.
func IsAmbiguousMatch(err error) bool {
	var target *AmbiguousMatchError
	return errors.As(err, &target)
}

// CompareResult is the outcome of Compare. It is always a complete value; errors are
// reported through Success and Message.
type CompareResult struct {
	Success     bool   `json:"success"`
	Message     string `json:"message"`
	SourceEntry *Entry `json:"source_entry,omitempty"`
	TargetEntry *Entry `json:"target_entry,omitempty"`
	Diff        string `json:"diff,omitempty"`
}

// Comparer byte-compares the unique entry with a given extension in two archives.
type Comparer struct {
	opts []Option
}

// NewComparer returns a Comparer whose readers are opened with opts.
func NewComparer(opts ...Option) *Comparer {
	return &Comparer{opts: opts}
}

// Compare locates exactly one entry with extension in each archive and compares them.
func (c *Comparer) Compare(sourcePath, targetPath, extension string) (result CompareResult) {
	defer func() {
		if r := recover(); r != nil {
			result = CompareResult{Message: fmt.Sprintf("Error during comparison: %v", r)}
		}
	}()

	ext := NormalizeExtension(extension)

	src, err := Open(sourcePath, c.opts...)
	if err != nil {
		return failure(err)
	}
	tgt, err := Open(targetPath, c.opts...)
	if err != nil {
		return failure(err)
	}

	srcMatches, err := Collect(src.SearchByExtension(ext))
	if err != nil {
		return failure(err)
	}
	tgtMatches, err := Collect(tgt.SearchByExtension(ext))
	if err != nil {
		return failure(err)
	}

	if len(srcMatches) == 0 {
		return CompareResult{Message: fmt.Sprintf("No files with extension '%s' found in source archive: %s", ext, sourcePath)}
	}
	if len(tgtMatches) == 0 {
		return CompareResult{Message: fmt.Sprintf("No files with extension '%s' found in target archive: %s", ext, targetPath)}
	}
	if len(srcMatches) > 1 {
		return failure(&AmbiguousMatchError{Side: SideSource, Extension: ext, Candidates: entryPaths(srcMatches)})
	}
	if len(tgtMatches) > 1 {
		return failure(&AmbiguousMatchError{Side: SideTarget, Extension: ext, Candidates: entryPaths(tgtMatches)})
	}

	srcEntry, tgtEntry := srcMatches[0], tgtMatches[0]
	result.SourceEntry, result.TargetEntry = &srcEntry, &tgtEntry

	srcData, err := src.Read(srcEntry.Path)
	if err != nil {
		return withEntries(failure(err), &srcEntry, &tgtEntry)
	}
	tgtData, err := tgt.Read(tgtEntry.Path)
	if err != nil {
		return withEntries(failure(err), &srcEntry, &tgtEntry)
	}

	if bytes.Equal(srcData, tgtData) {
		result.Success = true
		result.Message = fmt.Sprintf("Files are identical: source '%s' matches target '%s'", srcEntry.Path, tgtEntry.Path)
		return result
	}

	result.Message = fmt.Sprintf("Files differ: source '%s' (%d bytes) vs target '%s' (%d bytes)",
		srcEntry.Path, len(srcData), tgtEntry.Path, len(tgtData))
	result.Diff = diffPreview(srcData, tgtData)
	return result
}

func failure(err error) CompareResult {
	switch {
	case errors.Is(err, ErrArchiveNotFound):
		return CompareResult{Message: fmt.Sprintf("Archive file not found: %v", err)}
	case IsAmbiguousMatch(err):
		return CompareResult{Message: err.Error()}
	default:
		return CompareResult{Message: fmt.Sprintf("Error during comparison: %v", err)}
	}
}

func withEntries(r CompareResult, src, tgt *Entry) CompareResult {
	r.SourceEntry, r.TargetEntry = src, tgt
	return r
}

func entryPaths(entries []Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Path
	}
	return out
}

// diffPreview renders a compact character diff when both sides are UTF-8 text.
func diffPreview(a, b []byte) string {
	if !utf8.Valid(a) || !utf8.Valid(b) {
		return ""
	}
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffCleanupSemantic(dmp.DiffMain(string(a), string(b), false))

	var sb strings.Builder
	for _, d := range diffs {
		var prefix string
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			prefix = "-"
		case diffmatchpatch.DiffInsert:
			prefix = "+"
		default:
			continue
		}
		if sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(prefix)
		sb.WriteString(fmt.Sprintf("%q", d.Text))
		if sb.Len() >= maxDiffPreview {
			return sb.String()[:maxDiffPreview] + "..."
		}
	}
	return sb.String()
}
