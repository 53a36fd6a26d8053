package cmd

import (
	"fmt"
	"regexp"

	"github.com/spf13/cobra"

	"github.com/EmundoT/vendor-qc/internal/archive"
	"github.com/EmundoT/vendor-qc/internal/core"
)

type inspectOptions struct {
	path     string
	name     string
	content  string
	ext      string
	encoding string
}

// inspectResult is the JSON payload of `inspect --json`.
type inspectResult struct {
	Info    archive.Info           `json:"info"`
	Entries []archive.Entry        `json:"entries"`
	Matches []archive.ContentMatch `json:"content_matches,omitempty"`
}

func newInspectCommand(g *globalOptions) *cobra.Command {
	opts := &inspectOptions{}

	cmd := &cobra.Command{
		Use:   "inspect ARCHIVE",
		Short: "List and search archive entries",
		Long: `List the files inside a .tar.gz, .tgz or .tar.lz4 archive. Path, name and
extension filters narrow the listing; --content searches decodable text and
prints matching lines. All supplied filters must match.

Examples:
  vendor-qc inspect T1_v1.tar.gz
  vendor-qc inspect T1_v1.tar.gz --name 'Report_.*\.xlsx$'
  vendor-qc inspect T1_v1.tar.gz --ext .rctl --content 'revision'`,
		Args: usageError(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := g.loadSettings(cmd)
			if err != nil {
				return err
			}
			reader, err := archive.Open(args[0], archive.WithMaxEntrySize(settings.Archive.MaxEntryBytes))
			if err != nil {
				return err
			}
			res, err := inspectArchive(reader, opts)
			if err != nil {
				return err
			}
			return printInspect(cmd, g, res)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.path, "path", "", "regex matched against the entry path")
	f.StringVar(&opts.name, "name", "", "regex matched against the entry base name")
	f.StringVar(&opts.content, "content", "", "regex matched against each line of text entries")
	f.StringVar(&opts.ext, "ext", "", "entry extension, case-insensitive")
	f.StringVar(&opts.encoding, "encoding", "utf-8", "text encoding for --content")
	return cmd
}

func compileFlag(flag, expr string) (*regexp.Regexp, error) {
	if expr == "" {
		return nil, nil
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, core.NewExitError(core.ExitInvalidArguments, fmt.Errorf("invalid --%s: %w", flag, err))
	}
	return re, nil
}

func inspectArchive(r *archive.Reader, opts *inspectOptions) (*inspectResult, error) {
	pathRe, err := compileFlag("path", opts.path)
	if err != nil {
		return nil, err
	}
	nameRe, err := compileFlag("name", opts.name)
	if err != nil {
		return nil, err
	}
	contentRe, err := compileFlag("content", opts.content)
	if err != nil {
		return nil, err
	}
	var extRe *regexp.Regexp
	if opts.ext != "" {
		extRe = archive.ExtensionPattern(opts.ext)
	}

	info, err := r.Info()
	if err != nil {
		return nil, err
	}
	res := &inspectResult{Info: info, Entries: []archive.Entry{}}

	keep := func(e archive.Entry) bool {
		return (pathRe == nil || pathRe.MatchString(e.Path)) &&
			(nameRe == nil || nameRe.MatchString(e.Name)) &&
			(extRe == nil || extRe.MatchString(e.Path))
	}

	if contentRe == nil {
		for e, err := range r.Entries() {
			if err != nil {
				return nil, err
			}
			if keep(e) {
				res.Entries = append(res.Entries, e)
			}
		}
		return res, nil
	}

	for m, err := range r.Query(archive.Query{Path: pathRe, Name: nameRe, Content: contentRe, Encoding: opts.encoding}) {
		if err != nil {
			return nil, err
		}
		if !keep(m.Entry) {
			continue
		}
		res.Entries = append(res.Entries, m.Entry)
		res.Matches = append(res.Matches, archive.ContentMatch{Entry: m.Entry, Lines: m.Lines})
	}
	return res, nil
}

func printInspect(cmd *cobra.Command, g *globalOptions, res *inspectResult) error {
	out := cmd.OutOrStdout()
	switch g.outputMode() {
	case core.OutputJSON:
		return core.WriteCLISuccess(out, res)
	case core.OutputQuiet:
		for _, e := range res.Entries {
			fmt.Fprintln(out, e.Path)
		}
		return nil
	}

	fmt.Fprint(out, core.FormatArchiveInfo(res.Info))
	fmt.Fprintln(out)
	fmt.Fprintln(out, core.FormatEntriesTable(res.Entries))
	for _, m := range res.Matches {
		fmt.Fprintf(out, "\n%s\n", m.Entry.Path)
		for _, l := range m.Lines {
			fmt.Fprintf(out, "  %5d: %s\n", l.Number, l.Text)
		}
	}
	return nil
}
