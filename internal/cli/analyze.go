package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/sqlscope/internal/engine"
	"github.com/leapstack-labs/sqlscope/pkg/completion"
	"github.com/leapstack-labs/sqlscope/pkg/lowering"
)

// AnalyzeOptions holds options for the analyze command.
type AnalyzeOptions struct {
	Offset int // byte offset for a completion dump, -1 to disable
}

// NewAnalyzeCommand creates the analyze command.
func NewAnalyzeCommand() *cobra.Command {
	opts := &AnalyzeOptions{}
	cmd := &cobra.Command{
		Use:   "analyze <file.sql> [file.sql...]",
		Short: "Analyze SQL files and report diagnostics",
		Long: `Parse, lower and resolve SQL files against the configured dialect and
catalog, then print any diagnostics found.

With --offset, also classify the completion context at that byte offset
and list the candidates the engine would offer there.`,
		Example: `  # Analyze a file with the configured dialect
  sqlscope analyze query.sql

  # Analyze against MySQL 5.7
  sqlscope analyze --dialect mysql-5.7 query.sql

  # Dump completion candidates at byte offset 27
  sqlscope analyze --offset 27 query.sql`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd, opts, args)
		},
	}

	cmd.Flags().IntVar(&opts.Offset, "offset", -1, "Byte offset for a completion dump")
	return cmd
}

func runAnalyze(cmd *cobra.Command, opts *AnalyzeOptions, paths []string) error {
	cfg := configFrom(cmd)
	logger := loggerFrom(cmd)

	if opts.Offset >= 0 && len(paths) > 1 {
		return fmt.Errorf("--offset requires a single file")
	}

	eng, cleanup, err := newEngine(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	out := cmd.OutOrStdout()
	hasErrors := false

	for _, path := range paths {
		text, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}

		req := engine.Request{
			DocID:   path,
			Version: 1,
			Text:    string(text),
			Dialect: cfg.Dialect,
		}
		if opts.Offset >= 0 {
			req.Cursor = &opts.Offset
		}

		res, err := eng.Analyze(cmd.Context(), req)
		if err != nil {
			return fmt.Errorf("analyzing %s: %w", path, err)
		}

		fmt.Fprintf(out, "%s: %s (%d diagnostics)\n", path, res.Outcome, len(res.Diagnostics))
		if res.SchemaDegraded {
			fmt.Fprintln(out, "note: catalog metadata unavailable, name checks were skipped")
		}
		renderDiagnostics(out, res.Diagnostics)

		if res.Context != nil {
			fmt.Fprintf(out, "completion context: %s\n", describeContext(res.Context))
			renderCandidates(out, res.Candidates)
		}

		for _, d := range res.Diagnostics {
			if d.Severity == lowering.SeverityError {
				hasErrors = true
			}
		}
	}

	// A completion dump is asked about half-typed input; its diagnostics
	// are informational, not an exit code.
	if hasErrors && opts.Offset < 0 {
		return fmt.Errorf("analysis found errors")
	}
	return nil
}

func renderDiagnostics(w io.Writer, diags []lowering.Diagnostic) {
	if len(diags) == 0 {
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Severity", "Code", "Line", "Col", "Message"})
	for _, d := range diags {
		t.AppendRow(table.Row{d.Severity, d.Code, d.Span.Start.Line, d.Span.Start.Column, d.Message})
	}
	t.Render()
}

func renderCandidates(w io.Writer, candidates []completion.Candidate) {
	if len(candidates) == 0 {
		fmt.Fprintln(w, "(no candidates)")
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Label", "Kind", "Detail"})
	for _, c := range candidates {
		t.AppendRow(table.Row{c.Label, c.Kind, c.Detail})
	}
	t.Render()
}

func describeContext(ctx *completion.Context) string {
	switch {
	case ctx.Qualifier != "":
		return fmt.Sprintf("%s (qualifier %s)", ctx.Kind, ctx.Qualifier)
	case ctx.Function != "":
		return fmt.Sprintf("%s (%s, argument %d)", ctx.Kind, ctx.Function, ctx.ArgIndex)
	default:
		return ctx.Kind.String()
	}
}
