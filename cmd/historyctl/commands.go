package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/okian/devhistory/internal/domain/export"
	"github.com/okian/devhistory/internal/domain/history"
	"github.com/okian/devhistory/internal/domain/query"
	"github.com/okian/devhistory/internal/domain/record"
	"github.com/okian/devhistory/internal/domain/summary"
)

const (
	outputFilePerm = 0o640
	listDateLayout = "2006-01-02 15:04"
)

// viewFlags holds the filter and sort flags shared by list and export.
type viewFlags struct {
	status string
	min    int
	max    int
	q      string
	from   string
	to     string
	sort   string
	dir    string
}

func (v *viewFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&v.status, "status", string(query.StatusAll), "all, complete, in-progress or failed")
	cmd.Flags().IntVar(&v.min, "min", record.MinScore, "lowest overall score to keep")
	cmd.Flags().IntVar(&v.max, "max", record.MaxScore, "highest overall score to keep")
	cmd.Flags().StringVarP(&v.q, "query", "q", "", "substring of a handle or achievement")
	cmd.Flags().StringVar(&v.from, "from", "", "earliest completion, RFC3339 or YYYY-MM-DD")
	cmd.Flags().StringVar(&v.to, "to", "", "latest completion, RFC3339 or YYYY-MM-DD (whole day)")
	cmd.Flags().StringVar(&v.sort, "sort", string(query.FieldCompletedAt), "completedAt, overallScore, sourceScoreA, sourceScoreB or status")
	cmd.Flags().StringVar(&v.dir, "dir", string(query.Descending), "asc or desc")
}

func (v *viewFlags) specs() (query.FilterSpec, query.SortSpec, error) {
	f := query.DefaultFilter()
	status, err := query.ParseStatusSelector(v.status)
	if err != nil {
		return f, query.SortSpec{}, err
	}
	f.Status, f.MinScore, f.MaxScore, f.Query = status, v.min, v.max, v.q

	if f.Dates, err = query.ParseDateRange(v.from, v.to); err != nil {
		return f, query.SortSpec{}, err
	}

	field, err := query.ParseField(v.sort)
	if err != nil {
		return f, query.SortSpec{}, err
	}
	dir, err := query.ParseDirection(v.dir)
	if err != nil {
		return f, query.SortSpec{}, err
	}
	return f, query.SortSpec{Field: field, Direction: dir}, nil
}

func newMetricsCmd(src *source) *cobra.Command {
	return &cobra.Command{
		Use:   "metrics",
		Short: "Summary metrics over complete runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			records, err := src.load(cmd.Context())
			if err != nil {
				return err
			}
			renderMetrics(cmd.OutOrStdout(), history.New().Metrics(records))
			return nil
		},
	}
}

func renderMetrics(w io.Writer, s summary.Snapshot) { //nolint:gocritic // hugeParam: read-only
	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.AppendHeader(table.Row{"Metric", "Value"})
	tbl.AppendRow(table.Row{"Complete runs", humanize.Comma(int64(s.TotalComplete))})
	tbl.AppendRow(table.Row{"Average score", s.AverageScore})
	tbl.AppendRow(table.Row{"Trend", fmt.Sprintf("%+d%%", s.TrendPercent)})
	latest := "never"
	if t, ok := s.Latest(); ok {
		latest = t.UTC().Format(listDateLayout) + " (" + humanize.Time(t) + ")"
	}
	tbl.AppendRow(table.Row{"Latest", latest})
	tbl.AppendRow(table.Row{"Weekly streak", s.CurrentStreak})
	fmt.Fprintln(w, tbl.Render())
}

func newListCmd(src *source) *cobra.Command {
	var flags viewFlags
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Filtered and sorted table of runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			filter, sort, err := flags.specs()
			if err != nil {
				return err
			}
			records, err := src.load(cmd.Context())
			if err != nil {
				return err
			}
			view, err := history.New().View(records, filter, sort)
			if err != nil {
				return err
			}
			renderList(cmd.OutOrStdout(), view, len(records))
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func renderList(w io.Writer, view []record.AnalysisRecord, total int) {
	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.AppendHeader(table.Row{"ID", "Completed", "Status", "Overall", "Source A", "Source B", "Duration", "Achievements"})
	for i := range view {
		r := &view[i]
		duration := ""
		if d, ok := r.Duration(); ok {
			duration = (time.Duration(d) * time.Second).String()
		}
		tbl.AppendRow(table.Row{
			r.ID,
			r.CompletedAt.UTC().Format(listDateLayout),
			r.Status,
			scoreCell(r, r.OverallScore),
			scoreCell(r, r.SourceScoreA),
			scoreCell(r, r.SourceScoreB),
			duration,
			strings.Join(r.Achievements, ", "),
		})
	}
	tbl.AppendFooter(table.Row{fmt.Sprintf("Showing %d of %d", len(view), total)})
	fmt.Fprintln(w, tbl.Render())
}

// scoreCell hides the placeholder scores of runs that did not complete.
func scoreCell(r *record.AnalysisRecord, v int) string {
	if !r.Complete() {
		return "-"
	}
	return strconv.Itoa(v)
}

func newExportCmd(src *source) *cobra.Command {
	var (
		flags  viewFlags
		format string
		output string
		quoted bool
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the selected view as CSV or JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := export.ParseFormat(format)
			if err != nil {
				return err
			}
			filter, sort, err := flags.specs()
			if err != nil {
				return err
			}
			records, err := src.load(cmd.Context())
			if err != nil {
				return err
			}
			engine := history.New(history.WithExportOptions(export.WithQuotedFields(quoted)))
			payload, err := engine.Export(records, filter, sort, f)
			if err != nil {
				return err
			}
			if output == "" {
				_, err = cmd.OutOrStdout().Write(payload.Data)
				return err
			}
			if err := os.WriteFile(output, payload.Data, outputFilePerm); err != nil {
				return fmt.Errorf("write %s: %w", output, err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s to %s\n", humanize.Bytes(uint64(len(payload.Data))), output)
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&format, "format", string(export.FormatCSV), "csv or json")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: stdout)")
	cmd.Flags().BoolVar(&quoted, "quoted", false, "quote CSV fields per RFC 4180")
	return cmd
}
