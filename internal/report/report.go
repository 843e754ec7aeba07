// Package report flattens ranked scan results into tabular records and
// renders them for terminals and spreadsheets.
package report

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/artyom/imgmatch/internal/scan"
)

// Output formats accepted by Write.
const (
	FormatTable    = "table"
	FormatCSV      = "csv"
	FormatTSV      = "tsv"
	FormatMarkdown = "markdown"
	FormatJSON     = "json"
)

// Formats lists every supported output format.
var Formats = []string{FormatTable, FormatCSV, FormatTSV, FormatMarkdown, FormatJSON}

// Header is the column order of exported records.
var Header = []string{"rank", "filename", "path", "fingerprint", "hamming", "good", "total", "ratio", "score"}

// ErrNoPathColumn is returned by ReadPaths when the input has no path column.
var ErrNoPathColumn = errors.New("no path column in header")

// Record is one exported row.
type Record struct {
	Rank          int     `json:"rank"`
	Filename      string  `json:"filename"`
	Path          string  `json:"path"`
	Fingerprint   string  `json:"fingerprint"`
	Hamming       int     `json:"hamming"`
	Good          int     `json:"good"`
	Total         int     `json:"total"`
	Ratio         float64 `json:"ratio"`
	Score         float64 `json:"score"`
	BelowMinRatio bool    `json:"below_min_ratio,omitempty"`
}

// Records numbers results from 1 in the order given.
func Records(results []scan.Result) []Record {
	out := make([]Record, len(results))
	for i, r := range results {
		out[i] = Record{
			Rank:          i + 1,
			Filename:      r.Filename,
			Path:          r.Path,
			Fingerprint:   r.Fingerprint.String(),
			Hamming:       r.Hamming,
			Good:          r.Match.Good,
			Total:         r.Match.Total,
			Ratio:         r.Match.Ratio,
			Score:         r.Score,
			BelowMinRatio: r.BelowMinRatio,
		}
	}
	return out
}

// Strings renders r in Header order at export precision.
func (r Record) Strings() []string {
	return []string{
		strconv.Itoa(r.Rank),
		r.Filename,
		r.Path,
		r.Fingerprint,
		strconv.Itoa(r.Hamming),
		strconv.Itoa(r.Good),
		strconv.Itoa(r.Total),
		strconv.FormatFloat(r.Ratio, 'f', 4, 64),
		strconv.FormatFloat(r.Score, 'f', 6, 64),
	}
}

// display is the terminal rendering: shorter decimals and a marker for
// weak descriptor agreement.
func (r Record) display() table.Row {
	ratio := strconv.FormatFloat(r.Ratio, 'f', 2, 64)
	if r.BelowMinRatio {
		ratio += "*"
	}
	return table.Row{
		r.Rank, r.Filename, r.Path, r.Fingerprint, r.Hamming, r.Good, r.Total,
		ratio, strconv.FormatFloat(r.Score, 'f', 3, 64),
	}
}

// Write renders records to w in the named format.
func Write(w io.Writer, format string, records []Record) error {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == FormatJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if records == nil {
			records = []Record{}
		}
		return enc.Encode(records)
	}

	if format == FormatCSV {
		return writeCSV(w, records)
	}

	tw := table.NewWriter()
	tw.Style().Format.Header = text.FormatDefault
	header := make(table.Row, len(Header))
	for i, h := range Header {
		header[i] = h
	}
	tw.AppendHeader(header)

	var out string
	switch format {
	case FormatTable:
		tw.SetStyle(table.StyleRounded)
		tw.Style().Format.Header = text.FormatDefault
		for _, rec := range records {
			tw.AppendRow(rec.display())
		}
		configs := make([]table.ColumnConfig, 0, len(Header))
		for i, h := range Header {
			align := text.AlignLeft
			switch h {
			case "rank", "hamming", "good", "total", "ratio", "score":
				align = text.AlignRight
			}
			configs = append(configs, table.ColumnConfig{Number: i + 1, Align: align, AlignHeader: text.AlignLeft})
		}
		tw.SetColumnConfigs(configs)
		out = tw.Render()
	case FormatTSV, FormatMarkdown:
		for _, rec := range records {
			cells := rec.Strings()
			row := make(table.Row, len(cells))
			for i, c := range cells {
				row[i] = c
			}
			tw.AppendRow(row)
		}
		if format == FormatTSV {
			out = tw.RenderTSV()
		} else {
			out = tw.RenderMarkdown()
		}
	default:
		return fmt.Errorf("unknown output format %q (want one of %s)", format, strings.Join(Formats, ", "))
	}
	if _, err := io.WriteString(w, out+"\n"); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

// writeCSV emits RFC 4180 quoting so ReadPaths can load the file back.
func writeCSV(w io.Writer, records []Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	for _, rec := range records {
		if err := cw.Write(rec.Strings()); err != nil {
			return fmt.Errorf("write csv: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}

// ReadPaths extracts the path column from a CSV export, skipping blank
// cells. The header is matched case-insensitively.
func ReadPaths(r io.Reader) ([]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrNoPathColumn
		}
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	col := -1
	for i, h := range header {
		if strings.EqualFold(strings.TrimSpace(h), "path") {
			col = i
			break
		}
	}
	if col < 0 {
		return nil, ErrNoPathColumn
	}

	var paths []string
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		if col >= len(rec) {
			continue
		}
		if strings.TrimSpace(rec[col]) != "" {
			paths = append(paths, rec[col])
		}
	}
	return paths, nil
}
