package commands

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ruslano69/mssqlframe/pkg/core/frame"
	"github.com/ruslano69/mssqlframe/pkg/core/schema"
	"github.com/ruslano69/mssqlframe/pkg/xlsx"
)

// WriteFrame delivers a frame to the requested destination: a CSV or
// XLSX file by extension, or a rendered table on stdout when no output
// path is given.
func WriteFrame(f *frame.Frame, output, sheet string) error {
	if output == "" {
		renderFrame(os.Stdout, f)
		return nil
	}
	switch strings.ToLower(filepath.Ext(output)) {
	case ".csv":
		if err := f.WriteCSVFile(output); err != nil {
			return fmt.Errorf("failed to write %s: %w", output, err)
		}
	case ".xlsx":
		if err := xlsx.ToXLSX(f, output, sheet); err != nil {
			return fmt.Errorf("failed to write %s: %w", output, err)
		}
	default:
		return fmt.Errorf("unsupported output format %q, expected .csv or .xlsx", filepath.Ext(output))
	}
	fmt.Printf("✓ Wrote %d row(s) to %s\n", f.NumRows(), output)
	return nil
}

// renderFrame prints a frame as an aligned text table.
func renderFrame(w io.Writer, f *frame.Frame) {
	names := f.Columns()
	if len(names) == 0 {
		fmt.Fprintln(w, "(empty frame)")
		return
	}

	widths := make([]int, len(names))
	cells := make([][]string, f.NumRows())
	for i := range names {
		widths[i] = len(names[i])
	}
	for r := 0; r < f.NumRows(); r++ {
		row := f.Row(r)
		cells[r] = make([]string, len(row))
		for i, v := range row {
			s := "NULL"
			if !frame.IsNull(v) {
				s = frame.RenderValue(v)
			}
			cells[r][i] = s
			if len(s) > widths[i] {
				widths[i] = len(s)
			}
		}
	}

	printRow := func(row []string) {
		for i, s := range row {
			fmt.Fprintf(w, "%-*s", widths[i], s)
			if i < len(row)-1 {
				fmt.Fprint(w, "  ")
			}
		}
		fmt.Fprintln(w)
	}

	printRow(names)
	sep := make([]string, len(names))
	for i := range sep {
		sep[i] = strings.Repeat("-", widths[i])
	}
	printRow(sep)
	for _, row := range cells {
		printRow(row)
	}
	fmt.Fprintf(w, "(%d row(s))\n", f.NumRows())
}

// printWarnings reports non-fatal schema and conversion warnings.
func printWarnings(warns []schema.Warning) {
	for _, w := range warns {
		fmt.Fprintf(os.Stderr, "Warning: %s\n", w)
	}
}
