package commands

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ruslano69/mssqlframe/pkg/core/frame"
	"github.com/ruslano69/mssqlframe/pkg/core/infer"
	"github.com/ruslano69/mssqlframe/pkg/xlsx"
)

// LoadFrame reads a CSV or XLSX file into a typed frame. File format is
// picked by extension; both readers return string columns, so values are
// re-typed through inference the same way the pipeline does it.
func LoadFrame(path, sheet string) (*frame.Frame, error) {
	f, err := LoadRawFrame(path, sheet)
	if err != nil {
		return nil, err
	}
	result, err := infer.Infer(f)
	if err != nil {
		return nil, fmt.Errorf("failed to infer types for %s: %w", path, err)
	}
	return result.Frame, nil
}

// LoadRawFrame reads a CSV or XLSX file without typing the values.
func LoadRawFrame(path, sheet string) (*frame.Frame, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		f, err := frame.ReadCSVFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		return f, nil
	case ".xlsx":
		f, err := xlsx.FromXLSX(path, sheet)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		return f, nil
	}
	return nil, fmt.Errorf("unsupported input format %q, expected .csv or .xlsx", filepath.Ext(path))
}

// SplitColumns parses a comma-separated column list from a flag value.
func SplitColumns(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	columns := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			columns = append(columns, p)
		}
	}
	return columns
}
