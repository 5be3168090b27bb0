package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"gopkg.in/yaml.v3"
)

// Output formats
const (
	FormatTable = "table"
	FormatCSV   = "csv"
	FormatJSON  = "json"
	FormatYAML  = "yaml"
)

func isOutputFormat(format string) bool {
	switch format {
	case FormatTable, FormatCSV, FormatJSON, FormatYAML:
		return true
	}
	return false
}

// WriteEntries writes decrypted entries to w in the given format, keeping
// their order.
func WriteEntries(w io.Writer, format string, entries []DecryptedEntry) error {
	switch strings.ToLower(format) {
	case FormatTable:
		return writeTable(w, entries)
	case FormatCSV:
		return writeCSV(w, entries)
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if entries == nil {
			entries = []DecryptedEntry{}
		}
		return enc.Encode(entries)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(entries); err != nil {
			return fmt.Errorf("failed to encode yaml: %w", err)
		}
		return enc.Close()
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}

func writeCSV(w io.Writer, entries []DecryptedEntry) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(RecordColumns); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, e := range entries {
		if err := cw.Write(e.Row()); err != nil {
			return fmt.Errorf("failed to write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
)

func writeTable(w io.Writer, entries []DecryptedEntry) error {
	if len(entries) == 0 {
		_, err := fmt.Fprintln(w, "No entries found.")
		return err
	}

	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		row := e.Row()
		for i := range row {
			row[i] = flattenNewlines(row[i])
		}
		rows = append(rows, row)
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers(RecordColumns...).
		Rows(rows...)

	_, err := fmt.Fprintln(w, t.String())
	return err
}

func flattenNewlines(s string) string {
	return strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ").Replace(s)
}
