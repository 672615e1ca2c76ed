package cli

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"

	"github.com/0ximu/mu/internal/query"
)

// printResult renders a query result in the selected output format.
func printResult(result *query.Result) error {
	switch outputFormat {
	case "json":
		return printJSON(result)
	case "csv":
		return printCSV(result)
	default:
		printTable(result)
		return nil
	}
}

// printJSON renders any payload as indented JSON.
func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func printCSV(result *query.Result) error {
	w := csv.NewWriter(os.Stdout)
	if err := w.Write(result.Columns); err != nil {
		return err
	}
	for _, row := range result.Rows {
		record := make([]string, len(row))
		for i, v := range row {
			record[i] = formatValue(v)
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func printTable(result *query.Result) {
	if len(result.Rows) == 0 {
		fmt.Println(color.New(color.Faint).Sprint("No results found."))
		return
	}

	widths := make([]int, len(result.Columns))
	for i, col := range result.Columns {
		widths[i] = len(col)
	}
	rendered := make([][]string, len(result.Rows))
	for r, row := range result.Rows {
		rendered[r] = make([]string, len(row))
		for i, v := range row {
			s := formatValue(v)
			rendered[r][i] = s
			if i < len(widths) && len(s) > widths[i] {
				widths[i] = len(s)
			}
		}
	}

	header := color.New(color.Bold)
	var sb strings.Builder
	for i, col := range result.Columns {
		if i > 0 {
			sb.WriteString("  ")
		}
		sb.WriteString(pad(col, widths[i]))
	}
	fmt.Println(header.Sprint(sb.String()))

	for _, row := range rendered {
		sb.Reset()
		for i, cell := range row {
			if i > 0 {
				sb.WriteString("  ")
			}
			sb.WriteString(pad(cell, widths[i]))
		}
		fmt.Println(sb.String())
	}

	fmt.Printf("\n%s %s row(s) in %dms\n",
		color.New(color.Faint).Sprint("Returned"),
		color.CyanString("%d", result.RowCount),
		result.ExecutionTimeMs)
}

func formatValue(v any) string {
	switch value := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return fmt.Sprintf("<blob:%d bytes>", len(value))
	case float64:
		return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.3f", value), "0"), ".")
	default:
		return fmt.Sprintf("%v", value)
	}
}

func pad(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}
