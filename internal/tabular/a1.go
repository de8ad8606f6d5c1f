package tabular

import (
	"fmt"
	"strings"
)

// ColumnLetter converts a zero-based column index to spreadsheet column
// letters: 0 is A, 25 is Z, 26 is AA.
func ColumnLetter(index int) string {
	if index < 0 {
		return ""
	}
	var b []byte
	for index >= 0 {
		b = append([]byte{byte('A' + index%26)}, b...)
		index = index/26 - 1
	}
	return string(b)
}

// A1Range renders the A1 reference for a horizontal cell run, for backends
// that speak spreadsheet range notation. Row is the 1-based line number,
// column the zero-based start index, width the number of cells.
func A1Range(table string, row, column, width int) string {
	start := ColumnLetter(column)
	if width <= 1 {
		return fmt.Sprintf("%s!%s%d", quoteSheet(table), start, row)
	}
	end := ColumnLetter(column + width - 1)
	return fmt.Sprintf("%s!%s%d:%s%d", quoteSheet(table), start, row, end, row)
}

func quoteSheet(name string) string {
	if strings.ContainsAny(name, " -!'") {
		return "'" + strings.ReplaceAll(name, "'", "''") + "'"
	}
	return name
}
