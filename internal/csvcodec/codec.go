// Package csvcodec converts tabular values to and from CSV text.
package csvcodec

import (
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Encode renders rows as CSV. A cell is quoted only when it contains a comma,
// a double quote, or a line break; embedded quotes are doubled. Rows are joined
// with "\n" and the result has no trailing newline. A row with no cells, or
// with a single empty cell, is written as "" so it is not read back as a
// blank line.
func Encode(rows [][]any) string {
	var b strings.Builder
	for i, row := range rows {
		if i > 0 {
			b.WriteByte('\n')
		}
		if len(row) == 0 || (len(row) == 1 && cellString(row[0]) == "") {
			b.WriteString(`""`)
			continue
		}
		for j, cell := range row {
			if j > 0 {
				b.WriteByte(',')
			}
			b.WriteString(quote(cellString(cell)))
		}
	}
	return b.String()
}

func quote(s string) string {
	if !strings.ContainsAny(s, ",\"\n\r") {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func cellString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		return x.Format(time.RFC3339)
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}

// Decode parses CSV text into rows of strings. Rows may have differing
// field counts. Blank lines are skipped, and a "\r\n" inside a quoted cell
// reads back as "\n".
func Decode(text string) ([][]string, error) {
	r := csv.NewReader(strings.NewReader(text))
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parsing csv: %w", err)
	}
	if rows == nil {
		rows = [][]string{}
	}
	return rows, nil
}
