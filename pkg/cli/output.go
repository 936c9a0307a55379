package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"

	"github.com/ekaya-inc/gamedash/pkg/snapshot"
)

var (
	headerColor = color.New(color.Bold, color.FgCyan)
	okColor     = color.New(color.FgGreen)
	noteColor   = color.New(color.FgYellow)
)

// printTable writes t as aligned columns with a row count footer.
func printTable(w io.Writer, t *snapshot.Table) error {
	if t == nil || len(t.Rows) == 0 {
		_, err := fmt.Fprintln(w, "No results")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	header := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		header[i] = headerColor.Sprint(c)
	}
	fmt.Fprintln(tw, strings.Join(header, "\t"))

	cells := make([]string, len(t.Columns))
	for _, row := range t.Rows {
		for i, v := range row {
			cells[i] = formatValue(v)
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	_, err := fmt.Fprintf(w, "%d rows\n", len(t.Rows))
	return err
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case string:
		return strings.ReplaceAll(x, "\t", " ")
	case time.Time:
		return x.Format(time.RFC3339)
	default:
		return fmt.Sprintf("%v", x)
	}
}
