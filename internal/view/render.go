package view

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"
)

// Render writes snap as a plain-text table.
func Render(w io.Writer, snap Snapshot) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	fmt.Fprintf(tw, "== %s ==\n", strings.ToUpper(snap.View))
	if snap.Banner != nil {
		fmt.Fprintf(tw, "! %s (showing data from %s)\n", snap.Banner.Message, formatClock(snap.LastSuccess))
	}
	fmt.Fprintln(tw, "NUMBER\tCUSTOMER\tTYPE\tSTATUS\tTOTAL\tAGE\tDRIVER\t")
	if len(snap.Rows) == 0 {
		fmt.Fprintln(tw, "(no orders)")
	}
	for _, row := range snap.Rows {
		o := row.Order
		driver := "-"
		if o.DriverID != nil {
			driver = fmt.Sprintf("#%d", *o.DriverID)
		}
		age := row.Age.Truncate(time.Second).String()
		if row.Late {
			age += " LATE"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t\n", o.Number, o.CustomerName, o.Type, o.Status, o.Total, age, driver)
	}
	return tw.Flush()
}

func formatClock(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return t.Format("15:04:05")
}
