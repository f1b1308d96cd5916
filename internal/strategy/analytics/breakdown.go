package analytics

import (
	"fmt"
	"io"
	"text/tabwriter"
)

// WriteBreakdown prints the monthly realized returns and the drawdown periods of r.
// Nothing is written for a report without data.
func WriteBreakdown(w io.Writer, title string, r Report) error {
	if r.NoData {
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "\n### %s\n", title)
	fmt.Fprintln(tw, "Month\tProfit\t")
	for _, m := range r.GetMonthlyReturns() {
		fmt.Fprintf(tw, "%s\t%.2f\t\n", m.Month.Format("2006-01"), m.Return)
	}
	if len(r.Drawdowns) > 0 {
		fmt.Fprintln(tw, "Drawdown start\tDepth%\tDuration\tRecovered\t")
		for _, d := range r.Drawdowns {
			fmt.Fprintf(tw, "%s\t%.2f\t%s\t%t\t\n", d.StartTime.Format("2006-01-02 15:04"), d.Depth*100, d.Duration, d.Recovered)
		}
	}
	return tw.Flush()
}
