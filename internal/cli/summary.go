package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func summaryCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Show pending and complete samples per kind for a month",
		RunE: func(cmd *cobra.Command, args []string) error {
			now := time.Now().UTC()
			year, _ := cmd.Flags().GetInt("year")
			month, _ := cmd.Flags().GetInt("month")
			if year == 0 {
				year = now.Year()
			}
			if month == 0 {
				month = int(now.Month())
			}
			return withApp(cmd.Context(), flags, func(a *app) error {
				sum, err := a.svc.MonthlySummary(cmd.Context(), year, time.Month(month))
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Samples received %s %d\n", sum.Month, sum.Year)
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "KIND\tPENDING\tCOMPLETE")
				for _, k := range sum.Kinds {
					fmt.Fprintf(w, "%s\t%d\t%d\n", k.Kind, k.Pending, k.Complete)
				}
				fmt.Fprintf(w, "TOTAL\t%d\t%d\n", sum.Total.Pending, sum.Total.Complete)
				return w.Flush()
			})
		},
	}
	cmd.Flags().Int("year", 0, "year (default: current)")
	cmd.Flags().Int("month", 0, "month 1-12 (default: current)")
	return cmd
}
