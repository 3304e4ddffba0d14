package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"labcore/internal/core"
)

func reportCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Inspect and issue reports",
	}
	show := &cobra.Command{
		Use:   "show [report-id]",
		Short: "Show a report with its samples and results",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			byNumber, _ := cmd.Flags().GetBool("number")
			return withApp(cmd.Context(), flags, func(a *app) error {
				var (
					detail core.ReportDetail
					err    error
				)
				if byNumber {
					detail, err = a.svc.GetReportByNumber(cmd.Context(), args[0])
				} else {
					detail, err = a.svc.GetReport(cmd.Context(), args[0])
				}
				if err != nil {
					return err
				}
				printReport(cmd, detail)
				return nil
			})
		},
	}
	show.Flags().Bool("number", false, "treat the argument as a report number")
	cmd.AddCommand(show)

	cmd.AddCommand(&cobra.Command{
		Use:   "issue [report-id]",
		Short: "Issue a DRAFT report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), flags, func(a *app) error {
				report, res, err := a.svc.IssueReport(cmd.Context(), args[0])
				if err != nil {
					return fmt.Errorf("failed to issue report: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s Issued report %s %s\n", okMark(), report.ReportNumber, statusColor(string(report.Status)))
				printViolations(cmd.OutOrStdout(), res)
				return nil
			})
		},
	})
	return cmd
}

func printReport(cmd *cobra.Command, detail core.ReportDetail) {
	out := cmd.OutOrStdout()
	r := detail.Report
	fmt.Fprintf(out, "Report %s %s %s\n", r.ReportNumber, statusColor(string(r.Status)), idColor.Sprint(r.ID))
	fmt.Fprintf(out, "  Client: %s\n", detail.Client.Name)
	fmt.Fprintf(out, "  Order: %s\n", detail.Order.ID)
	if r.TechnicianID != "" {
		fmt.Fprintf(out, "  Technician: %s\n", r.TechnicianID)
	}
	if r.IssuedAt != nil {
		fmt.Fprintf(out, "  Issued: %s\n", r.IssuedAt.Format("2006-01-02 15:04"))
	}
	for _, s := range detail.Samples {
		fmt.Fprintf(out, "  Sample %s %s\n", s.Sample.Code, statusColor(string(s.Sample.Status)))
		for _, res := range s.Results {
			if res.UplandInterpretation != nil || res.WetlandInterpretation != nil {
				fmt.Fprintf(out, "    %s = %g  upland: %s  wetland: %s\n", res.ParameterID, res.Value, deref(res.UplandInterpretation), deref(res.WetlandInterpretation))
				continue
			}
			fmt.Fprintf(out, "    %s = %g  %s\n", res.ParameterID, res.Value, deref(res.Interpretation))
		}
	}
}
