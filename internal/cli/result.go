package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"labcore/internal/core"
)

func resultCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "result",
		Short: "Record measurements",
	}
	record := &cobra.Command{
		Use:   "record [sample-id]",
		Short: "Record a batch of results for a sample",
		Long: `Record a batch of results for a sample. Each --value is PARAMETER=VALUE where
PARAMETER is a parameter ID or name of the sample's test. The batch is applied
atomically; an invalid value rejects the whole batch.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tech, _ := cmd.Flags().GetString("technician")
			values, _ := cmd.Flags().GetStringArray("value")
			return withApp(cmd.Context(), flags, func(a *app) error {
				test, err := a.svc.SampleTest(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				subs, err := resolveSubmissions(test, values)
				if err != nil {
					return err
				}
				outcome, res, err := a.svc.RecordResults(cmd.Context(), core.RecordRequest{SampleID: args[0], TechnicianID: tech, Results: subs})
				if err != nil {
					return fmt.Errorf("failed to record results: %w", err)
				}
				printOutcome(cmd, test, outcome)
				printViolations(cmd.OutOrStdout(), res)
				return nil
			})
		},
	}
	record.Flags().String("technician", "", "technician ID")
	record.Flags().StringArray("value", nil, "PARAMETER=VALUE (repeatable, commas kept)")
	cmd.AddCommand(record)
	return cmd
}

// resolveSubmissions maps parameter names to IDs using the sample's test.
// Unknown names pass through so the service reports them.
func resolveSubmissions(test core.AgroTest, values []string) ([]core.ResultSubmission, error) {
	ids := make(map[string]string, len(test.Parameters))
	for _, p := range test.Parameters {
		ids[p.Name] = p.ID
	}
	subs := make([]core.ResultSubmission, 0, len(values))
	for _, raw := range values {
		param, value, ok := strings.Cut(raw, "=")
		if !ok {
			return nil, fmt.Errorf("invalid --value %q: want PARAMETER=VALUE", raw)
		}
		if id, found := ids[param]; found {
			param = id
		}
		subs = append(subs, core.ResultSubmission{ParameterID: param, Value: value})
	}
	return subs, nil
}

func printOutcome(cmd *cobra.Command, test core.AgroTest, outcome core.RecordOutcome) {
	out := cmd.OutOrStdout()
	names := make(map[string]string, len(test.Parameters))
	for _, p := range test.Parameters {
		names[p.ID] = p.Name
	}
	fmt.Fprintf(out, "%s Recorded %d result(s) for sample %s (%d/%d measured) %s\n",
		okMark(), len(outcome.Results), outcome.Sample.Code, outcome.Measured, outcome.Ordered, statusColor(string(outcome.Sample.Status)))
	for _, r := range outcome.Results {
		if r.UplandInterpretation != nil || r.WetlandInterpretation != nil {
			fmt.Fprintf(out, "  %s = %g  upland: %s  wetland: %s\n", names[r.ParameterID], r.Value, deref(r.UplandInterpretation), deref(r.WetlandInterpretation))
			continue
		}
		fmt.Fprintf(out, "  %s = %g  %s\n", names[r.ParameterID], r.Value, deref(r.Interpretation))
	}
	if outcome.Completed && outcome.Report != nil {
		verb := "Generated"
		if !outcome.ReportCreated {
			verb = "Refreshed"
		}
		fmt.Fprintf(out, "%s Order complete. %s report %s\n", okMark(), verb, outcome.Report.ReportNumber)
	}
}
