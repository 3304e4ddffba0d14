package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"labcore/internal/catalog"
)

func catalogCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Manage the agro test catalog",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "import [file]",
		Short: "Register tests and clients from a YAML catalog file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := catalog.Load(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), flags, func(a *app) error {
				sum, err := catalog.Import(cmd.Context(), a.svc, cat)
				out := cmd.OutOrStdout()
				for _, t := range sum.Tests {
					fmt.Fprintf(out, "%s Registered test %s (%s, %d parameters) %s\n", okMark(), t.Code, t.Kind, len(t.Parameters), idColor.Sprint(t.ID))
				}
				for _, code := range sum.Skipped {
					fmt.Fprintf(out, "  Skipped test %s: already registered\n", code)
				}
				for _, c := range sum.Clients {
					fmt.Fprintf(out, "%s Created client %s %s\n", okMark(), c.Name, idColor.Sprint(c.ID))
				}
				if err != nil {
					return fmt.Errorf("failed to import catalog: %w", err)
				}
				return nil
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "show [id-or-code]",
		Short: "Show a catalog test with its rules",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), flags, func(a *app) error {
				test, err := a.svc.GetAgroTest(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "%s %s (%s) %s\n", test.Code, test.Name, test.Kind, idColor.Sprint(test.ID))
				for _, p := range test.Parameters {
					fmt.Fprintf(out, "  %s [%s] %s\n", p.Name, p.Unit, idColor.Sprint(p.ID))
					for _, r := range p.Rules {
						fmt.Fprintf(out, "    %s %s %s -> %s", r.Kind, bound(r.Min), bound(r.Max), r.Interpretation)
						if r.Category != "" {
							fmt.Fprintf(out, " (%s)", r.Category)
						}
						fmt.Fprintln(out)
					}
				}
				return nil
			})
		},
	})
	return cmd
}

func bound(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%g", *v)
}
