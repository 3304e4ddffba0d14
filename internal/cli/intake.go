package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"labcore/internal/core"
	"labcore/pkg/domain"
)

func clientCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "client",
		Short: "Manage clients",
	}
	create := &cobra.Command{
		Use:   "create [name]",
		Short: "Create a client",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			email, _ := cmd.Flags().GetString("email")
			return withApp(cmd.Context(), flags, func(a *app) error {
				client, _, err := a.svc.CreateClient(cmd.Context(), core.Client{Name: args[0], Email: email})
				if err != nil {
					return fmt.Errorf("failed to create client: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s Created client %s %s\n", okMark(), client.Name, idColor.Sprint(client.ID))
				return nil
			})
		},
	}
	create.Flags().String("email", "", "contact email")
	cmd.AddCommand(create)
	return cmd
}

func orderCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "order",
		Short: "Place and inspect orders",
	}
	place := &cobra.Command{
		Use:   "place",
		Short: "Place an order for one test",
		Long: `Place an order for one catalog test. Each --sample is CODE or CODE:CATEGORY
where CATEGORY is UPLAND or WETLAND for soil samples. Without --param every
parameter of the test is ordered.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			clientID, _ := cmd.Flags().GetString("client")
			testRef, _ := cmd.Flags().GetString("test")
			samples, _ := cmd.Flags().GetStringSlice("sample")
			params, _ := cmd.Flags().GetStringSlice("param")
			invoice, _ := cmd.Flags().GetString("invoice")
			amount, _ := cmd.Flags().GetInt64("amount-cents")

			item := core.OrderItemRequest{TestCode: testRef, Parameters: params}
			for _, raw := range samples {
				code, category, _ := strings.Cut(raw, ":")
				item.Samples = append(item.Samples, core.SampleRequest{Code: code, Category: domain.SoilCategory(strings.ToUpper(category))})
			}
			req := core.PlaceOrderRequest{ClientID: clientID, Items: []core.OrderItemRequest{item}}
			if invoice != "" || amount > 0 {
				req.Invoice = &core.InvoiceRequest{Number: invoice, AmountCents: amount}
			}
			return withApp(cmd.Context(), flags, func(a *app) error {
				placement, res, err := a.svc.PlaceOrder(cmd.Context(), req)
				if err != nil {
					return fmt.Errorf("failed to place order: %w", err)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "%s Placed order %s\n", okMark(), idColor.Sprint(placement.Order.ID))
				if placement.Invoice != nil {
					fmt.Fprintf(out, "  Invoice: %s\n", placement.Invoice.Number)
				}
				for _, s := range placement.Samples {
					fmt.Fprintf(out, "  Sample %s %s %s\n", s.Code, statusColor(string(s.Status)), idColor.Sprint(s.ID))
				}
				printViolations(out, res)
				return nil
			})
		},
	}
	place.Flags().String("client", "", "client ID (required)")
	place.Flags().String("test", "", "test code (required)")
	place.Flags().StringSlice("sample", nil, "sample code, optionally CODE:CATEGORY (repeatable)")
	place.Flags().StringSlice("param", nil, "parameter name or ID to order (repeatable)")
	place.Flags().String("invoice", "", "invoice number (generated when amount is set)")
	place.Flags().Int64("amount-cents", 0, "invoice amount in cents")
	_ = place.MarkFlagRequired("client")
	_ = place.MarkFlagRequired("test")
	cmd.AddCommand(place)

	cmd.AddCommand(&cobra.Command{
		Use:   "status [order-id]",
		Short: "Show measurement progress of an order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), flags, func(a *app) error {
				progress, err := a.svc.OrderProgress(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Order %s %s\n", idColor.Sprint(progress.Order.ID), statusColor(string(progress.Order.Status)))
				for _, s := range progress.Samples {
					fmt.Fprintf(out, "  %-12s %-16s %d/%d measured\n", s.Sample.Code, statusColor(string(s.Sample.Status)), s.Measured, s.Ordered)
				}
				if progress.Report != nil {
					fmt.Fprintf(out, "  Report %s %s\n", progress.Report.ReportNumber, statusColor(string(progress.Report.Status)))
				}
				return nil
			})
		},
	})
	return cmd
}

func sampleCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sample",
		Short: "Move samples through intake",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "advance [sample-id] [status]",
		Short: "Advance a sample to IN_LAB or TESTING",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			target := core.SampleStatus(strings.ToUpper(args[1]))
			return withApp(cmd.Context(), flags, func(a *app) error {
				sample, res, err := a.svc.AdvanceSample(cmd.Context(), args[0], target)
				if err != nil {
					return fmt.Errorf("failed to advance sample: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s Sample %s is %s\n", okMark(), sample.Code, statusColor(string(sample.Status)))
				printViolations(cmd.OutOrStdout(), res)
				return nil
			})
		},
	})
	return cmd
}
