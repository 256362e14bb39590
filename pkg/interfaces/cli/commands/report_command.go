package commands

import (
	"github.com/spf13/cobra"

	"github.com/vsinha/picktrack/pkg/application/services/picking"
	"github.com/vsinha/picktrack/pkg/application/services/reconcile"
)

func (a *App) auditCommand() *cobra.Command {
	var order string
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Report invariant violations on an order without changing anything",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			o, err := a.resolveOrder(ctx, order)
			if err != nil {
				return err
			}
			report, err := reconcile.NewService(a.store, a.logger).Audit(ctx, o.ID)
			if err != nil {
				return err
			}
			printer, err := a.printer(cmd)
			if err != nil {
				return err
			}
			return printer.Audit(report)
		},
	}
	cmd.Flags().StringVarP(&order, "order", "o", "", "Order ID or SO number (required)")
	_ = cmd.MarkFlagRequired("order")
	return cmd
}

func (a *App) progressCommand() *cobra.Command {
	var order string
	cmd := &cobra.Command{
		Use:   "progress",
		Short: "Show picked against needed quantities for an order",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			o, err := a.resolveOrder(ctx, order)
			if err != nil {
				return err
			}
			report, err := picking.NewService(a.store, a.logger).Progress(ctx, o.ID)
			if err != nil {
				return err
			}
			printer, err := a.printer(cmd)
			if err != nil {
				return err
			}
			return printer.Progress(report)
		},
	}
	cmd.Flags().StringVarP(&order, "order", "o", "", "Order ID or SO number (required)")
	_ = cmd.MarkFlagRequired("order")
	return cmd
}
