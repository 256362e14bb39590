package commands

import (
	"github.com/spf13/cobra"

	"github.com/vsinha/picktrack/pkg/application/services/picking"
	"github.com/vsinha/picktrack/pkg/domain/entities"
)

func (a *App) pickCommand() *cobra.Command {
	var (
		req picking.PickRequest
		qty int64
	)
	cmd := &cobra.Command{
		Use:   "pick",
		Short: "Record a pick against a line item for one tool",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := a.storeFor(ctx)
			if err != nil {
				return err
			}
			req.Qty = entities.Quantity(qty)
			pick, err := picking.NewService(store, a.logger).RecordPick(ctx, req)
			if err != nil {
				return err
			}
			printer, err := a.printer(cmd)
			if err != nil {
				return err
			}
			return printer.Pick(pick)
		},
	}
	cmd.Flags().StringVar(&req.LineItemID, "line-item", "", "Line item ID (required)")
	cmd.Flags().StringVar(&req.ToolID, "tool", "", "Tool ID (required)")
	cmd.Flags().Int64Var(&qty, "qty", 0, "Quantity picked (required)")
	cmd.Flags().StringVar(&req.PickedBy, "by", "", "Who picked")
	cmd.Flags().StringVar(&req.Notes, "notes", "", "Free-form notes")
	_ = cmd.MarkFlagRequired("line-item")
	_ = cmd.MarkFlagRequired("tool")
	_ = cmd.MarkFlagRequired("qty")
	return cmd
}

func (a *App) unpickCommand() *cobra.Command {
	var (
		pickID string
		qty    int64
	)
	cmd := &cobra.Command{
		Use:   "unpick",
		Short: "Undo all or part of a pick",
		Long: `Undoes a pick. Without --qty the whole pick is removed. A partial undo
removes the pick and records the remainder as a new pick, so picked
quantities are never edited in place.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := a.storeFor(ctx)
			if err != nil {
				return err
			}
			remainder, err := picking.NewService(store, a.logger).UndoPick(ctx, pickID, entities.Quantity(qty))
			if err != nil {
				return err
			}
			printer, err := a.printer(cmd)
			if err != nil {
				return err
			}
			return printer.Pick(remainder)
		},
	}
	cmd.Flags().StringVar(&pickID, "pick", "", "Pick ID (required)")
	cmd.Flags().Int64Var(&qty, "qty", 0, "Quantity to undo (default: the whole pick)")
	_ = cmd.MarkFlagRequired("pick")
	return cmd
}
