package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vsinha/picktrack/pkg/application/dto"
	"github.com/vsinha/picktrack/pkg/application/services/importer"
	"github.com/vsinha/picktrack/pkg/application/services/reconcile"
	"github.com/vsinha/picktrack/pkg/domain/entities"
	"github.com/vsinha/picktrack/pkg/infrastructure/config"
)

// orderSelection is the set of orders a reconciliation runs on
type orderSelection struct {
	refs    []string
	all     bool
	parts   []string
	execute bool
}

func (s *orderSelection) bind(cmd *cobra.Command, allowAll bool) {
	cmd.Flags().StringSliceVarP(&s.refs, "order", "o", nil, "Order ID or SO number (repeatable)")
	if allowAll {
		cmd.Flags().BoolVar(&s.all, "all", false, "Run on every order")
	}
	cmd.Flags().StringSliceVarP(&s.parts, "part", "p", nil, "Limit to these part numbers (repeatable)")
	cmd.Flags().BoolVar(&s.execute, "execute", false, "Apply the changes (default is a dry-run preview)")
}

func (s *orderSelection) partNumbers() []entities.PartNumber {
	out := make([]entities.PartNumber, len(s.parts))
	for i, p := range s.parts {
		out[i] = entities.PartNumber(p)
	}
	return out
}

// orderIDs resolves the selection to order IDs
func (a *App) orderIDs(ctx context.Context, sel *orderSelection) ([]string, error) {
	if sel.all {
		store, err := a.storeFor(ctx)
		if err != nil {
			return nil, err
		}
		orders, err := store.Orders().ListOrders(ctx)
		if err != nil {
			return nil, err
		}
		ids := make([]string, len(orders))
		for i, o := range orders {
			ids[i] = o.ID
		}
		return ids, nil
	}
	if len(sel.refs) == 0 {
		return nil, usageError("specify --order or --all")
	}
	ids := make([]string, 0, len(sel.refs))
	for _, ref := range sel.refs {
		order, err := a.resolveOrder(ctx, ref)
		if err != nil {
			return nil, err
		}
		ids = append(ids, order.ID)
	}
	return ids, nil
}

func (a *App) reconcileCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Restructure line items without losing recorded picks",
		Long: `Every reconcile operation prints a preview of what would change. Nothing is
written unless --execute is given, and each order is applied in its own
transaction so one failing order never affects another.`,
	}
	cmd.AddCommand(a.mergeCommand(), a.splitCommand(), a.excessCommand())
	return cmd
}

// runBatch runs one reconciliation per selected order and prints the results
func (a *App) runBatch(cmd *cobra.Command, sel *orderSelection, fn func(ctx context.Context, svc *reconcile.Service, orderID string) (*dto.ReconcileReport, error)) error {
	ctx := cmd.Context()
	ids, err := a.orderIDs(ctx, sel)
	if err != nil {
		return err
	}
	store, err := a.storeFor(ctx)
	if err != nil {
		return err
	}
	svc := reconcile.NewService(store, a.logger)

	result := svc.RunBatch(ctx, ids, func(ctx context.Context, orderID string) (*dto.ReconcileReport, error) {
		return fn(ctx, svc, orderID)
	})

	printer, err := a.printer(cmd)
	if err != nil {
		return err
	}
	if err := printer.Batch(result); err != nil {
		return err
	}
	if len(result.Failed) > 0 {
		return fmt.Errorf("%d of %d orders failed", len(result.Failed), len(ids))
	}
	return nil
}

func (a *App) mergeCommand() *cobra.Command {
	var (
		sel          orderSelection
		allowPicking bool
	)
	cmd := &cobra.Command{
		Use:   "merge",
		Short: "Collapse each part's line items into one",
		Long: `Merges every part with several line items into one. The kept line item gets
the summed total and the smallest quantity per unit of the group, so per-tool
quantities are lost until the part is split again.

Parts with recorded picks are left alone unless --allow-pick-migration is set,
in which case their picks move to the kept line item unchanged.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := reconcile.MergeOptions{PartNumbers: sel.partNumbers(), AllowPickMigration: allowPicking}
			return a.runBatch(cmd, &sel, func(ctx context.Context, svc *reconcile.Service, orderID string) (*dto.ReconcileReport, error) {
				plan, err := svc.PlanMerge(ctx, orderID, opts)
				if err != nil || !sel.execute {
					return reportOf(plan, err)
				}
				return svc.ApplyMerge(ctx, plan)
			})
		},
	}
	sel.bind(cmd, true)
	cmd.Flags().BoolVar(&allowPicking, "allow-pick-migration", false, "Merge parts that already have picks")
	return cmd
}

func (a *App) splitCommand() *cobra.Command {
	var (
		sel          orderSelection
		manifestPath string
	)
	cmd := &cobra.Command{
		Use:   "split",
		Short: "Split merged line items back into quantity tiers",
		Long: `Re-derives each part's quantity per tool from the BOMs named in the
manifest and splits the part's single line item into one line item per
distinct quantity. The highest quantity keeps the existing line item. Every
recorded pick follows its tool; a pick whose tool matches no tier leaves the
part unresolved.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if len(sel.refs) != 1 {
				return usageError("split runs on exactly one --order")
			}
			m, err := config.LoadManifest(manifestPath)
			if err != nil {
				return err
			}
			order, err := a.resolveOrder(ctx, sel.refs[0])
			if err != nil {
				return err
			}
			store, err := a.storeFor(ctx)
			if err != nil {
				return err
			}

			perTool, warnings, err := importer.NewService(store, a.logger).PerToolQuantities(ctx, order.ID, m)
			if err != nil {
				return err
			}
			for _, w := range warnings {
				a.logger.Warn(w)
			}

			opts := reconcile.SplitOptions{PartNumbers: sel.partNumbers(), PerTool: perTool}
			return a.runBatch(cmd, &sel, func(ctx context.Context, svc *reconcile.Service, orderID string) (*dto.ReconcileReport, error) {
				plan, err := svc.PlanSplit(ctx, orderID, opts)
				if err != nil || !sel.execute {
					return reportOf(plan, err)
				}
				return svc.ApplySplit(ctx, plan)
			})
		},
	}
	sel.bind(cmd, false)
	cmd.Flags().StringVarP(&manifestPath, "manifest", "m", "", "Import manifest whose BOMs give the per-tool quantities (required)")
	_ = cmd.MarkFlagRequired("manifest")
	return cmd
}

func (a *App) excessCommand() *cobra.Command {
	var (
		sel         orderSelection
		pickIDs     []string
		reattribute bool
		confirm     bool
	)
	cmd := &cobra.Command{
		Use:   "excess",
		Short: "Find and repair picks recorded against the wrong quantity tier",
		Long: `Lists picks whose tool is not covered by the line item they were recorded
against. With --execute --confirm the listed picks are deleted, which
permanently reduces the recorded picked quantity; a tombstone of each deleted
pick is kept in the audit trail. With --reattribute a pick moves to the
line item of the same part that covers its tool, when there is one.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !sel.execute {
				return a.listExcess(cmd, &sel)
			}
			if !confirm {
				if err := a.listExcess(cmd, &sel); err != nil {
					return err
				}
				return fmt.Errorf("repairing excess picks changes recorded picks; re-run with --confirm: %w", entities.ErrConfirmationRequired)
			}
			opts := reconcile.ExcessOptions{PartNumbers: sel.partNumbers(), PickIDs: pickIDs, Reattribute: reattribute}
			return a.runBatch(cmd, &sel, func(ctx context.Context, svc *reconcile.Service, orderID string) (*dto.ReconcileReport, error) {
				plan, err := svc.PlanExcessRepair(ctx, orderID, opts)
				if err != nil {
					return nil, err
				}
				return svc.ApplyExcessRepair(ctx, plan, confirm)
			})
		},
	}
	sel.bind(cmd, true)
	cmd.Flags().StringSliceVar(&pickIDs, "pick", nil, "Limit repair to these pick IDs (repeatable)")
	cmd.Flags().BoolVar(&reattribute, "reattribute", false, "Move excess picks to the tier covering their tool instead of deleting")
	cmd.Flags().BoolVar(&confirm, "confirm", false, "Confirm deletion of excess picks")
	return cmd
}

func (a *App) listExcess(cmd *cobra.Command, sel *orderSelection) error {
	ctx := cmd.Context()
	ids, err := a.orderIDs(ctx, sel)
	if err != nil {
		return err
	}
	store, err := a.storeFor(ctx)
	if err != nil {
		return err
	}
	svc := reconcile.NewService(store, a.logger)

	var all []dto.ExcessPick
	for _, id := range ids {
		picks, err := svc.DetectExcessPicks(ctx, id)
		if err != nil {
			return err
		}
		for _, p := range picks {
			if len(sel.parts) == 0 || containsPart(sel.parts, p.PartNumber) {
				all = append(all, p)
			}
		}
	}
	printer, err := a.printer(cmd)
	if err != nil {
		return err
	}
	return printer.ExcessPicks(all)
}

func containsPart(parts []string, pn entities.PartNumber) bool {
	for _, p := range parts {
		if entities.PartNumber(p) == pn {
			return true
		}
	}
	return false
}

type previewer interface {
	Report() *dto.ReconcileReport
}

func reportOf[P previewer](plan P, err error) (*dto.ReconcileReport, error) {
	if err != nil {
		return nil, err
	}
	return plan.Report(), nil
}
