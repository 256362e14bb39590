package output

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/vsinha/picktrack/pkg/application/dto"
	"github.com/vsinha/picktrack/pkg/domain/entities"
)

// Config holds configuration for output generation
type Config struct {
	Format    string
	OutputDir string
	Verbose   bool
	Elapsed   time.Duration
}

// Printer renders reports to a writer, or to files under OutputDir
type Printer struct {
	w      io.Writer
	config Config
}

// New creates a printer writing to w
func New(w io.Writer, config Config) (*Printer, error) {
	switch config.Format {
	case "", "text":
		config.Format = "text"
	case "json", "csv":
	default:
		return nil, fmt.Errorf("unsupported output format: %s", config.Format)
	}
	return &Printer{w: w, config: config}, nil
}

// Import renders an import preview or result
func (p *Printer) Import(r *dto.ImportResult) error {
	switch p.config.Format {
	case "json":
		return p.writeJSON("import.json", r)
	case "csv":
		return p.writeCSV("line_items.csv", lineItemRows(r.LineItems))
	}

	title := "📋 Import Preview"
	if r.Executed {
		title = "✅ Import Complete"
	}
	p.printf("%s: %s\n", title, r.SONumber)
	p.printf("%s\n\n", strings.Repeat("=", len(title)+len(r.SONumber)+2))
	if r.OrderID != "" {
		p.printf("Order ID: %s\n", r.OrderID)
	}
	p.printf("Tools: %d\n", len(r.Tools))
	p.printf("Line Items: %d (%d shared, %d tiered)\n", len(r.LineItems), r.SharedCount(), len(r.LineItems)-r.SharedCount())
	if p.config.Elapsed > 0 {
		p.printf("Elapsed: %v\n", p.config.Elapsed)
	}
	p.printf("\n")

	toolNumbers := make(map[string]string, len(r.Tools))
	for _, t := range r.Tools {
		toolNumbers[t.ID] = t.ToolNumber
	}

	if len(r.LineItems) > 0 {
		p.printf("%-20s %-15s %-8s %-8s %-10s %s\n", "Part Number", "Group", "Qty/Unit", "Total", "Location", "Tools")
		p.printf("%-20s %-15s %-8s %-8s %-10s %s\n", "--------------------", "---------------", "--------", "--------", "----------", "-----")
		for _, li := range r.LineItems {
			p.printf("%-20s %-15s %-8d %-8d %-10s %s\n",
				li.PartNumber, li.AssemblyGroup, li.QtyPerUnit, li.TotalQtyNeeded, li.Location,
				toolList(li.ToolIDs, toolNumbers))
		}
		p.printf("\n")
	}
	p.warnings(r.Warnings)
	return nil
}

// Reconcile renders a merge, split or excess repair report
func (p *Printer) Reconcile(r *dto.ReconcileReport) error {
	if p.config.Format != "text" {
		return p.writeJSON(r.Operation+".json", r)
	}

	mode := "DRY RUN"
	if r.Executed {
		mode = "EXECUTED"
	}
	p.printf("🔧 %s %s (%s)\n", strings.ToUpper(r.Operation), r.SONumber, mode)
	p.printf("Changes: %d, Unresolved: %d\n\n", len(r.Entries), len(r.Unresolved))

	for _, e := range r.Entries {
		p.printf("Part: %s\n", e.PartNumber)
		for _, s := range e.BeforeState {
			p.printf("  before %s\n", stateLine(s))
		}
		for _, s := range e.AfterState {
			p.printf("  after  %s\n", stateLine(s))
		}
		if len(e.MigratedPickIDs) > 0 {
			p.printf("  migrated picks: %s\n", strings.Join(e.MigratedPickIDs, ", "))
		}
		if len(e.DeletedLineItemIDs) > 0 {
			p.printf("  deleted line items: %s\n", strings.Join(e.DeletedLineItemIDs, ", "))
		}
		if len(e.CreatedLineItemIDs) > 0 {
			p.printf("  created line items: %s\n", strings.Join(e.CreatedLineItemIDs, ", "))
		}
		if len(e.DeletedPickIDs) > 0 {
			p.printf("  deleted picks: %s\n", strings.Join(e.DeletedPickIDs, ", "))
		}
		for _, n := range e.Notes {
			p.printf("  note: %s\n", n)
		}
		p.printf("\n")
	}

	if len(r.Unresolved) > 0 {
		p.printf("⚠️  Unresolved:\n")
		for _, u := range r.Unresolved {
			p.printf("  %-20s %s\n", u.PartNumber, u.Reason)
		}
		p.printf("\n")
	}
	if !r.Executed && len(r.Entries) > 0 {
		p.printf("Nothing was written. Re-run with --execute to apply.\n")
	}
	return nil
}

// Batch renders the reports of a multi-order run and its failures
func (p *Printer) Batch(r *dto.BatchResult) error {
	if p.config.Format != "text" {
		return p.writeJSON("batch.json", r)
	}
	for _, report := range r.Reports {
		if err := p.Reconcile(report); err != nil {
			return err
		}
	}
	if len(r.Failed) > 0 {
		p.printf("❌ Failed orders:\n")
		for id, msg := range r.Failed {
			p.printf("  %s: %s\n", id, msg)
		}
	}
	return nil
}

// ExcessPicks renders the read-only excess pick listing
func (p *Printer) ExcessPicks(picks []dto.ExcessPick) error {
	switch p.config.Format {
	case "json":
		return p.writeJSON("excess_picks.json", picks)
	case "csv":
		rows := [][]string{{"pick_id", "line_item_id", "part_number", "tool_number", "qty_picked", "picked_by", "picked_at", "reattribute_to"}}
		for _, e := range picks {
			rows = append(rows, []string{e.PickID, e.LineItemID, string(e.PartNumber), e.ToolNumber,
				strconv.FormatInt(int64(e.QtyPicked), 10), e.PickedBy, e.PickedAt.Format(time.RFC3339), e.ReattributeTo})
		}
		return p.writeCSV("excess_picks.csv", rows)
	}

	p.printf("⚠️  Excess Picks: %d\n", len(picks))
	if len(picks) == 0 {
		return nil
	}
	p.printf("%-20s %-10s %-6s %-12s %-20s %s\n", "Part Number", "Tool", "Qty", "Picked By", "Picked At", "Pick ID")
	p.printf("%-20s %-10s %-6s %-12s %-20s %s\n", "--------------------", "----------", "------", "------------", "--------------------", "-------")
	for _, e := range picks {
		p.printf("%-20s %-10s %-6d %-12s %-20s %s\n",
			e.PartNumber, e.ToolNumber, e.QtyPicked, e.PickedBy, e.PickedAt.Format("2006-01-02 15:04"), e.PickID)
	}
	return nil
}

// Audit renders invariant violations
func (p *Printer) Audit(r *dto.AuditReport) error {
	if p.config.Format != "text" {
		return p.writeJSON("audit.json", r)
	}
	if len(r.Violations) == 0 {
		p.printf("✅ %s: no invariant violations\n", r.SONumber)
		return nil
	}
	p.printf("🔍 %s: %d invariant violations\n\n", r.SONumber, len(r.Violations))
	for _, v := range r.Violations {
		p.printf("%-18s %-20s %s\n", v.Kind, v.PartNumber, v.Message)
	}
	return nil
}

// Progress renders picking progress
func (p *Printer) Progress(r *dto.ProgressReport) error {
	switch p.config.Format {
	case "json":
		return p.writeJSON("progress.json", r)
	case "csv":
		rows := [][]string{{"line_item_id", "part_number", "location", "qty_per_unit", "total_qty_needed", "qty_picked", "remaining"}}
		for _, li := range r.LineItems {
			rows = append(rows, []string{li.LineItemID, string(li.PartNumber), li.Location,
				qty(li.QtyPerUnit), qty(li.TotalQtyNeeded), qty(li.QtyPicked), qty(li.Remaining)})
		}
		return p.writeCSV("progress.csv", rows)
	}

	p.printf("📊 %s: %d of %d picked (%.1f%%)\n\n", r.SONumber, r.TotalPicked, r.TotalNeeded, r.PercentComplete)
	for _, t := range r.Tools {
		p.printf("  %-12s %d / %d\n", t.ToolNumber, t.Picked, t.Needed)
	}
	p.printf("\n")
	for _, li := range r.LineItems {
		if li.Remaining == 0 && !p.config.Verbose {
			continue
		}
		p.printf("%-20s %-10s %4d / %-4d remaining %d\n", li.PartNumber, li.Location, li.QtyPicked, li.TotalQtyNeeded, li.Remaining)
	}
	return nil
}

// Pick renders a recorded or remaining pick
func (p *Printer) Pick(pick *entities.Pick) error {
	if p.config.Format != "text" {
		return p.writeJSON("pick.json", pick)
	}
	if pick == nil {
		p.printf("pick removed\n")
		return nil
	}
	p.printf("pick %s: %d on line item %s for tool %s\n", pick.ID, pick.QtyPicked, pick.LineItemID, pick.ToolID)
	return nil
}

func (p *Printer) warnings(ws []string) {
	if len(ws) == 0 {
		return
	}
	p.printf("⚠️  Warnings:\n")
	for _, w := range ws {
		p.printf("  %s\n", w)
	}
}

func (p *Printer) printf(format string, args ...any) {
	fmt.Fprintf(p.w, format, args...)
}

func (p *Printer) writeJSON(filename string, v any) error {
	jsonData, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if p.config.OutputDir == "" {
		_, err = fmt.Fprintln(p.w, string(jsonData))
		return err
	}
	path, err := p.outputPath(filename)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, jsonData, 0644); err != nil {
		return fmt.Errorf("failed to write JSON file: %w", err)
	}
	if p.config.Verbose {
		p.printf("💾 JSON results saved to: %s\n", path)
	}
	return nil
}

func (p *Printer) writeCSV(filename string, rows [][]string) error {
	out := p.w
	if p.config.OutputDir != "" {
		path, err := p.outputPath(filename)
		if err != nil {
			return err
		}
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("failed to create CSV file: %w", err)
		}
		defer f.Close()
		out = f
		if p.config.Verbose {
			defer p.printf("💾 CSV results saved to: %s\n", path)
		}
	}

	w := csv.NewWriter(out)
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("failed to write CSV: %w", err)
	}
	return nil
}

func (p *Printer) outputPath(filename string) (string, error) {
	if err := os.MkdirAll(p.config.OutputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	return filepath.Join(p.config.OutputDir, filename), nil
}

func lineItemRows(items []*entities.LineItem) [][]string {
	rows := [][]string{{"part_number", "description", "location", "assembly_group", "qty_per_unit", "total_qty_needed", "tool_ids"}}
	for _, li := range items {
		rows = append(rows, []string{string(li.PartNumber), li.Description, li.Location, li.AssemblyGroup,
			qty(li.QtyPerUnit), qty(li.TotalQtyNeeded), strings.Join(li.ToolIDs, ";")})
	}
	return rows
}

func stateLine(s dto.LineItemState) string {
	return fmt.Sprintf("%-36s qty/unit %-4d total %-5d tools %s", s.ID, s.QtyPerUnit, s.TotalQtyNeeded, toolList(s.ToolIDs, nil))
}

func toolList(ids []string, numbers map[string]string) string {
	if ids == nil {
		return "all"
	}
	out := make([]string, len(ids))
	for i, id := range ids {
		if n, ok := numbers[id]; ok {
			out[i] = n
		} else {
			out[i] = id
		}
	}
	return strings.Join(out, ",")
}

func qty(q entities.Quantity) string {
	return strconv.FormatInt(int64(q), 10)
}
