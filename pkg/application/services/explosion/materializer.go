package explosion

import (
	"fmt"
	"sort"
	"strings"

	"github.com/vsinha/picktrack/pkg/domain/entities"
)

// CatalogLookup resolves part master data; ok is false for unknown parts
type CatalogLookup func(pn entities.PartNumber) (entry *entities.CatalogEntry, ok bool)

// CatalogFromMap adapts a preloaded catalog to a CatalogLookup
func CatalogFromMap(entries map[entities.PartNumber]*entities.CatalogEntry) CatalogLookup {
	return func(pn entities.PartNumber) (*entities.CatalogEntry, bool) {
		e, ok := entries[pn]
		return e, ok
	}
}

// Materializer turns candidate line items into line item records for one order
type Materializer struct {
	OrderID        string
	ToolByInstance map[entities.InstanceID]string
	// InstanceCount is the number of instances in the import. Zero means
	// len(ToolByInstance).
	InstanceCount int
	Catalog       CatalogLookup
}

// Materialize builds sorted line items. Candidates that lose every tool
// mapping fall back to applying to all tools and produce a warning.
func (m Materializer) Materialize(candidates []entities.CandidateLineItem) ([]*entities.LineItem, []string) {
	instanceCount := m.InstanceCount
	if instanceCount == 0 {
		instanceCount = len(m.ToolByInstance)
	}

	var warnings []string
	items := make([]*entities.LineItem, 0, len(candidates))

	for _, c := range candidates {
		var toolIDs []string
		if !c.IsShared {
			for _, id := range c.InstanceIDs {
				toolID, ok := m.ToolByInstance[id]
				if !ok {
					warnings = append(warnings, (&entities.MappingError{
						PartNumber: c.PartNumber,
						Msg:        fmt.Sprintf("instance %s has no tool mapping", id),
					}).Error())
					continue
				}
				toolIDs = append(toolIDs, toolID)
			}
			if len(toolIDs) == 0 {
				warnings = append(warnings, (&entities.MappingError{
					PartNumber: c.PartNumber,
					Msg:        "no mapped tools for quantity tier, treating as shared",
				}).Error())
				toolIDs = nil
			}
		}

		count := instanceCount
		if toolIDs != nil {
			count = len(toolIDs)
		}

		item := &entities.LineItem{
			OrderID:        m.OrderID,
			PartNumber:     c.PartNumber,
			Description:    c.Description,
			QtyPerUnit:     c.QtyPerUnit,
			TotalQtyNeeded: c.QtyPerUnit * entities.Quantity(count),
			ToolIDs:        toolIDs,
			AssemblyGroup:  c.AssemblyGroup,
		}
		if m.Catalog != nil {
			if entry, ok := m.Catalog(c.PartNumber); ok && entry != nil {
				if entry.Description != "" {
					item.Description = entry.Description
				}
				item.Location = entry.Location
			}
		}
		items = append(items, item)
	}

	SortLineItems(items)
	return items, warnings
}

// SortLineItems orders items shared first, then by assembly group, part
// number, quantity and tool set.
func SortLineItems(items []*entities.LineItem) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.IsShared() != b.IsShared() {
			return a.IsShared()
		}
		if a.AssemblyGroup != b.AssemblyGroup {
			return a.AssemblyGroup < b.AssemblyGroup
		}
		if a.PartNumber != b.PartNumber {
			return a.PartNumber < b.PartNumber
		}
		if a.QtyPerUnit != b.QtyPerUnit {
			return a.QtyPerUnit < b.QtyPerUnit
		}
		return strings.Join(a.ToolIDs, ",") < strings.Join(b.ToolIDs, ",")
	})
}
