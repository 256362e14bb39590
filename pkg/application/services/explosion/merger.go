package explosion

import (
	"fmt"
	"sort"

	"github.com/vsinha/picktrack/pkg/domain/entities"
)

// Instance is the flattened leaf list of one produced unit
type Instance struct {
	ID     entities.InstanceID
	Leaves []entities.LeafPart
}

// perInstancePart is one part's summed contribution to one instance
type perInstancePart struct {
	qty           entities.Quantity
	assemblyGroup string
	description   string
}

// sumByPart collapses duplicate leaves of one instance. Description and
// assembly group come from the first occurrence.
func sumByPart(leaves []entities.LeafPart) map[entities.PartNumber]*perInstancePart {
	parts := make(map[entities.PartNumber]*perInstancePart, len(leaves))
	for _, leaf := range leaves {
		if p, ok := parts[leaf.PartNumber]; ok {
			p.qty += leaf.Qty
			continue
		}
		parts[leaf.PartNumber] = &perInstancePart{
			qty:           leaf.Qty,
			assemblyGroup: leaf.AssemblyGroup,
			description:   leaf.Description,
		}
	}
	return parts
}

type qtyGroup struct {
	qty         entities.Quantity
	instanceIDs []entities.InstanceID
	first       *perInstancePart
}

// Merge combines the per-instance leaf lists of one import into candidate
// line items, one per distinct quantity of each part.
//
// Output is ordered by part number, then quantity; instance IDs keep the
// order in which instances were given.
func Merge(instances []Instance) ([]entities.CandidateLineItem, error) {
	seen := make(map[entities.InstanceID]bool, len(instances))
	summed := make([]map[entities.PartNumber]*perInstancePart, len(instances))
	universe := make(map[entities.PartNumber]struct{})

	for i, inst := range instances {
		if seen[inst.ID] {
			return nil, fmt.Errorf("duplicate instance id %q", inst.ID)
		}
		seen[inst.ID] = true

		summed[i] = sumByPart(inst.Leaves)
		for pn := range summed[i] {
			universe[pn] = struct{}{}
		}
	}

	partNumbers := make([]entities.PartNumber, 0, len(universe))
	for pn := range universe {
		partNumbers = append(partNumbers, pn)
	}
	sort.Slice(partNumbers, func(i, j int) bool { return partNumbers[i] < partNumbers[j] })

	var candidates []entities.CandidateLineItem
	for _, pn := range partNumbers {
		groups := groupByQty(pn, instances, summed)
		shared := len(groups) == 1 && len(groups[0].instanceIDs) == len(instances)

		for _, g := range groups {
			candidates = append(candidates, entities.CandidateLineItem{
				PartNumber:    pn,
				Description:   g.first.description,
				AssemblyGroup: g.first.assemblyGroup,
				QtyPerUnit:    g.qty,
				InstanceIDs:   g.instanceIDs,
				IsShared:      shared,
			})
		}
	}
	return candidates, nil
}

func groupByQty(pn entities.PartNumber, instances []Instance, summed []map[entities.PartNumber]*perInstancePart) []*qtyGroup {
	byQty := make(map[entities.Quantity]*qtyGroup)
	var groups []*qtyGroup

	for i, inst := range instances {
		p, ok := summed[i][pn]
		if !ok {
			continue
		}
		g, ok := byQty[p.qty]
		if !ok {
			g = &qtyGroup{qty: p.qty, first: p}
			byQty[p.qty] = g
			groups = append(groups, g)
		}
		g.instanceIDs = append(g.instanceIDs, inst.ID)
	}

	sort.Slice(groups, func(i, j int) bool { return groups[i].qty < groups[j].qty })
	return groups
}

// PerToolQuantities returns, for each part, the summed quantity every tool
// requires. Instances without a tool mapping are skipped.
func PerToolQuantities(instances []Instance, toolByInstance map[entities.InstanceID]string) map[entities.PartNumber]map[string]entities.Quantity {
	out := make(map[entities.PartNumber]map[string]entities.Quantity)
	for _, inst := range instances {
		toolID, ok := toolByInstance[inst.ID]
		if !ok {
			continue
		}
		for pn, p := range sumByPart(inst.Leaves) {
			if out[pn] == nil {
				out[pn] = make(map[string]entities.Quantity)
			}
			out[pn][toolID] += p.qty
		}
	}
	return out
}
