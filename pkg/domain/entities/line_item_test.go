package entities

import (
	"errors"
	"testing"
	"time"
)

func TestLineItem_AppliesTo(t *testing.T) {
	shared := &LineItem{PartNumber: "P", QtyPerUnit: 2}
	tiered := &LineItem{PartNumber: "P", QtyPerUnit: 2, ToolIDs: []string{"T1", "T2"}}

	if !shared.AppliesTo("T9") {
		t.Error("Expected shared line item to apply to every tool")
	}
	if !tiered.AppliesTo("T2") {
		t.Error("Expected tiered line item to apply to T2")
	}
	if tiered.AppliesTo("T3") {
		t.Error("Expected tiered line item not to apply to T3")
	}

	if got := shared.ExpectedTotal(3); got != 6 {
		t.Errorf("Expected shared total 6, got %d", got)
	}
	if got := tiered.ExpectedTotal(3); got != 4 {
		t.Errorf("Expected tiered total 4, got %d", got)
	}
}

func TestLineItemPatch_Apply(t *testing.T) {
	li := &LineItem{PartNumber: "P", QtyPerUnit: 2, TotalQtyNeeded: 4, ToolIDs: []string{"T1", "T2"}}

	LineItemPatch{QtyPerUnit: Quantity(3).Ptr()}.Apply(li)
	if li.QtyPerUnit != 3 || li.TotalQtyNeeded != 4 || len(li.ToolIDs) != 2 {
		t.Fatalf("Expected only qty per unit to change, got %+v", li)
	}

	LineItemPatch{ToolIDs: &ToolIDsValue{}}.Apply(li)
	if !li.IsShared() {
		t.Errorf("Expected explicit nil tool ids to make the item shared, got %v", li.ToolIDs)
	}

	if !(LineItemPatch{}).IsEmpty() {
		t.Error("Expected zero patch to be empty")
	}
}

func TestLineItem_Validation(t *testing.T) {
	if _, err := NewLineItem("O1", "P", 1, 2, []string{"T1", "T2"}); err != nil {
		t.Fatalf("Expected valid line item creation to succeed: %v", err)
	}

	testCases := []struct {
		name        string
		partNumber  PartNumber
		qtyPerUnit  Quantity
		total       Quantity
		toolIDs     []string
		expectError string
	}{
		{"empty part number", "", 1, 1, nil, "part number cannot be empty"},
		{"zero qty per unit", "P", 0, 1, nil, "qty per unit must be positive, got 0"},
		{"negative total", "P", 1, -1, nil, "total qty needed cannot be negative, got -1"},
		{"empty tool ids", "P", 1, 1, []string{}, "tool ids must be nil or non-empty"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewLineItem("O1", tc.partNumber, tc.qtyPerUnit, tc.total, tc.toolIDs)
			if err == nil {
				t.Fatalf("Expected error for %s, but got none", tc.name)
			}
			if err.Error() != tc.expectError {
				t.Errorf("Expected error '%s', got '%s'", tc.expectError, err.Error())
			}
		})
	}
}

func TestPick_Validation(t *testing.T) {
	_, err := NewPick("LI1", "T1", 0, "alex", time.Now(), "")
	if !errors.Is(err, ErrInvalidQuantity) {
		t.Fatalf("Expected ErrInvalidQuantity, got %v", err)
	}

	picks := []*Pick{{QtyPicked: 2}, {QtyPicked: 5}}
	if got := SumPicked(picks); got != 7 {
		t.Errorf("Expected sum 7, got %d", got)
	}
}

func TestWrapStore(t *testing.T) {
	base := errors.New("connection reset")
	err := WrapStore("list picks", base)

	var se *StoreError
	if !errors.As(err, &se) {
		t.Fatalf("Expected StoreError, got %T", err)
	}
	if !errors.Is(err, base) {
		t.Error("Expected StoreError to unwrap to the cause")
	}
	if WrapStore("again", err) != err {
		t.Error("Expected an existing StoreError not to be wrapped twice")
	}
	if WrapStore("noop", nil) != nil {
		t.Error("Expected nil error to stay nil")
	}
}
