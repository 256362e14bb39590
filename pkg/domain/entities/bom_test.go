package entities

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestBOMRow_Validation(t *testing.T) {
	row, err := NewBOMRow(2, "BOLT-M6", Purchased, decimal.NewFromInt(4), "M6 bolt")
	if err != nil {
		t.Fatalf("Expected valid BOM row creation to succeed: %v", err)
	}
	if !row.Qty.Equal(decimal.NewFromInt(4)) {
		t.Errorf("Expected qty 4, got %s", row.Qty)
	}

	testCases := []struct {
		name        string
		level       int
		partNumber  PartNumber
		expectError string
	}{
		{"negative level", -1, "PART", "level cannot be negative, got -1"},
		{"empty part number", 0, "", "part number cannot be empty"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewBOMRow(tc.level, tc.partNumber, Other, decimal.NewFromInt(1), "")
			if err == nil {
				t.Fatalf("Expected error for %s, but got none", tc.name)
			}
			if err.Error() != tc.expectError {
				t.Errorf("Expected error '%s', got '%s'", tc.expectError, err.Error())
			}
		})
	}
}

func TestParseItemType(t *testing.T) {
	tests := []struct {
		in   string
		want ItemType
	}{
		{"PUR", Purchased},
		{" pur ", Purchased},
		{"Buy", Purchased},
		{"ASSY", Assembly},
		{"Make", Assembly},
		{"", Other},
		{"REF", Other},
	}

	for _, tt := range tests {
		if got := ParseItemType(tt.in); got != tt.want {
			t.Errorf("ParseItemType(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}
