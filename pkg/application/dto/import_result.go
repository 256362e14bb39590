package dto

import (
	"github.com/vsinha/picktrack/pkg/domain/entities"
)

// ImportResult is the outcome of importing the BOMs of one order
type ImportResult struct {
	OrderID   string               `json:"order_id,omitempty"`
	SONumber  string               `json:"so_number"`
	Tools     []*entities.Tool     `json:"tools"`
	LineItems []*entities.LineItem `json:"line_items"`
	Warnings  []string             `json:"warnings"`
	Executed  bool                 `json:"executed"`
}

// SharedCount returns how many line items apply to every tool
func (r *ImportResult) SharedCount() int {
	n := 0
	for _, li := range r.LineItems {
		if li.IsShared() {
			n++
		}
	}
	return n
}
