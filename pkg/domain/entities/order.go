package entities

import (
	"fmt"
	"time"
)

// Order is a manufacturing order that parts are picked against
type Order struct {
	ID        string    `json:"id"`
	SONumber  string    `json:"so_number"`
	CreatedAt time.Time `json:"created_at"`
}

// NewOrder creates a validated Order
func NewOrder(soNumber string) (*Order, error) {
	if soNumber == "" {
		return nil, fmt.Errorf("so number cannot be empty")
	}
	return &Order{SONumber: soNumber, CreatedAt: time.Now().UTC()}, nil
}

// Tool is one physical unit produced under an order
type Tool struct {
	ID         string `json:"id"`
	OrderID    string `json:"order_id"`
	ToolNumber string `json:"tool_number"`
	ToolModel  string `json:"tool_model"`
}

// NewTool creates a validated Tool
func NewTool(orderID, toolNumber, toolModel string) (*Tool, error) {
	if toolNumber == "" {
		return nil, fmt.Errorf("tool number cannot be empty")
	}
	return &Tool{
		OrderID:    orderID,
		ToolNumber: toolNumber,
		ToolModel:  toolModel,
	}, nil
}
