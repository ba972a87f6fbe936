package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/VPR42/servigo-go/internal/model"
)

func (c *Client) Orders(ctx context.Context) ([]model.Order, error) {
	var out []model.Order
	if err := c.do(ctx, http.MethodGet, "/orders", nil, nil, &out); err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return out, nil
}

func (c *Client) CreateOrder(ctx context.Context, params model.CreateOrderParams) (*model.Order, error) {
	var out model.Order
	if err := c.do(ctx, http.MethodPost, "/orders", nil, params, &out); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}
	return &out, nil
}

func (c *Client) UpdateOrderStatus(ctx context.Context, id string, status model.OrderStatus) (*model.Order, error) {
	body := map[string]model.OrderStatus{"status": status}

	var out model.Order
	if err := c.do(ctx, http.MethodPatch, "/orders/"+id+"/status", nil, body, &out); err != nil {
		return nil, fmt.Errorf("update order status: %w", err)
	}
	return &out, nil
}
