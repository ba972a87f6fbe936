package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/VPR42/servigo-go/internal/model"
)

func (c *Client) ListServices(ctx context.Context, filter model.ServiceFilter) (*model.ServicePage, error) {
	query := url.Values{}
	if filter.Query != "" {
		query.Set("query", filter.Query)
	}
	if filter.CityID != "" {
		query.Set("cityId", filter.CityID)
	}
	if filter.CategoryID != "" {
		query.Set("categoryId", filter.CategoryID)
	}
	if filter.Limit > 0 {
		query.Set("limit", strconv.Itoa(filter.Limit))
	}
	if filter.Offset > 0 {
		query.Set("offset", strconv.Itoa(filter.Offset))
	}

	var out model.ServicePage
	if err := c.do(ctx, http.MethodGet, "/services", query, nil, &out); err != nil {
		return nil, fmt.Errorf("list services: %w", err)
	}
	return &out, nil
}

func (c *Client) GetService(ctx context.Context, id string) (*model.Service, error) {
	var out model.Service
	if err := c.do(ctx, http.MethodGet, "/services/"+id, nil, nil, &out); err != nil {
		return nil, fmt.Errorf("get service: %w", err)
	}
	return &out, nil
}

func (c *Client) CreateService(ctx context.Context, params model.CreateServiceParams) (*model.Service, error) {
	var out model.Service
	if err := c.do(ctx, http.MethodPost, "/services", nil, params, &out); err != nil {
		return nil, fmt.Errorf("create service: %w", err)
	}
	return &out, nil
}

func (c *Client) UpdateService(ctx context.Context, id string, params model.UpdateServiceParams) (*model.Service, error) {
	var out model.Service
	if err := c.do(ctx, http.MethodPut, "/services/"+id, nil, params, &out); err != nil {
		return nil, fmt.Errorf("update service: %w", err)
	}
	return &out, nil
}

func (c *Client) DeleteService(ctx context.Context, id string) error {
	if err := c.do(ctx, http.MethodDelete, "/services/"+id, nil, nil, nil); err != nil {
		return fmt.Errorf("delete service: %w", err)
	}
	return nil
}
