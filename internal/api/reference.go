package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/VPR42/servigo-go/internal/model"
)

func (c *Client) Cities(ctx context.Context) ([]model.City, error) {
	var out []model.City
	if err := c.do(ctx, http.MethodGet, "/cities", nil, nil, &out); err != nil {
		return nil, fmt.Errorf("list cities: %w", err)
	}
	return out, nil
}

func (c *Client) Categories(ctx context.Context) ([]model.Category, error) {
	var out []model.Category
	if err := c.do(ctx, http.MethodGet, "/categories", nil, nil, &out); err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return out, nil
}

func (c *Client) Skills(ctx context.Context) ([]model.Skill, error) {
	var out []model.Skill
	if err := c.do(ctx, http.MethodGet, "/skills", nil, nil, &out); err != nil {
		return nil, fmt.Errorf("list skills: %w", err)
	}
	return out, nil
}
