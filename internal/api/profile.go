package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/VPR42/servigo-go/internal/model"
)

func (c *Client) UpdateProfile(ctx context.Context, params model.UpdateProfileParams) (*model.User, error) {
	var out model.User
	if err := c.do(ctx, http.MethodPatch, "/users/me", nil, params, &out); err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	return &out, nil
}

func (c *Client) MasterProfile(ctx context.Context, userID string) (*model.MasterProfile, error) {
	var out model.MasterProfile
	if err := c.do(ctx, http.MethodGet, "/masters/"+userID, nil, nil, &out); err != nil {
		return nil, fmt.Errorf("get master profile: %w", err)
	}
	return &out, nil
}

func (c *Client) UpdateMasterProfile(ctx context.Context, params model.UpdateMasterParams) (*model.MasterProfile, error) {
	var out model.MasterProfile
	if err := c.do(ctx, http.MethodPatch, "/masters/me", nil, params, &out); err != nil {
		return nil, fmt.Errorf("update master profile: %w", err)
	}
	return &out, nil
}
