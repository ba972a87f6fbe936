package api

import (
	"context"
	"fmt"
	"net/http"

	apperrors "github.com/VPR42/servigo-go/internal/errors"
	"github.com/VPR42/servigo-go/internal/model"
)

// Favorites returns the user's saved services. The backend answers 404 when
// the list is empty; that is an empty result, not a failure.
func (c *Client) Favorites(ctx context.Context) ([]model.Service, error) {
	var out []model.Service
	err := c.do(ctx, http.MethodGet, "/favorites", nil, nil, &out)
	if apperrors.HasCode(err, apperrors.ErrCodeNotFound) {
		return []model.Service{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list favorites: %w", err)
	}
	return out, nil
}

func (c *Client) AddFavorite(ctx context.Context, serviceID string) error {
	if err := c.do(ctx, http.MethodPost, "/favorites/"+serviceID, nil, nil, nil); err != nil {
		return fmt.Errorf("add favorite: %w", err)
	}
	return nil
}

func (c *Client) RemoveFavorite(ctx context.Context, serviceID string) error {
	if err := c.do(ctx, http.MethodDelete, "/favorites/"+serviceID, nil, nil, nil); err != nil {
		return fmt.Errorf("remove favorite: %w", err)
	}
	return nil
}
