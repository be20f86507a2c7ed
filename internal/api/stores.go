package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

// ListStores returns the household's grocery stores.
func (c *Client) ListStores(ctx context.Context) ([]Store, error) {
	var stores []Store
	if err := c.do(ctx, http.MethodGet, "/stores", requestOptions{}, &stores); err != nil {
		return nil, fmt.Errorf("list stores: %w", err)
	}
	return stores, nil
}

// UpdateStoreCategoryOrder persists a new category ordering for a store.
func (c *Client) UpdateStoreCategoryOrder(ctx context.Context, storeID string, order []string) (*Store, error) {
	body := map[string][]string{"categoryOrder": order}

	var store Store
	if err := c.do(ctx, http.MethodPut, "/stores/"+url.PathEscape(storeID), requestOptions{body: body}, &store); err != nil {
		return nil, fmt.Errorf("update store %s: %w", storeID, err)
	}
	return &store, nil
}
