package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// SearchRecipes lists approved recipes matching query.
func (c *Client) SearchRecipes(ctx context.Context, query string, limit int) ([]Recipe, error) {
	q := url.Values{}
	if query != "" {
		q.Set("search", query)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	var recipes []Recipe
	if err := c.do(ctx, http.MethodGet, "/recipes", requestOptions{query: q}, &recipes); err != nil {
		return nil, fmt.Errorf("search recipes: %w", err)
	}
	return recipes, nil
}

// GetRecipe fetches a single recipe by id.
func (c *Client) GetRecipe(ctx context.Context, id string) (*Recipe, error) {
	var recipe Recipe
	if err := c.do(ctx, http.MethodGet, "/recipes/"+url.PathEscape(id), requestOptions{}, &recipe); err != nil {
		return nil, fmt.Errorf("get recipe %s: %w", id, err)
	}
	return &recipe, nil
}

// SubmitRecipe sends a recipe to the household review queue.
func (c *Client) SubmitRecipe(ctx context.Context, sub RecipeSubmission) (*Recipe, error) {
	if sub.Title == "" {
		return nil, fmt.Errorf("submit recipe: title is required")
	}

	var recipe Recipe
	if err := c.do(ctx, http.MethodPost, "/recipes", requestOptions{body: sub}, &recipe); err != nil {
		return nil, fmt.Errorf("submit recipe: %w", err)
	}
	return &recipe, nil
}

// PendingRecipes lists submissions waiting for review.
func (c *Client) PendingRecipes(ctx context.Context) ([]Recipe, error) {
	var recipes []Recipe
	if err := c.do(ctx, http.MethodGet, "/recipes/pending", requestOptions{}, &recipes); err != nil {
		return nil, fmt.Errorf("pending recipes: %w", err)
	}
	return recipes, nil
}

// ReviewRecipe approves or rejects a pending submission.
func (c *Client) ReviewRecipe(ctx context.Context, id string, decision ReviewDecision) (*Recipe, error) {
	var recipe Recipe
	endpoint := "/recipes/" + url.PathEscape(id) + "/review"
	if err := c.do(ctx, http.MethodPost, endpoint, requestOptions{body: decision}, &recipe); err != nil {
		return nil, fmt.Errorf("review recipe %s: %w", id, err)
	}
	return &recipe, nil
}
