package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"
)

// GenerateSuggestions asks the backend for one suggestion per day of the
// week starting at c.StartDate.
func (c *Client) GenerateSuggestions(ctx context.Context, constraints SuggestionConstraints) ([]DaySuggestion, error) {
	if err := constraints.Validate(); err != nil {
		return nil, fmt.Errorf("invalid constraints: %w", err)
	}
	if constraints.DaysToSkip == nil {
		constraints.DaysToSkip = []int{}
	}

	var suggestions []DaySuggestion
	if err := c.do(ctx, http.MethodPost, "/suggestions/generate", requestOptions{body: constraints}, &suggestions); err != nil {
		return nil, fmt.Errorf("generate suggestions: %w", err)
	}
	return suggestions, nil
}

// GetAlternative fetches a recipe for req.Date that is not among the excluded ids.
func (c *Client) GetAlternative(ctx context.Context, req AlternativeRequest) (*Recipe, error) {
	if req.ExcludedRecipeIDs == nil {
		req.ExcludedRecipeIDs = []string{}
	}

	var recipe Recipe
	if err := c.do(ctx, http.MethodPost, "/suggestions/alternative", requestOptions{body: req}, &recipe); err != nil {
		return nil, fmt.Errorf("get alternative for %s: %w", req.Date, err)
	}
	if recipe.ID == "" {
		return nil, fmt.Errorf("get alternative for %s: empty recipe in response", req.Date)
	}
	return &recipe, nil
}

// ApproveSuggestions converts the whole suggestion set into persisted plans.
// The batch is sent with a fresh idempotency key.
func (c *Client) ApproveSuggestions(ctx context.Context, suggestions []DaySuggestion) (*ApproveResponse, error) {
	body := struct {
		Suggestions []DaySuggestion `json:"suggestions"`
	}{Suggestions: suggestions}

	var resp ApproveResponse
	opts := requestOptions{body: body, idempotencyKey: uuid.NewString()}
	if err := c.do(ctx, http.MethodPost, "/suggestions/approve", opts, &resp); err != nil {
		return nil, fmt.Errorf("approve suggestions: %w", err)
	}
	return &resp, nil
}
