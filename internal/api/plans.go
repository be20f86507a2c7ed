package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// ListPlans returns the persisted plans for days consecutive dates from start.
func (c *Client) ListPlans(ctx context.Context, start string, days int) ([]Plan, error) {
	q := url.Values{}
	q.Set("start", start)
	q.Set("days", strconv.Itoa(days))

	var plans []Plan
	if err := c.do(ctx, http.MethodGet, "/plans", requestOptions{query: q}, &plans); err != nil {
		return nil, fmt.Errorf("list plans from %s: %w", start, err)
	}
	return plans, nil
}

// UpdatePlan assigns a recipe to the plan for date, creating it if needed.
func (c *Client) UpdatePlan(ctx context.Context, date string, update PlanUpdate) (*Plan, error) {
	var plan Plan
	if err := c.do(ctx, http.MethodPut, "/plans/"+url.PathEscape(date), requestOptions{body: update}, &plan); err != nil {
		return nil, fmt.Errorf("update plan %s: %w", date, err)
	}
	return &plan, nil
}
