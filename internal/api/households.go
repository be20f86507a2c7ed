package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

// MyHousehold returns the caller's household and role in it.
func (c *Client) MyHousehold(ctx context.Context) (*HouseholdResponse, error) {
	var resp HouseholdResponse
	if err := c.do(ctx, http.MethodGet, "/households/mine", requestOptions{}, &resp); err != nil {
		return nil, fmt.Errorf("my household: %w", err)
	}
	return &resp, nil
}

// InviteMember invites email into the caller's household.
func (c *Client) InviteMember(ctx context.Context, email string) error {
	body := map[string]string{"email": email}
	if err := c.do(ctx, http.MethodPost, "/households/invite", requestOptions{body: body}, nil); err != nil {
		return fmt.Errorf("invite %s: %w", email, err)
	}
	return nil
}

// RemoveMember removes a user from the caller's household.
func (c *Client) RemoveMember(ctx context.Context, userID string) error {
	endpoint := "/households/members/" + url.PathEscape(userID)
	if err := c.do(ctx, http.MethodDelete, endpoint, requestOptions{}, nil); err != nil {
		return fmt.Errorf("remove member %s: %w", userID, err)
	}
	return nil
}
